// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/okian/rollcall/internal/adapters/mq/queue"
	"github.com/okian/rollcall/internal/adapters/warcraftlogs"
	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/attendance"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AttendanceDependencies
	MatrixDependencies
	SyncDependencies
	StatsProvider
	ReadinessChecker
}

// AttendanceDependencies are the four attendance entry points.
type AttendanceDependencies interface {
	GuildAttendance(ctx context.Context) ([]model.CharacterAttendanceStats, error)
	RankAttendance(ctx context.Context, rankIDs []int) ([]model.CharacterAttendanceStats, error)
	CharacterAttendance(ctx context.Context, name string) ([]model.CharacterAttendanceStats, error)
	ReportAttendance(ctx context.Context, code string) ([]model.CharacterAttendanceStats, error)
}

// MatrixDependencies builds attendance matrices.
type MatrixDependencies interface {
	Matrix(ctx context.Context, f attendance.MatrixFilters) (model.AttendanceMatrix, error)
}

// SyncDependencies submits sync jobs and reads the log API directly.
type SyncDependencies interface {
	EnqueueSync(ctx context.Context, req service.SyncRequest) (string, error)
	QueryExternal(ctx context.Context, tagIDs []int, page, perPage int) (warcraftlogs.Page, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	attendanceHandler *AttendanceHandler
	matrixHandler     *MatrixHandler
	syncHandler       *SyncHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(deps),
		statsHandler:      NewStatsHandler(deps),
		attendanceHandler: NewAttendanceHandler(deps),
		matrixHandler:     NewMatrixHandler(deps),
		syncHandler:       NewSyncHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /attendance", MetricsMiddleware(s.attendanceHandler.HandleGuild, "attendance"))
	mux.HandleFunc("GET /attendance/ranks", MetricsMiddleware(s.attendanceHandler.HandleRanks, "attendance_ranks"))
	mux.HandleFunc("GET /characters/{name}/attendance", MetricsMiddleware(s.attendanceHandler.HandleCharacter, "character_attendance"))
	mux.HandleFunc("GET /reports/{code}/attendance", MetricsMiddleware(s.attendanceHandler.HandleReport, "report_attendance"))
	mux.HandleFunc("GET /matrix", MetricsMiddleware(s.matrixHandler.HandleMatrix, "matrix"))
	mux.HandleFunc("POST /sync", MetricsMiddleware(s.syncHandler.HandleSync, "sync"))
	mux.HandleFunc("GET /external/reports", MetricsMiddleware(s.syncHandler.HandleExternal, "external_reports"))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps an error kind to a status code.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, attendance.ErrEmptyInput), errors.Is(err, ErrBadRequest), errors.Is(err, ErrBadFormat):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrCharacterNotFound), errors.Is(err, service.ErrReportNotFound),
		errors.Is(err, warcraftlogs.ErrGuildNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "queue_full", err)
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, service.ErrSyncDisabled), errors.Is(err, queue.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, warcraftlogs.ErrTransport), errors.Is(err, warcraftlogs.ErrUnorderedPage):
		writeError(w, http.StatusBadGateway, "upstream_error", err)
	default:
		metrics.RecordErrorByComponent("api", "internal")
		logger.Get().Named("api").Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// parseIDs parses a comma separated id list. An empty value returns nil.
func parseIDs(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil || id < 0 {
			return nil, errors.Join(ErrBadRequest, errors.New("invalid id "+strconv.Quote(p)))
		}
		out = append(out, id)
	}
	return out, nil
}
