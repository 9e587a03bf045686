package api

import (
	"net/http"
	"strings"

	"github.com/okian/rollcall/internal/domain/model"
)

// Output formats accepted by attendance endpoints.
const (
	formatStats  = ""
	formatExport = "export"
)

// AttendanceHandler serves the attendance entry points.
type AttendanceHandler struct {
	deps AttendanceDependencies
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(deps AttendanceDependencies) *AttendanceHandler {
	return &AttendanceHandler{deps: deps}
}

// HandleGuild handles GET /attendance[?format=export].
func (h *AttendanceHandler) HandleGuild(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.GuildAttendance(r.Context())
	h.respond(w, r, stats, err)
}

// HandleRanks handles GET /attendance/ranks?ids=1,2.
func (h *AttendanceHandler) HandleRanks(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	stats, err := h.deps.RankAttendance(r.Context(), ids)
	h.respond(w, r, stats, err)
}

// HandleCharacter handles GET /characters/{name}/attendance[?format=export].
func (h *AttendanceHandler) HandleCharacter(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	stats, err := h.deps.CharacterAttendance(r.Context(), name)
	h.respond(w, r, stats, err)
}

// HandleReport handles GET /reports/{code}/attendance.
func (h *AttendanceHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.PathValue("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	stats, err := h.deps.ReportAttendance(r.Context(), code)
	h.respond(w, r, stats, err)
}

func (h *AttendanceHandler) respond(w http.ResponseWriter, r *http.Request, stats []model.CharacterAttendanceStats, err error) {
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	if stats == nil {
		stats = []model.CharacterAttendanceStats{}
	}
	switch r.URL.Query().Get("format") {
	case formatStats:
		writeJSON(w, http.StatusOK, stats)
	case formatExport:
		out := make([]model.AttendanceExport, len(stats))
		for i, s := range stats {
			out[i] = s.Export()
		}
		writeJSON(w, http.StatusOK, out)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadFormat)
	}
}
