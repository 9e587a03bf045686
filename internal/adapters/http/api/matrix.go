package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/okian/rollcall/internal/domain/attendance"
)

// MatrixHandler serves the attendance matrix.
type MatrixHandler struct {
	deps MatrixDependencies
}

// NewMatrixHandler creates a new matrix handler.
func NewMatrixHandler(deps MatrixDependencies) *MatrixHandler {
	return &MatrixHandler{deps: deps}
}

// HandleMatrix handles GET /matrix?ranks=&zones=&tags=&since=&before=.
// Dates are YYYY-MM-DD or RFC 3339.
func (h *MatrixHandler) HandleMatrix(w http.ResponseWriter, r *http.Request) {
	f, err := parseMatrixFilters(r)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	m, err := h.deps.Matrix(r.Context(), f)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func parseMatrixFilters(r *http.Request) (attendance.MatrixFilters, error) {
	q := r.URL.Query()
	var f attendance.MatrixFilters
	var err error
	if f.RankIDs, err = parseIDs(q.Get("ranks")); err != nil {
		return f, err
	}
	if f.ZoneIDs, err = parseIDs(q.Get("zones")); err != nil {
		return f, err
	}
	if f.GuildTagIDs, err = parseIDs(q.Get("tags")); err != nil {
		return f, err
	}
	if f.Since, err = parseTime(q.Get("since")); err != nil {
		return f, err
	}
	if f.Before, err = parseTime(q.Get("before")); err != nil {
		return f, err
	}
	return f, nil
}

func parseTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.Join(ErrBadRequest, errors.New("invalid date "+raw))
}
