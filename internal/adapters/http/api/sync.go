package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	service "github.com/okian/rollcall/internal/app"
)

const maxSyncBody = 1 << 16

// syncRequest mirrors the OpenAPI schema for POST /sync.
type syncRequest struct {
	TagIDs []int  `json:"tag_ids" validate:"dive,gt=0"`
	ZoneID int    `json:"zone_id" validate:"gte=0"`
	Since  string `json:"since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Fresh  bool   `json:"fresh"`
}

type syncResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// externalQuery mirrors the query string of GET /external/reports.
type externalQuery struct {
	Page    int `validate:"gte=1"`
	PerPage int `validate:"gte=1,lte=100"`
}

// SyncHandler submits sync jobs and proxies log API queries.
type SyncHandler struct {
	deps SyncDependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps SyncDependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

// HandleSync handles POST /sync. An empty body syncs the configured tags.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSyncBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", errors.Join(ErrBadRequest, err))
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.Join(ErrBadRequest, err))
		return
	}

	sr := service.SyncRequest{TagIDs: req.TagIDs, ZoneID: req.ZoneID, Fresh: req.Fresh}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", errors.Join(ErrBadRequest, err))
			return
		}
		sr.Since = since
	}

	id, err := h.deps.EnqueueSync(r.Context(), sr)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, syncResponse{JobID: id, Status: "queued"})
}

// HandleExternal handles GET /external/reports?tags=&page=&per_page=.
func (h *SyncHandler) HandleExternal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tags, err := parseIDs(q.Get("tags"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	eq := externalQuery{Page: 1, PerPage: 25}
	if v := q.Get("page"); v != "" {
		if eq.Page, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
	}
	if v := q.Get("per_page"); v != "" {
		if eq.PerPage, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
	}
	if err := validate.Struct(eq); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.Join(ErrBadRequest, err))
		return
	}

	page, err := h.deps.QueryExternal(r.Context(), tags, eq.Page, eq.PerPage)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
