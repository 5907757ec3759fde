package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/BitSlicer/internal/core"
)

// maxClassifyBody bounds the JSON body of a classify request.
const maxClassifyBody = 1 << 20

// previewRows is how many sliced rows /api/plan returns.
const previewRows = 5

// handleHealth reports liveness plus the job queue state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"jobs":   s.service.LimiterStatus(),
	})
}

// ClassifyRequest is the body of POST /api/classify.
type ClassifyRequest struct {
	Tokens []string `json:"tokens"`

	// KnownWidth treats every token as a binary word of this many bits.
	KnownWidth int `json:"known_width,omitempty"`
}

// handleClassify reports how each token would be decoded.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxClassifyBody)

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Tokens) == 0 {
		writeError(w, http.StatusBadRequest, "no tokens provided")
		return
	}

	writeJSON(w, map[string]any{
		"tokens": core.ClassifyTokens(req.Tokens, req.KnownWidth),
	})
}

// InspectResponse describes every column of an uploaded file.
type InspectResponse struct {
	FileName string              `json:"file_name"`
	Rows     int                 `json:"rows"`
	Columns  []core.ColumnReport `json:"columns"`
}

// handleInspect resolves the encoding of every column in the uploaded file.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	u, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tbl, err := u.table()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, InspectResponse{
		FileName: u.FileName,
		Rows:     len(tbl.Rows),
		Columns:  s.service.Inspect(tbl, u.Plan.Known),
	})
}

// PlanResponse is a validated plan plus the first sliced rows.
type PlanResponse struct {
	Plan    core.Plan    `json:"plan"`
	Preview *core.Result `json:"preview"`
}

// handlePlan validates a plan against the uploaded file without starting a job.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	u, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tbl, err := u.table()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	plan, err := s.service.Plan(tbl, u.Plan)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if len(tbl.Rows) > previewRows {
		tbl.Rows = tbl.Rows[:previewRows]
	}
	preview, err := s.service.Slice(r.Context(), tbl, plan)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, PlanResponse{Plan: plan, Preview: preview})
}

// handleListLayouts returns every registered layout.
func (s *Server) handleListLayouts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"layouts": s.service.Layouts().All(),
	})
}

// handleHistory returns recently finished jobs, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := core.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 1000)
		}
	}

	entries, err := s.service.History().List(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.HistoryEntry{}
	}

	writeJSON(w, map[string]any{"jobs": entries})
}

// handleQueueStatus returns the current state of the job limiter.
// Used for monitoring and to check if the system can accept more jobs.
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.LimiterStatus())
}
