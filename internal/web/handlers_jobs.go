package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/BitSlicer/internal/core"
	"github.com/JonMunkholm/BitSlicer/internal/table"
	"github.com/go-chi/chi/v5"
)

// handleCreateJob starts a background slicing job for the uploaded file.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	u, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	jobID, err := s.service.StartJob(r.Context(), core.JobRequest{
		FileName: u.FileName,
		Data:     u.Data,
		Read:     u.Read,
		Plan:     u.Plan,
		ClientIP: core.ClientIPFromContext(r.Context()),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, map[string]string{"job_id": jobID})
}

// handleJobProgress streams job progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - job finished
				final, err := s.service.JobProgress(jobID)
				if err != nil {
					final = core.JobProgress{JobID: jobID}
				}
				data, _ := json.Marshal(final)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}

			// Skip events that were already sent (for resumption)
			eventID := progress.Percent()
			if eventID <= lastEventID && !progress.Phase.Terminal() {
				continue
			}
			lastEventID = eventID

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleJobResult returns the outcome of a job. A running job reports its
// progress with 202 Accepted instead of blocking.
func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	progress, err := s.service.JobProgress(jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !progress.Phase.Terminal() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(progress)
		return
	}

	result, err := s.service.JobResult(r.Context(), jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

// handleCancelJob cancels an in-progress job.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.service.CancelJob(jobID); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, map[string]string{"status": "cancelled"})
}

// handleJobOutput downloads the sliced table as CSV (default) or XLSX.
func (s *Server) handleJobOutput(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	format := table.CSV
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := table.ParseFormat(v)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		format = f
	}

	out, err := s.service.JobOutput(jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Render fully before writing headers so a failure still gets a JSON error.
	var buf bytes.Buffer
	if err := table.Write(&buf, format, out); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, outputName(out.Name, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

func contentType(f table.Format) string {
	if f == table.XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// outputName derives a download name such as "regs_sliced.xlsx" from the
// uploaded file name.
func outputName(upload string, f table.Format) string {
	base := strings.TrimSuffix(filepath.Base(upload), filepath.Ext(upload))
	if base == "" || base == "." {
		base = "output"
	}
	base = strings.NewReplacer(`"`, "", "\\", "", "/", "").Replace(base)
	return base + "_sliced." + string(f)
}
