package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dialcodes/internal/core"
	"github.com/JonMunkholm/dialcodes/internal/logging"
)

// importRequest is the body of POST /api/import.
type importRequest struct {
	Text string `json:"text"`
}

// importResponse reports a committed import.
type importResponse struct {
	Added   int               `json:"added"`
	Skipped []core.ParseError `json:"skipped,omitempty"`
	Summary string            `json:"summary,omitempty"`
	Total   int               `json:"total"`
	Records []core.Record     `json:"records"`
}

// payloadResponse is the body of GET /api/codes/{id}/payload.
type payloadResponse struct {
	Record   core.Record      `json:"record"`
	Mode     core.PayloadMode `json:"mode"`
	Payload  string           `json:"payload"`
	FileName string           `json:"fileName"`
}

// handleListRecords returns one page of records.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Page(parseIntParam(r, "page", 1)))
}

// handleAPIImport imports {"text": "..."}.
func (s *Server) handleAPIImport(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.UI.MaxImportBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = tooLarge(err, limit)
		if errors.Is(err, core.ErrImportTooLarge) {
			respondError(w, r, err, http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("decode import request: %w", err), http.StatusBadRequest)
		return
	}
	if int64(len(req.Text)) > limit {
		respondError(w, r, fmt.Errorf("%w: limit is %d bytes", core.ErrImportTooLarge, limit), http.StatusRequestEntityTooLarge)
		return
	}

	result, err := s.service.Import(r.Context(), req.Text)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSONStatus(w, http.StatusCreated, s.importResponse(result))
}

// handleAPIImportFile imports a multipart "file" upload.
func (s *Server) handleAPIImportFile(w http.ResponseWriter, r *http.Request) {
	result, err := s.importUpload(w, r)
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, errNoFile) {
			status = http.StatusBadRequest
		}
		respondError(w, r, err, status)
		return
	}
	writeJSONStatus(w, http.StatusCreated, s.importResponse(result))
}

func (s *Server) importResponse(res core.ImportResult) importResponse {
	return importResponse{
		Added:   len(res.Added),
		Skipped: res.Skipped,
		Summary: core.SummarizeParseErrors(res.Skipped, s.cfg.UI.ErrorSummary),
		Total:   res.Total,
		Records: res.Added,
	}
}

// handleAPIClear deletes every record.
func (s *Server) handleAPIClear(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Clear(r.Context()); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCodePayload returns the exact string a record's code encodes.
func (s *Server) handleCodePayload(w http.ResponseWriter, r *http.Request) {
	mode, err := s.parseMode(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	rec, payload, err := s.service.Payload(chi.URLParam(r, "id"), mode, requestOrigin(r))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, payloadResponse{
		Record:   rec,
		Mode:     mode,
		Payload:  payload,
		FileName: core.ExportFileName(rec),
	})
}

// handleHealth reports liveness and the current load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":         "ok",
		"records":        s.service.Store().Len(),
		"reviews":        s.service.ReviewCount(),
		"activeRenders":  s.limiter.ActiveCount(),
		"renderCapacity": s.limiter.Available(),
	})
}

// sseKeepAlive is how often a comment is sent on an idle change feed.
const sseKeepAlive = 25 * time.Second

// handleRecordEvents streams record set changes as server-sent events so
// open dashboards refresh after an import or clear elsewhere.
func (s *Server) handleRecordEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming unsupported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	changes, unsubscribe := s.service.Store().Subscribe()
	defer unsubscribe()

	logger := logging.FromContext(r.Context())
	logger.Debug("change feed opened")

	// Tell the client where the set stands right now.
	if err := writeEvent(w, "snapshot", core.Change{Total: s.service.Store().Len()}); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("change feed closed")
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := writeEvent(w, "change", c); err != nil {
				logger.Debug("change feed write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
