package web

// handlers_review.go serves sequential review sessions. Each session lives
// in the service and renders asynchronously; the image endpoints wait for
// the latest render, bounded by the request context.

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dialcodes/internal/core"
	"github.com/JonMunkholm/dialcodes/internal/logging"
	"github.com/JonMunkholm/dialcodes/internal/web/templates"
)

// handleStartReview opens a review at the optional "start" record.
func (s *Server) handleStartReview(w http.ResponseWriter, r *http.Request) {
	mode, err := s.parseMode(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	rv, err := s.service.StartReview(r.FormValue("start"), mode, requestOrigin(r), nil)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	logging.WithFields(r.Context(), "review_id", rv.ID()).Info("review started", "records", rv.Len())
	redirect(w, r, reviewURL(rv.ID()))
}

// handleReviewPage shows the record under the review cursor.
func (s *Server) handleReviewPage(w http.ResponseWriter, r *http.Request) {
	rv, ok := s.lookupReview(w, r)
	if !ok {
		return
	}
	render(w, r, http.StatusOK, templates.ReviewPage(reviewData(rv, nil)))
}

// handleReviewAction applies prev, next, mode or close.
func (s *Server) handleReviewAction(w http.ResponseWriter, r *http.Request) {
	rv, ok := s.lookupReview(w, r)
	if !ok {
		return
	}

	switch chi.URLParam(r, "action") {
	case "prev":
		rv.Retreat()
	case "next":
		rv.Advance()
	case "mode":
		if raw := r.FormValue("mode"); raw != "" {
			mode, err := core.ParsePayloadMode(raw)
			if err != nil {
				respondError(w, r, err, http.StatusBadRequest)
				return
			}
			_ = rv.SetMode(mode)
		} else {
			rv.ToggleMode()
		}
	case "close":
		s.service.CloseReview(rv.ID())
		redirect(w, r, "/")
		return
	default:
		http.NotFound(w, r)
		return
	}
	redirect(w, r, reviewURL(rv.ID()))
}

// handleReviewImage waits for the current render and serves it inline.
func (s *Server) handleReviewImage(w http.ResponseWriter, r *http.Request) {
	s.serveReviewPNG(w, r, false)
}

// handleReviewDownload serves the current render as an attachment.
func (s *Server) handleReviewDownload(w http.ResponseWriter, r *http.Request) {
	s.serveReviewPNG(w, r, true)
}

func (s *Server) serveReviewPNG(w http.ResponseWriter, r *http.Request, attachment bool) {
	rv, ok := s.lookupReview(w, r)
	if !ok {
		return
	}

	if _, err := rv.Wait(r.Context()); err != nil {
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}

	// Export checks the surface again: a navigation may have landed
	// between Wait and here, in which case the render is pending again.
	var buf bytes.Buffer
	name, err := rv.Export(&buf)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, core.ErrRenderPending) {
			status = http.StatusConflict
		}
		respondError(w, r, err, status)
		return
	}

	setImageHeaders(w, name, attachment)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logExportFailure(r, err)
	}
}

func (s *Server) lookupReview(w http.ResponseWriter, r *http.Request) (*core.Review, bool) {
	rv, err := s.service.Review(chi.URLParam(r, "reviewID"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return nil, false
	}
	return rv, true
}

func (s *Server) logExportFailure(r *http.Request, err error) {
	logging.FromContext(r.Context()).Warn("export write failed", "path", r.URL.Path, "error", err)
}

func reviewURL(id string) string {
	return "/review/" + url.PathEscape(id)
}

func reviewData(rv *core.Review, notice *templates.Notice) templates.ReviewData {
	payload, _ := rv.Payload()
	return templates.ReviewData{
		ID:         rv.ID(),
		Record:     rv.Current(),
		Index:      rv.Index(),
		Total:      rv.Len(),
		Mode:       rv.Mode(),
		Payload:    payload,
		FileName:   rv.FileName(),
		Generation: rv.Surface().Generation,
		AtStart:    rv.AtStart(),
		AtEnd:      rv.AtEnd(),
		Notice:     notice,
	}
}
