package web

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dialcodes/internal/core"
	"github.com/JonMunkholm/dialcodes/internal/web/templates"
)

var errNoFile = errors.New("no file provided")

// handleDashboard renders the import form and one page of records.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	mode, err := s.parseMode(r)
	if err != nil {
		mode = s.service.DefaultMode()
	}

	data := templates.DashboardData{
		Page:   s.service.Page(parseIntParam(r, "page", 1)),
		Mode:   mode,
		Notice: noticeFromQuery(r.URL.Query()),
	}
	render(w, r, http.StatusOK, templates.Dashboard(data))
}

// handleImport imports text pasted into the dashboard form.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.UI.MaxImportBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	if err := r.ParseForm(); err != nil {
		s.importFailed(w, r, "", tooLarge(err, limit))
		return
	}

	text := r.PostFormValue("text")
	if int64(len(text)) > limit {
		s.importFailed(w, r, "", fmt.Errorf("%w: limit is %d bytes", core.ErrImportTooLarge, limit))
		return
	}

	result, err := s.service.Import(r.Context(), text)
	if err != nil {
		s.importFailed(w, r, text, err)
		return
	}
	redirect(w, r, s.importedURL(result))
}

// handleImportFile imports an uploaded .txt or .tsv export.
func (s *Server) handleImportFile(w http.ResponseWriter, r *http.Request) {
	result, err := s.importUpload(w, r)
	if err != nil {
		s.importFailed(w, r, "", err)
		return
	}
	redirect(w, r, s.importedURL(result))
}

// importUpload streams the "file" part of a multipart request into the
// service without buffering the whole body in memory.
func (s *Server) importUpload(w http.ResponseWriter, r *http.Request) (core.ImportResult, error) {
	limit := s.cfg.UI.MaxImportBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		return core.ImportResult{}, errNoFile
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return core.ImportResult{}, errNoFile
		}
		if err != nil {
			return core.ImportResult{}, tooLarge(err, limit)
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		result, err := s.service.ImportReader(r.Context(), part, limit)
		part.Close()
		if err != nil {
			return core.ImportResult{}, tooLarge(err, limit)
		}
		return result, nil
	}
}

// formOverhead leaves room for multipart boundaries and headers on top of
// the import size limit.
const formOverhead = 64 << 10

// tooLarge converts the http.MaxBytesReader error into ErrImportTooLarge.
func tooLarge(err error, limit int64) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: limit is %d bytes", core.ErrImportTooLarge, limit)
	}
	return err
}

// importFailed re-renders the dashboard with the error and the submitted
// text so nothing typed is lost. Unexpected errors get the error page.
func (s *Server) importFailed(w http.ResponseWriter, r *http.Request, input string, err error) {
	status := statusFor(err)
	if errors.Is(err, errNoFile) {
		status = http.StatusUnprocessableEntity
	}
	if status >= http.StatusInternalServerError {
		respondError(w, r, err, status)
		return
	}

	msg := core.MapError(err)
	notice := &templates.Notice{Error: true, Title: msg.Message, Action: msg.Action, Code: msg.Code}
	var ie *core.ImportError
	if errors.As(err, &ie) {
		notice.Detail = core.SummarizeParseErrors(ie.Errors, s.cfg.UI.ErrorSummary)
	}

	data := templates.DashboardData{
		Page:   s.service.Page(1),
		Mode:   s.service.DefaultMode(),
		Notice: notice,
		Input:  input,
	}
	render(w, r, status, templates.Dashboard(data))
}

// importedURL points at the last page, where the new records are, and
// carries the outcome for the notice banner.
func (s *Server) importedURL(res core.ImportResult) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(s.service.Page(math.MaxInt).Page))
	q.Set("added", strconv.Itoa(len(res.Added)))
	if len(res.Skipped) > 0 {
		q.Set("skipped", strconv.Itoa(len(res.Skipped)))
		q.Set("detail", core.SummarizeParseErrors(res.Skipped, s.cfg.UI.ErrorSummary))
	}
	return "/?" + q.Encode()
}

// noticeFromQuery rebuilds the import notice after the redirect.
func noticeFromQuery(q url.Values) *templates.Notice {
	added, err := strconv.Atoi(q.Get("added"))
	if err != nil {
		if q.Get("cleared") == "1" {
			return &templates.Notice{Title: "All records were deleted"}
		}
		return nil
	}

	n := &templates.Notice{Title: fmt.Sprintf("Imported %d %s", added, plural(added, "record", "records"))}
	if skipped, _ := strconv.Atoi(q.Get("skipped")); skipped > 0 {
		n.Title += fmt.Sprintf(", skipped %d %s", skipped, plural(skipped, "line", "lines"))
		n.Detail = q.Get("detail")
	}
	return n
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// handleClear deletes every record. The form must confirm explicitly.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("confirm") != "yes" {
		redirect(w, r, "/")
		return
	}
	if err := s.service.Clear(r.Context()); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	redirect(w, r, "/?cleared=1")
}

// handleCodePage shows one record's code with a mode switch and download.
func (s *Server) handleCodePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mode, err := s.parseMode(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	rec, payload, err := s.service.Payload(id, mode, requestOrigin(r))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	_, index, _ := s.service.Store().Get(id)

	render(w, r, http.StatusOK, templates.CodePage(templates.CodeData{
		Record:   rec,
		Index:    index,
		Total:    s.service.Store().Len(),
		Mode:     mode,
		Payload:  payload,
		FileName: core.ExportFileName(rec),
	}))
}

// handleCodeImage renders a record's code as PNG. With download=1 the
// response is an attachment named after the record.
func (s *Server) handleCodeImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mode, err := s.parseMode(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	rec, raster, err := s.service.RenderCode(r.Context(), id, mode, requestOrigin(r))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	setImageHeaders(w, core.ExportFileName(rec), r.URL.Query().Get("download") == "1")
	if err := core.EncodePNG(w, raster); err != nil {
		// Headers are gone; all that is left is to log.
		s.logExportFailure(r, err)
	}
}

func setImageHeaders(w http.ResponseWriter, fileName string, attachment bool) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if attachment {
		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	}
}

// handleCall is the landing page of link-redirect codes.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	phone := q.Get("phone")
	if phone == "" {
		render(w, r, http.StatusBadRequest, templates.InvalidLinkPage())
		return
	}
	render(w, r, http.StatusOK, templates.CallPage(phone, q.Get("orderId")))
}
