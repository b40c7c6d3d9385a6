package web

// errors.go provides unified error responses for the web layer.
//
// Every error is logged with its technical detail and request id, then mapped
// through core.MapError so the client only sees the user message, action and
// support code. API routes and clients asking for JSON get an ErrorResponse;
// everything else gets an HTML page.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/dialcodes/internal/core"
	"github.com/JonMunkholm/dialcodes/internal/logging"
	"github.com/JonMunkholm/dialcodes/internal/web/templates"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Lines   []core.ParseError `json:"lines,omitempty"`
}

// respondError logs err and writes the mapped message in the format the
// client expects.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if wantsJSON(r) {
		resp := ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		}
		var ie *core.ImportError
		if errors.As(err, &ie) {
			resp.Lines = ie.Errors
		}
		writeJSONStatus(w, statusCode, resp)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if rerr := templates.ErrorPage(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w); rerr != nil {
		slog.Error("render error page", "error", rerr)
	}
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	var ie *core.ImportError
	switch {
	case errors.Is(err, core.ErrNoInput), errors.As(err, &ie),
		errors.Is(err, core.ErrUnknownMode), errors.Is(err, core.ErrEmptyReview):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrImportTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrRecordNotFound), errors.Is(err, core.ErrReviewNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRenderPending):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyRenders):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON reports whether the client expects a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
