package web

// handlers_common.go holds request parsing helpers shared by the handlers.

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/dialcodes/internal/core"
	"github.com/JonMunkholm/dialcodes/internal/logging"
)

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseMode reads the payload mode from the "mode" form or query value,
// falling back to the configured default when absent.
func (s *Server) parseMode(r *http.Request) (core.PayloadMode, error) {
	raw := r.FormValue("mode")
	if raw == "" {
		return s.service.DefaultMode(), nil
	}
	return core.ParsePayloadMode(raw)
}

// requestOrigin is the scheme and host the client used, for link-redirect
// payloads when no base URL is configured. X-Forwarded-Proto only survives
// middleware.TrustedRealIP when a trusted proxy sent it.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		first, _, _ := strings.Cut(proto, ",")
		switch p := strings.ToLower(strings.TrimSpace(first)); p {
		case "http", "https":
			scheme = p
		}
	}
	return scheme + "://" + r.Host
}

// render writes an HTML component with the given status.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render template", "path", r.URL.Path, "error", err)
	}
}

// redirect sends a 303 so a browser follows a form POST with a GET.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}
