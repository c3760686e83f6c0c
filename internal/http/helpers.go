package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"cfocopilot/internal/copilot"
	"cfocopilot/internal/core"
	"cfocopilot/internal/log"
)

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// statusFor maps an answer to an HTTP status. Questions the copilot could
// not place, and short histories, are still answered with 200.
func statusFor(resp copilot.Response) int {
	if resp.Error == nil {
		return http.StatusOK
	}
	switch resp.Error.Kind {
	case core.KindBadRequest:
		return http.StatusBadRequest
	case core.KindNoSnapshot:
		return http.StatusServiceUnavailable
	case core.KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode JSON response", log.FieldError, err)
	}
}

type apiError struct {
	Error copilot.ErrorPayload `json:"error"`
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, kind core.ErrorKind, msg string) {
	writeJSON(w, r, status, apiError{Error: copilot.ErrorPayload{Kind: kind, Message: msg}})
}

var templateFuncs = template.FuncMap{
	"title": func(k core.IntentKind) string { return k.Title() },
}
