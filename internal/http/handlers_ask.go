package http

import (
	"net/http"

	"cfocopilot/internal/copilot"
	"cfocopilot/internal/core"
	"cfocopilot/internal/log"
)

// ask runs one question through the copilot and counts the outcome.
func (s *Server) ask(r *http.Request, req copilot.Request) copilot.Response {
	s.appMetrics.questions.Add(1)
	resp := s.service.Ask(r.Context(), req)
	switch {
	case resp.OK():
		s.appMetrics.answered.Add(1)
	case resp.Intent.Kind == core.Unknown:
		s.appMetrics.unknown.Add(1)
	}
	return resp
}

// handleIndex renders the chat page. A "q" parameter is answered inline so
// the page works without JavaScript.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := indexView{Suggestions: s.service.Suggestions()}
	if snap := s.service.Snapshot(); snap != nil {
		sr := newSnapshotResponse(snap)
		data.Snapshot = &sr
	}

	status := http.StatusOK
	req, err := ParseAskRequest(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query != "" {
		resp := s.ask(r, req)
		view, err := s.newAnswerView(resp)
		if err != nil {
			logger.ErrorContext(r.Context(), "Markdown rendering failed", log.FieldError, err)
			http.Error(w, "failed to render answer", http.StatusInternalServerError)
			return
		}
		data.Query, data.Entity, data.Answer = req.Query, req.Entity, view
		status = statusFor(resp)
	}

	body, err := s.renderTemplate("index.html", data)
	if err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed", log.FieldError, err, "template", "index.html")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// handleAskHTML answers a chat form submission with an HTML fragment.
func (s *Server) handleAskHTML(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	req, err := ParseAskRequest(w, r)
	if err != nil {
		errorFragment(http.StatusBadRequest, err.Error()).Write(w)
		return
	}

	resp := s.ask(r, req)
	view, err := s.newAnswerView(resp)
	if err != nil {
		logger.ErrorContext(r.Context(), "Markdown rendering failed", log.FieldError, err)
		errorFragment(http.StatusInternalServerError, "failed to render answer").Write(w)
		return
	}
	body, err := s.renderTemplate("answer.html", view)
	if err != nil {
		logger.ErrorContext(r.Context(), "Answer template execution failed", log.FieldError, err, "template", "answer.html")
		errorFragment(http.StatusInternalServerError, "failed to render answer").Write(w)
		return
	}

	f := newFragment(statusFor(resp), body)
	f.events.Answered(resp).FormReset()
	if resp.Error != nil && resp.Error.Kind == core.KindNoSnapshot {
		f.events.Notify(NotificationError, resp.Error.Message)
	}
	f.Write(w)
}

// handleAskJSON serves GET /api/v1/ask?q=... and POST /api/v1/ask.
func (s *Server) handleAskJSON(w http.ResponseWriter, r *http.Request) {
	req, err := ParseAskRequest(w, r)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, core.KindBadRequest, err.Error())
		return
	}
	resp := s.ask(r, req)
	writeJSON(w, r, statusFor(resp), newAskResponse(resp))
}
