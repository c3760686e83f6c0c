package http

import (
	"bytes"
	"html/template"

	"cfocopilot/internal/copilot"
	"cfocopilot/internal/core"
)

// answerView feeds answer.html.
type answerView struct {
	Query       string
	Kind        core.IntentKind
	Period      string
	HTML        template.HTML
	ErrorKind   core.ErrorKind
	Suggestions []string
	Version     uint64
	Cached      bool
}

type indexView struct {
	Suggestions []string
	Snapshot    *snapshotResponse
	Query       string
	Entity      string
	Answer      *answerView
}

// renderMarkdown converts a markdown answer to HTML. Raw HTML in the source
// is dropped by goldmark's default renderer.
func (s *Server) renderMarkdown(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func (s *Server) newAnswerView(resp copilot.Response) (*answerView, error) {
	html, err := s.renderMarkdown(resp.Answer)
	if err != nil {
		return nil, err
	}
	v := &answerView{
		Query:   resp.Query,
		Kind:    resp.Intent.Kind,
		Period:  resp.Intent.Period.String(),
		HTML:    html,
		Version: resp.SnapshotVersion,
		Cached:  resp.Cached,
	}
	if resp.Error != nil {
		v.ErrorKind = resp.Error.Kind
		v.Suggestions = resp.Error.Suggestions
	}
	return v, nil
}

func (s *Server) renderTemplate(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
