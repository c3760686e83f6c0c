package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"cfocopilot/internal/copilot"
)

const (
	// maxQuestionLength bounds a question in characters.
	maxQuestionLength = 500
	maxEntityLength   = 100
	maxBodyBytes      = 16 << 10
)

var (
	errQuestionTooLong = fmt.Errorf("question is longer than %d characters", maxQuestionLength)
	errEntityTooLong   = fmt.Errorf("entity is longer than %d characters", maxEntityLength)
)

// RequestBodyParser reads a JSON or form-encoded body once.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	}
	return p
}

// Parse decodes the body as JSON when it looks like an object, otherwise as a form.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}
	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a sanitized value from the parsed JSON or form data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseAskRequest reads a question from the query string ("q" or "query")
// on GET, or from a JSON or form body otherwise. An empty question is not an
// error here; the copilot answers it with guidance.
func ParseAskRequest(w http.ResponseWriter, r *http.Request) (copilot.Request, error) {
	var req copilot.Request
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.Query = firstNonEmpty(sanitizeInput(q.Get("q")), sanitizeInput(q.Get("query")))
		req.Entity = sanitizeInput(q.Get("entity"))
	} else {
		p := NewRequestBodyParser(w, r)
		if err := p.Parse(); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return req, fmt.Errorf("request body exceeds %d bytes", tooBig.Limit)
			}
			return req, fmt.Errorf("invalid request body: %w", err)
		}
		req.Query = firstNonEmpty(p.Get("query"), p.Get("q"))
		req.Entity = p.Get("entity")
	}

	if utf8.RuneCountInString(req.Query) > maxQuestionLength {
		return req, errQuestionTooLong
	}
	if utf8.RuneCountInString(req.Entity) > maxEntityLength {
		return req, errEntityTooLong
	}
	return req, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
