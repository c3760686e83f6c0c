package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseAskRequest(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		wantQuery   string
		wantEntity  string
		wantErr     bool
	}{
		{
			name:      "get with q",
			method:    http.MethodGet,
			target:    "/api/v1/ask?q=cash+runway&entity=EMEA",
			wantQuery: "cash runway", wantEntity: "EMEA",
		},
		{
			name:      "get with query alias",
			method:    http.MethodGet,
			target:    "/api/v1/ask?query=ebitda",
			wantQuery: "ebitda",
		},
		{
			name:        "json body",
			method:      http.MethodPost,
			contentType: "application/json",
			body:        `{"query":"  revenue vs budget  ","entity":"ParentCo"}`,
			wantQuery:   "revenue vs budget", wantEntity: "ParentCo",
		},
		{
			name:        "form body",
			method:      http.MethodPost,
			contentType: "application/x-www-form-urlencoded",
			body:        "q=gross+margin",
			wantQuery:   "gross margin",
		},
		{
			name:        "json without content type",
			method:      http.MethodPost,
			body:        `{"query":"opex"}`,
			wantQuery:   "opex",
		},
		{
			name:   "empty body is an empty question",
			method: http.MethodPost,
		},
		{
			name:        "control characters stripped",
			method:      http.MethodPost,
			contentType: "application/json",
			body:        `{"query":"cash\u0000 runway"}`,
			wantQuery:   "cash runway",
		},
		{
			name:        "invalid json",
			method:      http.MethodPost,
			contentType: "application/json",
			body:        `{"query":`,
			wantErr:     true,
		},
		{
			name:    "question too long",
			method:  http.MethodGet,
			target:  "/api/v1/ask?q=" + strings.Repeat("a", maxQuestionLength+1),
			wantErr: true,
		},
		{
			name:    "entity too long",
			method:  http.MethodGet,
			target:  "/api/v1/ask?q=ebitda&entity=" + strings.Repeat("e", maxEntityLength+1),
			wantErr: true,
		},
		{
			name:        "body too large",
			method:      http.MethodPost,
			contentType: "application/x-www-form-urlencoded",
			body:        "q=" + strings.Repeat("a", maxBodyBytes),
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.target
			if target == "" {
				target = "/api/v1/ask"
			}
			req := httptest.NewRequest(tt.method, target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			got, err := ParseAskRequest(httptest.NewRecorder(), req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAskRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Query != tt.wantQuery {
				t.Errorf("Query = %q, want %q", got.Query, tt.wantQuery)
			}
			if got.Entity != tt.wantEntity {
				t.Errorf("Entity = %q, want %q", got.Entity, tt.wantEntity)
			}
		})
	}
}

func TestRequestBodyParser_ParseOnce(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"n": 3, "flag": true}`))
	p := NewRequestBodyParser(httptest.NewRecorder(), req)

	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := p.Parse(); err != nil {
		t.Fatalf("second Parse() error = %v", err)
	}
	if !p.IsJSON() {
		t.Error("IsJSON() = false")
	}
	if got := p.Get("n"); got != "3" {
		t.Errorf("Get(n) = %q", got)
	}
	if got := p.Get("flag"); got != "true" {
		t.Errorf("Get(flag) = %q", got)
	}
	if got := p.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q", got)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b\x07c", "abc"},
		{"line1\nline2", "line1\nline2"},
		{"tab\there", "tab\there"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
