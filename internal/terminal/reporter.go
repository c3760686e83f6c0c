package terminal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"cfocopilot/internal/amqp"
	"cfocopilot/internal/copilot"
	"cfocopilot/internal/ledger"
)

// Reporter prints command results as plain text.
type Reporter struct {
	writer    io.Writer
	templates *template.Template
}

const reportTemplates = `
{{define "answer"}}{{.Answer}}
-- {{.Intent.Kind}} | {{.Intent.Period}}{{if .SnapshotVersion}} | ledger v{{.SnapshotVersion}}{{end}}{{if .Cached}} | cached{{end}}
{{end}}

{{define "stats"}}Rows:       {{.Rows}}
Facts:      {{.Stats.Facts}}
Cash rows:  {{.Stats.CashRows}}
FX rates:   {{.Stats.FxRates}}
Months:     {{.Stats.FirstMonth}} .. {{.Stats.LastMonth}} ({{len .Stats.Months}} with actuals)
Entities:   {{join .Stats.Entities}}
Currencies: {{join .Stats.Currencies}}
{{end}}

{{define "check"}}Workbook from {{.Backend}} is valid.
{{template "stats" .}}{{end}}

{{define "import"}}Imported {{.From}} into {{.To}}.
{{template "stats" .}}{{end}}

{{define "reload"}}Reload requested: {{.ID}} ({{.Reason}}) at {{stamp .Timestamp}}
{{end}}
`

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	funcs := template.FuncMap{
		"join": func(s []string) string {
			if len(s) == 0 {
				return "-"
			}
			return strings.Join(s, ", ")
		},
		"stamp": func(t time.Time) string { return t.Format(time.RFC3339) },
	}
	return &Reporter{
		writer:    writer,
		templates: template.Must(template.New("report").Funcs(funcs).Parse(reportTemplates)),
	}
}

func (r *Reporter) Answer(resp copilot.Response) error {
	return r.templates.ExecuteTemplate(r.writer, "answer", resp)
}

func (r *Reporter) JSON(v any) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type statsView struct {
	Backend  string
	From, To string
	Rows     int
	Stats    ledger.Stats
}

func (r *Reporter) Check(backend string, rows int, stats ledger.Stats) error {
	return r.templates.ExecuteTemplate(r.writer, "check", statsView{Backend: backend, Rows: rows, Stats: stats})
}

func (r *Reporter) Import(from, to string, rows int, stats ledger.Stats) error {
	return r.templates.ExecuteTemplate(r.writer, "import", statsView{From: from, To: to, Rows: rows, Stats: stats})
}

func (r *Reporter) Reload(msg *amqp.ReloadMessage) error {
	if msg == nil {
		return fmt.Errorf("nil reload message")
	}
	return r.templates.ExecuteTemplate(r.writer, "reload", msg)
}
