package copilot

import (
	"fmt"
	"strings"

	"cfocopilot/internal/core"

	"github.com/shopspring/decimal"
)

// Overview is the snapshot summary shown when a question was not understood.
type Overview struct {
	Month   core.Month
	Revenue *core.MetricResult
	Ebitda  *core.MetricResult
	Runway  *core.Runway
}

// RunwayStatus buckets a runway: Healthy above 12 months, Monitor above 6,
// Critical otherwise.
type RunwayStatus string

const (
	StatusHealthy  RunwayStatus = "Healthy"
	StatusMonitor  RunwayStatus = "Monitor"
	StatusCritical RunwayStatus = "Critical"
)

var (
	twelve     = decimal.NewFromInt(12)
	six        = decimal.NewFromInt(6)
	flatMargin = decimal.RequireFromString("0.05")
)

func StatusOf(rw *core.Runway) RunwayStatus {
	switch {
	case rw.Unbounded || rw.Months.GreaterThan(twelve):
		return StatusHealthy
	case rw.Months.GreaterThan(six):
		return StatusMonitor
	}
	return StatusCritical
}

// Direction describes the sign of a variance: "above", "below" or "in line with".
func Direction(v decimal.Decimal, up, down string) string {
	switch v.Round(0).Sign() {
	case 1:
		return up
	case -1:
		return down
	}
	return "in line with"
}

// TrendWord describes a margin change in percentage points.
func TrendWord(change decimal.Decimal) string {
	switch {
	case change.GreaterThan(flatMargin):
		return "improving"
	case change.LessThan(flatMargin.Neg()):
		return "declining"
	}
	return "flat"
}

// FormatAnswer renders a result as a short markdown report.
func FormatAnswer(in core.Intent, r *core.MetricResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%s)\n\n", in.Kind.Title(), periodLabel(r))

	switch r.Intent {
	case core.RevenueVsBudget:
		writeVarianceSummary(&b, "Revenue", r)
		writeSeriesTable(&b, r)
	case core.EbitdaAnalysis:
		writeVarianceSummary(&b, "EBITDA", r)
		if m, ok := r.Value(core.HeadlineMargin); ok {
			fmt.Fprintf(&b, "EBITDA margin was **%s** on revenue of %s.\n\n", core.FormatPercent(m), money(r, core.HeadlineRevenue))
		}
		writeSeriesTable(&b, r)
	case core.GrossMarginTrend:
		writeMargin(&b, r)
	case core.OpexBreakdown:
		writeBreakdown(&b, in, r)
	case core.CashRunway:
		writeRunway(&b, r)
	}

	for _, n := range r.Notes {
		fmt.Fprintf(&b, "> %s\n", n.Message)
	}
	return strings.TrimSpace(b.String()) + "\n"
}

func periodLabel(r *core.MetricResult) string {
	first, last := r.FirstPeriod(), r.LastPeriod()
	if first == last {
		return first.String()
	}
	return first.String() + " to " + last.String()
}

func money(r *core.MetricResult, name string) string {
	v, _ := r.Value(name)
	return core.FormatUSD(v)
}

func writeVarianceSummary(b *strings.Builder, what string, r *core.MetricResult) {
	if r.Variance == nil {
		return
	}
	v := r.Variance
	fmt.Fprintf(b, "%s was **%s** against a budget of **%s**, ", what, money(r, core.HeadlineActual), money(r, core.HeadlineBudget))
	dir := Direction(v.Absolute, "above", "below")
	if dir == "in line with" {
		b.WriteString("in line with budget.\n\n")
		return
	}
	fmt.Fprintf(b, "%s %s budget", core.FormatUSD(v.Absolute.Abs()), dir)
	if v.Percent.Valid {
		fmt.Fprintf(b, " (%s)", core.FormatSignedPercent(v.Percent.Decimal))
	}
	b.WriteString(".\n\n")
}

func writeSeriesTable(b *strings.Builder, r *core.MetricResult) {
	if len(r.Series) < 2 {
		return
	}
	b.WriteString("| Month | Actual | Budget | Variance |\n|---|---:|---:|---:|\n")
	for i, p := range r.Series {
		budget := decimal.Zero
		if i < len(r.ComparisonSeries) {
			budget = r.ComparisonSeries[i].Value
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", p.Label, core.FormatUSD(p.Value), core.FormatUSD(budget), core.FormatUSD(p.Value.Sub(budget)))
	}
	b.WriteString("\n")
}

func writeMargin(b *strings.Builder, r *core.MetricResult) {
	latest, ok := r.Value(core.HeadlineLatest)
	if !ok {
		b.WriteString("Gross margin is undefined for every month in this period.\n\n")
		return
	}
	avg, _ := r.Value(core.HeadlineAverage)
	change, _ := r.Value(core.HeadlineChange)
	fmt.Fprintf(b, "Latest gross margin is **%s**; the period average is %s. The trend is **%s** (%s pp over the period).\n\n",
		core.FormatPercent(latest), core.FormatPercent(avg), TrendWord(change), strings.TrimSuffix(core.FormatSignedPercent(change), "%"))

	budget := map[string]decimal.Decimal{}
	for _, p := range r.ComparisonSeries {
		budget[p.Label] = p.Value
	}
	b.WriteString("| Month | Actual | Budget |\n|---|---:|---:|\n")
	for _, p := range r.Series {
		bv := "n/a"
		if v, ok := budget[p.Label]; ok {
			bv = core.FormatPercent(v)
		}
		fmt.Fprintf(b, "| %s | %s | %s |\n", p.Label, core.FormatPercent(p.Value), bv)
	}
	b.WriteString("\n")
}

func writeBreakdown(b *strings.Builder, in core.Intent, r *core.MetricResult) {
	if len(r.Breakdown) == 0 {
		b.WriteString("No opex recorded for this period.\n\n")
		return
	}
	what := "Opex"
	if in.Category != "" {
		what = in.Category
	}
	fmt.Fprintf(b, "Total %s was **%s** against a budget of %s.\n\n", what, money(r, core.HeadlineActual), money(r, core.HeadlineBudget))
	b.WriteString("| Category | Actual | Budget | Variance |\n|---|---:|---:|---:|\n")
	for _, c := range r.Breakdown {
		pct := "n/a"
		if v := c.Variance(); v.Percent.Valid {
			pct = core.FormatSignedPercent(v.Percent.Decimal)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", c.Name, core.FormatUSD(c.Actual), core.FormatUSD(c.Budget), pct)
	}
	top := r.Breakdown[0]
	if r.Variance != nil {
		fmt.Fprintf(b, "\nSpend was %s budget by %s. Largest line was %s at %s.\n\n",
			Direction(r.Variance.Absolute, "over", "under"), core.FormatUSD(r.Variance.Absolute.Abs()), top.Name, core.FormatUSD(top.Actual))
	}
}

func writeRunway(b *strings.Builder, r *core.MetricResult) {
	rw := r.Runway
	if rw == nil {
		return
	}
	fmt.Fprintf(b, "- Current cash: **%s**\n", core.FormatUSD(rw.CurrentCash))
	fmt.Fprintf(b, "- Average monthly change (%d months): %s\n", rw.WindowMonths, core.FormatUSD(rw.AvgMonthlyChange))
	if rw.Unbounded {
		b.WriteString("- Runway: **not limited**, cash is flat or growing\n")
	} else {
		fmt.Fprintf(b, "- Runway: **%s months**\n", core.FormatMonths(rw.Months))
	}
	fmt.Fprintf(b, "- Status: **%s**\n\n", StatusOf(rw))
}

// FormatError renders an error payload for chat surfaces.
func FormatError(e *ErrorPayload) string {
	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString("\n")
	writeSuggestions(&b, e.Suggestions)
	return b.String()
}

func writeSuggestions(b *strings.Builder, s []string) {
	if len(s) == 0 {
		return
	}
	b.WriteString("\nTry one of these:\n")
	for _, q := range s {
		fmt.Fprintf(b, "- %s\n", q)
	}
}

// FormatOverview combines the latest snapshot figures with suggestions.
func FormatOverview(ov *Overview, e *ErrorPayload) string {
	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString("\n")
	if ov != nil {
		fmt.Fprintf(&b, "\n## Financial Overview (%s)\n\n", ov.Month)
		if ov.Revenue != nil && ov.Revenue.Variance != nil {
			fmt.Fprintf(&b, "- Revenue: %s, %s budget\n", money(ov.Revenue, core.HeadlineActual),
				Direction(ov.Revenue.Variance.Absolute, "above", "below"))
		}
		if ov.Ebitda != nil {
			fmt.Fprintf(&b, "- EBITDA: %s\n", money(ov.Ebitda, core.HeadlineActual))
		}
		if ov.Runway != nil {
			if ov.Runway.Unbounded {
				fmt.Fprintf(&b, "- Cash: %s, runway not limited\n", core.FormatUSD(ov.Runway.CurrentCash))
			} else {
				fmt.Fprintf(&b, "- Cash: %s, runway %s months (%s)\n", core.FormatUSD(ov.Runway.CurrentCash), core.FormatMonths(ov.Runway.Months), StatusOf(ov.Runway))
			}
		}
	}
	writeSuggestions(&b, e.Suggestions)
	return b.String()
}
