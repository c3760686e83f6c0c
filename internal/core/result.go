package core

import "github.com/shopspring/decimal"

type Unit string

const (
	UnitUSD     Unit = "usd"
	UnitPercent Unit = "percent"
	UnitMonths  Unit = "months"
)

type NoteKind string

const (
	NoteUndefinedMetric NoteKind = "undefined_metric"
	NoteDefaultedPeriod NoteKind = "defaulted_period"
	NoteShortHistory    NoteKind = "short_history"
	NoteMissingMonth    NoteKind = "missing_month"
	NoteIgnoredFilter   NoteKind = "ignored_filter"
)

type (
	NamedValue struct {
		Name  string
		Value decimal.Decimal
		Unit  Unit
	}

	// Variance of actual against budget. Percent is invalid when the budget is zero.
	Variance struct {
		Absolute decimal.Decimal
		Percent  decimal.NullDecimal
	}

	// Point is one chart sample; Label is the x-axis value.
	Point struct {
		Label string
		Value decimal.Decimal
	}

	// CategoryAmount is one breakdown row. Name is the short label
	// ("Marketing"), Category the full account path ("Opex:Marketing").
	CategoryAmount struct {
		Name     string
		Category string
		Actual   decimal.Decimal
		Budget   decimal.Decimal
	}

	Runway struct {
		Entity           string
		AsOf             Month
		CurrentCash      decimal.Decimal
		AvgMonthlyChange decimal.Decimal
		// Months is meaningful only when Unbounded is false.
		Months       decimal.Decimal
		Unbounded    bool
		WindowMonths int
	}

	Note struct {
		Kind    NoteKind
		Message string
	}

	// MetricResult is what the metrics engine hands to every surface.
	// Series and ComparisonSeries are the chart contract.
	MetricResult struct {
		Intent           IntentKind
		Periods          []Month
		Headline         []NamedValue
		Variance         *Variance
		SeriesName       string
		Series           []Point
		ComparisonName   string
		ComparisonSeries []Point
		Breakdown        []CategoryAmount
		Runway           *Runway
		Notes            []Note
	}
)

// Variance compares the row actual to its budget.
func (c CategoryAmount) Variance() Variance { return NewVariance(c.Actual, c.Budget) }

// NewVariance computes actual - budget and actual/budget - 1 in percent.
func NewVariance(actual, budget decimal.Decimal) Variance {
	v := Variance{Absolute: actual.Sub(budget)}
	if !budget.IsZero() {
		v.Percent = decimal.NewNullDecimal(actual.Div(budget).Sub(decimal.NewFromInt(1)).Mul(hundred))
	}
	return v
}

func (r *MetricResult) AddHeadline(name string, v decimal.Decimal, u Unit) {
	r.Headline = append(r.Headline, NamedValue{Name: name, Value: v, Unit: u})
}

func (r *MetricResult) AddNote(kind NoteKind, msg string) {
	r.Notes = append(r.Notes, Note{Kind: kind, Message: msg})
}

// Value looks up a headline figure by name.
func (r *MetricResult) Value(name string) (decimal.Decimal, bool) {
	for _, h := range r.Headline {
		if h.Name == name {
			return h.Value, true
		}
	}
	return decimal.Zero, false
}

func (r *MetricResult) HasNote(kind NoteKind) bool {
	for _, n := range r.Notes {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

// FirstPeriod and LastPeriod bound the resolved x-axis.
func (r *MetricResult) FirstPeriod() Month {
	if len(r.Periods) == 0 {
		return Month{}
	}
	return r.Periods[0]
}

func (r *MetricResult) LastPeriod() Month {
	if len(r.Periods) == 0 {
		return Month{}
	}
	return r.Periods[len(r.Periods)-1]
}

// Headline names shared by the engine and the answer formatters.
const (
	HeadlineActual      = "actual"
	HeadlineBudget      = "budget"
	HeadlineVariance    = "variance"
	HeadlineVariancePct = "variance_pct"
	HeadlineRevenue     = "revenue"
	HeadlineCOGS        = "cogs"
	HeadlineOpex        = "opex"
	HeadlineMargin      = "margin"
	HeadlineLatest      = "latest"
	HeadlineAverage     = "average"
	HeadlineChange      = "change"
	HeadlineCash        = "cash"
	HeadlineAvgChange   = "avg_monthly_change"
	HeadlineRunway      = "runway_months"
)
