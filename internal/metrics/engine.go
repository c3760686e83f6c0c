// Package metrics computes the financial figures behind each intent from an
// immutable ledger snapshot.
package metrics

import (
	"fmt"
	"slices"
	"strings"

	"cfocopilot/internal/core"
	"cfocopilot/internal/ledger"

	"github.com/shopspring/decimal"
)

const (
	DefaultRunwayWindow = 3
	DefaultTrendWindow  = 3
	runwayPrecision     = 6
)

// Options tune a computation. Zero values fall back to the engine defaults.
type Options struct {
	// Entity restricts figures to one entity; "" is consolidated.
	Entity string
	// RunwayWindow is the number of month-over-month cash changes averaged.
	RunwayWindow int
	// TrendWindow is how many months a trend covers when the question named no period.
	TrendWindow int
}

type Engine struct {
	defaults Options
}

func NewEngine(defaults Options) *Engine {
	if defaults.RunwayWindow <= 0 {
		defaults.RunwayWindow = DefaultRunwayWindow
	}
	if defaults.TrendWindow <= 0 {
		defaults.TrendWindow = DefaultTrendWindow
	}
	return &Engine{defaults: defaults}
}

func (e *Engine) merge(o Options) Options {
	if o.RunwayWindow <= 0 {
		o.RunwayWindow = e.defaults.RunwayWindow
	}
	if o.TrendWindow <= 0 {
		o.TrendWindow = e.defaults.TrendWindow
	}
	if o.Entity == "" {
		o.Entity = e.defaults.Entity
	}
	return o
}

// Compute dispatches on the intent kind. Unknown intents fail with
// core.ErrUnknownIntent; metrics that cannot be defined for some month are
// reported as notes on the result instead of errors.
func (e *Engine) Compute(l *ledger.Ledger, in core.Intent, opts Options) (*core.MetricResult, error) {
	if l == nil {
		return nil, core.ErrNoSnapshot
	}
	opts = e.merge(opts)
	if !l.HasEntity(opts.Entity) {
		return nil, fmt.Errorf("%w: unknown entity %q", core.ErrNoData, opts.Entity)
	}
	switch in.Kind {
	case core.RevenueVsBudget:
		return e.revenueVsBudget(l, in, opts)
	case core.GrossMarginTrend:
		return e.grossMarginTrend(l, in, opts)
	case core.OpexBreakdown:
		return e.opexBreakdown(l, in, opts)
	case core.EbitdaAnalysis:
		return e.ebitda(l, in, opts)
	case core.CashRunway:
		return e.cashRunway(l, in, opts)
	}
	return nil, fmt.Errorf("%w: %q", core.ErrUnknownIntent, in.Kind)
}

func newResult(kind core.IntentKind, w Window) *core.MetricResult {
	return &core.MetricResult{Intent: kind, Periods: slices.Clone(w.Months)}
}

// addVariance fills the variance headline and notes an undefined percent.
func addVariance(r *core.MetricResult, what string, actual, budget decimal.Decimal) {
	v := core.NewVariance(actual, budget)
	r.Variance = &v
	r.AddHeadline(core.HeadlineActual, actual, core.UnitUSD)
	r.AddHeadline(core.HeadlineBudget, budget, core.UnitUSD)
	r.AddHeadline(core.HeadlineVariance, v.Absolute, core.UnitUSD)
	if v.Percent.Valid {
		r.AddHeadline(core.HeadlineVariancePct, v.Percent.Decimal, core.UnitPercent)
	} else {
		r.AddNote(core.NoteUndefinedMetric, fmt.Sprintf("budget %s is zero, so variance %% is undefined", what))
	}
}

func noteMissingActuals(r *core.MetricResult, l *ledger.Ledger, months []core.Month) {
	var missing []string
	for _, m := range months {
		if !l.HasFacts(core.SourceActual, m) {
			missing = append(missing, m.String())
		}
	}
	if len(missing) > 0 {
		r.AddNote(core.NoteMissingMonth, "no actuals for "+strings.Join(missing, ", "))
	}
}

func point(m core.Month, v decimal.Decimal) core.Point {
	return core.Point{Label: m.String(), Value: v}
}

func (e *Engine) revenueVsBudget(l *ledger.Ledger, in core.Intent, opts Options) (*core.MetricResult, error) {
	w, err := ResolvePeriod(l, in.Period)
	if err != nil {
		return nil, err
	}
	r := newResult(core.RevenueVsBudget, w)
	r.SeriesName, r.ComparisonName = "Actual revenue", "Budget revenue"

	totalA, totalB := decimal.Zero, decimal.Zero
	for _, m := range w.Months {
		a := l.Lookup(core.SourceActual, m, opts.Entity, core.CategoryRevenue)
		b := l.Lookup(core.SourceBudget, m, opts.Entity, core.CategoryRevenue)
		totalA, totalB = totalA.Add(a), totalB.Add(b)
		r.Series = append(r.Series, point(m, a))
		r.ComparisonSeries = append(r.ComparisonSeries, point(m, b))
	}
	addVariance(r, "revenue", totalA, totalB)
	noteMissingActuals(r, l, w.Months)
	return r, nil
}

// grossMargin is (revenue - cogs) / revenue in percent; ok is false when revenue is zero.
func grossMargin(l *ledger.Ledger, src core.Source, m core.Month, entity string) (decimal.Decimal, bool) {
	rev := l.Lookup(src, m, entity, core.CategoryRevenue)
	if rev.IsZero() {
		return decimal.Zero, false
	}
	cogs := l.Lookup(src, m, entity, core.CategoryCOGS)
	return core.Percent(rev.Sub(cogs), rev), true
}

func (e *Engine) grossMarginTrend(l *ledger.Ledger, in core.Intent, opts Options) (*core.MetricResult, error) {
	period := in.Period
	if period.Kind == core.PeriodLatest || period.Defaulted {
		period = core.LastMonths(opts.TrendWindow)
		period.Defaulted = true
	}
	w, err := ResolvePeriod(l, period)
	if err != nil {
		return nil, err
	}
	r := newResult(core.GrossMarginTrend, w)
	r.SeriesName, r.ComparisonName = "Actual gross margin", "Budget gross margin"
	if w.Defaulted {
		r.AddNote(core.NoteDefaultedPeriod, fmt.Sprintf("no period given, showing the last %d months", len(w.Months)))
	}

	var undefined []string
	for _, m := range w.Months {
		if v, ok := grossMargin(l, core.SourceActual, m, opts.Entity); ok {
			r.Series = append(r.Series, point(m, v))
		} else {
			undefined = append(undefined, m.String())
		}
		if v, ok := grossMargin(l, core.SourceBudget, m, opts.Entity); ok {
			r.ComparisonSeries = append(r.ComparisonSeries, point(m, v))
		}
	}
	if len(undefined) > 0 {
		r.AddNote(core.NoteUndefinedMetric, "revenue is zero, so gross margin is undefined for "+strings.Join(undefined, ", "))
	}
	if len(r.Series) == 0 {
		return r, nil
	}

	first, last := r.Series[0].Value, r.Series[len(r.Series)-1].Value
	sum := decimal.Zero
	for _, p := range r.Series {
		sum = sum.Add(p.Value)
	}
	r.AddHeadline(core.HeadlineLatest, last, core.UnitPercent)
	r.AddHeadline(core.HeadlineAverage, sum.Div(decimal.NewFromInt(int64(len(r.Series)))), core.UnitPercent)
	r.AddHeadline(core.HeadlineChange, last.Sub(first), core.UnitPercent)
	return r, nil
}

func (e *Engine) opexBreakdown(l *ledger.Ledger, in core.Intent, opts Options) (*core.MetricResult, error) {
	w, err := ResolvePeriod(l, in.Period)
	if err != nil {
		return nil, err
	}
	r := newResult(core.OpexBreakdown, w)
	parent := in.Category
	if parent != "" && !ledger.MatchesCategory(parent, core.CategoryOpex) {
		r.AddNote(core.NoteIgnoredFilter, fmt.Sprintf("%s is not an operating expense, showing all Opex", parent))
		parent = ""
	}
	if parent == "" {
		parent = core.CategoryOpex
	}
	r.SeriesName, r.ComparisonName = "Actual "+leaf(parent), "Budget "+leaf(parent)

	actual := map[string]decimal.Decimal{}
	budget := map[string]decimal.Decimal{}
	totalA, totalB := decimal.Zero, decimal.Zero
	for _, m := range w.Months {
		monthA, monthB := decimal.Zero, decimal.Zero
		for name, v := range l.Children(core.SourceActual, m, opts.Entity, parent) {
			actual[name] = actual[name].Add(v)
			monthA = monthA.Add(v)
		}
		for name, v := range l.Children(core.SourceBudget, m, opts.Entity, parent) {
			budget[name] = budget[name].Add(v)
			monthB = monthB.Add(v)
		}
		totalA, totalB = totalA.Add(monthA), totalB.Add(monthB)
		r.Series = append(r.Series, point(m, monthA))
		r.ComparisonSeries = append(r.ComparisonSeries, point(m, monthB))
	}

	for name, a := range actual {
		r.Breakdown = append(r.Breakdown, core.CategoryAmount{Name: leaf(name), Category: name, Actual: a, Budget: budget[name]})
	}
	for name, b := range budget {
		if _, seen := actual[name]; !seen {
			r.Breakdown = append(r.Breakdown, core.CategoryAmount{Name: leaf(name), Category: name, Actual: decimal.Zero, Budget: b})
		}
	}
	slices.SortFunc(r.Breakdown, func(a, b core.CategoryAmount) int {
		if c := b.Actual.Cmp(a.Actual); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	addVariance(r, leaf(parent), totalA, totalB)
	if len(r.Breakdown) == 0 {
		r.AddNote(core.NoteMissingMonth, fmt.Sprintf("no %s records for %s", parent, w.Label))
	} else {
		noteMissingActuals(r, l, w.Months)
	}
	return r, nil
}

// leaf is the last level of a category path: "Opex:Marketing" -> "Marketing".
func leaf(category string) string {
	if i := strings.LastIndex(category, core.CategorySeparator); i >= 0 {
		return category[i+1:]
	}
	return category
}

func ebitdaFor(l *ledger.Ledger, src core.Source, m core.Month, entity string) (rev, cogs, opex decimal.Decimal) {
	rev = l.Lookup(src, m, entity, core.CategoryRevenue)
	cogs = l.Lookup(src, m, entity, core.CategoryCOGS)
	opex = l.Lookup(src, m, entity, core.CategoryOpex)
	return rev, cogs, opex
}

func (e *Engine) ebitda(l *ledger.Ledger, in core.Intent, opts Options) (*core.MetricResult, error) {
	w, err := ResolvePeriod(l, in.Period)
	if err != nil {
		return nil, err
	}
	r := newResult(core.EbitdaAnalysis, w)
	r.SeriesName, r.ComparisonName = "Actual EBITDA", "Budget EBITDA"

	var revT, cogsT, opexT, totalA, totalB decimal.Decimal
	for _, m := range w.Months {
		rev, cogs, opex := ebitdaFor(l, core.SourceActual, m, opts.Entity)
		a := rev.Sub(cogs).Sub(opex)
		revT, cogsT, opexT = revT.Add(rev), cogsT.Add(cogs), opexT.Add(opex)

		bRev, bCogs, bOpex := ebitdaFor(l, core.SourceBudget, m, opts.Entity)
		b := bRev.Sub(bCogs).Sub(bOpex)

		totalA, totalB = totalA.Add(a), totalB.Add(b)
		r.Series = append(r.Series, point(m, a))
		r.ComparisonSeries = append(r.ComparisonSeries, point(m, b))
	}
	addVariance(r, "EBITDA", totalA, totalB)
	r.AddHeadline(core.HeadlineRevenue, revT, core.UnitUSD)
	r.AddHeadline(core.HeadlineCOGS, cogsT, core.UnitUSD)
	r.AddHeadline(core.HeadlineOpex, opexT, core.UnitUSD)
	if !revT.IsZero() {
		r.AddHeadline(core.HeadlineMargin, core.Percent(totalA, revT), core.UnitPercent)
	} else {
		r.AddNote(core.NoteUndefinedMetric, "revenue is zero, so EBITDA margin is undefined")
	}
	noteMissingActuals(r, l, w.Months)
	return r, nil
}

func (e *Engine) cashRunway(l *ledger.Ledger, in core.Intent, opts Options) (*core.MetricResult, error) {
	months := l.CashMonths(opts.Entity)
	if len(months) == 0 {
		return nil, fmt.Errorf("%w: no cash balances", core.ErrNoData)
	}
	asOf := l.LatestMonth()
	if _, ok := l.Cash(asOf, opts.Entity); !ok {
		asOf = months[len(months)-1]
	}
	if !in.Period.Defaulted && in.Period.Kind != core.PeriodLatest {
		w, err := ResolvePeriod(l, in.Period)
		if err != nil {
			return nil, err
		}
		asOf = w.Last()
	}
	cash, ok := l.Cash(asOf, opts.Entity)
	if !ok {
		return nil, fmt.Errorf("%w: no cash balance for %s", core.ErrNoData, asOf)
	}

	// Walk back over consecutive months with balances, up to the window.
	balances := []decimal.Decimal{cash}
	window := []core.Month{asOf}
	for m := asOf; len(balances) <= opts.RunwayWindow; {
		m = m.Add(-1)
		v, ok := l.Cash(m, opts.Entity)
		if !ok {
			break
		}
		balances = append(balances, v)
		window = append(window, m)
	}
	deltas := len(balances) - 1
	if deltas == 0 {
		return nil, fmt.Errorf("%w: no cash balance before %s", core.ErrInsufficientHistory, asOf)
	}
	slices.Reverse(balances)
	slices.Reverse(window)

	r := &core.MetricResult{Intent: core.CashRunway, Periods: window, SeriesName: "Cash balance"}
	for i, m := range window {
		r.Series = append(r.Series, point(m, balances[i]))
	}
	if deltas < opts.RunwayWindow {
		r.AddNote(core.NoteShortHistory, fmt.Sprintf("only %d month(s) of cash history before %s", deltas, asOf))
	}
	if opts.Entity == "" {
		for _, m := range window {
			if carried := l.CarriedCash(m); len(carried) > 0 {
				r.AddNote(core.NoteMissingMonth, fmt.Sprintf("no %s cash for %s, last reported balance carried forward", strings.Join(carried, ", "), m))
			}
		}
	}

	// The mean of consecutive deltas telescopes to (last - first) / n.
	avg := balances[deltas].Sub(balances[0]).Div(decimal.NewFromInt(int64(deltas)))
	rw := &core.Runway{
		Entity:           opts.Entity,
		AsOf:             asOf,
		CurrentCash:      cash,
		AvgMonthlyChange: avg,
		WindowMonths:     deltas,
	}
	r.AddHeadline(core.HeadlineCash, cash, core.UnitUSD)
	r.AddHeadline(core.HeadlineAvgChange, avg, core.UnitUSD)
	if avg.Sign() >= 0 {
		rw.Unbounded = true
	} else {
		rw.Months = cash.Div(avg.Neg()).Round(runwayPrecision)
		if rw.Months.Sign() < 0 {
			rw.Months = decimal.Zero
			r.AddNote(core.NoteUndefinedMetric, "cash balance is negative")
		}
		r.AddHeadline(core.HeadlineRunway, rw.Months, core.UnitMonths)
	}
	r.Runway = rw
	return r, nil
}
