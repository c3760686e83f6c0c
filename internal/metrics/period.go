package metrics

import (
	"fmt"

	"cfocopilot/internal/core"
	"cfocopilot/internal/ledger"
)

// Window is a period resolved against a ledger. Relative periods are
// anchored on the ledger's latest month, never on the wall clock.
type Window struct {
	Months    []core.Month
	Label     string
	Defaulted bool
}

func (w Window) First() core.Month { return w.Months[0] }
func (w Window) Last() core.Month { return w.Months[len(w.Months)-1] }

// ResolvePeriod turns p into concrete calendar months, clipped to the range
// of months that have actuals. It fails with core.ErrNoData when nothing of
// the requested period is covered.
func ResolvePeriod(l *ledger.Ledger, p core.PeriodSpec) (Window, error) {
	latest, earliest := l.LatestMonth(), l.EarliestMonth()
	if latest.IsZero() {
		return Window{}, fmt.Errorf("%w: ledger has no facts", core.ErrNoData)
	}

	var start, end core.Month
	switch p.Kind {
	case core.PeriodLatest, "":
		start, end = latest, latest
	case core.PeriodMonth:
		if !l.HasFacts(core.SourceActual, p.Start) && !l.HasFacts(core.SourceBudget, p.Start) {
			return Window{}, fmt.Errorf("%w: %s", core.ErrNoData, p.Start)
		}
		return Window{Months: []core.Month{p.Start}, Label: p.Start.String()}, nil
	case core.PeriodMonthOfYear:
		for y := latest.Year(); y >= earliest.Year(); y-- {
			m := core.NewMonth(y, p.MonthOfYear)
			if l.HasFacts(core.SourceActual, m) {
				return Window{Months: []core.Month{m}, Label: m.String()}, nil
			}
		}
		return Window{}, fmt.Errorf("%w: no %s in any year", core.ErrNoData, p.MonthOfYear)
	case core.PeriodRange:
		start, end = p.Start, p.End
	case core.PeriodLastN:
		n := max(p.N, 1)
		start, end = latest.Add(-(n - 1)), latest
	case core.PeriodQuarter:
		year := p.Year
		if year == 0 {
			year = latestYearWithQuarter(l, p.Quarter)
			if year == 0 {
				return Window{}, fmt.Errorf("%w: no data for Q%d", core.ErrNoData, p.Quarter)
			}
		}
		start = core.QuarterStart(year, p.Quarter)
		end = start.Add(2)
	case core.PeriodThisQuarter:
		start, end = core.QuarterStart(latest.Year(), latest.Quarter()), latest
	case core.PeriodLastQuarter:
		end = core.QuarterStart(latest.Year(), latest.Quarter()).Add(-1)
		start = end.Add(-2)
	case core.PeriodYearToDate:
		start, end = core.NewMonth(latest.Year(), 1), latest
	default:
		return Window{}, fmt.Errorf("unsupported period kind %q", p.Kind)
	}

	if start.Before(earliest) {
		start = earliest
	}
	if end.After(latest) {
		end = latest
	}
	months := core.MonthsBetween(start, end)
	if len(months) == 0 {
		return Window{}, fmt.Errorf("%w: %s", core.ErrNoData, p)
	}
	return Window{Months: months, Label: label(months), Defaulted: p.Defaulted}, nil
}

func latestYearWithQuarter(l *ledger.Ledger, q int) int {
	months := l.Months()
	for i := len(months) - 1; i >= 0; i-- {
		if months[i].Quarter() == q {
			return months[i].Year()
		}
	}
	return 0
}

func label(months []core.Month) string {
	if len(months) == 1 {
		return months[0].String()
	}
	return months[0].String() + ".." + months[len(months)-1].String()
}
