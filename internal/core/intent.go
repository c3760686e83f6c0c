package core

import (
	"fmt"
	"time"
)

// IntentKind is the closed set of analyses the copilot can answer.
type IntentKind string

const (
	RevenueVsBudget  IntentKind = "revenue_vs_budget"
	GrossMarginTrend IntentKind = "gross_margin_trend"
	OpexBreakdown    IntentKind = "opex_breakdown"
	EbitdaAnalysis   IntentKind = "ebitda_analysis"
	CashRunway       IntentKind = "cash_runway"
	Unknown          IntentKind = "unknown"
)

// IntentKinds lists the answerable intents in display order.
var IntentKinds = []IntentKind{RevenueVsBudget, GrossMarginTrend, OpexBreakdown, EbitdaAnalysis, CashRunway}

func (k IntentKind) IsValid() bool {
	switch k {
	case RevenueVsBudget, GrossMarginTrend, OpexBreakdown, EbitdaAnalysis, CashRunway, Unknown:
		return true
	}
	return false
}

// Title is the heading used in answers.
func (k IntentKind) Title() string {
	switch k {
	case RevenueVsBudget:
		return "Revenue vs Budget"
	case GrossMarginTrend:
		return "Gross Margin Trend"
	case OpexBreakdown:
		return "Opex Breakdown"
	case EbitdaAnalysis:
		return "EBITDA Analysis"
	case CashRunway:
		return "Cash Runway"
	}
	return "Financial Overview"
}

type PeriodKind string

const (
	PeriodLatest      PeriodKind = "latest"
	PeriodMonth       PeriodKind = "month"
	PeriodMonthOfYear PeriodKind = "month_of_year"
	PeriodRange       PeriodKind = "range"
	PeriodLastN       PeriodKind = "last_n"
	PeriodQuarter     PeriodKind = "quarter"
	PeriodThisQuarter PeriodKind = "this_quarter"
	PeriodLastQuarter PeriodKind = "last_quarter"
	PeriodYearToDate  PeriodKind = "year_to_date"
)

// PeriodSpec is an unresolved time selection taken from a question.
// Only the fields relevant to Kind are set.
type PeriodSpec struct {
	Kind PeriodKind `json:"kind"`

	// Start is the month for PeriodMonth and the first month of a range.
	Start Month `json:"start,omitzero"`
	End   Month `json:"end,omitzero"`

	// MonthOfYear is set for PeriodMonthOfYear.
	MonthOfYear time.Month `json:"month_of_year,omitempty"`

	// Year and Quarter are set for PeriodQuarter. Year 0 means the most
	// recent year with data.
	Year    int `json:"year,omitempty"`
	Quarter int `json:"quarter,omitempty"`

	N int `json:"n,omitempty"`

	// Defaulted is true when the question named no period at all.
	Defaulted bool `json:"defaulted,omitempty"`
}

func LatestPeriod() PeriodSpec { return PeriodSpec{Kind: PeriodLatest, Defaulted: true} }

func SingleMonth(m Month) PeriodSpec { return PeriodSpec{Kind: PeriodMonth, Start: m} }

// MonthRange orders its arguments so Start <= End.
func MonthRange(a, b Month) PeriodSpec {
	if b.Before(a) {
		a, b = b, a
	}
	return PeriodSpec{Kind: PeriodRange, Start: a, End: b}
}

func LastMonths(n int) PeriodSpec { return PeriodSpec{Kind: PeriodLastN, N: n} }

func MonthOfYear(m time.Month) PeriodSpec { return PeriodSpec{Kind: PeriodMonthOfYear, MonthOfYear: m} }

func QuarterOf(year, q int) PeriodSpec { return PeriodSpec{Kind: PeriodQuarter, Year: year, Quarter: q} }

func (p PeriodSpec) String() string {
	switch p.Kind {
	case PeriodMonth:
		return p.Start.String()
	case PeriodMonthOfYear:
		return p.MonthOfYear.String()
	case PeriodRange:
		return p.Start.String() + ".." + p.End.String()
	case PeriodLastN:
		if p.N == 1 {
			return "last month"
		}
		return fmt.Sprintf("last %d months", p.N)
	case PeriodQuarter:
		if p.Year == 0 {
			return fmt.Sprintf("Q%d", p.Quarter)
		}
		return fmt.Sprintf("Q%d %d", p.Quarter, p.Year)
	case PeriodThisQuarter:
		return "this quarter"
	case PeriodLastQuarter:
		return "last quarter"
	case PeriodYearToDate:
		return "year to date"
	}
	return "latest"
}

// Intent is the structured form of a question.
type Intent struct {
	Kind   IntentKind `json:"kind"`
	Period PeriodSpec `json:"period"`
	// Category narrows an opex breakdown, e.g. "Opex:Marketing".
	Category string `json:"category,omitempty"`
	// Trigger is the rule phrase that matched, kept for explanations.
	Trigger     string   `json:"trigger,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}
