package core

import "github.com/shopspring/decimal"

// Source tells actuals apart from budget figures.
type Source string

const (
	SourceActual Source = "actual"
	SourceBudget Source = "budget"
)

// Canonical sheet names.
const (
	SheetActuals = "actuals"
	SheetBudget  = "budget"
	SheetCash    = "cash"
	SheetFX      = "fx"
)

// Top-level account categories. Opex children use the "Opex:" prefix.
const (
	CategoryRevenue = "Revenue"
	CategoryCOGS    = "COGS"
	CategoryOpex    = "Opex"
)

// CategorySeparator splits a hierarchical category such as "Opex:Marketing".
const CategorySeparator = ":"

// ReportingCurrency is the currency every amount is normalized to.
const ReportingCurrency = "USD"

type (
	FactRecord struct {
		Month    Month
		Entity   string
		Category string
		Amount   decimal.Decimal
		Currency string
		Source   Source
	}

	FxRate struct {
		Month     Month
		Currency  string
		RateToUSD decimal.Decimal
	}

	CashRecord struct {
		Month   Month
		Entity  string
		CashUSD decimal.Decimal
	}

	// NormalizedFact is a fact with its amount converted to USD.
	NormalizedFact struct {
		FactRecord
		AmountUSD decimal.Decimal
	}

	// Sheet is a raw table: a header row plus string cells.
	Sheet struct {
		Name   string
		Header []string
		Rows   [][]string
	}

	// Workbook is the set of raw tables a source provides.
	Workbook struct {
		Actuals Sheet
		Budget  Sheet
		Cash    Sheet
		FX      Sheet
	}
)

// SheetColumns lists the required columns per sheet, in canonical order.
var SheetColumns = map[string][]string{
	SheetActuals: {"month", "entity", "account_category", "amount", "currency"},
	SheetBudget:  {"month", "entity", "account_category", "amount", "currency"},
	SheetCash:    {"month", "entity", "cash_usd"},
	SheetFX:      {"month", "currency", "rate_to_usd"},
}

// SheetNames is the canonical load order.
var SheetNames = []string{SheetActuals, SheetBudget, SheetCash, SheetFX}

// NewSheet splits raw values into header and rows. Empty trailing rows are dropped.
func NewSheet(name string, values [][]string) Sheet {
	s := Sheet{Name: name}
	if len(values) == 0 {
		return s
	}
	s.Header = values[0]
	for _, r := range values[1:] {
		if blankRow(r) {
			continue
		}
		s.Rows = append(s.Rows, r)
	}
	return s
}

func blankRow(r []string) bool {
	for _, c := range r {
		if c != "" {
			return false
		}
	}
	return true
}

// Sheets returns the four tables in canonical order.
func (w Workbook) Sheets() []Sheet {
	return []Sheet{w.Actuals, w.Budget, w.Cash, w.FX}
}

// Set stores s under its canonical name. Unknown names are ignored and reported false.
func (w *Workbook) Set(s Sheet) bool {
	switch s.Name {
	case SheetActuals:
		w.Actuals = s
	case SheetBudget:
		w.Budget = s
	case SheetCash:
		w.Cash = s
	case SheetFX:
		w.FX = s
	default:
		return false
	}
	return true
}

// Rows is the total number of data rows across all sheets.
func (w Workbook) Rows() int {
	n := 0
	for _, s := range w.Sheets() {
		n += len(s.Rows)
	}
	return n
}
