// Package ledger turns raw tables into an immutable, USD-normalized snapshot
// and holds the current snapshot for concurrent readers.
package ledger

import (
	"fmt"
	"strings"

	"cfocopilot/internal/core"

	"github.com/shopspring/decimal"
)

// columns maps a required column name to its index in a sheet row.
type columns map[string]int

func headerIndex(s core.Sheet) (columns, error) {
	idx := make(columns, len(s.Header))
	for i, h := range s.Header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; dup {
			return nil, &core.MalformedRecordError{Sheet: s.Name, Row: 1, Column: key, Reason: "duplicate column"}
		}
		idx[key] = i
	}
	for _, want := range core.SheetColumns[s.Name] {
		if _, ok := idx[want]; !ok {
			return nil, &core.MalformedRecordError{Sheet: s.Name, Row: 1, Column: want, Reason: "missing required column"}
		}
	}
	return idx, nil
}

// rowReader reads typed cells from one sheet row, remembering the first failure.
type rowReader struct {
	sheet string
	row   int
	cells []string
	cols  columns
	err   error
}

func (r *rowReader) raw(col string) string {
	i := r.cols[col]
	if i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r *rowReader) fail(col, reason string) {
	if r.err == nil {
		r.err = &core.MalformedRecordError{Sheet: r.sheet, Row: r.row, Column: col, Reason: reason}
	}
}

func (r *rowReader) month(col string) core.Month {
	v := r.raw(col)
	m, err := core.ParseMonth(v)
	if err != nil {
		r.fail(col, fmt.Sprintf("month %q is not YYYY-MM", v))
	}
	return m
}

func (r *rowReader) text(col string) string {
	v := r.raw(col)
	if v == "" {
		r.fail(col, "empty value")
	}
	return v
}

func (r *rowReader) currency(col string) string {
	v := strings.ToUpper(r.raw(col))
	if len(v) != 3 {
		r.fail(col, fmt.Sprintf("currency %q is not a 3-letter code", v))
	}
	return v
}

func (r *rowReader) amount(col string) decimal.Decimal {
	v := r.raw(col)
	d, err := core.ParseAmount(v)
	if err != nil {
		r.fail(col, fmt.Sprintf("amount %q is not a decimal", v))
	}
	return d
}

func readRows(s core.Sheet, fn func(r *rowReader)) error {
	cols, err := headerIndex(s)
	if err != nil {
		return err
	}
	for i, cells := range s.Rows {
		r := &rowReader{sheet: s.Name, row: i + 2, cells: cells, cols: cols}
		fn(r)
		if r.err != nil {
			return r.err
		}
	}
	return nil
}

func parseFacts(s core.Sheet, src core.Source) ([]core.FactRecord, error) {
	out := make([]core.FactRecord, 0, len(s.Rows))
	err := readRows(s, func(r *rowReader) {
		out = append(out, core.FactRecord{
			Month:    r.month("month"),
			Entity:   r.text("entity"),
			Category: normalizeCategory(r.text("account_category")),
			Amount:   r.amount("amount"),
			Currency: r.currency("currency"),
			Source:   src,
		})
	})
	return out, err
}

func parseCash(s core.Sheet) ([]core.CashRecord, error) {
	out := make([]core.CashRecord, 0, len(s.Rows))
	seen := make(map[cashKey]bool, len(s.Rows))
	err := readRows(s, func(r *rowReader) {
		rec := core.CashRecord{
			Month:   r.month("month"),
			Entity:  r.text("entity"),
			CashUSD: r.amount("cash_usd"),
		}
		k := cashKey{rec.Month, rec.Entity}
		if r.err == nil && seen[k] {
			r.fail("entity", fmt.Sprintf("duplicate cash balance for %s in %s", rec.Entity, rec.Month))
		}
		seen[k] = true
		out = append(out, rec)
	})
	return out, err
}

func parseFX(s core.Sheet) ([]core.FxRate, error) {
	out := make([]core.FxRate, 0, len(s.Rows))
	seen := make(map[fxKey]bool, len(s.Rows))
	err := readRows(s, func(r *rowReader) {
		rate := core.FxRate{
			Month:     r.month("month"),
			Currency:  r.currency("currency"),
			RateToUSD: r.amount("rate_to_usd"),
		}
		if r.err == nil && rate.RateToUSD.Sign() <= 0 {
			r.fail("rate_to_usd", "rate must be positive")
		}
		k := fxKey{rate.Month, rate.Currency}
		if r.err == nil && seen[k] {
			r.fail("currency", fmt.Sprintf("duplicate rate for %s in %s", rate.Currency, rate.Month))
		}
		seen[k] = true
		out = append(out, rate)
	})
	return out, err
}

// normalizeCategory trims whitespace around each level, so "Opex : Marketing"
// and "Opex:Marketing" are the same account.
func normalizeCategory(c string) string {
	parts := strings.Split(c, core.CategorySeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, core.CategorySeparator)
}

// MatchesCategory reports whether category equals prefix or sits below it.
// An empty prefix matches everything.
func MatchesCategory(category, prefix string) bool {
	if prefix == "" || strings.EqualFold(category, prefix) {
		return true
	}
	n := len(prefix)
	return len(category) > n &&
		strings.EqualFold(category[:n], prefix) &&
		category[n:n+1] == core.CategorySeparator
}

// ChildName returns the immediate subcategory of category under parent,
// e.g. ChildName("Opex:Marketing:Events", "Opex") == "Opex:Marketing".
// It returns category itself when it has no deeper level.
func ChildName(category, parent string) string {
	if !MatchesCategory(category, parent) || len(category) <= len(parent) {
		return category
	}
	rest := category[len(parent)+1:]
	if i := strings.Index(rest, core.CategorySeparator); i >= 0 {
		rest = rest[:i]
	}
	return category[:len(parent)] + core.CategorySeparator + rest
}
