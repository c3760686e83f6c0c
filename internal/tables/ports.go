// Package tables defines where the raw financial tables come from. Each
// adapter returns a core.Workbook; validation happens in the ledger.
package tables

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"cfocopilot/internal/core"
)

// Ports for outbound adapters.
type (
	// Source loads all four tables in one call.
	Source interface {
		Load(ctx context.Context) (core.Workbook, error)
	}

	// Writer replaces the stored tables with wb.
	Writer interface {
		Write(ctx context.Context, wb core.Workbook) error
	}
)

var ErrSheetNotFound = errors.New("sheet not found")

// Required tables must exist in every source. Cash and fx may be absent
// and load as empty tables.
var Required = map[string]bool{core.SheetActuals: true, core.SheetBudget: true}

// SheetNames maps a canonical table name to the name a source uses for it
// (a workbook tab, a CSV file stem or a database table).
type SheetNames map[string]string

// DefaultSheetNames uses the canonical names unchanged.
func DefaultSheetNames() SheetNames {
	n := SheetNames{}
	for _, s := range core.SheetNames {
		n[s] = s
	}
	return n
}

// Resolve returns the source name for canonical, falling back to canonical itself.
func (n SheetNames) Resolve(canonical string) string {
	if v := strings.TrimSpace(n[canonical]); v != "" {
		return v
	}
	return canonical
}

// EmptySheet is the placeholder for an optional table that is missing.
func EmptySheet(canonical string) core.Sheet {
	return core.Sheet{Name: canonical, Header: core.SheetColumns[canonical]}
}

// Rows renders a sheet back into a header plus rows grid.
func Rows(s core.Sheet) [][]string {
	out := make([][]string, 0, len(s.Rows)+1)
	out = append(out, s.Header)
	return append(out, s.Rows...)
}

var dateCell = regexp.MustCompile(`^(\d{4}-\d{2})-\d{2}`)

// NormalizeMonths rewrites date-typed month cells ("2023-01-01",
// "2023-01-01 00:00:00") into the YYYY-MM form the ledger expects. Rows
// are modified in place.
func NormalizeMonths(s core.Sheet) core.Sheet {
	col := -1
	for i, h := range s.Header {
		if strings.EqualFold(strings.TrimSpace(h), "month") {
			col = i
		}
	}
	if col < 0 {
		return s
	}
	for _, r := range s.Rows {
		if col < len(r) {
			if m := dateCell.FindStringSubmatch(strings.TrimSpace(r[col])); m != nil {
				r[col] = m[1]
			}
		}
	}
	return s
}
