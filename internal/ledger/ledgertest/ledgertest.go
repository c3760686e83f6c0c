// Package ledgertest builds workbooks and ledgers for tests.
package ledgertest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"cfocopilot/internal/core"
	"cfocopilot/internal/ledger"
)

// Builder accumulates rows for the four canonical sheets. Unless told
// otherwise it adds a 1.0 USD rate for every month with a USD fact and no
// explicit USD rate.
type Builder struct {
	wb      core.Workbook
	noUSDFX bool
}

func New() *Builder {
	b := &Builder{}
	for _, name := range core.SheetNames {
		b.wb.Set(core.Sheet{Name: name, Header: core.SheetColumns[name]})
	}
	return b
}

func (b *Builder) Actual(month, entity, category, amount, currency string) *Builder {
	b.wb.Actuals.Rows = append(b.wb.Actuals.Rows, []string{month, entity, category, amount, currency})
	return b
}

func (b *Builder) Budget(month, entity, category, amount, currency string) *Builder {
	b.wb.Budget.Rows = append(b.wb.Budget.Rows, []string{month, entity, category, amount, currency})
	return b
}

func (b *Builder) Cash(month, entity, cash string) *Builder {
	b.wb.Cash.Rows = append(b.wb.Cash.Rows, []string{month, entity, cash})
	return b
}

func (b *Builder) Rate(month, currency, rate string) *Builder {
	b.wb.FX.Rows = append(b.wb.FX.Rows, []string{month, currency, rate})
	return b
}

// WithoutUSDRates stops the builder from filling in USD rates.
func (b *Builder) WithoutUSDRates() *Builder {
	b.noUSDFX = true
	return b
}

func (b *Builder) Workbook() core.Workbook {
	wb := b.wb
	for _, s := range []*core.Sheet{&wb.Actuals, &wb.Budget, &wb.Cash, &wb.FX} {
		rows := make([][]string, len(s.Rows))
		copy(rows, s.Rows)
		s.Rows = rows
	}
	if !b.noUSDFX {
		wb.FX.Rows = append(wb.FX.Rows, usdRates(wb)...)
	}
	return wb
}

func usdRates(wb core.Workbook) [][]string {
	have := map[string]bool{}
	for _, r := range wb.FX.Rows {
		if isUSD(r[1]) {
			have[r[0]] = true
		}
	}
	var out [][]string
	for _, s := range []core.Sheet{wb.Actuals, wb.Budget} {
		for _, r := range s.Rows {
			if !isUSD(r[4]) || have[r[0]] {
				continue
			}
			have[r[0]] = true
			out = append(out, []string{r[0], core.ReportingCurrency, "1"})
		}
	}
	return out
}

func isUSD(currency string) bool {
	return strings.EqualFold(strings.TrimSpace(currency), core.ReportingCurrency)
}

// Ledger builds the workbook and fails the test on error.
func (b *Builder) Ledger(t testing.TB) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Build(b.Workbook())
	if err != nil {
		t.Fatalf("build ledger: %v", err)
	}
	return l
}

// Source is a fixed ledger.Source.
type Source struct {
	WB    core.Workbook
	Err   error
	Calls int
}

func (s *Source) Load(ctx context.Context) (core.Workbook, error) {
	s.Calls++
	return s.WB, s.Err
}

// Sample is six months (2023-01..2023-06) of actuals for a USD parent and a
// EUR subsidiary, a full year of budget, cash balances and EUR rates.
//
// ParentCo per month i (0-based): Revenue 380000+10000i, COGS 152000+3000i,
// Opex:Marketing 76000, Opex:R&D 120000, Opex:G&A 50000.
// EMEA (EUR at 1.10): Revenue 100000, COGS 40000, Opex:Marketing 20000.
// Cash: ParentCo 6,000,000 falling 150,000 a month, EMEA flat at 500,000.
// USD rates come from the builder at 1.0.
func Sample() *Builder {
	b := New()
	for i := 0; i < 12; i++ {
		m := fmt.Sprintf("2023-%02d", i+1)
		b.Rate(m, "EUR", "1.10")
		b.Budget(m, "ParentCo", "Revenue", itoa(400000+5000*i), "USD")
		b.Budget(m, "ParentCo", "COGS", itoa(160000+2000*i), "USD")
		b.Budget(m, "ParentCo", "Opex:Marketing", "80000", "USD")
		b.Budget(m, "ParentCo", "Opex:R&D", "115000", "USD")
		b.Budget(m, "ParentCo", "Opex:G&A", "50000", "USD")
		b.Budget(m, "EMEA", "Revenue", "100000", "EUR")
		b.Budget(m, "EMEA", "COGS", "40000", "EUR")
		b.Budget(m, "EMEA", "Opex:Marketing", "20000", "EUR")
		if i >= 6 {
			continue
		}
		b.Actual(m, "ParentCo", "Revenue", itoa(380000+10000*i), "USD")
		b.Actual(m, "ParentCo", "COGS", itoa(152000+3000*i), "USD")
		b.Actual(m, "ParentCo", "Opex:Marketing", "76000", "USD")
		b.Actual(m, "ParentCo", "Opex:R&D", "120000", "USD")
		b.Actual(m, "ParentCo", "Opex:G&A", "50000", "USD")
		b.Actual(m, "EMEA", "Revenue", "100000", "EUR")
		b.Actual(m, "EMEA", "COGS", "40000", "EUR")
		b.Actual(m, "EMEA", "Opex:Marketing", "20000", "EUR")
		b.Cash(m, "ParentCo", itoa(6000000-150000*i))
		b.Cash(m, "EMEA", "500000")
	}
	return b
}

func itoa(n int) string { return strconv.Itoa(n) }
