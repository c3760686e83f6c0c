// Package core holds the financial domain types shared by every layer:
// months, records, intents, metric results and the error taxonomy.
//
// This file contains amount parsing and the display helpers.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a table cell to a decimal.
//
// It accepts an optional "$" symbol, thousands separators and accounting
// negatives in parentheses:
//
//	ParseAmount("1,234.50") -> 1234.5
//	ParseAmount("(20,000)") -> -20000
//	ParseAmount("-$15")     -> -15
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Replace(s, "$", "", 1)
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// Percent returns part/whole*100. The caller guarantees whole is non-zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	return part.Div(whole).Mul(hundred)
}

// FormatUSD renders money rounded to whole dollars, e.g. "-$20,000".
func FormatUSD(d decimal.Decimal) string {
	r := d.Round(0)
	sign := ""
	if r.Sign() < 0 {
		sign = "-"
		r = r.Neg()
	}
	return sign + "$" + groupThousands(r.StringFixed(0))
}

// FormatPercent renders a percentage with one decimal, e.g. "-5.0%".
func FormatPercent(d decimal.Decimal) string {
	r := d.Round(1)
	if r.IsZero() {
		r = decimal.Zero
	}
	return r.StringFixed(1) + "%"
}

// FormatSignedPercent is FormatPercent with an explicit "+" for gains.
func FormatSignedPercent(d decimal.Decimal) string {
	s := FormatPercent(d)
	if d.Round(1).Sign() > 0 {
		return "+" + s
	}
	return s
}

// FormatMonths truncates a runway to whole months.
func FormatMonths(d decimal.Decimal) string {
	return d.Truncate(0).StringFixed(0)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
