package intent

import (
	"strconv"
	"strings"
	"time"

	"cfocopilot/internal/core"
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"eighteen": 18, "twenty": 20, "thirty": 30,
}

var quarterTokens = map[string]int{"q1": 1, "q2": 2, "q3": 3, "q4": 4}

type monthMention struct {
	month time.Month
	year  int
}

// extractPeriod reads the time selection from a tokenized question. The
// first matching form wins: YYYY-MM, month name with year, month name
// alone, quarter, relative phrases, a bare year. Nothing found means Latest.
func extractPeriod(tokens []string) core.PeriodSpec {
	if p, ok := isoMonths(tokens); ok {
		return p
	}
	if p, ok := namedMonths(tokens); ok {
		return p
	}
	if p, ok := quarter(tokens); ok {
		return p
	}
	if p, ok := relative(tokens); ok {
		return p
	}
	if y, ok := bareYear(tokens); ok {
		return core.MonthRange(core.NewMonth(y, time.January), core.NewMonth(y, time.December))
	}
	return core.LatestPeriod()
}

func isoMonths(tokens []string) (core.PeriodSpec, bool) {
	var found []core.Month
	for _, t := range tokens {
		if m, err := core.ParseMonth(t); err == nil {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 0:
		return core.PeriodSpec{}, false
	case 1:
		return core.SingleMonth(found[0]), true
	}
	return core.MonthRange(found[0], found[len(found)-1]), true
}

func namedMonths(tokens []string) (core.PeriodSpec, bool) {
	var mentions []monthMention
	for i, t := range tokens {
		m, ok := monthNames[t]
		if !ok {
			continue
		}
		year, hasYear := 0, false
		if i+1 < len(tokens) {
			year, hasYear = parseYear(tokens[i+1])
		}
		// "may" is usually a verb; only take it next to a year or after a preposition.
		if t == "may" && !hasYear && (i == 0 || !isPreposition(tokens[i-1])) {
			continue
		}
		mentions = append(mentions, monthMention{month: m, year: year})
	}
	if len(mentions) == 0 {
		return core.PeriodSpec{}, false
	}
	// "jan to mar 2024": an earlier mention borrows the next explicit year.
	for i := len(mentions) - 2; i >= 0; i-- {
		if mentions[i].year == 0 {
			mentions[i].year = mentions[i+1].year
		}
	}
	first, last := mentions[0], mentions[len(mentions)-1]
	if first.year == 0 {
		return core.MonthOfYear(first.month), true
	}
	if last.year == 0 || len(mentions) == 1 {
		return core.SingleMonth(core.NewMonth(first.year, first.month)), true
	}
	return core.MonthRange(core.NewMonth(first.year, first.month), core.NewMonth(last.year, last.month)), true
}

func quarter(tokens []string) (core.PeriodSpec, bool) {
	for i, t := range tokens {
		q, ok := quarterTokens[t]
		if !ok {
			continue
		}
		if i+1 < len(tokens) {
			if y, ok := parseYear(tokens[i+1]); ok {
				return core.QuarterOf(y, q), true
			}
		}
		if i > 0 {
			if y, ok := parseYear(tokens[i-1]); ok {
				return core.QuarterOf(y, q), true
			}
		}
		return core.QuarterOf(0, q), true
	}
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i+1] != "quarter" && tokens[i+1] != "qtr" {
			continue
		}
		switch tokens[i] {
		case "this", "current":
			return core.PeriodSpec{Kind: core.PeriodThisQuarter}, true
		case "last", "previous", "prior":
			return core.PeriodSpec{Kind: core.PeriodLastQuarter}, true
		}
	}
	return core.PeriodSpec{}, false
}

func relative(tokens []string) (core.PeriodSpec, bool) {
	for i, t := range tokens {
		if t == "ytd" || (t == "year" && i+2 < len(tokens) && tokens[i+1] == "to" && tokens[i+2] == "date") {
			return core.PeriodSpec{Kind: core.PeriodYearToDate}, true
		}
		if !isRelativeWord(t) || i+1 >= len(tokens) {
			continue
		}
		next := tokens[i+1]
		if next == "month" {
			return core.LastMonths(1), true
		}
		if i+2 < len(tokens) && isMonthsWord(tokens[i+2]) {
			if n, ok := parseCount(next); ok {
				return core.LastMonths(n), true
			}
		}
	}
	return core.PeriodSpec{}, false
}

func bareYear(tokens []string) (int, bool) {
	for _, t := range tokens {
		if y, ok := parseYear(t); ok {
			return y, true
		}
	}
	return 0, false
}

func parseYear(t string) (int, bool) {
	if len(t) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(t)
	if err != nil || y < 1900 || y > 2999 {
		return 0, false
	}
	return y, true
}

func parseCount(t string) (int, bool) {
	if n, ok := numberWords[t]; ok {
		return n, true
	}
	n, err := strconv.Atoi(t)
	if err != nil || n <= 0 || n > 120 {
		return 0, false
	}
	return n, true
}

func isRelativeWord(t string) bool {
	switch t {
	case "last", "past", "trailing", "previous", "prior":
		return true
	}
	return false
}

func isMonthsWord(t string) bool {
	return t == "months" || t == "month" || strings.HasPrefix(t, "mos")
}

func isPreposition(t string) bool {
	switch t {
	case "in", "for", "of", "during", "since", "from", "to", "through", "until":
		return true
	}
	return false
}
