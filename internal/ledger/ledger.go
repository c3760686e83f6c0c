package ledger

import (
	"fmt"
	"slices"

	"cfocopilot/internal/core"

	"github.com/shopspring/decimal"
)

type (
	cashKey struct {
		month  core.Month
		entity string
	}

	fxKey struct {
		month    core.Month
		currency string
	}
)

// Ledger is an immutable snapshot of normalized financial data. It is safe
// for concurrent use because nothing mutates it after Build returns.
type Ledger struct {
	facts      []core.NormalizedFact
	byMonth    map[core.Month][]int
	fx         map[fxKey]decimal.Decimal
	cash       map[cashKey]decimal.Decimal
	cashMonths map[string][]core.Month
	carried    map[core.Month][]string

	actualMonths []core.Month
	budgetMonths []core.Month
	entities     []string
	categories   []string
	currencies   []string
	rows         int
}

// Stats summarizes a snapshot for logs and the snapshot endpoint.
type Stats struct {
	Facts      int          `json:"facts"`
	CashRows   int          `json:"cash_rows"`
	FxRates    int          `json:"fx_rates"`
	FirstMonth core.Month   `json:"first_month"`
	LastMonth  core.Month   `json:"last_month"`
	Entities   []string     `json:"entities"`
	Currencies []string     `json:"currencies"`
	Months     []core.Month `json:"months"`
}

// Build validates every sheet and converts each fact to USD with the rate of
// its own month. It fails on the first malformed cell or missing rate.
func Build(wb core.Workbook) (*Ledger, error) {
	actuals, err := parseFacts(sheetNamed(wb.Actuals, core.SheetActuals), core.SourceActual)
	if err != nil {
		return nil, err
	}
	budget, err := parseFacts(sheetNamed(wb.Budget, core.SheetBudget), core.SourceBudget)
	if err != nil {
		return nil, err
	}
	cash, err := parseCash(sheetNamed(wb.Cash, core.SheetCash))
	if err != nil {
		return nil, err
	}
	rates, err := parseFX(sheetNamed(wb.FX, core.SheetFX))
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		byMonth:    make(map[core.Month][]int),
		fx:         make(map[fxKey]decimal.Decimal, len(rates)),
		cash:       make(map[cashKey]decimal.Decimal),
		cashMonths: make(map[string][]core.Month),
		carried:    make(map[core.Month][]string),
		rows:       wb.Rows(),
	}
	for _, r := range rates {
		l.fx[fxKey{r.Month, r.Currency}] = r.RateToUSD
	}

	entities := map[string]bool{}
	categories := map[string]bool{}
	currencies := map[string]bool{}
	actualMonths := map[core.Month]bool{}
	budgetMonths := map[core.Month]bool{}

	records := append(actuals, budget...)
	l.facts = make([]core.NormalizedFact, 0, len(records))
	for _, rec := range records {
		rate, err := l.rate(rec.Month, rec.Currency)
		if err != nil {
			return nil, err
		}
		l.byMonth[rec.Month] = append(l.byMonth[rec.Month], len(l.facts))
		l.facts = append(l.facts, core.NormalizedFact{FactRecord: rec, AmountUSD: rec.Amount.Mul(rate)})
		entities[rec.Entity] = true
		categories[rec.Category] = true
		currencies[rec.Currency] = true
		if rec.Source == core.SourceActual {
			actualMonths[rec.Month] = true
		} else {
			budgetMonths[rec.Month] = true
		}
	}

	for _, c := range cash {
		l.cash[cashKey{c.Month, c.Entity}] = c.CashUSD
		l.cashMonths[c.Entity] = append(l.cashMonths[c.Entity], c.Month)
		entities[c.Entity] = true
	}
	for e := range l.cashMonths {
		slices.SortFunc(l.cashMonths[e], core.Month.Compare)
	}
	l.consolidateCash()

	l.actualMonths = sortedMonths(actualMonths)
	l.budgetMonths = sortedMonths(budgetMonths)
	l.entities = sortedKeys(entities)
	l.categories = sortedKeys(categories)
	l.currencies = sortedKeys(currencies)
	return l, nil
}

// consolidateCash sums the entity balances of each month. An entity without a
// row for the month contributes its last reported balance. Months before every
// entity has reported once get no consolidated balance.
func (l *Ledger) consolidateCash() {
	if len(l.cashMonths) == 0 {
		return
	}
	names := make([]string, 0, len(l.cashMonths))
	all := map[core.Month]bool{}
	var start core.Month
	for e, months := range l.cashMonths {
		names = append(names, e)
		if start.IsZero() || months[0].After(start) {
			start = months[0]
		}
		for _, m := range months {
			all[m] = true
		}
	}
	slices.Sort(names)

	for _, m := range sortedMonths(all) {
		if m.Before(start) {
			continue
		}
		total := decimal.Zero
		for _, e := range names {
			v, ok := l.cash[cashKey{m, e}]
			if !ok {
				v = l.cash[cashKey{l.lastCashMonth(e, m), e}]
				l.carried[m] = append(l.carried[m], e)
			}
			total = total.Add(v)
		}
		l.cash[cashKey{m, ""}] = total
		l.cashMonths[""] = append(l.cashMonths[""], m)
	}
}

// lastCashMonth is the latest month before m with a balance for entity.
func (l *Ledger) lastCashMonth(entity string, m core.Month) core.Month {
	months := l.cashMonths[entity]
	i, _ := slices.BinarySearchFunc(months, m, core.Month.Compare)
	return months[i-1]
}

// sheetNamed fills in the canonical name so errors point at the right table.
func sheetNamed(s core.Sheet, name string) core.Sheet {
	s.Name = name
	return s
}

func (l *Ledger) rate(m core.Month, currency string) (decimal.Decimal, error) {
	if r, ok := l.fx[fxKey{m, currency}]; ok {
		return r, nil
	}
	return decimal.Zero, &core.MissingFxRateError{Month: m, Currency: currency}
}

// FxRate returns the rate used for currency in month m.
func (l *Ledger) FxRate(m core.Month, currency string) (decimal.Decimal, bool) {
	r, err := l.rate(m, currency)
	return r, err == nil
}

// Months lists the months that have actuals, oldest first.
func (l *Ledger) Months() []core.Month { return slices.Clone(l.actualMonths) }

// BudgetMonths lists the months that have budget figures, oldest first.
func (l *Ledger) BudgetMonths() []core.Month { return slices.Clone(l.budgetMonths) }

// LatestMonth is the most recent month with actuals, or with budget when no
// actuals exist. It is the zero Month for an empty ledger.
func (l *Ledger) LatestMonth() core.Month {
	if n := len(l.actualMonths); n > 0 {
		return l.actualMonths[n-1]
	}
	if n := len(l.budgetMonths); n > 0 {
		return l.budgetMonths[n-1]
	}
	return core.Month{}
}

func (l *Ledger) EarliestMonth() core.Month {
	if len(l.actualMonths) > 0 {
		return l.actualMonths[0]
	}
	if len(l.budgetMonths) > 0 {
		return l.budgetMonths[0]
	}
	return core.Month{}
}

func (l *Ledger) LatestYear() int { return l.LatestMonth().Year() }

func (l *Ledger) IsEmpty() bool { return len(l.facts) == 0 && len(l.cash) == 0 }

// HasFacts reports whether any record of src exists for m.
func (l *Ledger) HasFacts(src core.Source, m core.Month) bool {
	months := l.actualMonths
	if src == core.SourceBudget {
		months = l.budgetMonths
	}
	_, ok := slices.BinarySearchFunc(months, m, core.Month.Compare)
	return ok
}

// MonthsInRange lists the months between start and end (inclusive) that have actuals.
func (l *Ledger) MonthsInRange(start, end core.Month) []core.Month {
	var out []core.Month
	for _, m := range l.actualMonths {
		if !m.Before(start) && !m.After(end) {
			out = append(out, m)
		}
	}
	return out
}

// Lookup sums the USD amounts of src facts for month m whose category is
// prefix or one of its descendants. Entity "" sums every entity.
func (l *Ledger) Lookup(src core.Source, m core.Month, entity, prefix string) decimal.Decimal {
	total := decimal.Zero
	for _, i := range l.byMonth[m] {
		f := l.facts[i]
		if f.Source != src || (entity != "" && f.Entity != entity) {
			continue
		}
		if MatchesCategory(f.Category, prefix) {
			total = total.Add(f.AmountUSD)
		}
	}
	return total
}

// Children sums src facts under parent for month m, grouped by immediate
// subcategory. Facts booked directly on parent are reported under parent.
func (l *Ledger) Children(src core.Source, m core.Month, entity, parent string) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, i := range l.byMonth[m] {
		f := l.facts[i]
		if f.Source != src || (entity != "" && f.Entity != entity) || !MatchesCategory(f.Category, parent) {
			continue
		}
		name := ChildName(f.Category, parent)
		out[name] = out[name].Add(f.AmountUSD)
	}
	return out
}

// Facts returns the normalized facts booked in month m. The slice must not be modified.
func (l *Ledger) Facts(m core.Month) []core.NormalizedFact {
	idx := l.byMonth[m]
	out := make([]core.NormalizedFact, len(idx))
	for j, i := range idx {
		out[j] = l.facts[i]
	}
	return out
}

// Cash returns the balance for entity at m. Entity "" is the consolidated total.
func (l *Ledger) Cash(m core.Month, entity string) (decimal.Decimal, bool) {
	v, ok := l.cash[cashKey{m, entity}]
	return v, ok
}

// CarriedCash lists the entities whose consolidated balance for m was carried
// forward from an earlier month.
func (l *Ledger) CarriedCash(m core.Month) []string {
	return slices.Clone(l.carried[m])
}

// CashMonths lists months with a cash balance for entity, oldest first.
func (l *Ledger) CashMonths(entity string) []core.Month {
	return slices.Clone(l.cashMonths[entity])
}

func (l *Ledger) Entities() []string   { return slices.Clone(l.entities) }
func (l *Ledger) Categories() []string { return slices.Clone(l.categories) }

// HasEntity reports whether entity appears in any table. "" always matches.
func (l *Ledger) HasEntity(entity string) bool {
	if entity == "" {
		return true
	}
	_, ok := slices.BinarySearch(l.entities, entity)
	return ok
}

func (l *Ledger) Stats() Stats {
	return Stats{
		Facts:      len(l.facts),
		CashRows:   len(l.cash) - len(l.cashMonths[""]),
		FxRates:    len(l.fx),
		FirstMonth: l.EarliestMonth(),
		LastMonth:  l.LatestMonth(),
		Entities:   l.Entities(),
		Currencies: slices.Clone(l.currencies),
		Months:     l.Months(),
	}
}

// Rows is the number of raw rows the snapshot was built from.
func (l *Ledger) Rows() int { return l.rows }

func (s Stats) String() string {
	return fmt.Sprintf("%d facts, %s..%s, %d entities", s.Facts, s.FirstMonth, s.LastMonth, len(s.Entities))
}

func sortedMonths(set map[core.Month]bool) []core.Month {
	out := make([]core.Month, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	slices.SortFunc(out, core.Month.Compare)
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
