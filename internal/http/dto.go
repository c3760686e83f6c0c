package http

import (
	"time"

	"cfocopilot/internal/copilot"
	"cfocopilot/internal/core"
	"cfocopilot/internal/ledger"

	"github.com/shopspring/decimal"
)

// Wire shapes for the JSON API. Amounts are decimal strings so no precision
// is lost on the way to a client.

type askResponse struct {
	Query           string                `json:"query"`
	Intent          core.Intent           `json:"intent"`
	Answer          string                `json:"answer"`
	Result          *resultDTO            `json:"result,omitempty"`
	Error           *copilot.ErrorPayload `json:"error,omitempty"`
	SnapshotVersion uint64                `json:"snapshot_version"`
	Cached          bool                  `json:"cached"`
}

type resultDTO struct {
	Intent           core.IntentKind `json:"intent"`
	Periods          []core.Month    `json:"periods"`
	Headline         []valueDTO      `json:"headline"`
	Variance         *varianceDTO    `json:"variance,omitempty"`
	SeriesName       string          `json:"series_name,omitempty"`
	Series           []pointDTO      `json:"series,omitempty"`
	ComparisonName   string          `json:"comparison_name,omitempty"`
	ComparisonSeries []pointDTO      `json:"comparison_series,omitempty"`
	Breakdown        []breakdownDTO  `json:"breakdown,omitempty"`
	Runway           *runwayDTO      `json:"runway,omitempty"`
	Notes            []noteDTO       `json:"notes,omitempty"`
}

type valueDTO struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
	Unit  core.Unit       `json:"unit"`
}

type varianceDTO struct {
	Absolute decimal.Decimal  `json:"absolute"`
	Percent  *decimal.Decimal `json:"percent"`
}

type pointDTO struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

type breakdownDTO struct {
	Name     string           `json:"name"`
	Category string           `json:"category"`
	Actual   decimal.Decimal  `json:"actual"`
	Budget   decimal.Decimal  `json:"budget"`
	Variance decimal.Decimal  `json:"variance"`
	Percent  *decimal.Decimal `json:"variance_pct"`
}

type runwayDTO struct {
	Entity           string           `json:"entity,omitempty"`
	AsOf             core.Month       `json:"as_of"`
	CurrentCash      decimal.Decimal  `json:"current_cash"`
	AvgMonthlyChange decimal.Decimal  `json:"avg_monthly_change"`
	Months           *decimal.Decimal `json:"months"`
	Unbounded        bool             `json:"unbounded"`
	WindowMonths     int              `json:"window_months"`
}

type noteDTO struct {
	Kind    core.NoteKind `json:"kind"`
	Message string        `json:"message"`
}

type snapshotResponse struct {
	Version  uint64       `json:"version"`
	Backend  string       `json:"backend"`
	LoadedAt time.Time    `json:"loaded_at"`
	Rows     int          `json:"rows"`
	Stats    ledger.Stats `json:"stats"`
}

func newAskResponse(resp copilot.Response) askResponse {
	return askResponse{
		Query:           resp.Query,
		Intent:          resp.Intent,
		Answer:          resp.Answer,
		Result:          newResultDTO(resp.Result),
		Error:           resp.Error,
		SnapshotVersion: resp.SnapshotVersion,
		Cached:          resp.Cached,
	}
}

func newResultDTO(r *core.MetricResult) *resultDTO {
	if r == nil {
		return nil
	}
	out := &resultDTO{
		Intent:         r.Intent,
		Periods:        r.Periods,
		SeriesName:     r.SeriesName,
		Series:         points(r.Series),
		ComparisonName: r.ComparisonName,
	}
	out.ComparisonSeries = points(r.ComparisonSeries)
	for _, h := range r.Headline {
		out.Headline = append(out.Headline, valueDTO(h))
	}
	if r.Variance != nil {
		out.Variance = &varianceDTO{Absolute: r.Variance.Absolute, Percent: nullable(r.Variance.Percent)}
	}
	for _, c := range r.Breakdown {
		v := c.Variance()
		out.Breakdown = append(out.Breakdown, breakdownDTO{
			Name:     c.Name,
			Category: c.Category,
			Actual:   c.Actual,
			Budget:   c.Budget,
			Variance: v.Absolute,
			Percent:  nullable(v.Percent),
		})
	}
	if rw := r.Runway; rw != nil {
		dto := &runwayDTO{
			Entity:           rw.Entity,
			AsOf:             rw.AsOf,
			CurrentCash:      rw.CurrentCash,
			AvgMonthlyChange: rw.AvgMonthlyChange,
			Unbounded:        rw.Unbounded,
			WindowMonths:     rw.WindowMonths,
		}
		if !rw.Unbounded {
			m := rw.Months
			dto.Months = &m
		}
		out.Runway = dto
	}
	for _, n := range r.Notes {
		out.Notes = append(out.Notes, noteDTO(n))
	}
	return out
}

func points(ps []core.Point) []pointDTO {
	if len(ps) == 0 {
		return nil
	}
	out := make([]pointDTO, len(ps))
	for i, p := range ps {
		out[i] = pointDTO(p)
	}
	return out
}

// nullable maps an undefined percentage to JSON null.
func nullable(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func newSnapshotResponse(snap *ledger.Snapshot) snapshotResponse {
	return snapshotResponse{
		Version:  snap.Version,
		Backend:  snap.Backend,
		LoadedAt: snap.LoadedAt,
		Rows:     snap.Ledger.Rows(),
		Stats:    snap.Ledger.Stats(),
	}
}
