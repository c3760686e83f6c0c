package copilot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cfocopilot/internal/cache"
	"cfocopilot/internal/core"
	"cfocopilot/internal/intent"
	"cfocopilot/internal/ledger"
	"cfocopilot/internal/ledger/ledgertest"
	"cfocopilot/internal/log"
	"cfocopilot/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, b *ledgertest.Builder) (*Service, *cache.LRUCache[Response]) {
	t.Helper()
	store := ledger.NewStore()
	if b != nil {
		store.Swap(b.Ledger(t), "memory")
	}
	c := cache.NewLRUCache[Response](16, time.Minute)
	return NewService(store, intent.Default(), metrics.NewEngine(metrics.Options{}), c, log.Discard()), c
}

func TestHandleRevenueScenario(t *testing.T) {
	svc, _ := newService(t, ledgertest.New().
		Actual("2023-01", "ParentCo", "Revenue", "380000", "USD").
		Budget("2023-01", "ParentCo", "Revenue", "400000", "USD"))

	resp := svc.Handle(context.Background(), "What was revenue vs budget in 2023-01?")
	require.True(t, resp.OK(), "error: %+v", resp.Error)
	assert.Equal(t, core.RevenueVsBudget, resp.Intent.Kind)
	assert.Equal(t, uint64(1), resp.SnapshotVersion)
	assert.Contains(t, resp.Answer, "$20,000 below budget (-5.0%)")
	assert.Contains(t, resp.Answer, "## Revenue vs Budget (2023-01)")
}

func TestHandleUnknownReturnsSuggestions(t *testing.T) {
	svc, _ := newService(t, ledgertest.Sample())

	resp := svc.Handle(context.Background(), "What's the weather?")
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.KindUnknownIntent, resp.Error.Kind)
	assert.NotEmpty(t, resp.Error.Suggestions)
	assert.Nil(t, resp.Result)
	assert.Contains(t, resp.Answer, "Financial Overview (2023-06)")
	assert.Contains(t, resp.Answer, "Try one of these")

	// The session keeps working after an unknown question.
	next := svc.Handle(context.Background(), "What is our cash runway?")
	assert.True(t, next.OK())
}

func TestHandleUnknownWithoutSnapshot(t *testing.T) {
	svc, _ := newService(t, nil)
	resp := svc.Handle(context.Background(), "tell me a joke")
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.KindUnknownIntent, resp.Error.Kind)
	assert.NotContains(t, resp.Answer, "Financial Overview")
}

func TestHandleNoSnapshot(t *testing.T) {
	svc, _ := newService(t, nil)
	resp := svc.Handle(context.Background(), "revenue vs budget")
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.KindNoSnapshot, resp.Error.Kind)
}

func TestHandleEmptyQuery(t *testing.T) {
	svc, _ := newService(t, ledgertest.Sample())
	resp := svc.Handle(context.Background(), "   ")
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.KindBadRequest, resp.Error.Kind)
}

func TestHandleInsufficientHistory(t *testing.T) {
	svc, _ := newService(t, ledgertest.New().Cash("2023-01", "P", "100"))
	resp := svc.Handle(context.Background(), "cash runway")
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.KindInsufficientHistory, resp.Error.Kind)
	assert.Contains(t, resp.Answer, "Not enough cash history")
}

func TestHandleCachesByIntent(t *testing.T) {
	svc, c := newService(t, ledgertest.Sample())
	ctx := context.Background()

	first := svc.Handle(ctx, "Break down opex for 2023-01")
	require.True(t, first.OK())
	assert.False(t, first.Cached)

	second := svc.Handle(ctx, "opex breakdown 2023-01 please")
	require.True(t, second.OK())
	assert.True(t, second.Cached, "same intent should hit the cache")
	assert.Equal(t, "opex breakdown 2023-01 please", second.Query)
	assert.Equal(t, 1, c.Size())

	third := svc.Handle(ctx, "expenses 2023-01")
	require.True(t, third.Cached)
	assert.Equal(t, "expenses", third.Intent.Trigger, "a cached answer reports the trigger of the question asked")

	other := svc.Ask(ctx, Request{Query: "Break down opex for 2023-01", Entity: "EMEA"})
	assert.False(t, other.Cached, "entity is part of the key")
}

func TestHandleOpexIgnoresNonOpexFilter(t *testing.T) {
	svc, _ := newService(t, ledgertest.Sample())

	resp := svc.Handle(context.Background(), "What were expenses compared to revenue in 2023-01?")
	require.True(t, resp.OK(), "error: %+v", resp.Error)
	assert.Equal(t, core.OpexBreakdown, resp.Intent.Kind)
	assert.Empty(t, resp.Intent.Category)
	assert.NotContains(t, resp.Answer, "Revenue")
	assert.Contains(t, resp.Answer, "Marketing")
}

func TestReloadSwapsAndPurges(t *testing.T) {
	svc, c := newService(t, ledgertest.Sample())
	ctx := context.Background()
	svc.Handle(ctx, "revenue vs budget")
	require.Equal(t, 1, c.Size())

	src := &ledgertest.Source{WB: ledgertest.New().
		Actual("2024-01", "P", "Revenue", "10", "USD").Workbook()}
	snap, err := svc.Reload(ctx, src, "memory")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, 0, c.Size())

	resp := svc.Handle(ctx, "revenue vs budget")
	require.True(t, resp.OK())
	assert.Equal(t, "2024-01", resp.Result.Periods[0].String())

	src.WB = ledgertest.New().Actual("2024-01", "P", "Revenue", "x", "USD").Workbook()
	_, err = svc.Reload(ctx, src, "memory")
	var mr *core.MalformedRecordError
	require.True(t, errors.As(err, &mr))
	assert.Equal(t, uint64(2), svc.Snapshot().Version, "failed reload keeps the old snapshot")
}

func TestFormatAnswers(t *testing.T) {
	svc, _ := newService(t, ledgertest.Sample())
	ctx := context.Background()
	cases := map[string][]string{
		"Show gross margin trend":               {"## Gross Margin Trend (2023-04 to 2023-06)", "| Month | Actual | Budget |", "showing the last 3 months"},
		"Break down Opex for 2023-01":           {"| R&D | $120,000 | $115,000 | +4.3% |", "Largest line was R&D"},
		"EBITDA for Q1 2023":                    {"## EBITDA Analysis (2023-01 to 2023-03)", "| 2023-02 |"},
		"How long will our cash last?":          {"Runway: **38 months**", "Status: **Healthy**"},
		"What was June 2023 revenue vs budget?": {"## Revenue vs Budget (2023-06)"},
	}
	for q, wants := range cases {
		resp := svc.Handle(ctx, q)
		require.Truef(t, resp.OK(), "%q: %+v", q, resp.Error)
		for _, w := range wants {
			assert.Containsf(t, resp.Answer, w, "%q answer:\n%s", q, resp.Answer)
		}
	}
}

func TestStatusAndWords(t *testing.T) {
	mk := func(m string) *core.Runway { return &core.Runway{Months: dec(m)} }
	assert.Equal(t, StatusHealthy, StatusOf(mk("12.5")))
	assert.Equal(t, StatusMonitor, StatusOf(mk("12")))
	assert.Equal(t, StatusCritical, StatusOf(mk("6")))
	assert.Equal(t, StatusHealthy, StatusOf(&core.Runway{Unbounded: true}))

	assert.Equal(t, "above", Direction(dec("10"), "above", "below"))
	assert.Equal(t, "below", Direction(dec("-10"), "above", "below"))
	assert.Equal(t, "in line with", Direction(dec("0.2"), "above", "below"))

	assert.Equal(t, "improving", TrendWord(dec("0.3")))
	assert.Equal(t, "declining", TrendWord(dec("-0.3")))
	assert.Equal(t, "flat", TrendWord(dec("0.05")))
	assert.True(t, strings.HasPrefix(FormatError(&ErrorPayload{Message: "x"}), "x"))
}
