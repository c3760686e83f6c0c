// Package copilot answers finance questions end to end: classify, compute
// against the current ledger snapshot, format, and cache.
package copilot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cfocopilot/internal/cache"
	"cfocopilot/internal/core"
	"cfocopilot/internal/intent"
	"cfocopilot/internal/ledger"
	"cfocopilot/internal/log"
	"cfocopilot/internal/metrics"
)

// Request is one question. Entity narrows figures to a single entity.
type Request struct {
	Query  string `json:"query"`
	Entity string `json:"entity,omitempty"`
}

// ErrorPayload is returned in place of a result. Unknown questions and
// short histories land here too; they never abort a session.
type ErrorPayload struct {
	Kind        core.ErrorKind `json:"kind"`
	Message     string         `json:"message"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

func (e *ErrorPayload) Error() string { return string(e.Kind) + ": " + e.Message }

type Response struct {
	Query           string             `json:"query"`
	Intent          core.Intent        `json:"intent"`
	Result          *core.MetricResult `json:"result,omitempty"`
	Answer          string             `json:"answer"`
	Error           *ErrorPayload      `json:"error,omitempty"`
	SnapshotVersion uint64             `json:"snapshot_version"`
	Cached          bool               `json:"cached"`
}

// OK reports whether the response carries a result.
func (r Response) OK() bool { return r.Error == nil && r.Result != nil }

type Service struct {
	store      *ledger.Store
	classifier *intent.Classifier
	engine     *metrics.Engine
	cache      cache.Cache[Response]
	logger     *log.Logger
	sl         *log.StructuredLogger
}

// NewService wires the pipeline. cache may be nil to disable caching.
func NewService(store *ledger.Store, classifier *intent.Classifier, engine *metrics.Engine, c cache.Cache[Response], logger *log.Logger) *Service {
	logger = logger.WithComponent(log.ComponentCopilot)
	return &Service{
		store:      store,
		classifier: classifier,
		engine:     engine,
		cache:      c,
		logger:     logger,
		sl:         log.NewStructuredLogger(logger),
	}
}

// Handle answers a consolidated question.
func (s *Service) Handle(ctx context.Context, query string) Response {
	return s.Ask(ctx, Request{Query: query})
}

func (s *Service) Ask(ctx context.Context, req Request) Response {
	query := strings.TrimSpace(req.Query)
	resp := Response{Query: query}
	if query == "" {
		resp.Intent = core.Intent{Kind: core.Unknown, Period: core.LatestPeriod()}
		resp.Error = &ErrorPayload{Kind: core.KindBadRequest, Message: "ask a question about revenue, margins, opex, EBITDA or cash", Suggestions: s.classifier.Suggestions()}
		resp.Answer = FormatError(resp.Error)
		return resp
	}

	in := s.classifier.Classify(query)
	resp.Intent = in
	snap := s.store.Current()
	if snap != nil {
		resp.SnapshotVersion = snap.Version
	}

	if in.Kind == core.Unknown {
		resp.Error = &ErrorPayload{
			Kind:        core.KindUnknownIntent,
			Message:     "I couldn't match that question to a financial analysis.",
			Suggestions: in.Suggestions,
		}
		resp.Answer = FormatOverview(s.overview(snap, req.Entity), resp.Error)
		s.sl.LogQueryAnswered(ctx, query, string(in.Kind), in.Period.String(), resp.SnapshotVersion, false)
		return resp
	}
	if snap == nil {
		resp.Error = &ErrorPayload{Kind: core.KindNoSnapshot, Message: core.ErrNoSnapshot.Error()}
		resp.Answer = FormatError(resp.Error)
		return resp
	}

	key := cacheKey(snap.Version, req.Entity, in)
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok {
			hit.Query, hit.Intent, hit.Cached = query, in, true
			s.sl.LogQueryAnswered(ctx, query, string(in.Kind), in.Period.String(), snap.Version, true)
			return hit
		}
	}

	res, err := s.engine.Compute(snap.Ledger, in, metrics.Options{Entity: req.Entity})
	if err != nil {
		resp.Error = errorPayload(err)
		resp.Answer = FormatError(resp.Error)
		if resp.Error.Kind == core.KindInternal {
			fields := log.NewFields().WithQuery(query, string(in.Kind), in.Period.String())
			fields[log.FieldErrorKind] = string(resp.Error.Kind)
			if in.Category != "" {
				fields[log.FieldCategory] = in.Category
			}
			s.sl.LogError(ctx, "Metric computation failed", err, log.OpCompute, fields)
		}
		return resp
	}
	resp.Result = res
	resp.Answer = FormatAnswer(in, res)
	if s.cache != nil {
		s.cache.Set(key, resp)
	}
	s.sl.LogQueryAnswered(ctx, query, string(in.Kind), in.Period.String(), snap.Version, false)
	return resp
}

// cacheKey ignores the raw wording: two questions with the same intent share an answer.
func cacheKey(version uint64, entity string, in core.Intent) string {
	return fmt.Sprintf("%d|%s|%s|%+v|%s", version, entity, in.Kind, in.Period, in.Category)
}

func errorPayload(err error) *ErrorPayload {
	kind := core.KindOf(err)
	msg := err.Error()
	switch kind {
	case core.KindInsufficientHistory:
		msg = "Not enough cash history to estimate a burn rate: " + msg
	case core.KindNoData:
		msg = "No data for that period: " + msg
	}
	return &ErrorPayload{Kind: kind, Message: msg}
}

// overview gathers the latest-month headline figures used for questions the
// classifier could not place. Missing pieces are simply left out.
func (s *Service) overview(snap *ledger.Snapshot, entity string) *Overview {
	if snap == nil || snap.Ledger.IsEmpty() {
		return nil
	}
	ov := &Overview{Month: snap.Ledger.LatestMonth()}
	latest := core.Intent{Period: core.LatestPeriod()}
	opts := metrics.Options{Entity: entity}
	for _, kind := range []core.IntentKind{core.RevenueVsBudget, core.EbitdaAnalysis, core.CashRunway} {
		latest.Kind = kind
		res, err := s.engine.Compute(snap.Ledger, latest, opts)
		if err != nil {
			continue
		}
		switch kind {
		case core.RevenueVsBudget:
			ov.Revenue = res
		case core.EbitdaAnalysis:
			ov.Ebitda = res
		case core.CashRunway:
			ov.Runway = res.Runway
		}
	}
	return ov
}

// Suggestions lists example questions for the chat page.
func (s *Service) Suggestions() []string { return s.classifier.Suggestions() }

// Snapshot returns the active ledger snapshot, or nil before the first load.
func (s *Service) Snapshot() *ledger.Snapshot { return s.store.Current() }

// Reload rebuilds the ledger from src and, on success, swaps it in and drops
// cached answers. The previous snapshot stays active on failure.
func (s *Service) Reload(ctx context.Context, src ledger.Source, backend string) (*ledger.Snapshot, error) {
	snap, err := s.store.Reload(ctx, src, backend)
	if err != nil {
		var mr *core.MalformedRecordError
		fields := log.NewFields().WithOperation(log.OpReload).WithError(err)
		if errors.As(err, &mr) {
			fields[log.FieldSheet] = mr.Sheet
		}
		s.logger.ErrorContext(ctx, "Ledger reload rejected, keeping previous snapshot", fields.ToSlice()...)
		return nil, err
	}
	purged := 0
	if s.cache != nil {
		purged = s.cache.Purge()
	}
	s.logger.InfoContext(ctx, "Ledger snapshot loaded",
		append(log.NewFields().WithSnapshot(snap.Version, backend, snap.Ledger.Rows()).ToSlice(), "purged", purged)...)
	return snap, nil
}
