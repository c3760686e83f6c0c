package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cfocopilot/internal/amqp"
	"cfocopilot/internal/ledger"
	"cfocopilot/internal/ledger/ledgertest"
)

type fakeReloader struct {
	calls   atomic.Int32
	err     error
	backend string
}

func (f *fakeReloader) Reload(ctx context.Context, src ledger.Source, backend string) (*ledger.Snapshot, error) {
	f.calls.Add(1)
	f.backend = backend
	if f.err != nil {
		return nil, f.err
	}
	if _, err := src.Load(ctx); err != nil {
		return nil, err
	}
	return &ledger.Snapshot{Version: uint64(f.calls.Load())}, nil
}

type fakeConsumer struct {
	msgs []*amqp.ReloadMessage
	errs []error
	mu   sync.Mutex
}

func (f *fakeConsumer) ConsumeReload(ctx context.Context, handler amqp.ReloadHandler) error {
	for _, m := range f.msgs {
		err := handler(ctx, m)
		f.mu.Lock()
		f.errs = append(f.errs, err)
		f.mu.Unlock()
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleReload(t *testing.T) {
	r := &fakeReloader{}
	src := &ledgertest.Source{WB: ledgertest.Sample().Workbook()}
	w := NewReloadWorker(r, src, "memory", 0, nil)

	if err := w.HandleReload(context.Background(), amqp.NewReloadMessage("test", "unit")); err != nil {
		t.Fatalf("HandleReload: %v", err)
	}
	if r.calls.Load() != 1 || r.backend != "memory" {
		t.Fatalf("reloader calls=%d backend=%q", r.calls.Load(), r.backend)
	}
	if src.Calls != 1 {
		t.Fatalf("source loaded %d times", src.Calls)
	}
}

func TestHandleReloadError(t *testing.T) {
	r := &fakeReloader{err: errors.New("malformed record")}
	w := NewReloadWorker(r, &ledgertest.Source{}, "xlsx", 0, nil)

	msg := amqp.NewReloadMessage("test", "unit")
	err := w.HandleReload(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, r.err) {
		t.Fatalf("error should wrap the reload failure, got %v", err)
	}
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	r := &fakeReloader{}
	w := NewReloadWorker(r, &ledgertest.Source{WB: ledgertest.Sample().Workbook()}, "sqlite", 0, nil)
	consumer := &fakeConsumer{msgs: []*amqp.ReloadMessage{
		amqp.NewReloadMessage("a", "unit"),
		amqp.NewReloadMessage("b", "unit"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	deadline := time.After(2 * time.Second)
	for r.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d reloads", r.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunScheduledReload(t *testing.T) {
	r := &fakeReloader{}
	w := NewReloadWorker(r, &ledgertest.Source{WB: ledgertest.Sample().Workbook()}, "xlsx", 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.calls.Load() < 2 {
		t.Fatalf("expected repeated scheduled reloads, got %d", r.calls.Load())
	}
}
