package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"cfocopilot/internal/log"

	"github.com/rabbitmq/amqp091-go"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{4, 16 * time.Second},
		{5, maxBackoff},
		{80, maxBackoff}, // no shift overflow
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := backoff(tt.attempt); got != tt.want {
				t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{amqp091.ErrClosed, true},
		{fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("use of closed network connection"), true},
		{errors.New("PRECONDITION_FAILED - inequivalent arg"), false},
	}
	for _, tt := range tests {
		if got := isConnectionError(tt.err); got != tt.want {
			t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestBreaker(t *testing.T) {
	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	b := newBreaker(3, time.Minute)
	b.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		b.Failure()
	}
	if err := b.Allow(); err != nil || b.State() != breakerClosed {
		t.Fatalf("below threshold: state %s, err %v", b.State(), err)
	}

	b.Failure()
	if !errors.Is(b.Allow(), ErrCircuitOpen) {
		t.Fatalf("expected open circuit, state %s", b.State())
	}

	clock = clock.Add(time.Minute)
	if err := b.Allow(); err != nil || b.State() != breakerHalfOpen {
		t.Fatalf("after cooldown: state %s, err %v", b.State(), err)
	}

	// one failed trial is enough to reopen
	b.Failure()
	if b.State() != breakerOpen {
		t.Fatalf("half-open failure left state %s", b.State())
	}

	clock = clock.Add(2 * time.Minute)
	_ = b.Allow()
	b.Success()
	if b.State() != breakerClosed || b.failures != 0 {
		t.Fatalf("success should close and reset, got %s/%d", b.State(), b.failures)
	}
}

func TestPublishReloadGuards(t *testing.T) {
	client := &Client{
		exchangeName: "cfocopilot",
		queueName:    "ledger_reload",
		breaker:      newBreaker(1, time.Hour),
		logger:       log.Discard(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishReload(ctx, NewReloadMessage("test", "unit")); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v", err)
	}

	client.breaker.Failure()
	err := client.PublishReload(context.Background(), NewReloadMessage("test", "unit"))
	if !errors.Is(err, ErrCircuitOpen) || !strings.HasPrefix(err.Error(), "publish reload:") {
		t.Errorf("open circuit: got %v", err)
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestProcess(t *testing.T) {
	body, err := NewReloadMessage("sheet edited", "cli").ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("success acks", func(t *testing.T) {
		ack := &fakeAck{}
		var got *ReloadMessage
		process(context.Background(), log.Discard(), body, ack, func(_ context.Context, m *ReloadMessage) error {
			got = m
			return nil
		})
		if !ack.acked || ack.nacked {
			t.Errorf("expected ack, got %+v", ack)
		}
		if got == nil || got.Reason != "sheet edited" {
			t.Errorf("handler got %+v", got)
		}
	})

	t.Run("handler error rejects without requeue", func(t *testing.T) {
		ack := &fakeAck{}
		process(context.Background(), log.Discard(), body, ack, func(context.Context, *ReloadMessage) error {
			return errors.New("malformed record")
		})
		if !ack.nacked || ack.requeued || ack.acked {
			t.Errorf("expected nack without requeue, got %+v", ack)
		}
	})

	t.Run("bad body rejects", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		process(context.Background(), log.Discard(), []byte(`{"reason":1}`), ack, func(context.Context, *ReloadMessage) error {
			called = true
			return nil
		})
		if called || !ack.nacked {
			t.Errorf("bad body should be rejected before the handler, got %+v", ack)
		}
	})
}

func TestReloadMessage_JSON(t *testing.T) {
	msg := NewReloadMessage("manual", "ops")
	if msg.ID == "" || msg.Timestamp.IsZero() {
		t.Fatalf("message not initialised: %+v", msg)
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}

	b, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := ReloadMessageFromJSON(b)
	if err != nil {
		t.Fatalf("ReloadMessageFromJSON() error = %v", err)
	}
	if parsed.ID != msg.ID || parsed.Reason != "manual" || parsed.RequestedBy != "ops" {
		t.Errorf("parsed = %+v", parsed)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}

	if _, err := ReloadMessageFromJSON([]byte(`{"reason":"x"}`)); err == nil {
		t.Error("message without id should be rejected")
	}
}
