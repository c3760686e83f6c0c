package ledger

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"cfocopilot/internal/core"
)

// Source provides the raw workbook a snapshot is built from.
type Source interface {
	Load(ctx context.Context) (core.Workbook, error)
}

// Snapshot is one published ledger with its bookkeeping.
type Snapshot struct {
	Ledger   *Ledger
	Version  uint64
	Backend  string
	LoadedAt time.Time
}

// Store hands the current snapshot to readers without locking. A query
// should call Current once and use that snapshot for its whole lifetime.
type Store struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Current returns the active snapshot, or nil before the first load.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Swap publishes l as the new snapshot and returns it.
func (s *Store) Swap(l *Ledger, backend string) *Snapshot {
	snap := &Snapshot{
		Ledger:   l,
		Version:  s.version.Add(1),
		Backend:  backend,
		LoadedAt: s.now(),
	}
	s.current.Store(snap)
	return snap
}

// Reload loads and builds a fresh ledger from src, then swaps it in. On any
// failure the previous snapshot stays active.
func (s *Store) Reload(ctx context.Context, src Source, backend string) (*Snapshot, error) {
	wb, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workbook: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, err := Build(wb)
	if err != nil {
		return nil, fmt.Errorf("build ledger: %w", err)
	}
	return s.Swap(l, backend), nil
}
