package sessionstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"expat-market.storefront/internal/domain/repositories"
	"expat-market.storefront/pkg/logger"
)

type pendingWrite struct {
	value []byte
	timer *time.Timer
	gen   uint64
}

// Store is the JSON snapshot layer over a KV. Debounced writes to the same
// key are coalesced: only the last value within the window reaches the KV.
type Store struct {
	kv KV

	mu      sync.Mutex
	pending map[string]*pendingWrite
	gen     uint64
	closed  bool

	// writeMu orders commits against removals so a timer that fired just
	// before RemoveItem cannot resurrect the key.
	writeMu sync.Mutex

	afterFunc func(d time.Duration, f func()) *time.Timer
}

var _ repositories.SessionStore = (*Store)(nil)

// New returns a Store backed by kv.
func New(kv KV) *Store {
	return &Store{
		kv:        kv,
		pending:   make(map[string]*pendingWrite),
		afterFunc: time.AfterFunc,
	}
}

// GetItem decodes the value under key into dst. A pending debounced value
// takes precedence over what the KV holds.
func (s *Store) GetItem(ctx context.Context, key string, dst any) error {
	s.mu.Lock()
	if p, ok := s.pending[key]; ok {
		raw := p.value
		s.mu.Unlock()
		return json.Unmarshal(raw, dst)
	}
	s.mu.Unlock()

	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return repositories.ErrItemNotFound
	}
	return json.Unmarshal(raw, dst)
}

// SetItem writes immediately, dropping any pending write for key.
func (s *Store) SetItem(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.cancelPending(key)
	return s.kv.Set(ctx, key, raw)
}

// SetItemDebounced schedules a write of value after delay. A later call for
// the same key within the window replaces the value and restarts the timer.
func (s *Store) SetItemDebounced(key string, value any, delay time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.kv.Set(context.Background(), key, raw)
	}

	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
	}

	s.gen++
	gen := s.gen
	p := &pendingWrite{value: raw, gen: gen}
	p.timer = s.afterFunc(delay, func() { s.commit(key, gen) })
	s.pending[key] = p
	return nil
}

// RemoveItem cancels any pending write for key and deletes it.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.cancelPending(key)
	return s.kv.Del(ctx, key)
}

// FlushPendingWrites commits every pending write now.
func (s *Store) FlushPendingWrites(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	keys := make([]string, 0, len(s.pending))
	values := make(map[string][]byte, len(s.pending))
	for k, p := range s.pending {
		p.timer.Stop()
		keys = append(keys, k)
		values[k] = p.value
	}
	s.pending = make(map[string]*pendingWrite)
	s.mu.Unlock()

	sort.Strings(keys)

	var errs error
	for _, k := range keys {
		errs = multierr.Append(errs, s.kv.Set(ctx, k, values[k]))
	}
	return errs
}

// Pending returns how many writes are waiting on a timer.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close flushes pending writes. Debounced writes made afterwards go
// straight to the KV.
func (s *Store) Close(ctx context.Context) error {
	err := s.FlushPendingWrites(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

func (s *Store) cancelPending(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
		delete(s.pending, key)
	}
}

func (s *Store) commit(key string, gen uint64) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	p, ok := s.pending[key]
	if !ok || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	if err := s.kv.Set(context.Background(), key, p.value); err != nil {
		logger.Error(context.Background(), "Debounced session write failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
