package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
)

// Store defaults.
const (
	defaultQueueSize    = 256
	defaultPurgeEvery   = time.Hour
	writeTimeout        = 5 * time.Second
	timestampLayout     = "2006-01-02T15:04:05.000000Z"
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ErrInvalidFacet is returned for history queries naming no known facet.
var ErrInvalidFacet = errors.New("store: unknown facet")

// Options configures a Store.
type Options struct {
	// Retention is how long facet history is kept. Zero keeps it forever.
	Retention time.Duration

	// QueueSize bounds the pending facet changes. Defaults to 256.
	QueueSize int

	// PurgeInterval is how often old history is pruned. Defaults to 1h.
	PurgeInterval time.Duration

	Logger kommander.Logger
	Now    func() time.Time
}

// Store reads and writes the bridge tables.
type Store struct {
	db            *sql.DB
	logger        kommander.Logger
	now           func() time.Time
	retention     time.Duration
	purgeInterval time.Duration

	queue   chan kommander.FacetChange
	dropped atomic.Uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Store over an open, migrated database.
func New(db *sql.DB, opts Options) *Store {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.PurgeInterval <= 0 {
		opts.PurgeInterval = defaultPurgeEvery
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		db:            db,
		logger:        opts.Logger,
		now:           opts.Now,
		retention:     opts.Retention,
		purgeInterval: opts.PurgeInterval,
		queue:         make(chan kommander.FacetChange, opts.QueueSize),
	}
}

// Start launches the history writer. Calling it twice is a no-op.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true
	go s.writeLoop(ctx, s.done)
}

// Stop halts the writer after flushing queued changes.
func (s *Store) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Dropped reports how many facet changes were discarded because the
// queue was full.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// FacetChanged queues a change for the history table without blocking.
func (s *Store) FacetChanged(change kommander.FacetChange) {
	select {
	case s.queue <- change:
	default:
		if s.dropped.Add(1) == 1 && s.logger != nil {
			s.logger.Warn("facet history queue full, dropping changes", "facet", string(change.Facet))
		}
	}
}

func (s *Store) writeLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case change := <-s.queue:
			s.record(change)
		case <-ticker.C:
			s.purge(ctx)
		}
	}
}

func (s *Store) drain() {
	for {
		select {
		case change := <-s.queue:
			s.record(change)
		default:
			return
		}
	}
}

// record writes one change. The insert does not inherit the writer's
// context, so a change dequeued while Stop is cancelling is still stored.
func (s *Store) record(change kommander.FacetChange) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.RecordChange(ctx, change); err != nil && s.logger != nil {
		s.logger.Error("recording facet change failed", "facet", string(change.Facet), "error", err)
	}
}

func (s *Store) purge(ctx context.Context) {
	if s.retention <= 0 {
		return
	}
	n, err := s.PruneHistory(ctx, s.retention)
	if s.logger == nil {
		return
	}
	if err != nil {
		s.logger.Error("pruning facet history failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("pruned facet history", "rows", n)
	}
}

func (s *Store) timestamp(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err == nil {
		return t, nil
	}
	if t, rfcErr := time.Parse(time.RFC3339Nano, value); rfcErr == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
}
