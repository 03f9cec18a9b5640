package index

import (
	"context"
	"errors"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/logging"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// DefaultQueueSize bounds the number of pending index writes.
const DefaultQueueSize = 256

type opKind int

const (
	opPut opKind = iota
	opDelete
	opFlush
)

type op struct {
	ctx  context.Context
	kind opKind
	doc  Document
	id   string
	done chan struct{}
}

// Synchronizer mirrors entries into a Backend from a single background worker.
// Index and Delete never block and never return errors; failures are logged.
type Synchronizer struct {
	backend Backend
	queue   chan op
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// SyncOption configures a Synchronizer.
type SyncOption func(*syncConfig)

type syncConfig struct {
	queueSize int
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) SyncOption {
	return func(c *syncConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// NewSynchronizer starts the worker. Close must be called to stop it.
func NewSynchronizer(backend Backend, opts ...SyncOption) *Synchronizer {
	cfg := syncConfig{queueSize: DefaultQueueSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Synchronizer{
		backend: backend,
		queue:   make(chan op, cfg.queueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Synchronizer) run() {
	defer s.wg.Done()
	for o := range s.queue {
		switch o.kind {
		case opPut:
			s.put(o.ctx, o.doc)
		case opDelete:
			s.delete(o.ctx, o.id)
		case opFlush:
			close(o.done)
		}
	}
}

func (s *Synchronizer) put(ctx context.Context, doc Document) {
	if err := s.backend.PutDocument(ctx, doc); err != nil {
		logging.From(ctx).Warn("index write failed", "id", doc.ID, "scope", doc.Scope, "error", err)
	}
}

func (s *Synchronizer) delete(ctx context.Context, id string) {
	err := s.backend.DeleteDocument(ctx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		logging.From(ctx).Warn("index delete failed", "id", id, "error", err)
	}
}

// enqueue hands o to the worker. The op's context is detached from
// cancellation so a finished request does not abort its index write.
func (s *Synchronizer) enqueue(ctx context.Context, o op) bool {
	o.ctx = context.WithoutCancel(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.queue <- o:
		return true
	default:
		return false
	}
}

// Index schedules an upsert of m.
func (s *Synchronizer) Index(ctx context.Context, m *model.Memory) {
	if !s.enqueue(ctx, op{kind: opPut, doc: FromMemory(m)}) {
		logging.From(ctx).Warn("index queue unavailable, dropping write", "id", m.ID, "scope", m.Scope)
	}
}

// Delete schedules removal of the document for id.
func (s *Synchronizer) Delete(ctx context.Context, id string) {
	if !s.enqueue(ctx, op{kind: opDelete, id: id}) {
		logging.From(ctx).Warn("index queue unavailable, dropping delete", "id", id)
	}
}

// IndexNow writes m synchronously and returns the backend error. Used by
// Reindex, where the caller wants a count of failures.
func (s *Synchronizer) IndexNow(ctx context.Context, m *model.Memory) error {
	if err := s.backend.PutDocument(ctx, FromMemory(m)); err != nil {
		return goerr.Wrap(err, "index memory", goerr.V("id", m.ID))
	}
	return nil
}

// Search queries the backend directly.
func (s *Synchronizer) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	return s.backend.Search(ctx, q)
}

// Flush blocks until every write queued before the call has been applied or
// ctx is done.
func (s *Synchronizer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.queue <- op{kind: opFlush, done: done}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending writes, stops the worker and closes the backend.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	return s.backend.Close()
}
