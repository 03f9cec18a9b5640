// Package retrieval ranks memory entries for a query by combining store
// listings with full-text index hits.
package retrieval

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/extract"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/index"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/logging"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/scoring"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/store"
)

const (
	DefaultLimit        = 10
	MaxLimit            = 100
	DefaultOversample   = 2
	DefaultIndexTimeout = 2 * time.Second
	accessTimeout       = 5 * time.Second
)

// Store is the subset of the memory store retrieval reads from.
type Store interface {
	Get(ctx context.Context, key model.Key) (*model.Memory, error)
	GetByID(ctx context.Context, id string) (*model.Memory, error)
	ListByScope(ctx context.Context, p store.ListParams) (*store.Page, error)
	ListByType(ctx context.Context, p store.ListParams) (*store.Page, error)
	RecordAccess(ctx context.Context, key model.Key, at time.Time) error
}

// Searcher is the full-text side of hybrid retrieval.
type Searcher interface {
	Search(ctx context.Context, q index.SearchQuery) ([]index.Hit, error)
}

// Source records where a result came from.
type Source string

const (
	SourceStore  Source = "store"
	SourceIndex  Source = "index"
	SourceHybrid Source = "store+index"
)

// Query holds parameters for Retrieve. At least one of Scope, Types or Text
// is required. Peek skips the access-stat updates, for internal lookups that
// should not count as use.
type Query struct {
	Scope string
	Types []model.MemoryType
	Text  string
	Limit int
	Now   time.Time
	Peek  bool
}

// Result is one ranked entry.
type Result struct {
	Memory *model.Memory `json:"memory"`
	Score  float64       `json:"score"`
	Source Source        `json:"source"`
}

// Orchestrator selects a retrieval strategy, scores candidates and schedules
// access-stat updates. It is safe for concurrent use.
type Orchestrator struct {
	store        Store
	searcher     Searcher
	scorer       *scoring.Scorer
	indexTimeout time.Duration
	oversample   int
	now          func() time.Time

	mu     sync.Mutex
	closed bool
	bumps  sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithIndexTimeout bounds the index query. The store path is not affected.
func WithIndexTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.indexTimeout = d
		}
	}
}

// WithOversample sets how many candidates per requested result are listed
// from the store before scoring.
func WithOversample(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.oversample = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator. searcher may be nil, in which case text
// queries use the store path only.
func New(st Store, searcher Searcher, scorer *scoring.Scorer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        st,
		searcher:     searcher,
		scorer:       scorer,
		indexTimeout: DefaultIndexTimeout,
		oversample:   DefaultOversample,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type candidate struct {
	memory *model.Memory
	source Source
}

type candidates map[string]*candidate

func (c candidates) add(m *model.Memory, src Source) {
	if prev, ok := c[m.ID]; ok {
		if prev.source != src {
			prev.source = SourceHybrid
		}
		return
	}
	c[m.ID] = &candidate{memory: m, source: src}
}

// Retrieve returns up to q.Limit entries ranked by relevance. Index failures
// degrade to store-only recall and are logged, never returned.
func (o *Orchestrator) Retrieve(ctx context.Context, q Query) ([]Result, error) {
	if err := validate(q); err != nil {
		return nil, err
	}
	limit := normalizeLimit(q.Limit)
	now := q.Now
	if now.IsZero() {
		now = o.now()
	}

	var keywords []string
	if q.Text != "" {
		keywords = extract.Extract(q.Text, nil, 0).Keywords
	}

	found := candidates{}
	var err error
	if q.Text != "" && o.searcher != nil {
		err = o.hybrid(ctx, q, keywords, limit, found)
	} else {
		err = o.fromStore(ctx, q, limit, found)
	}
	if err != nil {
		return nil, err
	}

	sq := scoring.Query{Keywords: keywords, Scope: q.Scope, Now: now}
	if len(q.Types) == 1 {
		sq.Type = q.Types[0]
	}
	allowed := typeSet(q.Types)

	results := make([]Result, 0, len(found))
	for _, c := range found {
		m := c.memory
		if m.Expired(now) {
			continue
		}
		if len(allowed) > 0 && !allowed[m.Type] {
			continue
		}
		if q.Scope != "" && m.Scope != q.Scope {
			continue
		}
		results = append(results, Result{Memory: m, Score: o.scorer.Score(m, sq), Source: c.source})
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}

	if !q.Peek {
		o.recordAccess(ctx, results, now)
	}
	return results, nil
}

// hybrid runs the index query and the store listing concurrently. A slow or
// failing index never holds up the store path.
func (o *Orchestrator) hybrid(ctx context.Context, q Query, keywords []string, limit int, found candidates) error {
	var (
		hits   []index.Hit
		listed candidates
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		ictx, cancel := context.WithTimeout(egCtx, o.indexTimeout)
		defer cancel()
		var err error
		hits, err = o.searcher.Search(ictx, index.SearchQuery{
			Text:     q.Text,
			Keywords: keywords,
			Scope:    q.Scope,
			Types:    q.Types,
			Limit:    limit * o.oversample,
		})
		if err != nil {
			logging.From(ctx).Warn("index search failed, using store results only",
				"scope", q.Scope, "error", err)
			hits = nil
		}
		return nil
	})
	if q.Scope != "" || len(q.Types) > 0 {
		eg.Go(func() error {
			listed = candidates{}
			return o.fromStore(egCtx, q, limit, listed)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, c := range listed {
		found.add(c.memory, SourceStore)
	}
	for _, h := range hits {
		m, err := o.resolve(ctx, h)
		if err != nil {
			continue
		}
		found.add(m, SourceIndex)
	}
	return nil
}

// resolve loads the entry behind an index hit. Hits whose entry is gone are
// dropped; the index lags deletes.
func (o *Orchestrator) resolve(ctx context.Context, h index.Hit) (*model.Memory, error) {
	m, err := o.store.Get(ctx, h.Key())
	if errors.Is(err, model.ErrNotFound) || (err == nil && m == nil) {
		m, err = o.store.GetByID(ctx, h.ID)
	}
	if errors.Is(err, model.ErrNotFound) {
		logging.From(ctx).Debug("index hit has no entry", "id", h.ID)
		return nil, err
	}
	if err != nil {
		logging.From(ctx).Warn("failed to load index hit", "id", h.ID, "error", err)
		return nil, err
	}
	return m, nil
}

// fromStore lists candidates by scope, or per type when no scope is given.
// A scope with several types lists each (type, scope) partition so older
// entries of one type are not crowded out by newer entries of another.
func (o *Orchestrator) fromStore(ctx context.Context, q Query, limit int, found candidates) error {
	n := limit * o.oversample

	if q.Scope != "" {
		types := q.Types
		if len(types) == 0 {
			types = []model.MemoryType{""}
		}
		for _, t := range types {
			page, err := o.store.ListByScope(ctx, store.ListParams{Scope: q.Scope, Type: t, Limit: n})
			if err != nil {
				return goerr.Wrap(err, "list candidates by scope", goerr.V("scope", q.Scope), goerr.V("type", t))
			}
			for _, m := range page.Memories {
				found.add(m, SourceStore)
			}
		}
		return nil
	}

	for _, t := range q.Types {
		page, err := o.store.ListByType(ctx, store.ListParams{Type: t, Limit: n})
		if err != nil {
			return goerr.Wrap(err, "list candidates by type", goerr.V("type", t))
		}
		for _, m := range page.Memories {
			found.add(m, SourceStore)
		}
	}
	return nil
}

// recordAccess bumps access stats in the background. Failures are logged and
// never reach the caller.
func (o *Orchestrator) recordAccess(ctx context.Context, results []Result, at time.Time) {
	o.mu.Lock()
	if o.closed || len(results) == 0 {
		o.mu.Unlock()
		return
	}
	o.bumps.Add(len(results))
	o.mu.Unlock()

	logger := logging.From(ctx)
	for _, r := range results {
		key := r.Memory.Key()
		go func() {
			defer o.bumps.Done()
			bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), accessTimeout)
			defer cancel()
			if err := o.store.RecordAccess(bctx, key, at); err != nil {
				logger.Warn("failed to record access", "id", key.ID, "scope", key.Scope, "error", err)
			}
		}()
	}
}

// Wait blocks until every scheduled access-stat update has finished.
// Retrievals running concurrently schedule their updates after Wait returns.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bumps.Wait()
}

// Close stops scheduling access-stat updates and waits for pending ones.
// Retrieve keeps working after Close but no longer records access.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.Wait()
}

func validate(q Query) error {
	if q.Scope == "" && len(q.Types) == 0 && q.Text == "" {
		return goerr.Wrap(model.ErrValidation, "retrieve needs a scope, a type or query text")
	}
	if q.Scope != "" {
		if err := model.ValidateScope(q.Scope); err != nil {
			return err
		}
	}
	for _, t := range q.Types {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func typeSet(types []model.MemoryType) map[model.MemoryType]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[model.MemoryType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// sortResults orders by score, then most recent, then id.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Memory.CreatedAt.Equal(b.Memory.CreatedAt) {
			return a.Memory.CreatedAt.After(b.Memory.CreatedAt)
		}
		return a.Memory.ID < b.Memory.ID
	})
}
