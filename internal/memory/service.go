// Package memory is the entry point upstream callers use. It ties the store,
// extractor, index synchronizer, retrieval orchestrator and graph manager
// together.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/extract"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/graph"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/index"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/logging"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/retrieval"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/scoring"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/store"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/sweeper"
)

// Service owns every component it is built from; Close releases them all.
type Service struct {
	store     *store.Store
	sync      *index.Synchronizer
	retriever *retrieval.Orchestrator
	graph     *graph.Manager
	now       func() time.Time

	maxKeywords int
}

// Option configures a Service.
type Option func(*config)

type config struct {
	retrieval   []retrieval.Option
	graph       []graph.Option
	now         func() time.Time
	maxKeywords int
}

// WithRetrievalOptions passes options to the retrieval orchestrator.
func WithRetrievalOptions(opts ...retrieval.Option) Option {
	return func(c *config) {
		c.retrieval = append(c.retrieval, opts...)
	}
}

// WithGraphOptions passes options to the graph manager.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(c *config) {
		c.graph = append(c.graph, opts...)
	}
}

// WithClock overrides time.Now for expiry and access stamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithMaxKeywords caps the keywords extracted per entry.
func WithMaxKeywords(n int) Option {
	return func(c *config) {
		if n > 0 && n <= model.MaxKeywords {
			c.maxKeywords = n
		}
	}
}

// New builds a Service. sync may be nil, in which case nothing is indexed and
// retrieval uses the store only.
func New(st *store.Store, sync *index.Synchronizer, scorer *scoring.Scorer, opts ...Option) (*Service, error) {
	cfg := config{now: time.Now, maxKeywords: model.MaxKeywords}
	for _, opt := range opts {
		opt(&cfg)
	}

	var searcher retrieval.Searcher
	if sync != nil {
		searcher = sync
	}
	retrOpts := append([]retrieval.Option{retrieval.WithClock(cfg.now)}, cfg.retrieval...)
	retriever := retrieval.New(st, searcher, scorer, retrOpts...)

	graphOpts := append([]graph.Option{graph.WithClock(cfg.now)}, cfg.graph...)
	g, err := graph.New(st, retriever, graphOpts...)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:       st,
		sync:        sync,
		retriever:   retriever,
		graph:       g,
		now:         cfg.now,
		maxKeywords: cfg.maxKeywords,
	}, nil
}

// Close waits for background access updates, drains the index queue and
// closes the store.
func (s *Service) Close() error {
	s.retriever.Close()
	s.graph.Close()

	var errs []error
	if s.sync != nil {
		if err := s.sync.Close(); err != nil {
			errs = append(errs, goerr.Wrap(err, "close index"))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, goerr.Wrap(err, "close store"))
	}
	return errors.Join(errs...)
}

// CreateParams holds parameters for CreateMemory. Type, Scope and Content are
// required. TTL takes precedence over ExpiresAt.
type CreateParams struct {
	Type             model.MemoryType
	Scope            string
	Content          string
	Tags             []string
	Keywords         []string
	Summary          string
	Metadata         map[string]string
	Details          *model.Details
	Compressed       bool
	OriginalEntryIDs []string
	TTL              time.Duration
	ExpiresAt        *int64
}

// CreateMemory extracts keywords and tags from the content, writes the entry
// and schedules it for indexing. Caller-supplied tags and keywords come first
// and extracted ones fill the remaining room.
func (s *Service) CreateMemory(ctx context.Context, p CreateParams) (*model.Memory, error) {
	ex := extract.Extract(p.Content, p.Metadata, s.maxKeywords)

	m := &model.Memory{
		Type:             p.Type,
		Scope:            p.Scope,
		Content:          p.Content,
		Tags:             model.NormalizeTerms(append(append([]string{}, p.Tags...), ex.Tags...), model.MaxTags),
		Keywords:         model.NormalizeTerms(append(append([]string{}, p.Keywords...), ex.Keywords...), s.maxKeywords),
		Summary:          p.Summary,
		Metadata:         maps.Clone(p.Metadata),
		Details:          p.Details,
		Compressed:       p.Compressed,
		OriginalEntryIDs: slices.Clone(p.OriginalEntryIDs),
		CreatedAt:        s.now().UTC(),
	}
	switch {
	case p.TTL > 0:
		exp := m.CreatedAt.Add(p.TTL).Unix()
		m.ExpiresAt = &exp
	case p.ExpiresAt != nil && *p.ExpiresAt > 0:
		exp := *p.ExpiresAt
		m.ExpiresAt = &exp
	}

	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}
	if s.sync != nil {
		s.sync.Index(ctx, m)
	}
	logging.From(ctx).Debug("memory created", "id", m.ID, "type", m.Type, "scope", m.Scope)
	return m, nil
}

// Get loads an entry by key.
func (s *Service) Get(ctx context.Context, key model.Key) (*model.Memory, error) {
	return s.store.Get(ctx, key)
}

// GetByID loads an entry by id alone.
func (s *Service) GetByID(ctx context.Context, id string) (*model.Memory, error) {
	return s.store.GetByID(ctx, id)
}

// List pages through entries by scope, or by type when no scope is given.
func (s *Service) List(ctx context.Context, p store.ListParams) (*store.Page, error) {
	if p.Scope != "" {
		return s.store.ListByScope(ctx, p)
	}
	return s.store.ListByType(ctx, p)
}

// UpdateMemory applies patch and reindexes the entry. When the content
// changes and the patch sets no keywords, keywords are re-extracted and newly
// detected tags are added to the existing ones.
func (s *Service) UpdateMemory(ctx context.Context, key model.Key, patch model.Patch) (*model.Memory, error) {
	if patch.Empty() {
		return nil, goerr.Wrap(model.ErrValidation, "nothing to update", goerr.V("id", key.ID))
	}

	m, err := s.store.Modify(ctx, key, func(m *model.Memory) error {
		patch.Apply(m, s.now().UTC())
		if patch.Content != nil {
			ex := extract.Extract(m.Content, m.Metadata, s.maxKeywords)
			if patch.Keywords == nil {
				m.Keywords = ex.Keywords
			}
			if patch.Tags == nil {
				m.Tags = model.NormalizeTerms(append(m.Tags, ex.Tags...), model.MaxTags)
			}
		}
		return m.Validate()
	})
	if err != nil {
		return nil, err
	}
	if s.sync != nil {
		s.sync.Index(ctx, m)
	}
	return m, nil
}

// DeleteMemory removes an entry and schedules its index document for
// removal. Edges pointing at it are left in place and skipped on read.
func (s *Service) DeleteMemory(ctx context.Context, key model.Key) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	if s.sync != nil {
		s.sync.Delete(ctx, key.ID)
	}
	return nil
}

// Retrieve ranks entries for q.
func (s *Service) Retrieve(ctx context.Context, q retrieval.Query) ([]retrieval.Result, error) {
	return s.retriever.Retrieve(ctx, q)
}

// Context retrieves entries for q and packs them into a token budget.
func (s *Service) Context(ctx context.Context, q retrieval.Query, budget int) (*retrieval.ContextResult, error) {
	results, err := s.retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	return retrieval.Assemble(results, budget), nil
}

// AddRelationship links two entries.
func (s *Service) AddRelationship(ctx context.Context, p graph.LinkParams) (*graph.Link, error) {
	return s.graph.AddRelationship(ctx, p)
}

// RemoveRelationship unlinks two entries.
func (s *Service) RemoveRelationship(ctx context.Context, p graph.LinkParams) (bool, error) {
	return s.graph.RemoveRelationship(ctx, p)
}

// GetRelated resolves the targets of key's edges.
func (s *Service) GetRelated(ctx context.Context, key model.Key, rel model.RelationshipType, limit int) ([]graph.Related, error) {
	return s.graph.GetRelated(ctx, key, rel, limit)
}

// Traverse expands the relationship graph from start.
func (s *Service) Traverse(ctx context.Context, start model.Key, maxDepth int, rel model.RelationshipType) ([]graph.Node, error) {
	return s.graph.Traverse(ctx, start, maxDepth, rel)
}

// SuggestRelationships proposes edges for the entry at key. Nothing is
// written; commit a suggestion with AddRelationship(s.Params()).
func (s *Service) SuggestRelationships(ctx context.Context, key model.Key) ([]graph.Suggestion, error) {
	m, err := s.graph.Resolve(ctx, key.ID)
	if err != nil {
		return nil, goerr.Wrap(err, "load entry for suggestions", goerr.V("id", key.ID))
	}
	return s.graph.Suggest(ctx, m)
}

// Resolve loads an entry by id through the graph's key cache.
func (s *Service) Resolve(ctx context.Context, id string) (*model.Memory, error) {
	return s.graph.Resolve(ctx, id)
}

// ReindexResult reports what Reindex did.
type ReindexResult struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Reindex rewrites the index documents of every live entry in scope, or of
// every entry when scope is empty. It repairs writes the synchronizer dropped.
func (s *Service) Reindex(ctx context.Context, scope string) (*ReindexResult, error) {
	if s.sync == nil {
		return nil, goerr.Wrap(model.ErrUpstreamUnavailable, "no search index configured")
	}

	now := s.now()
	res := &ReindexResult{}
	err := s.store.Walk(ctx, scope, func(m *model.Memory) error {
		if m.Expired(now) {
			res.Skipped++
			return nil
		}
		if err := s.sync.IndexNow(ctx, m); err != nil {
			logging.From(ctx).Warn("reindex failed", "id", m.ID, "error", err)
			res.Failed++
			return nil
		}
		res.Indexed++
		return nil
	})
	if err != nil {
		return res, goerr.Wrap(err, "walk entries for reindex", goerr.V("scope", scope))
	}
	return res, nil
}

// Flush waits until queued index writes have been applied.
func (s *Service) Flush(ctx context.Context) error {
	if s.sync == nil {
		return nil
	}
	return s.sync.Flush(ctx)
}

// Stats counts stored entries.
func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	return s.store.Stats(ctx)
}

// Export returns every live entry in scope, or all when scope is empty.
func (s *Service) Export(ctx context.Context, scope string) ([]*model.Memory, error) {
	return s.store.ExportAll(ctx, scope)
}

// Import creates entries from an export and schedules the new ones for
// indexing. Existing entries are skipped.
func (s *Service) Import(ctx context.Context, memories []*model.Memory) (*store.ImportResult, error) {
	var created []*model.Memory
	res := &store.ImportResult{}
	for _, m := range memories {
		r, err := s.store.Import(ctx, []*model.Memory{m})
		if err != nil {
			return res, err
		}
		res.Imported += r.Imported
		res.Skipped += r.Skipped
		if r.Imported > 0 {
			created = append(created, m)
		}
	}
	if s.sync != nil {
		for _, m := range created {
			s.sync.Index(ctx, m)
		}
	}
	return res, nil
}

// NewSweeper returns a TTL sweeper over this service's store and index.
func (s *Service) NewSweeper(opts ...sweeper.Option) *sweeper.Sweeper {
	var docs sweeper.DocumentDeleter
	if s.sync != nil {
		docs = s.sync
	}
	return sweeper.New(s.store, docs, append([]sweeper.Option{sweeper.WithClock(s.now)}, opts...)...)
}
