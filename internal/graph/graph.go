// Package graph manages typed relationships between memory entries. Edges are
// stored on the source entry, so a bidirectional link is two independent
// writes and may be left one-directional by a failure between them.
package graph

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/logging"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/retrieval"
)

const (
	DefaultFanout       = 10
	DefaultRelatedLimit = 10
	DefaultMaxDepth     = 2
	MaxDepth            = 20
	DefaultCacheSize    = 10000
)

// Store is the subset of the memory store the graph reads and writes.
type Store interface {
	Get(ctx context.Context, key model.Key) (*model.Memory, error)
	GetByID(ctx context.Context, id string) (*model.Memory, error)
	Modify(ctx context.Context, key model.Key, fn func(*model.Memory) error) (*model.Memory, error)
}

// Finder looks up entries similar to a new one. The retrieval orchestrator
// satisfies it.
type Finder interface {
	Retrieve(ctx context.Context, q retrieval.Query) ([]retrieval.Result, error)
}

// Manager is safe for concurrent use, but concurrent edge writes to the same
// entry are last-write-wins on that entry's edge map.
type Manager struct {
	store      Store
	finder     Finder
	fanout     int
	similarity Similarity
	threshold  float64
	now        func() time.Time

	// keys caches id -> model.Key for cross-scope resolution.
	keys *ristretto.Cache
}

// Option configures a Manager.
type Option func(*config)

type config struct {
	fanout     int
	cacheSize  int64
	similarity Similarity
	threshold  float64
	now        func() time.Time
}

// WithFanout caps the edges examined per node during traversal.
func WithFanout(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.fanout = n
		}
	}
}

// WithCacheSize sets how many id -> key mappings are cached. Zero disables
// the cache.
func WithCacheSize(n int64) Option {
	return func(c *config) {
		if n >= 0 {
			c.cacheSize = n
		}
	}
}

// WithSimilarity replaces the content similarity used by Suggest, together
// with the minimum value that counts as related.
func WithSimilarity(fn Similarity, threshold float64) Option {
	return func(c *config) {
		c.similarity = fn
		c.threshold = threshold
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// New creates a Manager. finder may be nil when Suggest is not used.
func New(st Store, finder Finder, opts ...Option) (*Manager, error) {
	cfg := config{
		fanout:     DefaultFanout,
		cacheSize:  DefaultCacheSize,
		similarity: Jaccard,
		threshold:  DefaultSimilarityThreshold,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{
		store:      st,
		finder:     finder,
		fanout:     cfg.fanout,
		similarity: cfg.similarity,
		threshold:  cfg.threshold,
		now:        cfg.now,
	}
	if cfg.cacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: cfg.cacheSize * 10,
			MaxCost:     cfg.cacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "create key cache", goerr.V("size", cfg.cacheSize))
		}
		m.keys = cache
	}
	return m, nil
}

// Close releases the key cache.
func (g *Manager) Close() {
	if g.keys != nil {
		g.keys.Close()
	}
}

func (g *Manager) remember(m *model.Memory) {
	if g.keys != nil {
		g.keys.Set(m.ID, m.Key(), 1)
	}
}

func (g *Manager) forget(id string) {
	if g.keys != nil {
		g.keys.Del(id)
	}
}

// Resolve loads an entry by id, using the cached key when one is known.
func (g *Manager) Resolve(ctx context.Context, id string) (*model.Memory, error) {
	if g.keys != nil {
		if v, ok := g.keys.Get(id); ok {
			if key, ok := v.(model.Key); ok {
				m, err := g.store.Get(ctx, key)
				if err == nil {
					return m, nil
				}
				if !errors.Is(err, model.ErrNotFound) {
					return nil, err
				}
				g.forget(id)
			}
		}
	}

	m, err := g.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	g.remember(m)
	return m, nil
}

// load reads an entry by key and falls back to an id lookup when the key is
// stale.
func (g *Manager) load(ctx context.Context, key model.Key) (*model.Memory, error) {
	m, err := g.store.Get(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return g.Resolve(ctx, key.ID)
	}
	if err != nil {
		return nil, err
	}
	g.remember(m)
	return m, nil
}

// LinkParams identifies the two endpoints of a relationship. An empty Type
// means model.RelRelated.
type LinkParams struct {
	From   model.Key
	To     model.Key
	Type   model.RelationshipType
	OneWay bool
}

// Link describes a written relationship.
type Link struct {
	FromID    string                 `json:"from_id"`
	ToID      string                 `json:"to_id"`
	Type      model.RelationshipType `json:"relationship_type"`
	Reverse   model.RelationshipType `json:"reverse_type,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func edgeTo(target *model.Memory, rel model.RelationshipType, at time.Time) model.Edge {
	return model.Edge{
		TargetID:        target.ID,
		TargetType:      target.Type,
		TargetScope:     target.Scope,
		TargetCreatedAt: target.CreatedAt,
		Type:            rel,
		CreatedAt:       at,
	}
}

func (p LinkParams) validate() (model.RelationshipType, error) {
	rel := p.Type.OrDefault()
	if err := rel.Validate(); err != nil {
		return "", err
	}
	if p.From.ID == "" || p.To.ID == "" {
		return "", goerr.Wrap(model.ErrValidation, "both endpoints are required")
	}
	if p.From.ID == p.To.ID {
		return "", goerr.Wrap(model.ErrValidation, "an entry cannot relate to itself", goerr.V("id", p.From.ID))
	}
	return rel, nil
}

// AddRelationship writes an edge on From and, unless OneWay, the reverse-typed
// edge on To. Both entries must exist. The two writes are not atomic.
func (g *Manager) AddRelationship(ctx context.Context, p LinkParams) (*Link, error) {
	rel, err := p.validate()
	if err != nil {
		return nil, err
	}

	from, err := g.load(ctx, p.From)
	if err != nil {
		return nil, goerr.Wrap(err, "load relationship source", goerr.V("id", p.From.ID))
	}
	to, err := g.load(ctx, p.To)
	if err != nil {
		return nil, goerr.Wrap(err, "load relationship target", goerr.V("id", p.To.ID))
	}

	now := g.now().UTC()
	link := &Link{FromID: from.ID, ToID: to.ID, Type: rel, CreatedAt: now}

	_, err = g.store.Modify(ctx, from.Key(), func(m *model.Memory) error {
		m.SetEdge(edgeTo(to, rel, now))
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "write forward edge", goerr.V("from", from.ID), goerr.V("to", to.ID))
	}
	if p.OneWay {
		return link, nil
	}

	link.Reverse = rel.Reverse()
	_, err = g.store.Modify(ctx, to.Key(), func(m *model.Memory) error {
		m.SetEdge(edgeTo(from, link.Reverse, now))
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "write reverse edge; forward edge was kept",
			goerr.V("from", from.ID), goerr.V("to", to.ID))
	}
	return link, nil
}

// RemoveRelationship drops the edge From->To and, unless OneWay, To->From.
// It reports whether any edge was removed. A missing To only skips the
// reverse side.
func (g *Manager) RemoveRelationship(ctx context.Context, p LinkParams) (bool, error) {
	if _, err := p.validate(); err != nil {
		return false, err
	}

	from, err := g.load(ctx, p.From)
	if err != nil {
		return false, goerr.Wrap(err, "load relationship source", goerr.V("id", p.From.ID))
	}

	removed := false
	_, err = g.store.Modify(ctx, from.Key(), func(m *model.Memory) error {
		removed = m.RemoveEdge(p.To.ID) || removed
		return nil
	})
	if err != nil {
		return false, goerr.Wrap(err, "remove forward edge", goerr.V("from", from.ID))
	}
	if p.OneWay {
		return removed, nil
	}

	to, err := g.load(ctx, p.To)
	if errors.Is(err, model.ErrNotFound) {
		return removed, nil
	}
	if err != nil {
		return removed, goerr.Wrap(err, "load relationship target", goerr.V("id", p.To.ID))
	}
	_, err = g.store.Modify(ctx, to.Key(), func(m *model.Memory) error {
		removed = m.RemoveEdge(from.ID) || removed
		return nil
	})
	if err != nil {
		return removed, goerr.Wrap(err, "remove reverse edge", goerr.V("to", to.ID))
	}
	return removed, nil
}

// Related is a resolved edge target.
type Related struct {
	Memory *model.Memory `json:"memory"`
	Edge   model.Edge    `json:"edge"`
}

// GetRelated resolves up to limit targets of key's edges, optionally of one
// type. Unresolvable and expired targets are skipped.
func (g *Manager) GetRelated(ctx context.Context, key model.Key, rel model.RelationshipType, limit int) ([]Related, error) {
	if rel != "" {
		if err := rel.Validate(); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	src, err := g.load(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "load entry", goerr.V("id", key.ID))
	}

	now := g.now()
	var out []Related
	for _, e := range src.Edges() {
		if rel != "" && e.Type != rel {
			continue
		}
		target, ok := g.target(ctx, src, e, now)
		if !ok {
			continue
		}
		out = append(out, Related{Memory: target, Edge: e})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// target resolves e, logging and skipping what cannot be loaded.
func (g *Manager) target(ctx context.Context, src *model.Memory, e model.Edge, now time.Time) (*model.Memory, bool) {
	m, err := g.load(ctx, e.TargetKey())
	if err != nil {
		logging.From(ctx).Warn("skipping unresolvable relationship target",
			"from", src.ID, "to", e.TargetID, "relationship", e.Type, "error", err)
		return nil, false
	}
	if m.Expired(now) {
		return nil, false
	}
	return m, true
}
