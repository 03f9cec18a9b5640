// Package store is the canonical memory record store. It owns validation,
// key layout and pagination on top of a partitioned key-value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/kv"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// ListParams holds parameters for listing memories. Scope and Type are
// optional depending on the access path.
type ListParams struct {
	Scope  string
	Type   model.MemoryType
	Limit  int
	Cursor string
}

// Page is one page of a listing, most recent first.
type Page struct {
	Memories   []*model.Memory `json:"memories"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Store persists memory entries in a kv.Store.
type Store struct {
	kv  kv.Store
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New wraps backend.
func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{kv: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

func encode(m *model.Memory) (kv.Item, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kv.Item{}, goerr.Wrap(err, "encode memory", goerr.V("id", m.ID))
	}
	it := kv.Item{
		PK:       partitionKey(m.Type, m.Scope),
		SK:       sortKey(m.CreatedAt, m.ID),
		ScopeKey: scopeKey(m.Scope),
		TypeKey:  typeKey(m.Type),
		IDKey:    idKey(m.ID),
		Data:     data,
	}
	if m.ExpiresAt != nil {
		it.ExpiresAt = *m.ExpiresAt
	}
	return it, nil
}

func decode(it *kv.Item) (*model.Memory, error) {
	var m model.Memory
	if err := json.Unmarshal(it.Data, &m); err != nil {
		return nil, goerr.Wrap(err, "decode memory", goerr.V("pk", it.PK), goerr.V("sk", it.SK))
	}
	return &m, nil
}

// Create writes a new entry. It fails with model.ErrConflict when an entry with
// the same (type, scope, createdAt, id) exists; the existing entry is untouched.
func (s *Store) Create(ctx context.Context, m *model.Memory) error {
	if m.ID == "" {
		m.ID = model.NewID()
	}
	now := s.now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	m.Content = strings.TrimSpace(m.Content)
	m.Summary = strings.TrimSpace(m.Summary)
	m.Tags = model.NormalizeTerms(m.Tags, model.MaxTags)
	m.Keywords = model.NormalizeTerms(m.Keywords, model.MaxKeywords)

	if err := m.Validate(); err != nil {
		return err
	}

	it, err := encode(m)
	if err != nil {
		return err
	}
	if err := s.kv.ConditionalPut(ctx, it); err != nil {
		return goerr.Wrap(err, "create memory", goerr.V("id", m.ID), goerr.V("scope", m.Scope))
	}
	return nil
}

// Get loads one entry by its composite key.
func (s *Store) Get(ctx context.Context, key model.Key) (*model.Memory, error) {
	it, err := s.kv.Get(ctx, itemKey(key))
	if err != nil {
		return nil, goerr.Wrap(err, "get memory", goerr.V("id", key.ID), goerr.V("scope", key.Scope))
	}
	return decode(it)
}

// GetByID finds an entry by id alone, across scopes and types.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Memory, error) {
	out, err := s.kv.Query(ctx, kv.QueryInput{Index: kv.IndexID, Partition: idKey(id), Limit: 1})
	if err != nil {
		return nil, goerr.Wrap(err, "lookup memory by id", goerr.V("id", id))
	}
	if len(out.Items) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "memory not found", goerr.V("id", id))
	}
	return decode(&out.Items[0])
}

// Update applies patch to the mutable fields of an entry and bumps UpdatedAt.
func (s *Store) Update(ctx context.Context, key model.Key, patch model.Patch) (*model.Memory, error) {
	return s.Modify(ctx, key, func(m *model.Memory) error {
		patch.Apply(m, s.now().UTC())
		return m.Validate()
	})
}

// Modify runs fn on the stored entry and writes the result. It is atomic for
// the single entry only. The identity fields are restored after fn runs.
func (s *Store) Modify(ctx context.Context, key model.Key, fn func(*model.Memory) error) (*model.Memory, error) {
	var result *model.Memory
	_, err := s.kv.Update(ctx, itemKey(key), func(it *kv.Item) error {
		m, err := decode(it)
		if err != nil {
			return err
		}
		id, typ, scope, created := m.ID, m.Type, m.Scope, m.CreatedAt
		if err := fn(m); err != nil {
			return err
		}
		m.ID, m.Type, m.Scope, m.CreatedAt = id, typ, scope, created

		next, err := encode(m)
		if err != nil {
			return err
		}
		it.Data = next.Data
		it.ExpiresAt = next.ExpiresAt
		result = m
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "modify memory", goerr.V("id", key.ID), goerr.V("scope", key.Scope))
	}
	return result, nil
}

// RecordAccess increments the access counter and stamps LastAccessedAt.
func (s *Store) RecordAccess(ctx context.Context, key model.Key, at time.Time) error {
	_, err := s.Modify(ctx, key, func(m *model.Memory) error {
		m.AccessCount++
		at := at.UTC()
		m.LastAccessedAt = &at
		return nil
	})
	return err
}

// ListByScope pages through a scope, optionally restricted to one type.
func (s *Store) ListByScope(ctx context.Context, p ListParams) (*Page, error) {
	if err := model.ValidateScope(p.Scope); err != nil {
		return nil, err
	}
	in := kv.QueryInput{Index: kv.IndexScope, Partition: scopeKey(p.Scope), Limit: p.Limit, Cursor: p.Cursor}
	if p.Type != "" {
		if err := p.Type.Validate(); err != nil {
			return nil, err
		}
		in.Index = kv.IndexPrimary
		in.Partition = partitionKey(p.Type, p.Scope)
	}
	return s.query(ctx, in)
}

// ListByType pages through one type across scopes, optionally restricted to one scope.
func (s *Store) ListByType(ctx context.Context, p ListParams) (*Page, error) {
	if err := p.Type.Validate(); err != nil {
		return nil, err
	}
	in := kv.QueryInput{Index: kv.IndexType, Partition: typeKey(p.Type), Limit: p.Limit, Cursor: p.Cursor}
	if p.Scope != "" {
		if err := model.ValidateScope(p.Scope); err != nil {
			return nil, err
		}
		in.Index = kv.IndexPrimary
		in.Partition = partitionKey(p.Type, p.Scope)
	}
	return s.query(ctx, in)
}

func (s *Store) query(ctx context.Context, in kv.QueryInput) (*Page, error) {
	out, err := s.kv.Query(ctx, in)
	if err != nil {
		return nil, goerr.Wrap(err, "list memories", goerr.V("index", in.Index.String()), goerr.V("partition", in.Partition))
	}
	page := &Page{Memories: make([]*model.Memory, 0, len(out.Items)), NextCursor: out.NextCursor}
	for i := range out.Items {
		m, err := decode(&out.Items[i])
		if err != nil {
			return nil, err
		}
		page.Memories = append(page.Memories, m)
	}
	return page, nil
}

// Delete removes an entry. Deleting an absent entry succeeds.
func (s *Store) Delete(ctx context.Context, key model.Key) error {
	if err := s.kv.Delete(ctx, itemKey(key)); err != nil {
		return goerr.Wrap(err, "delete memory", goerr.V("id", key.ID), goerr.V("scope", key.Scope))
	}
	return nil
}

// SweepExpired deletes up to batch entries whose expiry has passed and returns
// the keys removed.
func (s *Store) SweepExpired(ctx context.Context, now time.Time, batch int) ([]model.Key, error) {
	items, err := s.kv.ScanExpired(ctx, now, batch)
	if err != nil {
		return nil, goerr.Wrap(err, "scan expired memories")
	}

	keys := make([]model.Key, 0, len(items))
	for i := range items {
		m, err := decode(&items[i])
		if err != nil {
			return keys, err
		}
		if err := s.kv.Delete(ctx, items[i].Key()); err != nil {
			return keys, goerr.Wrap(err, "delete expired memory", goerr.V("id", m.ID))
		}
		keys = append(keys, m.Key())
	}
	return keys, nil
}

// IsNotFound reports whether err means the entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
