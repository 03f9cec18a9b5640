// Package index mirrors memory entries into a full-text index. The index is a
// derived view: it may lag the store or miss entries entirely.
package index

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// Document is the indexed form of an entry.
type Document struct {
	ID         string
	Scope      string
	Type       model.MemoryType
	CreatedAt  time.Time
	Content    string
	Summary    string
	Keywords   []string
	Tags       []string
	Provenance map[string]string
}

// FromMemory builds the document for m. Provenance comes from the metadata map.
// The document shares no maps or slices with m.
func FromMemory(m *model.Memory) Document {
	return Document{
		ID:         m.ID,
		Scope:      m.Scope,
		Type:       m.Type,
		CreatedAt:  m.CreatedAt,
		Content:    m.Content,
		Summary:    m.Summary,
		Keywords:   slices.Clone(m.Keywords),
		Tags:       slices.Clone(m.Tags),
		Provenance: maps.Clone(m.Metadata),
	}
}

// provenanceText flattens provenance into "key:value" terms in key order.
func provenanceText(p map[string]string) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+p[k])
	}
	return strings.Join(parts, " ")
}

// SearchQuery is a full-text query. Scope and Types narrow the result when set.
type SearchQuery struct {
	Text     string
	Keywords []string
	Scope    string
	Types    []model.MemoryType
	Limit    int
}

// Hit is one ranked index document. Only the key fields are carried; callers
// load the entry from the store and rescore it.
type Hit struct {
	ID        string
	Scope     string
	Type      model.MemoryType
	CreatedAt time.Time
	Score     float64
}

// Key returns the store key the hit was indexed under.
func (h Hit) Key() model.Key {
	return model.Key{Type: h.Type, Scope: h.Scope, CreatedAt: h.CreatedAt, ID: h.ID}
}

// Backend is the search index boundary.
type Backend interface {
	// PutDocument inserts or replaces the document with doc.ID.
	PutDocument(ctx context.Context, doc Document) error
	// DeleteDocument removes a document. It returns model.ErrNotFound when absent.
	DeleteDocument(ctx context.Context, id string) error
	Search(ctx context.Context, q SearchQuery) ([]Hit, error)
	Close() error
}

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 200
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}
