package store

import (
	"context"
	"sort"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/kv"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// Stats holds entry counts.
type Stats struct {
	TotalMemories   int                      `json:"total_memories"`
	ExpiredMemories int                      `json:"expired_memories"`
	TotalEdges      int                      `json:"total_edges"`
	Types           map[model.MemoryType]int `json:"types"`
	Scopes          []ScopeStats             `json:"scopes"`
}

// ScopeStats holds per-scope counts.
type ScopeStats struct {
	Scope string `json:"scope"`
	Count int    `json:"count"`
}

// Stats walks every type partition and counts entries. Expired entries that
// have not been swept yet are counted separately.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()
	st := &Stats{Types: map[model.MemoryType]int{}}
	scopes := map[string]int{}

	for _, t := range model.MemoryTypes {
		err := s.walk(ctx, kv.QueryInput{Index: kv.IndexType, Partition: typeKey(t)}, func(m *model.Memory) error {
			if m.Expired(now) {
				st.ExpiredMemories++
				return nil
			}
			st.TotalMemories++
			st.TotalEdges += len(m.Relations)
			st.Types[t]++
			scopes[m.Scope]++
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for scope, n := range scopes {
		st.Scopes = append(st.Scopes, ScopeStats{Scope: scope, Count: n})
	}
	sort.Slice(st.Scopes, func(i, j int) bool {
		if st.Scopes[i].Count != st.Scopes[j].Count {
			return st.Scopes[i].Count > st.Scopes[j].Count
		}
		return st.Scopes[i].Scope < st.Scopes[j].Scope
	})
	return st, nil
}

// walk pages through a query until the cursor runs out.
func (s *Store) walk(ctx context.Context, in kv.QueryInput, fn func(*model.Memory) error) error {
	in.Limit = kv.MaxQueryLimit
	for {
		page, err := s.query(ctx, in)
		if err != nil {
			return err
		}
		for _, m := range page.Memories {
			if err := fn(m); err != nil {
				return err
			}
		}
		if page.NextCursor == "" {
			return nil
		}
		in.Cursor = page.NextCursor
	}
}

// Walk visits every entry in scope, or every entry when scope is empty.
// Order is most recent first within each type.
func (s *Store) Walk(ctx context.Context, scope string, fn func(*model.Memory) error) error {
	if scope != "" {
		if err := model.ValidateScope(scope); err != nil {
			return err
		}
		return s.walk(ctx, kv.QueryInput{Index: kv.IndexScope, Partition: scopeKey(scope)}, fn)
	}
	for _, t := range model.MemoryTypes {
		if err := s.walk(ctx, kv.QueryInput{Index: kv.IndexType, Partition: typeKey(t)}, fn); err != nil {
			return err
		}
	}
	return nil
}
