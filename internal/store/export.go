package store

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// ExportAll returns every entry, optionally filtered by scope. Expired entries
// are left out.
func (s *Store) ExportAll(ctx context.Context, scope string) ([]*model.Memory, error) {
	now := s.now()
	var memories []*model.Memory
	err := s.Walk(ctx, scope, func(m *model.Memory) error {
		if !m.Expired(now) {
			memories = append(memories, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return memories, nil
}

// ImportResult reports what Import did.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Import creates entries from an export. Entries whose key already exists are
// skipped, never overwritten.
func (s *Store) Import(ctx context.Context, memories []*model.Memory) (*ImportResult, error) {
	res := &ImportResult{}
	for i, m := range memories {
		if m == nil {
			return res, goerr.Wrap(model.ErrValidation, "import entry is null", goerr.V("index", i))
		}
		err := s.Create(ctx, m)
		if errors.Is(err, model.ErrConflict) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, goerr.Wrap(err, "import memory", goerr.V("id", m.ID), goerr.V("imported", res.Imported))
		}
		res.Imported++
	}
	return res, nil
}
