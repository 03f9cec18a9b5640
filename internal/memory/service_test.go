package memory_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/extract"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/graph"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/index"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/kv"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/memory"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/retrieval"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/scoring"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/store"
)

type fixture struct {
	svc *memory.Service
	fts *index.FTS
}

func newService(t *testing.T, opts ...memory.Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	backend, err := kv.NewSQLite(filepath.Join(dir, "memory.db"))
	gt.NoError(t, err)
	fts, err := index.NewFTS(filepath.Join(dir, "index.db"))
	gt.NoError(t, err)

	svc, err := memory.New(store.New(backend), index.NewSynchronizer(fts), scoring.New(scoring.DefaultWeights()), opts...)
	gt.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return &fixture{svc: svc, fts: fts}
}

func (f *fixture) flush(t *testing.T) {
	t.Helper()
	gt.NoError(t, f.svc.Flush(context.Background()))
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newService(t)

	e1, err := f.svc.CreateMemory(ctx, memory.CreateParams{
		Type:    model.TypeEpisodic,
		Scope:   "user:42",
		Content: "User asked about RFP rfp_abc123 pricing",
	})
	gt.NoError(t, err)
	gt.Equal(t, extract.Keywords(e1.Content, 0), []string{"pricing", "rfp_abc123"})
	gt.Equal(t, e1.Keywords, []string{"pricing", "rfp_abc123"})

	e2, err := f.svc.CreateMemory(ctx, memory.CreateParams{
		Type:    model.TypeSemantic,
		Scope:   "rfp:abc123",
		Content: "Pricing sheet v2 shared with procurement",
	})
	gt.NoError(t, err)
	f.flush(t)

	results, err := f.svc.Retrieve(ctx, retrieval.Query{Scope: "user:42", Text: "pricing question"})
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
	gt.Equal(t, results[0].Memory.ID, e1.ID)
	gt.True(t, results[0].Score > 0)

	_, err = f.svc.AddRelationship(ctx, graph.LinkParams{From: e1.Key(), To: e2.Key(), Type: model.RelRelated})
	gt.NoError(t, err)

	related, err := f.svc.GetRelated(ctx, e1.Key(), "", 0)
	gt.NoError(t, err)
	gt.A(t, related).Length(1)
	gt.Equal(t, related[0].Memory.ID, e2.ID)
}

func TestCreateMemoryExtraction(t *testing.T) {
	ctx := context.Background()
	f := newService(t)

	m, err := f.svc.CreateMemory(ctx, memory.CreateParams{
		Type:     model.TypeEpisodic,
		Scope:    "user:1",
		Content:  "The proposal deadline is Friday. Contact ops@example.com",
		Tags:     []string{"Urgent"},
		Keywords: []string{"Friday"},
		Metadata: map[string]string{"rfp_id": "rfp_777"},
	})
	gt.NoError(t, err)
	gt.Equal(t, m.Tags[0], "urgent")
	gt.Equal(t, m.Keywords[0], "friday")

	tags := map[string]bool{}
	for _, tag := range m.Tags {
		tags[tag] = true
	}
	gt.True(t, tags["deadline"])
	gt.True(t, tags["rfp_related"])

	kw := map[string]bool{}
	for _, k := range m.Keywords {
		kw[k] = true
	}
	gt.True(t, kw["ops@example.com"])
	gt.True(t, kw["proposal"])

	_, err = f.svc.CreateMemory(ctx, memory.CreateParams{Type: model.TypeEpisodic, Scope: "user:1", Content: "  "})
	gt.True(t, errors.Is(err, model.ErrValidation))
	_, err = f.svc.CreateMemory(ctx, memory.CreateParams{Type: "NOPE", Scope: "user:1", Content: "x"})
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestCreateMemoryCopiesMetadata(t *testing.T) {
	ctx := context.Background()
	f := newService(t)

	md := map[string]string{"channel": "C00"}
	var first *model.Memory
	for i := 0; i < 50; i++ {
		m, err := f.svc.CreateMemory(ctx, memory.CreateParams{
			Type: model.TypeEpisodic, Scope: "team:1", Content: "standup notes", Metadata: md,
		})
		gt.NoError(t, err)
		if first == nil {
			first = m
		}
		md["channel"] = "C" + string(rune('a'+i%26))
		md["thread_ts"] = m.ID
	}
	f.flush(t)

	gt.Equal(t, first.Metadata, map[string]string{"channel": "C00"})
	got, err := f.svc.Get(ctx, first.Key())
	gt.NoError(t, err)
	gt.Equal(t, got.Metadata, map[string]string{"channel": "C00"})

	n, err := f.fts.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 50)
}

func TestImportRejectsNilEntry(t *testing.T) {
	ctx := context.Background()
	f := newService(t)

	_, err := f.svc.Import(ctx, []*model.Memory{nil})
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestCreateMemoryTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newService(t, memory.WithClock(func() time.Time { return now }))

	m, err := f.svc.CreateMemory(ctx, memory.CreateParams{
		Type: model.TypeEpisodic, Scope: "user:1", Content: "short lived", TTL: time.Hour,
	})
	gt.NoError(t, err)
	gt.V(t, m.ExpiresAt).NotNil()
	gt.Equal(t, *m.ExpiresAt, now.Add(time.Hour).Unix())

	later := now.Add(2 * time.Hour)
	results, err := f.svc.Retrieve(ctx, retrieval.Query{Scope: "user:1", Now: later})
	gt.NoError(t, err)
	gt.A(t, results).Length(0)
}

func TestUpdateMemory(t *testing.T) {
	ctx := context.Background()
	f := newService(t)

	m, err := f.svc.CreateMemory(ctx, memory.CreateParams{
		Type: model.TypeSemantic, Scope: "rfp:9", Content: "Budget review scheduled",
	})
	gt.NoError(t, err)
	f.flush(t)

	content := "Contract signed after legal review"
	updated, err := f.svc.UpdateMemory(ctx, m.Key(), model.Patch{Content: &content})
	gt.NoError(t, err)
	gt.Equal(t, updated.Content, content)
	gt.Equal(t, updated.ID, m.ID)
	gt.True(t, !updated.UpdatedAt.Before(m.UpdatedAt))

	kw := map[string]bool{}
	for _, k := range updated.Keywords {
		kw[k] = true
	}
	gt.True(t, kw["contract"])
	gt.False(t, kw["budget"])

	tags := map[string]bool{}
	for _, tag := range updated.Tags {
		tags[tag] = true
	}
	gt.True(t, tags["contract"])
	f.flush(t)

	hits, err := f.fts.Search(ctx, index.SearchQuery{Text: "signed"})
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	hits, err = f.fts.Search(ctx, index.SearchQuery{Text: "budget"})
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)

	_, err = f.svc.UpdateMemory(ctx, m.Key(), model.Patch{})
	gt.True(t, errors.Is(err, model.ErrValidation))

	missing := m.Key()
	missing.ID = "missing"
	_, err = f.svc.UpdateMemory(ctx, missing, model.Patch{Content: &content})
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestDeleteMemory(t *testing.T) {
	ctx := context.Background()
	f := newService(t)

	m, err := f.svc.CreateMemory(ctx, memory.CreateParams{Type: model.TypeEpisodic, Scope: "user:1", Content: "Quarterly pricing"})
	gt.NoError(t, err)
	f.flush(t)

	gt.NoError(t, f.svc.DeleteMemory(ctx, m.Key()))
	gt.NoError(t, f.svc.DeleteMemory(ctx, m.Key()))
	f.flush(t)

	_, err = f.svc.Get(ctx, m.Key())
	gt.True(t, errors.Is(err, model.ErrNotFound))
	n, err := f.fts.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 0)
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := kv.NewSQLite(filepath.Join(dir, "memory.db"))
	gt.NoError(t, err)
	st := store.New(backend)

	// Entries written straight to the store never reach the index.
	past := time.Now().Add(-time.Hour).Unix()
	for _, m := range []*model.Memory{
		{Type: model.TypeEpisodic, Scope: "user:1", Content: "Pricing call notes"},
		{Type: model.TypeSemantic, Scope: "user:1", Content: "Pricing policy"},
		{Type: model.TypeEpisodic, Scope: "user:2", Content: "Pricing elsewhere"},
		{Type: model.TypeEpisodic, Scope: "user:1", Content: "Expired pricing", ExpiresAt: &past},
	} {
		gt.NoError(t, st.Create(ctx, m))
	}

	fts, err := index.NewFTS(filepath.Join(dir, "index.db"))
	gt.NoError(t, err)
	svc, err := memory.New(st, index.NewSynchronizer(fts), scoring.New(scoring.DefaultWeights()))
	gt.NoError(t, err)
	defer svc.Close()

	res, err := svc.Reindex(ctx, "user:1")
	gt.NoError(t, err)
	gt.Equal(t, res.Indexed, 2)
	gt.Equal(t, res.Skipped, 1)
	gt.Equal(t, res.Failed, 0)

	res, err = svc.Reindex(ctx, "")
	gt.NoError(t, err)
	gt.Equal(t, res.Indexed, 3)

	n, err := fts.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 3)
}

func TestReindexWithoutIndex(t *testing.T) {
	backend, err := kv.NewSQLite(filepath.Join(t.TempDir(), "memory.db"))
	gt.NoError(t, err)
	svc, err := memory.New(store.New(backend), nil, scoring.New(scoring.DefaultWeights()))
	gt.NoError(t, err)
	defer svc.Close()

	_, err = svc.Reindex(context.Background(), "")
	gt.True(t, errors.Is(err, model.ErrUpstreamUnavailable))

	m, err := svc.CreateMemory(context.Background(), memory.CreateParams{Type: model.TypeEpisodic, Scope: "user:1", Content: "pricing notes"})
	gt.NoError(t, err)
	results, err := svc.Retrieve(context.Background(), retrieval.Query{Scope: "user:1", Text: "pricing"})
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
	gt.Equal(t, results[0].Memory.ID, m.ID)
}

func TestTraverseAndSuggest(t *testing.T) {
	ctx := context.Background()
	f := newService(t)

	a, err := f.svc.CreateMemory(ctx, memory.CreateParams{Type: model.TypeEpisodic, Scope: "user:1", Content: "Kickoff meeting for the pricing review"})
	gt.NoError(t, err)
	b, err := f.svc.CreateMemory(ctx, memory.CreateParams{Type: model.TypeEpisodic, Scope: "user:1", Content: "Pricing review follow up"})
	gt.NoError(t, err)
	f.flush(t)

	suggestions, err := f.svc.SuggestRelationships(ctx, b.Key())
	gt.NoError(t, err)
	gt.A(t, suggestions).Length(1)
	gt.Equal(t, suggestions[0].Type, model.RelTemporalSequence)

	_, err = f.svc.AddRelationship(ctx, suggestions[0].Params())
	gt.NoError(t, err)

	nodes, err := f.svc.Traverse(ctx, a.Key(), 3, "")
	gt.NoError(t, err)
	gt.A(t, nodes).Length(2)
	gt.Equal(t, nodes[1].Memory.ID, b.ID)

	removed, err := f.svc.RemoveRelationship(ctx, graph.LinkParams{From: a.Key(), To: b.Key()})
	gt.NoError(t, err)
	gt.True(t, removed)
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	f := newService(t)
	for _, c := range []string{"Pricing tiers agreed", "Pricing discount approved", "Lunch order"} {
		_, err := f.svc.CreateMemory(ctx, memory.CreateParams{Type: model.TypeEpisodic, Scope: "user:5", Content: c})
		gt.NoError(t, err)
	}
	f.flush(t)

	res, err := f.svc.Context(ctx, retrieval.Query{Scope: "user:5", Text: "pricing"}, 0)
	gt.NoError(t, err)
	gt.Equal(t, res.Budget, retrieval.DefaultBudget)
	gt.A(t, res.Memories).Length(3)
	gt.True(t, res.Used > 0)
}

func TestStatsExportImport(t *testing.T) {
	ctx := context.Background()
	src := newService(t)
	for i, scope := range []string{"user:1", "user:1", "user:2"} {
		_, err := src.svc.CreateMemory(ctx, memory.CreateParams{
			Type: model.TypeEpisodic, Scope: scope, Content: "note about pricing " + string(rune('a'+i)),
		})
		gt.NoError(t, err)
	}

	stats, err := src.svc.Stats(ctx)
	gt.NoError(t, err)
	gt.Equal(t, stats.TotalMemories, 3)
	gt.Equal(t, stats.Scopes[0].Scope, "user:1")

	exported, err := src.svc.Export(ctx, "")
	gt.NoError(t, err)
	gt.A(t, exported).Length(3)

	dst := newService(t)
	res, err := dst.svc.Import(ctx, exported)
	gt.NoError(t, err)
	gt.Equal(t, res.Imported, 3)
	gt.Equal(t, res.Skipped, 0)

	res, err = dst.svc.Import(ctx, exported)
	gt.NoError(t, err)
	gt.Equal(t, res.Imported, 0)
	gt.Equal(t, res.Skipped, 3)

	dst.flush(t)
	n, err := dst.fts.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 3)
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := now
	f := newService(t, memory.WithClock(func() time.Time { return clock }))

	_, err := f.svc.CreateMemory(ctx, memory.CreateParams{Type: model.TypeEpisodic, Scope: "user:1", Content: "gone soon", TTL: time.Minute})
	gt.NoError(t, err)
	kept, err := f.svc.CreateMemory(ctx, memory.CreateParams{Type: model.TypeEpisodic, Scope: "user:1", Content: "kept"})
	gt.NoError(t, err)
	f.flush(t)

	clock = now.Add(time.Hour)
	n, err := f.svc.NewSweeper().RunOnce(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 1)
	f.flush(t)

	count, err := f.fts.Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, count, 1)
	_, err = f.svc.Get(ctx, kept.Key())
	gt.NoError(t, err)
}
