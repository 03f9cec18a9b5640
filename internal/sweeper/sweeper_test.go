package sweeper_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/kv"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/store"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/sweeper"
)

type recordingDocs struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingDocs) Delete(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	backend, err := kv.NewSQLite(filepath.Join(t.TempDir(), "memory.db"))
	gt.NoError(t, err)
	st := store.New(backend)
	t.Cleanup(func() { st.Close() })
	return st
}

func create(t *testing.T, st *store.Store, content string, expiresAt *int64) *model.Memory {
	t.Helper()
	m := &model.Memory{Type: model.TypeEpisodic, Scope: "user:1", Content: content, ExpiresAt: expiresAt}
	gt.NoError(t, st.Create(context.Background(), m))
	return m
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now()
	past := now.Add(-time.Hour).Unix()
	future := now.Add(time.Hour).Unix()

	var expired []string
	for i := 0; i < 5; i++ {
		expired = append(expired, create(t, st, "stale note", &past).ID)
	}
	live := create(t, st, "fresh note", &future)
	forever := create(t, st, "kept note", nil)

	docs := &recordingDocs{}
	sw := sweeper.New(st, docs, sweeper.WithBatch(2), sweeper.WithClock(func() time.Time { return now }))

	n, err := sw.RunOnce(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 5)
	gt.A(t, docs.ids).Length(5)

	seen := map[string]bool{}
	for _, id := range docs.ids {
		seen[id] = true
	}
	for _, id := range expired {
		gt.True(t, seen[id])
		_, err := st.GetByID(ctx, id)
		gt.True(t, errors.Is(err, model.ErrNotFound))
	}

	_, err = st.Get(ctx, live.Key())
	gt.NoError(t, err)
	_, err = st.Get(ctx, forever.Key())
	gt.NoError(t, err)

	n, err = sw.RunOnce(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 0)
}

func TestRunOnceWithoutIndex(t *testing.T) {
	st := newTestStore(t)
	past := time.Now().Add(-time.Minute).Unix()
	create(t, st, "stale note", &past)

	n, err := sweeper.New(st, nil).RunOnce(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, n, 1)
}

type failingExpirer struct{}

func (failingExpirer) SweepExpired(context.Context, time.Time, int) ([]model.Key, error) {
	return []model.Key{{ID: "partial"}}, model.ErrUpstreamUnavailable
}

func TestRunOnceError(t *testing.T) {
	docs := &recordingDocs{}
	n, err := sweeper.New(failingExpirer{}, docs).RunOnce(context.Background())
	gt.True(t, errors.Is(err, model.ErrUpstreamUnavailable))
	gt.Equal(t, n, 1)
	gt.Equal(t, docs.ids, []string{"partial"})
}

func TestValidateSchedule(t *testing.T) {
	gt.NoError(t, sweeper.ValidateSchedule("@every 1h"))
	gt.NoError(t, sweeper.ValidateSchedule("*/5 * * * *"))
	gt.True(t, errors.Is(sweeper.ValidateSchedule("every hour"), model.ErrValidation))
}

func TestStartStop(t *testing.T) {
	st := newTestStore(t)
	past := time.Now().Add(-time.Minute).Unix()
	m := create(t, st, "stale note", &past)

	sw := sweeper.New(st, nil, sweeper.WithSchedule("@every 1s"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gt.NoError(t, sw.Start(ctx))
	gt.NoError(t, sw.Start(ctx))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := st.GetByID(ctx, m.ID); errors.Is(err, model.ErrNotFound) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	sw.Stop()
	sw.Stop()

	_, err := st.GetByID(ctx, m.ID)
	gt.True(t, errors.Is(err, model.ErrNotFound))

	gt.Error(t, sweeper.New(st, nil, sweeper.WithSchedule("bogus")).Start(ctx))
}

func TestRestartAfterStop(t *testing.T) {
	st := newTestStore(t)
	past := time.Now().Add(-time.Minute).Unix()
	sw := sweeper.New(st, nil, sweeper.WithSchedule("@every 1s"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < 3; i++ {
		gt.NoError(t, sw.Start(ctx))
		sw.Stop()
	}

	m := create(t, st, "stale note", &past)
	gt.NoError(t, sw.Start(ctx))
	defer sw.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := st.GetByID(ctx, m.ID); errors.Is(err, model.ErrNotFound) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	_, err := st.GetByID(ctx, m.ID)
	gt.True(t, errors.Is(err, model.ErrNotFound))
}
