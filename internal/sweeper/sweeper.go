// Package sweeper physically deletes expired entries on a schedule. Retrieval
// already hides them; sweeping reclaims the space and drops their index
// documents.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/logging"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

const (
	DefaultSchedule = "@every 1h"
	DefaultBatch    = 100

	// maxRounds bounds one run so a backlog cannot hold the job forever.
	maxRounds = 1000
)

// Expirer deletes expired entries in batches.
type Expirer interface {
	SweepExpired(ctx context.Context, now time.Time, batch int) ([]model.Key, error)
}

// DocumentDeleter drops index documents. Failures are its own concern.
type DocumentDeleter interface {
	Delete(ctx context.Context, id string)
}

// Sweeper runs expiry sweeps on a cron schedule.
type Sweeper struct {
	store    Expirer
	docs     DocumentDeleter
	schedule string
	batch    int
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
	done chan struct{}
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithSchedule sets the cron spec, e.g. "@every 30m" or "0 * * * *".
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithBatch sets how many entries are deleted per round.
func WithBatch(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batch = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// New creates a Sweeper. docs may be nil when no index is configured.
func New(store Expirer, docs DocumentDeleter, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		docs:     docs,
		schedule: DefaultSchedule,
		batch:    DefaultBatch,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateSchedule checks a cron spec.
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return goerr.Wrap(model.ErrValidation, "invalid sweep schedule", goerr.V("schedule", spec), goerr.V("cause", err.Error()))
	}
	return nil
}

// RunOnce sweeps until a round comes back short of a full batch and returns
// how many entries were deleted.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	total := 0
	for round := 0; round < maxRounds; round++ {
		keys, err := s.store.SweepExpired(ctx, now, s.batch)
		total += len(keys)
		if s.docs != nil {
			for _, k := range keys {
				s.docs.Delete(ctx, k.ID)
			}
		}
		if err != nil {
			return total, goerr.Wrap(err, "sweep expired entries", goerr.V("deleted", total))
		}
		if len(keys) < s.batch {
			break
		}
	}
	if total > 0 {
		logging.From(ctx).Info("swept expired entries", "count", total)
	}
	return total, nil
}

// Start schedules RunOnce. Overlapping runs are skipped. The job stops when
// ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return err
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			logging.From(ctx).Error("scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return goerr.Wrap(err, "schedule sweep", goerr.V("schedule", s.schedule))
	}
	c.Start()
	s.cron = c
	done := make(chan struct{})
	s.done = done

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-done:
		}
	}()
	return nil
}

// Stop cancels the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c, done := s.cron, s.done
	s.cron, s.done = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	close(done)
	<-c.Stop().Done()
}
