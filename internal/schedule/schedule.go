// Package schedule fires discovery runs at configured hours. The last
// successful run is persisted so a restart inside a slot does not run it
// again; an optional Lock extends that guarantee across processes.
package schedule

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SlotLayout formats the start of a schedule slot.
const SlotLayout = "2006-01-02T15"

// JobStore persists the last successful run per job. store.Store satisfies
// it.
type JobStore interface {
	GetLastRun(ctx context.Context, job string) (time.Time, error)
	SetLastRun(ctx context.Context, job string, at time.Time) error
}

// RunFunc performs one scheduled run.
type RunFunc func(ctx context.Context) error

// Config controls when runs fire.
type Config struct {
	Job          string         // job name in the job store
	Hours        []int          // local hours that open a slot
	MinuteWindow int            // minutes after the hour a slot stays open
	PollInterval time.Duration  // clock polling period
	Location     *time.Location // zone of Hours, nil means time.Local
}

// DefaultConfig returns a daily 09:00 schedule polled every 30s.
func DefaultConfig() Config {
	return Config{
		Job:          "discovery",
		Hours:        []int{9},
		MinuteWindow: 2,
		PollInterval: 30 * time.Second,
	}
}

// Validate checks the schedule.
func (c Config) Validate() error {
	if len(c.Hours) == 0 {
		return eris.New("schedule: at least one hour is required")
	}
	for _, h := range c.Hours {
		if h < 0 || h > 23 {
			return eris.Errorf("schedule: hour %d outside [0,23]", h)
		}
	}
	if c.MinuteWindow < 0 || c.MinuteWindow > 59 {
		return eris.Errorf("schedule: minute window %d outside [0,59]", c.MinuteWindow)
	}
	if c.PollInterval <= 0 {
		return eris.New("schedule: poll interval must be positive")
	}
	return nil
}

// Scheduler polls the clock and fires run once per open slot.
type Scheduler struct {
	jobs JobStore
	run  RunFunc
	lock Lock
	cfg  Config
	now  func() time.Time

	mu       sync.Mutex
	lastSlot string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLock sets the cross-process slot lock.
func WithLock(l Lock) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.lock = l
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler.
func New(jobs JobStore, run RunFunc, cfg Config, opts ...Option) (*Scheduler, error) {
	if jobs == nil || run == nil {
		return nil, eris.New("schedule: job store and run func are required")
	}
	if cfg.Job == "" {
		cfg.Job = DefaultConfig().Job
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &Scheduler{jobs: jobs, run: run, lock: NopLock{}, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SlotStart returns the start of the slot open at t, if any.
func (s *Scheduler) SlotStart(t time.Time) (time.Time, bool) {
	local := t.In(s.cfg.Location)
	if !slices.Contains(s.cfg.Hours, local.Hour()) || local.Minute() > s.cfg.MinuteWindow {
		return time.Time{}, false
	}
	start := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, s.cfg.Location)
	return start, true
}

// RunOnce fires the run when a slot is open and has not yet succeeded. It
// reports whether the run fired. A second call in the same slot is a no-op.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	start, open := s.SlotStart(now)
	if !open {
		return false, nil
	}
	slot := start.Format(SlotLayout)
	if slot == s.lastSlot {
		return false, nil
	}
	log := zap.L().With(zap.String("component", "schedule"), zap.String("job", s.cfg.Job), zap.String("slot", slot))

	last, err := s.jobs.GetLastRun(ctx, s.cfg.Job)
	if err != nil {
		return false, eris.Wrap(err, "schedule: load last run")
	}
	if !last.Before(start) {
		s.lastSlot = slot
		log.Debug("slot already ran", zap.Time("last_run", last))
		return false, nil
	}

	acquired, err := s.lock.Acquire(ctx, slot)
	if err != nil {
		return false, eris.Wrap(err, "schedule: acquire slot lock")
	}
	if !acquired {
		s.lastSlot = slot
		log.Info("slot claimed by another instance")
		return false, nil
	}

	log.Info("scheduled run starting")
	if err := s.run(ctx); err != nil {
		if rerr := s.lock.Release(ctx, slot); rerr != nil {
			log.Warn("release slot lock failed", zap.Error(rerr))
		}
		return true, eris.Wrap(err, "schedule: run")
	}
	s.lastSlot = slot
	if err := s.jobs.SetLastRun(ctx, s.cfg.Job, now); err != nil {
		return true, eris.Wrap(err, "schedule: save last run")
	}
	log.Info("scheduled run complete")
	return true, nil
}

// Run polls until ctx is cancelled. Run errors are logged and the slot
// stays open for the next poll.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "schedule"), zap.String("job", s.cfg.Job))
	log.Info("starting scheduler",
		zap.Ints("hours", s.cfg.Hours),
		zap.Int("minute_window", s.cfg.MinuteWindow),
		zap.Duration("poll_interval", s.cfg.PollInterval),
	)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Error("scheduled run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}
