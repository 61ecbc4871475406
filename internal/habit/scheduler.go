package habit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Preparer creates the missing completion records for a day.
type Preparer interface {
	PrepareDay(ctx context.Context, date string) (int64, error)
}

// Scheduler runs the daily completions preparer once per calendar day.
type Scheduler struct {
	mu       sync.RWMutex
	preparer Preparer
	logger   *slog.Logger
	loc      *time.Location
	interval time.Duration
	now      func() time.Time
	lastDate string
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a preparer scheduler that checks the date every interval.
func NewScheduler(p Preparer, loc *time.Location, interval time.Duration, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		preparer: p,
		logger:   logger,
		loc:      loc,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs one check immediately, then begins the ticker loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		s.tick(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	today := Today(s.now(), s.loc)

	s.mu.RLock()
	last := s.lastDate
	s.mu.RUnlock()
	if last == today {
		return
	}

	created, err := s.preparer.PrepareDay(ctx, today)
	if err != nil {
		s.logger.Error("prepare completions", "date", today, "error", err)
		return
	}

	s.mu.Lock()
	s.lastDate = today
	s.mu.Unlock()
	s.logger.Info("prepared completions", "date", today, "created", created)
}
