package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sara-platform/portal/internal/metrics"
)

const sweepTimeout = 30 * time.Second

// Sweeper periodically counts online users and publishes the figure.
type Sweeper struct {
	tracker  *Tracker
	strategy string
	cron     *cron.Cron
}

func NewSweeper(tracker *Tracker, strategy, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		tracker:  tracker,
		strategy: strategy,
		cron:     cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, func() { _, _ = s.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule presence sweep %q: %w", schedule, err)
	}
	return s, nil
}

// Sweep runs one count and updates the online users gauge.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	online, err := s.tracker.Online(ctx, s.strategy)
	if err != nil {
		s.tracker.logger.ErrorContext(ctx, "presence sweep failed", "strategy", s.strategy, "error", err)
		return 0, err
	}

	metrics.OnlineUsers.Set(float64(len(online)))
	s.tracker.logger.DebugContext(ctx, "presence sweep finished", "strategy", s.strategy, "online", len(online))
	return len(online), nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that is done once a running sweep completes.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}
