package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/quickcart-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// RankingRefresher recomputes the most-sold ranking
type RankingRefresher interface {
	RefreshMostSold(ctx context.Context) error
}

// MostSoldScheduler keeps the cached most-sold ranking warm
type MostSoldScheduler struct {
	cron     *cron.Cron
	refresh  RankingRefresher
	schedule string
	timeout  time.Duration
}

// NewMostSoldScheduler accepts any robfig/cron spec, e.g. "@every 10m" or "*/15 * * * *".
func NewMostSoldScheduler(refresh RankingRefresher, schedule string) *MostSoldScheduler {
	if schedule == "" {
		schedule = "@every 10m"
	}
	return &MostSoldScheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		refresh:  refresh,
		schedule: schedule,
		timeout:  time.Minute,
	}
}

// RunOnce refreshes the ranking immediately
func (s *MostSoldScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.refresh.RefreshMostSold(ctx); err != nil {
		logger.Error("Failed to refresh most sold ranking", err)
		return
	}
	logger.Debug("Most sold ranking refresh finished", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// Start warms the cache once and then follows the schedule
func (s *MostSoldScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		logger.Error("Failed to add cron job for most sold refresh", err, map[string]interface{}{
			"schedule": s.schedule,
		})
		return err
	}

	go s.RunOnce()
	s.cron.Start()
	logger.Info("Most sold scheduler started", map[string]interface{}{
		"schedule": s.schedule,
	})
	return nil
}

// Stop waits for a running refresh to finish
func (s *MostSoldScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Most sold scheduler stopped")
}
