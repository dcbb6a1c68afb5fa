package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jklovins/mediagen/internal/config"
)

// Scheduler drives the three periodic passes of the generation
// pipeline: daily batch creation (guarded by the settings last-run
// date), job submission and orphan reclamation. Each pass runs on its
// own ticker and never overlaps with itself.
type Scheduler struct {
	config    *config.GenerationConfig
	logger    *zap.Logger
	batch     *BatchService
	submitter *SubmitterService
	reclaimer *ReclaimerService
	tickers   []*time.Ticker
	stopCh    chan struct{}
}

func NewScheduler(cfg *config.GenerationConfig, logger *zap.Logger, batch *BatchService, submitter *SubmitterService, reclaimer *ReclaimerService) *Scheduler {
	return &Scheduler{
		config:    cfg,
		logger:    logger,
		batch:     batch,
		submitter: submitter,
		reclaimer: reclaimer,
		stopCh:    make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Generation scheduler is disabled")
		return nil
	}

	batchInterval, err := time.ParseDuration(s.config.BatchCheckInterval)
	if err != nil {
		return fmt.Errorf("invalid batch check interval: %w", err)
	}
	submitInterval, err := time.ParseDuration(s.config.SubmitInterval)
	if err != nil {
		return fmt.Errorf("invalid submit interval: %w", err)
	}
	reclaimInterval, err := time.ParseDuration(s.config.ReclaimInterval)
	if err != nil {
		return fmt.Errorf("invalid reclaim interval: %w", err)
	}

	s.logger.Info("Starting generation scheduler",
		zap.String("batch_check_interval", s.config.BatchCheckInterval),
		zap.String("submit_interval", s.config.SubmitInterval),
		zap.String("reclaim_interval", s.config.ReclaimInterval))

	// The batch date guard makes the immediate run a no-op when the
	// day's batch already exists.
	go func() {
		s.logger.Info("Running initial batch check")
		if err := s.batch.Run(); err != nil {
			s.logger.Error("Initial batch check failed", zap.Error(err))
		}
	}()

	s.runPeriodic(ctx, batchInterval, "batch", func() error { return s.batch.Run() })
	s.runPeriodic(ctx, submitInterval, "submit", func() error { return s.submitter.Run(ctx) })
	s.runPeriodic(ctx, reclaimInterval, "reclaim", func() error { return s.reclaimer.Run() })

	return nil
}

func (s *Scheduler) runPeriodic(ctx context.Context, interval time.Duration, name string, pass func() error) {
	ticker := time.NewTicker(interval)
	s.tickers = append(s.tickers, ticker)

	go func() {
		for {
			select {
			case <-ticker.C:
				start := time.Now()
				if err := pass(); err != nil {
					s.logger.Error("Scheduled pass failed",
						zap.String("pass", name),
						zap.Duration("duration", time.Since(start)),
						zap.Error(err))
					continue
				}
				s.logger.Debug("Scheduled pass completed",
					zap.String("pass", name),
					zap.Duration("duration", time.Since(start)))
			case <-s.stopCh:
				s.logger.Info("Scheduler pass stopped", zap.String("pass", name))
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler pass context cancelled", zap.String("pass", name))
				return
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	for _, ticker := range s.tickers {
		ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}
