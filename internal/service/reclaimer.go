package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jklovins/mediagen/internal/models"
	"github.com/jklovins/mediagen/internal/store"
)

// ReclaimerService recovers in-flight work items whose provider
// callback never arrived. It is the only path that recycles a lost or
// overly delayed callback; items that failed to obtain a job id are
// handled by submitter retry bookkeeping instead.
type ReclaimerService struct {
	store   *store.Store
	timeout time.Duration
	logger  *zap.Logger
}

func NewReclaimerService(st *store.Store, timeout time.Duration, logger *zap.Logger) *ReclaimerService {
	return &ReclaimerService{
		store:   st,
		timeout: timeout,
		logger:  logger,
	}
}

// Run requeues every orphaned item. The retry counter is shared with
// the submission path so total attempts stay bounded regardless of
// which path triggered the retry.
func (s *ReclaimerService) Run() error {
	cutoff := time.Now().UTC().Add(-s.timeout)

	orphans, err := s.store.OrphanedWorkItems(cutoff)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		s.logger.Debug("No orphaned jobs found")
		return nil
	}

	s.logger.Warn("Found orphaned jobs", zap.Int("count", len(orphans)))

	for i := range orphans {
		item := &orphans[i]

		s.logger.Warn("Marking orphaned job for retry",
			zap.Uint("item_id", item.ID),
			zap.String("job_id", item.ProviderJobID),
			zap.Timep("submitted_at", item.JobSubmittedAt))

		if err := item.TransitionTo(models.StatusRetrying); err != nil {
			s.logger.Error("Failed to transition orphaned item", zap.Uint("item_id", item.ID), zap.Error(err))
			continue
		}
		item.RetryCount++
		item.ErrorMessage = fmt.Sprintf("Webhook timeout - no provider callback after %s", s.timeout)

		if err := s.store.UpdateWorkItem(item); err != nil {
			// A webhook that landed between the query and this write
			// wins; the stale copy is discarded.
			s.logger.Warn("Skipped orphaned item during concurrent update",
				zap.Uint("item_id", item.ID),
				zap.Error(err))
		}
	}
	return nil
}
