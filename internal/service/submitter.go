package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jklovins/mediagen/internal/models"
	"github.com/jklovins/mediagen/internal/store"
)

// defaultMaxRetryAttempts applies when the settings row is absent.
const defaultMaxRetryAttempts = 3

// ProviderClient is the outbound provider surface the submitter
// depends on. SubmitJob returns only a job id; completion is delivered
// out-of-band to the webhook endpoint.
type ProviderClient interface {
	SubmitJob(ctx context.Context, prompt, baseImageURL string) (string, error)
}

// retryableError is matched against submission failures to decide
// between Retrying and Failed.
type retryableError interface {
	Retryable() bool
}

// SubmitterService hands pending and retrying work items to the
// provider, enforcing the retry ceiling. It never awaits completion.
type SubmitterService struct {
	store    *store.Store
	provider ProviderClient
	logger   *zap.Logger
}

func NewSubmitterService(st *store.Store, provider ProviderClient, logger *zap.Logger) *SubmitterService {
	return &SubmitterService{
		store:    st,
		provider: provider,
		logger:   logger,
	}
}

// Run performs one submission pass. Per-item failures are recorded on
// the item and never abort the rest of the pass.
func (s *SubmitterService) Run(ctx context.Context) error {
	settings, err := s.store.Settings()
	if err != nil {
		return err
	}
	maxRetries := defaultMaxRetryAttempts
	if settings != nil {
		maxRetries = settings.MaxRetryAttempts
	}

	items, err := s.store.SubmittableItems()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	s.logger.Info("Found pending items to submit", zap.Int("count", len(items)))

	for i := range items {
		if err := s.processItem(ctx, &items[i], maxRetries); err != nil {
			s.logger.Error("Failed to process work item",
				zap.Uint("item_id", items[i].ID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *SubmitterService) processItem(ctx context.Context, item *models.WorkItem, maxRetries int) error {
	if item.RetryCount >= maxRetries {
		s.logger.Warn("Max retry attempts reached", zap.Uint("item_id", item.ID))
		if err := item.TransitionTo(models.StatusFailed); err != nil {
			return err
		}
		item.ErrorMessage = "Maximum retry attempts exceeded"
		return s.store.UpdateWorkItem(item)
	}

	// Persist InProgress before the provider call so a crash
	// mid-submission is observable as started-but-not-submitted.
	if err := item.TransitionTo(models.StatusInProgress); err != nil {
		return err
	}
	started := time.Now().UTC()
	item.GenerationStartedAt = &started
	if err := s.store.UpdateWorkItem(item); err != nil {
		return err
	}

	baseImageURL := ""
	if item.BaseImage != nil {
		baseImageURL = item.BaseImage.StorageURL
	}

	jobID, err := s.provider.SubmitJob(ctx, item.Prompt, baseImageURL)
	if err != nil {
		return s.recordSubmissionFailure(item, err)
	}

	item.ProviderJobID = jobID
	submitted := time.Now().UTC()
	item.JobSubmittedAt = &submitted
	// Status stays InProgress until the webhook arrives.
	if err := s.store.UpdateWorkItem(item); err != nil {
		return err
	}

	s.logger.Info("Submitted provider job",
		zap.String("job_id", jobID),
		zap.Uint("item_id", item.ID))
	return nil
}

func (s *SubmitterService) recordSubmissionFailure(item *models.WorkItem, submitErr error) error {
	item.RetryCount++
	item.ErrorMessage = submitErr.Error()

	// Unknown errors count as transient; only an explicit
	// non-retryable classification is fatal for the item.
	next := models.StatusRetrying
	var re retryableError
	if errors.As(submitErr, &re) && !re.Retryable() {
		next = models.StatusFailed
	}
	if err := item.TransitionTo(next); err != nil {
		return err
	}

	s.logger.Warn("Failed to submit provider job",
		zap.Uint("item_id", item.ID),
		zap.String("status", string(next)),
		zap.Error(submitErr))
	return s.store.UpdateWorkItem(item)
}
