package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jklovins/mediagen/internal/models"
	"github.com/jklovins/mediagen/internal/store"
)

// Provider callback status values.
const (
	ProviderStatusCompleted = "COMPLETED"
	ProviderStatusFailed    = "FAILED"
)

// BlobUploader persists a generated image fetched from the provider's
// output URL and returns the stored URL.
type BlobUploader interface {
	UploadFromURL(ctx context.Context, sourceURL, objectName string) (string, error)
}

// WebhookPayload is the provider's callback body. Only the job id is
// required; the output object may carry the image under several names.
type WebhookPayload struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Output        *WebhookOutput `json:"output"`
	DelayTime     *int           `json:"delayTime"`
	ExecutionTime *int           `json:"executionTime"`
}

type WebhookOutput struct {
	ImageURL string `json:"imageUrl"`
	Image    string `json:"image"`
	URL      string `json:"url"`
	Error    string `json:"error"`
	Seed     *int   `json:"seed"`
}

// ImageURLField returns the first usable image reference, trying the
// known output field names in fixed priority order.
func (o *WebhookOutput) ImageURLField() string {
	if o == nil {
		return ""
	}
	if o.ImageURL != "" {
		return o.ImageURL
	}
	if o.Image != "" {
		return o.Image
	}
	return o.URL
}

// WebhookService reconciles provider callbacks onto work items under
// at-least-once, out-of-order, possibly duplicated delivery.
type WebhookService struct {
	store    *store.Store
	uploader BlobUploader
	logger   *zap.Logger
}

func NewWebhookService(st *store.Store, uploader BlobUploader, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		store:    st,
		uploader: uploader,
		logger:   logger,
	}
}

// Process handles one authenticated, parsed callback. An audit log
// entry is appended before any correlation so callbacks for unknown or
// deleted items are never lost. The returned error is informational;
// the HTTP handler answers success in every case that reaches here.
func (s *WebhookService) Process(ctx context.Context, payload *WebhookPayload, rawBody []byte) error {
	log := &models.WebhookLog{
		JobID:      payload.ID,
		ReceivedAt: time.Now().UTC(),
		Status:     payload.Status,
		RawPayload: string(rawBody),
	}
	if err := s.store.CreateWebhookLog(log); err != nil {
		return err
	}

	if err := s.process(ctx, payload, string(rawBody), log); err != nil {
		log.ProcessingError = err.Error()
		if updateErr := s.store.UpdateWebhookLog(log); updateErr != nil {
			s.logger.Error("Failed to record webhook processing error", zap.Error(updateErr))
		}
		return err
	}
	return s.store.UpdateWebhookLog(log)
}

func (s *WebhookService) process(ctx context.Context, payload *WebhookPayload, rawBody string, log *models.WebhookLog) error {
	item, err := s.store.WorkItemByProviderJobID(payload.ID)
	if err != nil {
		return err
	}
	if item == nil {
		// The provider must not retry forever for a callback that will
		// never resolve locally, so this is recorded and acknowledged.
		s.logger.Warn("Received webhook for unknown job ID", zap.String("job_id", payload.ID))
		log.ProcessingError = "No work item found for job ID"
		return nil
	}

	log.WorkItemID = &item.ID

	// Idempotency gate: the first webhook to stamp the item wins; every
	// later delivery is a duplicate and takes no state action.
	if item.WebhookReceivedAt != nil {
		s.logger.Info("Duplicate webhook - already processed", zap.String("job_id", payload.ID))
		log.WasProcessed = true
		return nil
	}

	// A reclaimer timeout that committed first wins; the late callback
	// is discarded rather than silently reviving the item.
	if item.Status != models.StatusInProgress {
		s.logger.Warn("Work item no longer in progress, discarding callback",
			zap.String("job_id", payload.ID),
			zap.String("status", string(item.Status)))
		log.ProcessingError = fmt.Sprintf("Work item in status %s, callback discarded", item.Status)
		return nil
	}

	received := time.Now().UTC()
	item.WebhookReceivedAt = &received
	item.ExecutionTimeMs = payload.ExecutionTime
	item.RawWebhookPayload = rawBody

	completed := false
	switch {
	case payload.Status == ProviderStatusCompleted && payload.Output != nil:
		completed = s.applyCompletion(ctx, item, payload)
		log.WasProcessed = true
	case payload.Status == ProviderStatusFailed:
		if err := item.TransitionTo(models.StatusFailed); err != nil {
			return err
		}
		item.ErrorMessage = failureMessage(payload.Output)
		s.logger.Warn("Provider job failed",
			zap.String("job_id", payload.ID),
			zap.Uint("item_id", item.ID),
			zap.String("error", item.ErrorMessage))
		log.WasProcessed = true
	default:
		s.logger.Warn("Received webhook with unexpected status",
			zap.String("status", payload.Status),
			zap.String("job_id", payload.ID))
		log.ProcessingError = fmt.Sprintf("Unexpected status: %s", payload.Status)
	}

	if err := s.store.UpdateWorkItem(item); err != nil {
		if errors.Is(err, store.ErrStaleWorkItem) {
			s.logger.Warn("Concurrent update won over webhook, discarding",
				zap.String("job_id", payload.ID),
				zap.Uint("item_id", item.ID))
			log.ProcessingError = "Work item modified concurrently, callback discarded"
			return nil
		}
		return err
	}

	// Counted once per item: the idempotency gate above and the
	// successful guarded write make a second increment unreachable.
	if completed && item.BaseImageID != nil {
		if err := s.store.IncrementBaseImageUsage(*item.BaseImageID); err != nil {
			s.logger.Error("Failed to increment base image usage", zap.Error(err))
		}
	}
	return nil
}

// applyCompletion moves the item to Completed when the output is
// usable, otherwise schedules a retry. A completed-status callback
// with unusable output is not success.
func (s *WebhookService) applyCompletion(ctx context.Context, item *models.WorkItem, payload *WebhookPayload) bool {
	imageURL := payload.Output.ImageURLField()
	if imageURL == "" {
		s.logger.Warn("No image URL in webhook output", zap.String("job_id", payload.ID))
		s.scheduleRetry(item, "No image URL in webhook output")
		return false
	}

	objectName := fmt.Sprintf("generated/%s.jpg", uuid.New())
	storedURL, err := s.uploader.UploadFromURL(ctx, imageURL, objectName)
	if err != nil {
		s.logger.Error("Failed to store generated image",
			zap.String("job_id", payload.ID),
			zap.Error(err))
		s.scheduleRetry(item, fmt.Sprintf("Image download failed: %v", err))
		return false
	}

	if err := item.TransitionTo(models.StatusCompleted); err != nil {
		s.scheduleRetry(item, err.Error())
		return false
	}
	completedAt := time.Now().UTC()
	item.StorageURL = storedURL
	item.ThumbnailURL = storedURL
	item.CompletedAt = &completedAt
	item.ErrorMessage = ""

	s.logger.Info("Completed generated image",
		zap.String("job_id", payload.ID),
		zap.Uint("item_id", item.ID))
	return true
}

func (s *WebhookService) scheduleRetry(item *models.WorkItem, message string) {
	item.RetryCount++
	item.ErrorMessage = message
	if err := item.TransitionTo(models.StatusRetrying); err != nil {
		s.logger.Error("Failed to schedule retry", zap.Uint("item_id", item.ID), zap.Error(err))
	}
}

func failureMessage(output *WebhookOutput) string {
	if output != nil && output.Error != "" {
		return output.Error
	}
	return "Provider job failed"
}
