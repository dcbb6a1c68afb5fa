package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jklovins/mediagen/internal/models"
)

// SubmittableItems returns items in a state eligible for a submission
// attempt, with their base images preloaded.
func (s *Store) SubmittableItems() ([]models.WorkItem, error) {
	var items []models.WorkItem
	err := s.db.Preload("BaseImage").
		Where("status IN ?", []models.Status{models.StatusPending, models.StatusRetrying}).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load submittable items: %w", err)
	}
	return items, nil
}

// WorkItemByID returns one item with its base image and recorded
// parameters, or nil when it does not exist.
func (s *Store) WorkItemByID(id uint) (*models.WorkItem, error) {
	var item models.WorkItem
	err := s.db.Preload("BaseImage").Preload("Parameters").First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load work item %d: %w", id, err)
	}
	return &item, nil
}

// WorkItemByProviderJobID correlates a provider callback to its owning
// item, or returns nil when no item claims the job id.
func (s *Store) WorkItemByProviderJobID(jobID string) (*models.WorkItem, error) {
	var item models.WorkItem
	err := s.db.Preload("BaseImage").Where("provider_job_id = ?", jobID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up work item for job %s: %w", jobID, err)
	}
	return &item, nil
}

// UpdateWorkItem persists the whole item guarded by its lock version.
// The version the caller read must still be current; otherwise the
// write is discarded and ErrStaleWorkItem is returned so the loser of
// a concurrent update never silently overwrites the winner.
func (s *Store) UpdateWorkItem(item *models.WorkItem) error {
	currentVersion := item.LockVersion
	item.LockVersion = currentVersion + 1

	result := s.db.Model(&models.WorkItem{}).
		Where("id = ? AND lock_version = ?", item.ID, currentVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(item)
	if result.Error != nil {
		item.LockVersion = currentVersion
		return fmt.Errorf("failed to update work item %d: %w", item.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		item.LockVersion = currentVersion
		return ErrStaleWorkItem
	}
	return nil
}

// OrphanedWorkItems returns in-flight items whose submission is older
// than cutoff and whose callback never arrived. Items that already
// received a webhook are never selected, regardless of age.
func (s *Store) OrphanedWorkItems(cutoff time.Time) ([]models.WorkItem, error) {
	var items []models.WorkItem
	err := s.db.
		Where("status = ?", models.StatusInProgress).
		Where("job_submitted_at IS NOT NULL").
		Where("job_submitted_at < ?", cutoff).
		Where("webhook_received_at IS NULL").
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load orphaned items: %w", err)
	}
	return items, nil
}
