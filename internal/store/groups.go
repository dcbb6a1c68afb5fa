package store

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/jklovins/mediagen/internal/models"
)

// MaxGroupDisplayOrder returns the highest display order across all
// groups, or 0 when none exist.
func (s *Store) MaxGroupDisplayOrder() (int, error) {
	var max *int
	err := s.db.Model(&models.WorkGroup{}).
		Select("MAX(display_order)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to query max display order: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// CreateBatch persists a scheduler run: every group with its items and
// the settings advance, all-or-nothing. A partial batch must never
// advance the last run date or the day's batch would be lost.
func (s *Store) CreateBatch(groups []*models.WorkGroup, settings *models.GenerationSettings) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, group := range groups {
			if err := tx.Create(group).Error; err != nil {
				return fmt.Errorf("failed to create work group: %w", err)
			}
		}
		if err := tx.Save(settings).Error; err != nil {
			return fmt.Errorf("failed to advance settings: %w", err)
		}
		return nil
	})
}

// ListGroups returns groups newest-first with their items ordered for
// display.
func (s *Store) ListGroups() ([]models.WorkGroup, error) {
	var groups []models.WorkGroup
	err := s.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order")
	}).Order("display_order desc").Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list work groups: %w", err)
	}
	return groups, nil
}
