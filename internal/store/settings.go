package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jklovins/mediagen/internal/models"
)

// Settings returns the singleton generation settings row, or nil when
// none has been seeded yet.
func (s *Store) Settings() (*models.GenerationSettings, error) {
	var settings models.GenerationSettings
	if err := s.db.First(&settings).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load generation settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings upserts the settings row.
func (s *Store) SaveSettings(settings *models.GenerationSettings) error {
	if err := s.db.Save(settings).Error; err != nil {
		return fmt.Errorf("failed to save generation settings: %w", err)
	}
	return nil
}
