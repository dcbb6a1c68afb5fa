package store

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/jklovins/mediagen/internal/models"
)

// ActiveBaseImages returns every base subject asset eligible for new
// work items.
func (s *Store) ActiveBaseImages() ([]models.BaseImage, error) {
	var images []models.BaseImage
	if err := s.db.Where("is_active = ?", true).Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to load base images: %w", err)
	}
	return images, nil
}

// ActiveParameterOptions returns the active slice of the parameter
// catalog.
func (s *Store) ActiveParameterOptions() ([]models.ParameterOption, error) {
	var options []models.ParameterOption
	if err := s.db.Where("is_active = ?", true).Find(&options).Error; err != nil {
		return nil, fmt.Errorf("failed to load parameter options: %w", err)
	}
	return options, nil
}

// IncrementBaseImageUsage bumps the usage counter atomically in the
// database rather than read-modify-writing it in process.
func (s *Store) IncrementBaseImageUsage(id uint) error {
	result := s.db.Model(&models.BaseImage{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to increment base image usage: %w", result.Error)
	}
	return nil
}
