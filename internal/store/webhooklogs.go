package store

import (
	"fmt"

	"github.com/jklovins/mediagen/internal/models"
)

// CreateWebhookLog appends an audit record for an inbound callback.
func (s *Store) CreateWebhookLog(log *models.WebhookLog) error {
	if err := s.db.Create(log).Error; err != nil {
		return fmt.Errorf("failed to create webhook log: %w", err)
	}
	return nil
}

// UpdateWebhookLog persists the processed flag, error text and item
// reference set after correlation.
func (s *Store) UpdateWebhookLog(log *models.WebhookLog) error {
	if err := s.db.Save(log).Error; err != nil {
		return fmt.Errorf("failed to update webhook log: %w", err)
	}
	return nil
}

// RecentWebhookLogs returns the latest callback records, newest first.
func (s *Store) RecentWebhookLogs(limit int) ([]models.WebhookLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []models.WebhookLog
	if err := s.db.Order("received_at desc").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}
	return logs, nil
}
