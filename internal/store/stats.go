package store

import (
	"fmt"

	"github.com/jklovins/mediagen/internal/models"
)

// PipelineStats is a point-in-time rollup of the generation pipeline.
type PipelineStats struct {
	TotalGroups    int64                   `json:"total_groups"`
	TotalItems     int64                   `json:"total_items"`
	ItemsByStatus  map[models.Status]int64 `json:"items_by_status"`
	WebhooksLogged int64                   `json:"webhooks_logged"`
	WebhooksFailed int64                   `json:"webhooks_failed"`
}

// Stats counts groups, items per status and webhook outcomes.
func (s *Store) Stats() (*PipelineStats, error) {
	stats := &PipelineStats{
		ItemsByStatus: make(map[models.Status]int64),
	}

	if err := s.db.Model(&models.WorkGroup{}).Count(&stats.TotalGroups).Error; err != nil {
		return nil, fmt.Errorf("failed to count groups: %w", err)
	}
	if err := s.db.Model(&models.WorkItem{}).Count(&stats.TotalItems).Error; err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	type statusCount struct {
		Status models.Status
		Count  int64
	}
	var counts []statusCount
	err := s.db.Model(&models.WorkItem{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count items by status: %w", err)
	}
	for _, c := range counts {
		stats.ItemsByStatus[c.Status] = c.Count
	}

	if err := s.db.Model(&models.WebhookLog{}).Count(&stats.WebhooksLogged).Error; err != nil {
		return nil, fmt.Errorf("failed to count webhook logs: %w", err)
	}
	err = s.db.Model(&models.WebhookLog{}).
		Where("processing_error <> ''").
		Count(&stats.WebhooksFailed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count failed webhooks: %w", err)
	}

	return stats, nil
}
