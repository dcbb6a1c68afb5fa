package models

import (
	"time"
)

// WorkGroup is an ordered batch of work items created together by a
// single scheduler run. Deleting a group cascades to its items.
type WorkGroup struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	DisplayOrder int        `gorm:"not null;index" json:"display_order"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	Items        []WorkItem `gorm:"foreignKey:WorkGroupID;constraint:OnDelete:CASCADE" json:"items"`
}

// WorkItem is one generation request and its lifecycle state. The
// status, retry counter and timestamps always move together through
// Store.UpdateWorkItem, which guards the write with LockVersion.
type WorkItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	WorkGroupID  uint      `gorm:"not null;index" json:"work_group_id"`
	MediaType    string    `gorm:"size:20;default:'image'" json:"media_type"`
	StorageURL   string    `gorm:"size:2048" json:"storage_url"`
	ThumbnailURL string    `gorm:"size:2048" json:"thumbnail_url"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	DisplayOrder int       `gorm:"not null" json:"display_order"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`

	BaseImageID *uint  `gorm:"index" json:"base_image_id"`
	Prompt      string `gorm:"type:text" json:"prompt"`
	Status      Status `gorm:"size:20;default:'pending';index" json:"status"`

	GenerationStartedAt *time.Time `json:"generation_started_at"`
	JobSubmittedAt      *time.Time `json:"job_submitted_at"`
	// WebhookReceivedAt is set at most once per item and is the
	// idempotency anchor for duplicate callback deliveries.
	WebhookReceivedAt *time.Time `json:"webhook_received_at"`
	CompletedAt       *time.Time `json:"completed_at"`

	RetryCount   int    `gorm:"default:0" json:"retry_count"`
	ErrorMessage string `gorm:"type:text" json:"error_message"`

	ProviderJobID     string `gorm:"size:255;index" json:"provider_job_id"`
	ExecutionTimeMs   *int   `json:"execution_time_ms"`
	RawWebhookPayload string `gorm:"type:text" json:"raw_webhook_payload"`

	// LockVersion implements optimistic concurrency between the
	// webhook receiver and the orphan reclaimer; the loser of a
	// concurrent update gets ErrStaleWorkItem and discards its write.
	LockVersion int `gorm:"default:0" json:"-"`

	BaseImage  *BaseImage            `gorm:"foreignKey:BaseImageID;constraint:OnDelete:SET NULL" json:"base_image,omitempty"`
	Parameters []GenerationParameter `gorm:"foreignKey:WorkItemID;constraint:OnDelete:CASCADE" json:"parameters"`
}

// InFlight reports whether the item was handed to the provider and is
// still waiting for its callback.
func (i *WorkItem) InFlight() bool {
	return i.Status == StatusInProgress && i.ProviderJobID != "" && i.WebhookReceivedAt == nil
}
