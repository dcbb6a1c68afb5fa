package models

import "time"

// WebhookLog is the append-only audit record of every inbound provider
// callback, written before correlation so callbacks for unknown or
// deleted items are never silently lost. Only the processed flag,
// error text and item reference are set after insert.
type WebhookLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	JobID           string    `gorm:"size:255;not null;index" json:"job_id"`
	ReceivedAt      time.Time `gorm:"not null" json:"received_at"`
	Status          string    `gorm:"size:50" json:"status"`
	RawPayload      string    `gorm:"type:text" json:"raw_payload"`
	WasProcessed    bool      `gorm:"default:false" json:"was_processed"`
	ProcessingError string    `gorm:"type:text" json:"processing_error"`
	WorkItemID      *uint     `gorm:"index" json:"work_item_id"`
}
