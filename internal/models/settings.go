package models

import "time"

// GenerationSettings is the singleton configuration row read by every
// batch run. LastRunDate is the idempotency guard that keeps batch
// creation to at most one per UTC calendar day.
type GenerationSettings struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	DailyGroupCount  int       `gorm:"default:5" json:"daily_group_count"`
	ItemsPerGroupMin int       `gorm:"default:3" json:"items_per_group_min"`
	ItemsPerGroupMax int       `gorm:"default:5" json:"items_per_group_max"`
	MaxRetryAttempts int       `gorm:"default:3" json:"max_retry_attempts"`
	SafetyTier       string    `gorm:"size:100;default:'Family Friendly'" json:"safety_tier"`
	LastRunDate      time.Time `json:"last_run_date"`
	ModifiedDate     time.Time `json:"modified_date"`
}

// RanOn reports whether the last successful batch run happened on the
// same UTC calendar day as t.
func (s *GenerationSettings) RanOn(t time.Time) bool {
	last := s.LastRunDate.UTC()
	day := t.UTC()
	return last.Year() == day.Year() && last.YearDay() == day.YearDay()
}
