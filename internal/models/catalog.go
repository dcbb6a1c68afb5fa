package models

import "time"

// ParameterCategory tags a catalog option with the prompt slot it
// fills. Order of the slots in the composed prompt is fixed by the
// composer, not by this list.
type ParameterCategory string

const (
	CategorySetting   ParameterCategory = "setting"
	CategoryMood      ParameterCategory = "mood"
	CategoryActivity  ParameterCategory = "activity"
	CategoryClothing  ParameterCategory = "clothing"
	CategoryTimeOfDay ParameterCategory = "time_of_day"
	CategoryWeather   ParameterCategory = "weather"
	CategoryStyle     ParameterCategory = "style"
)

// ParameterOption is one weighted catalog choice, read-only to the
// generation pipeline. Weight is a count of equally likely tickets in
// the composer's draw; values below 1 are treated as 1.
type ParameterOption struct {
	ID       uint              `gorm:"primaryKey" json:"id"`
	Category ParameterCategory `gorm:"size:50;not null;index" json:"category"`
	Value    string            `gorm:"size:255;not null" json:"value"`
	IsActive bool              `gorm:"default:true" json:"is_active"`
	Weight   int               `gorm:"default:1" json:"weight"`
}

// GenerationParameter records one (category, value) pair selected for
// a work item, kept for traceability of what the prompt was built from.
type GenerationParameter struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	WorkItemID uint              `gorm:"not null;index" json:"work_item_id"`
	Category   ParameterCategory `gorm:"size:50;not null" json:"category"`
	Value      string            `gorm:"size:255;not null" json:"value"`
}

// BaseImage is a reusable base subject asset. Items reference it
// without owning it; deleting an asset nulls the reference instead of
// deleting items.
type BaseImage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	StorageURL string    `gorm:"size:2048;not null" json:"storage_url"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UsageCount int       `gorm:"default:0" json:"usage_count"`
}
