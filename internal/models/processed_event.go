package models

import "time"

// ProcessedEvent is one entry of the deduplication ledger. The table is
// trimmed to a bounded number of recent entries on every insert.
type ProcessedEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"size:128;uniqueIndex;not null" json:"event_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ProcessedEvent) TableName() string {
	return "processed_events"
}
