package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is immutable after creation except for the read flag.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"not null;index:idx_notifications_user_time,priority:1" json:"user_id"`
	Type      string            `gorm:"size:30;not null;index" json:"type"`
	Title     string            `gorm:"size:255" json:"title"`
	Message   string            `gorm:"type:text" json:"message"`
	Priority  string            `gorm:"size:10;not null;default:'medium'" json:"priority"` // low, medium, high
	Data      datatypes.JSONMap `json:"data"`
	IsRead    bool              `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time         `gorm:"index:idx_notifications_user_time,priority:2" json:"created_at"`
	DeletedAt gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}
