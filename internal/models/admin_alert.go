package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminAlert is an admin-console escalation record, deliberately separate from
// user-facing notifications.
type AdminAlert struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	Kind       string            `gorm:"size:50;not null;index" json:"kind"`
	PurchaseID *uint             `gorm:"index" json:"purchase_id,omitempty"`
	Title      string            `gorm:"size:255" json:"title"`
	Message    string            `gorm:"type:text" json:"message"`
	Data       datatypes.JSONMap `json:"data"`
	Resolved   bool              `gorm:"default:false;index" json:"resolved"`
	CreatedAt  time.Time         `json:"created_at"`
	DeletedAt  gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (AdminAlert) TableName() string {
	return "admin_alerts"
}
