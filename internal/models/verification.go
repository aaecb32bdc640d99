package models

import (
	"time"

	"gorm.io/gorm"
)

// VerificationRequest is a trader's business verification awaiting admin review.
type VerificationRequest struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	Status     string         `gorm:"size:20;not null;default:'pending';index" json:"status"` // pending, approved, rejected
	Notes      string         `gorm:"type:text" json:"notes"`
	ReviewedBy *uint          `json:"reviewed_by"`
	ReviewedAt *time.Time     `json:"reviewed_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (VerificationRequest) TableName() string {
	return "verification_requests"
}
