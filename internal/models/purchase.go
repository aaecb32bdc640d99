package models

import (
	"time"

	"gorm.io/gorm"
)

// Purchase tracks one checked-out lot. The reminder fields embed the
// escalation state machine so it survives process restarts.
type Purchase struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	OfferID     uint           `gorm:"not null;index" json:"offer_id"`
	BuyerID     uint           `gorm:"not null;index" json:"buyer_id"`
	SellerID    uint           `gorm:"not null;index" json:"seller_id"`
	Quantity    int            `json:"quantity"`
	AmountCents int64          `gorm:"not null" json:"amount_cents"`
	Status      string         `gorm:"size:20;not null;index" json:"status"` // pending, approved, shipped, delivered, completed, cancelled, rejected

	// Reminder escalation state.
	ShippedAt        *time.Time `json:"shipped_at"`
	LastReminderSent *time.Time `json:"last_reminder_sent"`
	ReminderCount    int        `gorm:"default:0" json:"reminder_count"`
	AdminNotified    bool       `gorm:"default:false" json:"admin_notified"`
	ReminderActive   bool       `gorm:"default:false;index" json:"reminder_active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Offer  Offer `gorm:"foreignKey:OfferID" json:"offer,omitempty"`
	Buyer  User  `gorm:"foreignKey:BuyerID" json:"-"`
	Seller User  `gorm:"foreignKey:SellerID" json:"-"`
}

func (Purchase) TableName() string {
	return "purchases"
}
