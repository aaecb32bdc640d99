package models

import (
	"time"

	"gorm.io/gorm"
)

// Offer is a clearance lot listed by a seller. Only the pricing fields matter
// to the realtime core; catalog attributes live with the storefront.
type Offer struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	SellerID      uint           `gorm:"not null;index" json:"seller_id"`
	Title         string         `gorm:"size:255;not null" json:"title"`
	PriceCents    int64          `gorm:"not null" json:"price_cents"`
	Currency      string         `gorm:"size:3;default:'EUR'" json:"currency"`
	Quantity      int            `json:"quantity"`
	IsActive      bool           `gorm:"default:true;index" json:"is_active"`
	// BaselineCents is the last price watchers were notified about; a drop is
	// measured against it and it advances on every fan-out so the same drop
	// cannot re-notify.
	BaselineCents int64          `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Seller User `gorm:"foreignKey:SellerID" json:"-"`
}

func (Offer) TableName() string {
	return "offers"
}
