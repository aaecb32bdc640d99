package models

import (
	"time"

	"gorm.io/gorm"
)

type WatchlistItem struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;uniqueIndex:idx_watchlist_user_offer,priority:1" json:"user_id"`
	OfferID   uint           `gorm:"not null;uniqueIndex:idx_watchlist_user_offer,priority:2" json:"offer_id"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User  User  `gorm:"foreignKey:UserID" json:"-"`
	Offer Offer `gorm:"foreignKey:OfferID" json:"offer,omitempty"`
}

func (WatchlistItem) TableName() string {
	return "watchlist_items"
}
