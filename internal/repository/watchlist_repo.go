package repository

import (
	"clearlot/internal/models"

	"gorm.io/gorm"
)

type WatchlistRepository struct {
	db *gorm.DB
}

func NewWatchlistRepository(db *gorm.DB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

func (r *WatchlistRepository) Add(userID, offerID uint) error {
	return r.db.Create(&models.WatchlistItem{UserID: userID, OfferID: offerID}).Error
}

func (r *WatchlistRepository) Remove(userID, offerID uint) error {
	return r.db.Where("user_id = ? AND offer_id = ?", userID, offerID).Delete(&models.WatchlistItem{}).Error
}

func (r *WatchlistRepository) ListByUserID(userID uint, limit, offset int) ([]models.WatchlistItem, error) {
	var list []models.WatchlistItem
	err := r.db.Where("user_id = ?", userID).
		Preload("Offer").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// ListWatcherIDs returns the user ids of everyone watching the offer, the
// recipient set for price-drop fan-out.
func (r *WatchlistRepository) ListWatcherIDs(offerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.WatchlistItem{}).Where("offer_id = ?", offerID).Pluck("user_id", &ids).Error
	return ids, err
}
