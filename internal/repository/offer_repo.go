package repository

import (
	"clearlot/internal/models"

	"gorm.io/gorm"
)

type OfferRepository struct {
	db *gorm.DB
}

func NewOfferRepository(db *gorm.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

func (r *OfferRepository) Create(o *models.Offer) error {
	return r.db.Create(o).Error
}

func (r *OfferRepository) GetByID(id uint) (*models.Offer, error) {
	var o models.Offer
	if err := r.db.First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OfferRepository) Update(o *models.Offer) error {
	return r.db.Save(o).Error
}

func (r *OfferRepository) UpdatePrice(id uint, priceCents int64) error {
	return r.db.Model(&models.Offer{}).Where("id = ?", id).Update("price_cents", priceCents).Error
}

// AdvanceBaseline moves the price-drop baseline so the same drop cannot
// notify twice.
func (r *OfferRepository) AdvanceBaseline(id uint, priceCents int64) error {
	return r.db.Model(&models.Offer{}).Where("id = ?", id).Update("baseline_cents", priceCents).Error
}
