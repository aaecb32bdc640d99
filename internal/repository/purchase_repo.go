package repository

import (
	"clearlot/internal/domain"
	"clearlot/internal/models"

	"gorm.io/gorm"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) Create(p *models.Purchase) error {
	return r.db.Create(p).Error
}

func (r *PurchaseRepository) GetByID(id uint) (*models.Purchase, error) {
	var p models.Purchase
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PurchaseRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Purchase{}).Where("id = ?", id).Update("status", status).Error
}

// UpdateReminderFields applies a field-scoped update to the embedded reminder
// state, never a whole-document save, so the scheduler and the status-change
// handler cannot clobber each other.
func (r *PurchaseRepository) UpdateReminderFields(id uint, fields map[string]interface{}) error {
	return r.db.Model(&models.Purchase{}).Where("id = ?", id).Updates(fields).Error
}

// ListShipped returns every purchase still in the shipped state; the startup
// reconciliation walks this set to re-arm reminder timers.
func (r *PurchaseRepository) ListShipped() ([]models.Purchase, error) {
	var list []models.Purchase
	err := r.db.Where("status = ?", domain.OrderShipped).Find(&list).Error
	return list, err
}
