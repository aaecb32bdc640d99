package repository

import (
	"clearlot/internal/models"

	"gorm.io/gorm"
)

type AdminAlertRepository struct {
	db *gorm.DB
}

func NewAdminAlertRepository(db *gorm.DB) *AdminAlertRepository {
	return &AdminAlertRepository{db: db}
}

func (r *AdminAlertRepository) Create(a *models.AdminAlert) error {
	return r.db.Create(a).Error
}

func (r *AdminAlertRepository) List(limit, offset int) ([]models.AdminAlert, error) {
	var list []models.AdminAlert
	err := r.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *AdminAlertRepository) Resolve(id uint) error {
	return r.db.Model(&models.AdminAlert{}).Where("id = ?", id).Update("resolved", true).Error
}
