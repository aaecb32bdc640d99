package repository

import (
	"clearlot/internal/models"

	"gorm.io/gorm"
)

type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Create(v *models.VerificationRequest) error {
	return r.db.Create(v).Error
}

func (r *VerificationRepository) GetByID(id uint) (*models.VerificationRequest, error) {
	var v models.VerificationRequest
	if err := r.db.First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VerificationRepository) Update(v *models.VerificationRequest) error {
	return r.db.Save(v).Error
}

func (r *VerificationRepository) ListPending(limit, offset int) ([]models.VerificationRequest, error) {
	var list []models.VerificationRequest
	err := r.db.Where("status = ?", "pending").Order("created_at ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
