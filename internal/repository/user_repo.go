package repository

import (
	"clearlot/internal/domain"
	"clearlot/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	return r.db.Create(u).Error
}

func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	if err := r.db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var u models.User
	if err := r.db.Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Update(u *models.User) error {
	return r.db.Save(u).Error
}

func (r *UserRepository) SetOnline(id uint, online bool) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("is_online", online).Error
}

// ListAdminIDs returns the user ids of all administrators.
func (r *UserRepository) ListAdminIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.User{}).Where("role = ?", domain.RoleAdmin).Pluck("id", &ids).Error
	return ids, err
}
