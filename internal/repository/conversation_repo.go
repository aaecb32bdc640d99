package repository

import (
	"errors"

	"clearlot/internal/models"

	"gorm.io/gorm"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(c *models.Conversation) error {
	return r.db.Create(c).Error
}

func (r *ConversationRepository) GetByID(id uint) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByPair returns the pair's conversation row regardless of active state.
// Returns (nil, nil) when none exists.
func (r *ConversationRepository) FindByPair(a, b uint) (*models.Conversation, error) {
	low, hi := models.SortPair(a, b)
	var c models.Conversation
	err := r.db.Where("participant_low = ? AND participant_hi = ?", low, hi).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActiveByUser returns a user's active conversations, most recently
// touched first. MySQL sorts NULL last_message_at last under DESC, which is
// the order the conversation list wants.
func (r *ConversationRepository) ListActiveByUser(userID uint) ([]models.Conversation, error) {
	var list []models.Conversation
	err := r.db.
		Where("(participant_low = ? OR participant_hi = ?) AND is_active = ?", userID, userID, true).
		Order("last_message_at DESC").
		Find(&list).Error
	return list, err
}

func (r *ConversationRepository) Deactivate(id uint) error {
	return r.db.Model(&models.Conversation{}).Where("id = ?", id).Update("is_active", false).Error
}

func (r *ConversationRepository) Reactivate(id uint) error {
	return r.db.Model(&models.Conversation{}).Where("id = ?", id).Update("is_active", true).Error
}
