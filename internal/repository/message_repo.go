package repository

import (
	"clearlot/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) GetByID(id uint) (*models.Message, error) {
	var m models.Message
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByConversation returns the full message log in the canonical order:
// ascending timestamp, id as tie-breaker.
func (r *MessageRepository) ListByConversation(conversationID uint) ([]models.Message, error) {
	var list []models.Message
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

// CountUnread recounts unread messages addressed to userID; used by the
// reconciliation path, never by the send hot path.
func (r *MessageRepository) CountUnread(conversationID, userID uint) (int64, error) {
	var c int64
	err := r.db.Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Count(&c).Error
	return c, err
}

func (r *MessageRepository) Update(m *models.Message) error {
	return r.db.Save(m).Error
}
