package models

import (
	"time"

	"gorm.io/gorm"
)

type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConversationID uint           `gorm:"not null;index:idx_messages_conv_time,priority:1" json:"conversation_id"`
	SenderID       uint           `gorm:"not null;index" json:"sender_id"`
	ReceiverID     uint           `gorm:"not null;index" json:"receiver_id"`
	Content        string         `gorm:"type:text" json:"content"`
	Type           string         `gorm:"size:10;not null;default:'text'" json:"type"` // text, image, video, file
	FileURL        string         `gorm:"size:512" json:"file_url,omitempty"`
	FileName       string         `gorm:"size:255" json:"file_name,omitempty"`
	FileSize       int64          `json:"file_size,omitempty"`
	ReplyTo        *uint          `gorm:"index" json:"reply_to,omitempty"`
	IsRead         bool           `gorm:"default:false;index" json:"is_read"`
	IsEdited       bool           `gorm:"default:false" json:"is_edited"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	CreatedAt      time.Time      `gorm:"index:idx_messages_conv_time,priority:2" json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

// Summary builds the denormalized copy stored on the parent conversation.
func (m *Message) Summary() *MessageSummary {
	return &MessageSummary{
		ID:       m.ID,
		SenderID: m.SenderID,
		Content:  m.Content,
		Type:     m.Type,
		SentAt:   m.CreatedAt,
	}
}
