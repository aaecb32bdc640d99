package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MessageSummary is the denormalized copy of the most recent message kept on
// the conversation so list readers never touch the message log.
type MessageSummary struct {
	ID       uint      `json:"id"`
	SenderID uint      `json:"sender_id"`
	Content  string    `json:"content"`
	Type     string    `json:"type"`
	SentAt   time.Time `json:"sent_at"`
}

// Conversation pairs exactly two distinct users. The pair is stored sorted so
// a unique compound index guarantees at most one active conversation per pair.
type Conversation struct {
	ID             uint                                  `gorm:"primaryKey" json:"id"`
	ParticipantLow uint                                  `gorm:"not null;uniqueIndex:idx_conversation_pair,priority:1" json:"-"`
	ParticipantHi  uint                                  `gorm:"not null;uniqueIndex:idx_conversation_pair,priority:2" json:"-"`
	LastMessage    datatypes.JSONType[*MessageSummary]   `json:"last_message"`
	LastMessageAt  *time.Time                            `gorm:"index" json:"last_message_at"`
	UnreadCount    datatypes.JSONType[map[string]int]    `json:"unread_count"`
	IsActive       bool                                  `gorm:"default:true;index" json:"is_active"`
	CreatedAt      time.Time                             `json:"created_at"`
	UpdatedAt      time.Time                             `json:"updated_at"`
	DeletedAt      gorm.DeletedAt                        `gorm:"index" json:"-"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// SortPair returns the participant pair in storage order.
func SortPair(a, b uint) (low, hi uint) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c *Conversation) Participants() [2]uint {
	return [2]uint{c.ParticipantLow, c.ParticipantHi}
}

func (c *Conversation) HasParticipant(userID uint) bool {
	return userID == c.ParticipantLow || userID == c.ParticipantHi
}

// OtherParticipant returns the peer of userID; zero if userID is not a member.
func (c *Conversation) OtherParticipant(userID uint) uint {
	switch userID {
	case c.ParticipantLow:
		return c.ParticipantHi
	case c.ParticipantHi:
		return c.ParticipantLow
	}
	return 0
}

// UnreadFor reads the unread counter for one participant.
func (c *Conversation) UnreadFor(userID uint) int {
	m := c.UnreadCount.Data()
	if m == nil {
		return 0
	}
	return m[UnreadKey(userID)]
}

// UnreadKey is the JSON map key for a participant's unread counter.
func UnreadKey(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}
