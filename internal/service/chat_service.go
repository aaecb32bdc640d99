package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clearlot/internal/domain"
	"clearlot/internal/models"
	"clearlot/internal/repository"
	"clearlot/internal/stream"
	"clearlot/pkg/cloudinary"
	"clearlot/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatService is the conversation directory and message store. It owns the
// dual-write consistency contract: a message insert and the parent
// conversation's summary update commit in one transaction, so list readers
// never see a lastMessage that is not yet in the log.
type ChatService struct {
	db            *gorm.DB
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
	broker        *stream.Broker
	notifier      *Notifier
	blobs         cloudinary.Client
	log           *zap.Logger
}

func NewChatService(
	db *gorm.DB,
	conversations *repository.ConversationRepository,
	messages *repository.MessageRepository,
	broker *stream.Broker,
	notifier *Notifier,
	blobs cloudinary.Client,
) *ChatService {
	return &ChatService{
		db:            db,
		conversations: conversations,
		messages:      messages,
		broker:        broker,
		notifier:      notifier,
		blobs:         blobs,
		log:           logger.WithModule("chat"),
	}
}

// CreateOrGetConversation returns the single active conversation for the
// unordered user pair, creating it with zeroed unread counters when none
// exists. Idempotent; the sorted-pair unique index resolves creation races.
func (s *ChatService) CreateOrGetConversation(a, b uint) (*models.Conversation, error) {
	if a == b {
		return nil, domain.ErrSameUser
	}
	if existing, err := s.conversations.FindByPair(a, b); err != nil {
		return nil, err
	} else if existing != nil {
		// a closed thread is reopened, never duplicated; the unique pair
		// index would reject a second row anyway
		if !existing.IsActive {
			if err := s.conversations.Reactivate(existing.ID); err != nil {
				return nil, err
			}
			existing.IsActive = true
		}
		return existing, nil
	}
	low, hi := models.SortPair(a, b)
	conv := &models.Conversation{
		ParticipantLow: low,
		ParticipantHi:  hi,
		IsActive:       true,
		UnreadCount: datatypes.NewJSONType(map[string]int{
			models.UnreadKey(low): 0,
			models.UnreadKey(hi):  0,
		}),
	}
	if err := s.conversations.Create(conv); err != nil {
		// Lost the creation race: the unique index rejected us, the winner's
		// row is the conversation.
		if existing, ferr := s.conversations.FindByPair(a, b); ferr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return conv, nil
}

type SendMessageInput struct {
	ConversationID uint
	ReceiverID     uint
	Content        string
	Type           string
	FileURL        string
	FileName       string
	FileSize       int64
	ReplyTo        *uint
}

// SendMessage appends a message and updates the conversation summary
// (lastMessage, lastMessageAt, unread counter) in the same transaction.
func (s *ChatService) SendMessage(senderID uint, in SendMessageInput) (*models.Message, error) {
	conv, err := s.conversations.GetByID(in.ConversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %d: %w", in.ConversationID, domain.ErrNotFound)
		}
		return nil, err
	}
	if !conv.HasParticipant(senderID) || !conv.HasParticipant(in.ReceiverID) || senderID == in.ReceiverID {
		return nil, domain.ErrNotParticipant
	}
	msgType := in.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	msg := &models.Message{
		ConversationID: in.ConversationID,
		SenderID:       senderID,
		ReceiverID:     in.ReceiverID,
		Content:        in.Content,
		Type:           msgType,
		FileURL:        in.FileURL,
		FileName:       in.FileName,
		FileSize:       in.FileSize,
		ReplyTo:        in.ReplyTo,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		var c models.Conversation
		if err := tx.First(&c, conv.ID).Error; err != nil {
			return err
		}
		unread := c.UnreadCount.Data()
		if unread == nil {
			unread = make(map[string]int)
		}
		unread[models.UnreadKey(in.ReceiverID)]++
		now := msg.CreatedAt
		if now.IsZero() {
			now = time.Now()
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
			"last_message":    datatypes.NewJSONType(msg.Summary()),
			"last_message_at": now,
			"unread_count":    datatypes.NewJSONType(unread),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	if updated, err := s.conversations.GetByID(conv.ID); err == nil {
		s.broker.ConversationChanged(updated)
	} else {
		s.broker.ConversationChanged(conv)
	}
	if s.notifier != nil {
		s.notifier.MessageReceived(msg)
	}
	return msg, nil
}

// MarkMessagesAsRead acknowledges every unread message addressed to userID in
// the conversation and resets their unread counter.
func (s *ChatService) MarkMessagesAsRead(conversationID, userID uint) error {
	conv, err := s.conversations.GetByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("conversation %d: %w", conversationID, domain.ErrNotFound)
		}
		return err
	}
	if !conv.HasParticipant(userID) {
		return domain.ErrNotParticipant
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
			Update("is_read", true).Error; err != nil {
			return err
		}
		var c models.Conversation
		if err := tx.First(&c, conversationID).Error; err != nil {
			return err
		}
		unread := c.UnreadCount.Data()
		if unread == nil {
			unread = make(map[string]int)
		}
		unread[models.UnreadKey(userID)] = 0
		return tx.Model(&models.Conversation{}).Where("id = ?", conversationID).
			Update("unread_count", datatypes.NewJSONType(unread)).Error
	})
	if err != nil {
		return err
	}
	if updated, err := s.conversations.GetByID(conversationID); err == nil {
		s.broker.ConversationChanged(updated)
	}
	return nil
}

// EditMessage replaces content and stamps the edit; unread counters are
// untouched.
func (s *ChatService) EditMessage(messageID, userID uint, newContent string) (*models.Message, error) {
	msg, err := s.messages.GetByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %d: %w", messageID, domain.ErrNotFound)
		}
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, domain.ErrPermissionDenied
	}
	now := time.Now()
	msg.Content = newContent
	msg.IsEdited = true
	msg.EditedAt = &now
	if err := s.messages.Update(msg); err != nil {
		return nil, err
	}
	conv, err := s.conversations.GetByID(msg.ConversationID)
	if err == nil {
		// keep the denormalized summary honest when the edited message is the
		// most recent one
		if last := conv.LastMessage.Data(); last != nil && last.ID == msg.ID {
			last.Content = newContent
			if err := s.db.Model(&models.Conversation{}).Where("id = ?", conv.ID).
				Update("last_message", datatypes.NewJSONType(last)).Error; err != nil {
				s.log.Warn("summary rewrite failed", zap.Uint("conversation_id", conv.ID), zap.Error(err))
			}
			conv, _ = s.conversations.GetByID(conv.ID)
		}
		s.broker.ConversationChanged(conv)
	}
	return msg, nil
}

// DeleteMessage removes a message its sender no longer wants. When the
// deleted message is the one the summary points at, the summary is rewritten
// to the new latest message in the same transaction, so list readers never
// see a lastMessage that is absent from the log. Any attached blob is
// released best-effort; a failed release never blocks the delete.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, userID uint) error {
	msg, err := s.messages.GetByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("message %d: %w", messageID, domain.ErrNotFound)
		}
		return err
	}
	if msg.SenderID != userID {
		return domain.ErrPermissionDenied
	}
	if msg.FileURL != "" && s.blobs != nil {
		if err := s.blobs.DeleteByURL(ctx, msg.FileURL); err != nil {
			s.log.Warn("blob release failed", zap.Uint("message_id", messageID), zap.Error(err))
		}
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Message{}, messageID).Error; err != nil {
			return err
		}
		var c models.Conversation
		if err := tx.First(&c, msg.ConversationID).Error; err != nil {
			return err
		}
		last := c.LastMessage.Data()
		if last == nil || last.ID != msg.ID {
			return nil
		}
		var tail models.Message
		err := tx.Where("conversation_id = ?", msg.ConversationID).
			Order("created_at DESC, id DESC").First(&tail).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Model(&models.Conversation{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
				"last_message":    datatypes.NewJSONType[*models.MessageSummary](nil),
				"last_message_at": nil,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
			"last_message":    datatypes.NewJSONType(tail.Summary()),
			"last_message_at": tail.CreatedAt,
		}).Error
	})
	if err != nil {
		return err
	}
	if conv, err := s.conversations.GetByID(msg.ConversationID); err == nil {
		s.broker.ConversationChanged(conv)
	}
	return nil
}

// RecountUnread recomputes both participants' unread counters from the
// message log. Repair path for drift and initial backfill; the hot path only
// does incremental updates.
func (s *ChatService) RecountUnread(conversationID uint) error {
	conv, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return err
	}
	unread := make(map[string]int, 2)
	for _, userID := range conv.Participants() {
		count, err := s.messages.CountUnread(conversationID, userID)
		if err != nil {
			return err
		}
		unread[models.UnreadKey(userID)] = int(count)
	}
	return s.db.Model(&models.Conversation{}).Where("id = ?", conversationID).
		Update("unread_count", datatypes.NewJSONType(unread)).Error
}
