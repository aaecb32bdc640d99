package handler

import (
	"errors"
	"net/http"
	"strconv"

	"clearlot/internal/domain"
	"clearlot/internal/middleware"
	"clearlot/internal/repository"
	"clearlot/internal/service"
	"clearlot/internal/stream"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatSvc       *service.ChatService
	broker        *stream.Broker
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
}

func NewChatHandler(
	chatSvc *service.ChatService,
	broker *stream.Broker,
	conversations *repository.ConversationRepository,
	messages *repository.MessageRepository,
) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc, broker: broker, conversations: conversations, messages: messages}
}

// CreateOrGetConversation resolves the single conversation for the caller and
// the given partner, creating it if needed.
func (h *ChatHandler) CreateOrGetConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		UserID uint `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.chatSvc.CreateOrGetConversation(userID, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrSameUser) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversation lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// ListConversations returns the caller's conversation list snapshot; the
// websocket stream keeps it fresh afterwards.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := middleware.GetUserID(c)
	c.JSON(http.StatusOK, gin.H{"conversations": h.broker.ConversationList(userID)})
}

// GetMessages returns the ordered message log of one conversation.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	convID := parseUintParam(c, "id")
	if convID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	conv, err := h.conversations.GetByID(convID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	list, err := h.messages.ListByConversation(convID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	convID := parseUintParam(c, "id")
	if convID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	var req struct {
		ReceiverID uint   `json:"receiver_id" binding:"required"`
		Content    string `json:"content"`
		Type       string `json:"type"`
		FileURL    string `json:"file_url"`
		FileName   string `json:"file_name"`
		FileSize   int64  `json:"file_size"`
		ReplyTo    *uint  `json:"reply_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.chatSvc.SendMessage(userID, service.SendMessageInput{
		ConversationID: convID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		Type:           req.Type,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		ReplyTo:        req.ReplyTo,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, domain.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	convID := parseUintParam(c, "id")
	if convID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	if err := h.chatSvc.MarkMessagesAsRead(convID, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, domain.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ChatHandler) EditMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	msgID := parseUintParam(c, "id")
	if msgID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.chatSvc.EditMessage(msgID, userID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, domain.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can edit a message"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "edit failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	msgID := parseUintParam(c, "id")
	if msgID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	if err := h.chatSvc.DeleteMessage(c.Request.Context(), msgID, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, domain.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can delete a message"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CloseConversation deactivates a conversation for both participants. The row
// and its messages stay behind; a later CreateOrGet reopens the same thread.
func (h *ChatHandler) CloseConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	convID := parseUintParam(c, "id")
	if convID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	conv, err := h.conversations.GetByID(convID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if err := h.conversations.Deactivate(convID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.broker.ConversationChanged(conv)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseUintParam(c *gin.Context, name string) uint {
	v, _ := strconv.ParseUint(c.Param(name), 10, 64)
	return uint(v)
}
