package handler

import (
	"net/http"
	"strconv"
	"time"

	"clearlot/internal/domain"
	"clearlot/internal/middleware"
	"clearlot/internal/models"
	"clearlot/internal/repository"
	"clearlot/internal/service"
	"clearlot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type VerificationHandler struct {
	verifications *repository.VerificationRepository
	notifier      *service.Notifier
	log           *zap.Logger
}

func NewVerificationHandler(verifications *repository.VerificationRepository, notifier *service.Notifier) *VerificationHandler {
	return &VerificationHandler{
		verifications: verifications,
		notifier:      notifier,
		log:           logger.WithModule("verification"),
	}
}

func (h *VerificationHandler) Submit(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&req)
	v := &models.VerificationRequest{
		UserID: userID,
		Status: domain.VerificationPending,
		Notes:  req.Notes,
	}
	if err := h.verifications.Create(v); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submit failed"})
		return
	}
	if err := h.notifier.VerificationReviewed(userID, domain.VerificationPending); err != nil {
		h.log.Error("verification notification failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	c.JSON(http.StatusCreated, gin.H{"verification": v})
}

func (h *VerificationHandler) ListPending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := h.verifications.ListPending(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": list})
}

// Review records the admin decision and notifies the reviewed trader.
func (h *VerificationHandler) Review(c *gin.Context) {
	adminID := middleware.GetUserID(c)
	id := parseUintParam(c, "id")
	var req struct {
		Status string `json:"status" binding:"required,oneof=approved rejected"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.verifications.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "verification not found"})
		return
	}
	if v.Status != domain.VerificationPending {
		c.JSON(http.StatusConflict, gin.H{"error": "verification already reviewed"})
		return
	}
	now := time.Now()
	v.Status = req.Status
	v.Notes = req.Notes
	v.ReviewedBy = &adminID
	v.ReviewedAt = &now
	if err := h.verifications.Update(v); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if err := h.notifier.VerificationReviewed(v.UserID, req.Status); err != nil {
		h.log.Error("verification notification failed", zap.Uint("user_id", v.UserID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"verification": v})
}
