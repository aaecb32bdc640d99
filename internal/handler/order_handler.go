package handler

import (
	"errors"
	"net/http"
	"time"

	"clearlot/internal/domain"
	"clearlot/internal/middleware"
	"clearlot/internal/models"
	"clearlot/internal/repository"
	"clearlot/internal/service"
	"clearlot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderHandler struct {
	purchases *repository.PurchaseRepository
	offers    *repository.OfferRepository
	notifier  *service.Notifier
	reminders *service.ReminderService
	log       *zap.Logger
}

func NewOrderHandler(
	purchases *repository.PurchaseRepository,
	offers *repository.OfferRepository,
	notifier *service.Notifier,
	reminders *service.ReminderService,
) *OrderHandler {
	return &OrderHandler{
		purchases: purchases,
		offers:    offers,
		notifier:  notifier,
		reminders: reminders,
		log:       logger.WithModule("orders"),
	}
}

// Create places a purchase for an offer. The seller notification goes through
// the deduplicated purchase-created path and the buyer gets the first status
// notification.
func (h *OrderHandler) Create(c *gin.Context) {
	buyerID := middleware.GetUserID(c)
	var req struct {
		OfferID  uint `json:"offer_id" binding:"required"`
		Quantity int  `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offer, err := h.offers.GetByID(req.OfferID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
		return
	}
	if offer.SellerID == buyerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot purchase your own offer"})
		return
	}
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	p := &models.Purchase{
		OfferID:     offer.ID,
		BuyerID:     buyerID,
		SellerID:    offer.SellerID,
		Quantity:    qty,
		AmountCents: offer.PriceCents * int64(qty),
		Status:      domain.OrderPending,
	}
	if err := h.purchases.Create(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "purchase failed"})
		return
	}
	if err := h.notifier.PurchaseCreated(c.Request.Context(), p.ID); err != nil {
		h.log.Error("purchase notification failed", zap.Uint("purchase_id", p.ID), zap.Error(err))
	}
	if err := h.notifier.OrderStatusChanged(p.ID, domain.OrderPending); err != nil {
		h.log.Error("status notification failed", zap.Uint("purchase_id", p.ID), zap.Error(err))
	}
	c.JSON(http.StatusCreated, gin.H{"purchase": p})
}

func (h *OrderHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id := parseUintParam(c, "id")
	p, err := h.purchases.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
		return
	}
	if p.BuyerID != userID && p.SellerID != userID && middleware.GetRole(c) != domain.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase": p})
}

var allowedTransitions = map[string]map[string]bool{
	domain.OrderPending:   {domain.OrderApproved: true, domain.OrderRejected: true, domain.OrderCancelled: true},
	domain.OrderApproved:  {domain.OrderShipped: true, domain.OrderCancelled: true},
	domain.OrderShipped:   {domain.OrderDelivered: true},
	domain.OrderDelivered: {domain.OrderCompleted: true},
}

// sellerTransitions lists the transitions only the seller may perform; the
// buyer owns cancellation, delivery confirmation and completion.
var sellerTransitions = map[string]bool{
	domain.OrderApproved: true,
	domain.OrderRejected: true,
	domain.OrderShipped:  true,
}

// UpdateStatus advances the order lifecycle. Shipping arms the delivery
// reminder chain; delivery confirmation disarms it.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id := parseUintParam(c, "id")
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.purchases.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if p.BuyerID != userID && p.SellerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if !allowedTransitions[p.Status][req.Status] {
		c.JSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
		return
	}
	if sellerTransitions[req.Status] && userID != p.SellerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the seller can perform this transition"})
		return
	}
	if !sellerTransitions[req.Status] && userID != p.BuyerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the buyer can perform this transition"})
		return
	}

	if err := h.purchases.UpdateStatus(id, req.Status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	switch req.Status {
	case domain.OrderShipped:
		now := time.Now()
		if err := h.purchases.UpdateReminderFields(id, map[string]interface{}{"shipped_at": now}); err != nil {
			h.log.Error("shipped_at update failed", zap.Uint("purchase_id", id), zap.Error(err))
		}
		if err := h.reminders.StartReminder(id, userID); err != nil {
			h.log.Error("reminder arm failed", zap.Uint("purchase_id", id), zap.Error(err))
		}
	case domain.OrderDelivered, domain.OrderCompleted, domain.OrderCancelled:
		if err := h.reminders.StopReminder(id); err != nil {
			h.log.Error("reminder stop failed", zap.Uint("purchase_id", id), zap.Error(err))
		}
	}

	if err := h.notifier.OrderStatusChanged(id, req.Status); err != nil {
		h.log.Error("status notification failed",
			zap.Uint("purchase_id", id), zap.String("status", req.Status), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}
