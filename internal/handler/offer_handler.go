package handler

import (
	"net/http"
	"strconv"

	"clearlot/internal/domain"
	"clearlot/internal/middleware"
	"clearlot/internal/models"
	"clearlot/internal/repository"
	"clearlot/internal/service"
	"clearlot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OfferHandler struct {
	offers    *repository.OfferRepository
	watchlist *repository.WatchlistRepository
	notifier  *service.Notifier
	log       *zap.Logger
}

func NewOfferHandler(
	offers *repository.OfferRepository,
	watchlist *repository.WatchlistRepository,
	notifier *service.Notifier,
) *OfferHandler {
	return &OfferHandler{
		offers:    offers,
		watchlist: watchlist,
		notifier:  notifier,
		log:       logger.WithModule("offers"),
	}
}

func (h *OfferHandler) Create(c *gin.Context) {
	sellerID := middleware.GetUserID(c)
	if middleware.GetRole(c) != domain.RoleSeller && middleware.GetRole(c) != domain.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "seller account required"})
		return
	}
	var req struct {
		Title      string `json:"title" binding:"required"`
		PriceCents int64  `json:"price_cents" binding:"required,gt=0"`
		Currency   string `json:"currency"`
		Quantity   int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offer := &models.Offer{
		SellerID:      sellerID,
		Title:         req.Title,
		PriceCents:    req.PriceCents,
		Currency:      req.Currency,
		Quantity:      req.Quantity,
		IsActive:      true,
		BaselineCents: req.PriceCents,
	}
	if err := h.offers.Create(offer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"offer": offer})
}

// UpdatePrice changes the offer price and runs the watcher price-drop check.
func (h *OfferHandler) UpdatePrice(c *gin.Context) {
	sellerID := middleware.GetUserID(c)
	id := parseUintParam(c, "id")
	var req struct {
		PriceCents int64 `json:"price_cents" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offer, err := h.offers.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
		return
	}
	if offer.SellerID != sellerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if err := h.offers.UpdatePrice(id, req.PriceCents); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if err := h.notifier.CheckAndNotifyPriceDrop(id); err != nil {
		h.log.Error("price drop check failed", zap.Uint("offer_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *OfferHandler) Watch(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id := parseUintParam(c, "id")
	if _, err := h.offers.GetByID(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
		return
	}
	if err := h.watchlist.Add(userID, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "watch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *OfferHandler) Unwatch(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id := parseUintParam(c, "id")
	if err := h.watchlist.Remove(userID, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unwatch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *OfferHandler) Watchlist(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	items, err := h.watchlist.ListByUserID(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": items})
}
