package handler

import (
	"net/http"
	"strconv"

	"clearlot/internal/repository"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the admin console's escalation feed.
type AdminHandler struct {
	alerts *repository.AdminAlertRepository
}

func NewAdminHandler(alerts *repository.AdminAlertRepository) *AdminHandler {
	return &AdminHandler{alerts: alerts}
}

func (h *AdminHandler) ListAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := h.alerts.List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list})
}

func (h *AdminHandler) ResolveAlert(c *gin.Context) {
	id := parseUintParam(c, "id")
	if id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}
	if err := h.alerts.Resolve(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
