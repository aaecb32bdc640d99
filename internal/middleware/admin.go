package middleware

import (
	"net/http"

	"clearlot/internal/domain"

	"github.com/gin-gonic/gin"
)

// AdminRequired gates the back-office surface (verification review, delivery
// alerts). Must run after AuthRequired so the role claim is in context.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "administrator role required"})
			return
		}
		c.Next()
	}
}
