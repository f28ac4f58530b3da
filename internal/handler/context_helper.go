package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asp-booking-api/internal/middleware"
	"github.com/noah-isme/asp-booking-api/internal/models"
)

// currentStaff extracts the authenticated staff claims from the context.
func currentStaff(c *gin.Context) *models.StaffClaims {
	v, exists := c.Get(middleware.ContextStaffKey)
	if !exists {
		return nil
	}
	claims, ok := v.(*models.StaffClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorID returns the acting staff identifier, empty when unauthenticated.
func actorID(c *gin.Context) string {
	if claims := currentStaff(c); claims != nil {
		return claims.StaffID
	}
	return ""
}
