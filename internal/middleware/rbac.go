package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asp-booking-api/internal/models"
	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
	"github.com/noah-isme/asp-booking-api/pkg/response"
)

// RequireRoles restricts a route to staff holding one of the given roles.
func RequireRoles(roles ...models.StaffRole) gin.HandlerFunc {
	allowed := make(map[models.StaffRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextStaffKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.StaffClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
