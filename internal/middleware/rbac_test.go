package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asp-booking-api/internal/models"
)

func rbacRouter(claims *models.StaffClaims, roles ...models.StaffRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if claims != nil {
		router.Use(func(c *gin.Context) {
			c.Set(ContextStaffKey, claims)
			c.Next()
		})
	}
	router.POST("/guarded", RequireRoles(roles...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRequireRolesAllowsPermittedRole(t *testing.T) {
	claims := &models.StaffClaims{StaffID: "staff-1", Role: models.StaffRoleProvider}
	router := rbacRouter(claims, models.StaffRoleProvider, models.StaffRoleAdmin)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRequireRolesForbidsOtherRole(t *testing.T) {
	claims := &models.StaffClaims{StaffID: "staff-2", Role: models.StaffRoleStaff}
	router := rbacRouter(claims, models.StaffRoleProvider, models.StaffRoleAdmin)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRequireRolesRejectsMissingClaims(t *testing.T) {
	router := rbacRouter(nil, models.StaffRoleAdmin)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}
