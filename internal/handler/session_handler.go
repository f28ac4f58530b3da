package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asp-booking-api/internal/service"
	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
	"github.com/noah-isme/asp-booking-api/pkg/response"
)

// SessionHandler exposes program session endpoints.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Create schedules a new session.
func (h *SessionHandler) Create(c *gin.Context) {
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get returns a single session.
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// List returns sessions filtered by program or date.
func (h *SessionHandler) List(c *gin.Context) {
	if programID := c.Query("programId"); programID != "" {
		sessions, err := h.sessions.ListByProgram(c.Request.Context(), programID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, sessions, nil)
		return
	}

	rawDate := c.Query("date")
	if rawDate == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "programId or date query parameter is required"))
		return
	}
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}
	sessions, err := h.sessions.ListForDate(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Start begins a scheduled session.
func (h *SessionHandler) Start(c *gin.Context) {
	session, err := h.sessions.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Complete finishes an in-progress session.
func (h *SessionHandler) Complete(c *gin.Context) {
	session, err := h.sessions.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Cancel cancels a session that has not finished.
func (h *SessionHandler) Cancel(c *gin.Context) {
	session, err := h.sessions.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}
