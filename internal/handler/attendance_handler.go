package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/asp-booking-api/internal/models"
	"github.com/noah-isme/asp-booking-api/internal/service"
	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
	"github.com/noah-isme/asp-booking-api/pkg/response"
)

// AttendanceHandler exposes check-in/check-out, submission and roster
// endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	exports    *service.ExportService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, exports *service.ExportService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, exports: exports}
}

// CheckIn records a child's arrival.
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var req service.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SessionID = c.Param("id")
	if req.Actor == "" {
		req.Actor = actorID(c)
	}
	record, err := h.attendance.RecordCheckIn(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// CheckOut records a child's departure.
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	var req service.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SessionID = c.Param("id")
	if req.Actor == "" {
		req.Actor = actorID(c)
	}
	record, err := h.attendance.RecordCheckOut(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// MarkAbsent marks a child absent for the session.
func (h *AttendanceHandler) MarkAbsent(c *gin.Context) {
	h.markMissed(c, h.attendance.MarkAbsent)
}

// MarkExcused marks a child excused for the session.
func (h *AttendanceHandler) MarkExcused(c *gin.Context) {
	h.markMissed(c, h.attendance.MarkExcused)
}

func (h *AttendanceHandler) markMissed(c *gin.Context, apply func(context.Context, service.MarkRequest) (*models.AttendanceRecord, error)) {
	var req service.MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SessionID = c.Param("id")
	record, err := apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Submit performs the all-or-nothing payroll submission.
func (h *AttendanceHandler) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SessionID = c.Param("id")
	if req.SubmittedBy == "" {
		req.SubmittedBy = actorID(c)
	}
	records, err := h.attendance.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Roster returns the session joined with its attendance records.
func (h *AttendanceHandler) Roster(c *gin.Context) {
	roster, err := h.attendance.GetSessionWithRoster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// ListBySession returns a session's attendance entries.
func (h *AttendanceHandler) ListBySession(c *gin.Context) {
	entries, err := h.attendance.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ListByChild returns a child's attendance history.
func (h *AttendanceHandler) ListByChild(c *gin.Context) {
	records, err := h.attendance.ListByChild(c.Request.Context(), c.Param("childId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// ListByParent aggregates attendance across a parent's children.
func (h *AttendanceHandler) ListByParent(c *gin.Context) {
	entries, err := h.attendance.ListByParent(c.Request.Context(), c.Param("parentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ExportSheet renders the session roster as CSV or PDF.
func (h *AttendanceHandler) ExportSheet(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.AttendanceSheet(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
