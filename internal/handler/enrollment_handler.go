package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulafit/checkin-api/internal/models"
	"github.com/aulafit/checkin-api/internal/service"
	appErrors "github.com/aulafit/checkin-api/pkg/errors"
	"github.com/aulafit/checkin-api/pkg/response"
)

// EnrollmentHandler wires HTTP endpoints to the enrollment service.
type EnrollmentHandler struct {
	service *service.EnrollmentService
	metrics *service.MetricsService
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(svc *service.EnrollmentService, metrics *service.MetricsService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List enrollments
// @Description Without classId, returns the caller's enrollments. With classId (admin only), returns the class report with user logins.
// @Tags Enrollments
// @Produce json
// @Param classId query string false "Class ID for the admin report"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if classID := c.Query("classId"); classID != "" {
		if claims.Role != models.RoleAdmin {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		details, err := h.service.Report(c.Request.Context(), classID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, details, nil)
		return
	}

	enrollments, err := h.service.ListOwn(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Create godoc
// @Summary Enroll in a class
// @Description Check the caller into a class, consuming one seat from their quota
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body object{class_id=string} true "Class to enroll in"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		ClassID string `json:"class_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "class_id is required"))
		return
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), claims.UserID, payload.ClassID)
	if err != nil {
		h.metrics.RecordEnrollment("enroll", outcomeLabel(err))
		response.Error(c, err)
		return
	}

	h.metrics.RecordEnrollment("enroll", "ok")
	response.Created(c, enrollment)
}

// Delete godoc
// @Summary Cancel enrollment
// @Description Cancel the caller's enrollment, restoring the seat, while outside the cutoff window
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Unenroll(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		h.metrics.RecordEnrollment("cancel", outcomeLabel(err))
		response.Error(c, err)
		return
	}

	h.metrics.RecordEnrollment("cancel", "ok")
	response.NoContent(c)
}

// ReportByClass godoc
// @Summary Class enrollment report
// @Description Enrollments for a class with user logins (admin only)
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/report [get]
func (h *EnrollmentHandler) ReportByClass(c *gin.Context) {
	details, err := h.service.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// Clear godoc
// @Summary Clear class report
// @Description Remove every enrollment held against a class (admin only)
// @Tags Enrollments
// @Produce json
// @Param classId query string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments [delete]
func (h *EnrollmentHandler) Clear(c *gin.Context) {
	deleted, err := h.service.ClearReport(c.Request.Context(), c.Query("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}

func outcomeLabel(err error) string {
	appErr := appErrors.FromError(err)
	if appErr == nil {
		return "error"
	}
	switch appErr.Code {
	case appErrors.ErrSeatsExhausted.Code:
		return "seats_exhausted"
	case appErrors.ErrClassFull.Code:
		return "class_full"
	case appErrors.ErrAlreadyEnrolled.Code:
		return "duplicate"
	case appErrors.ErrCancelCutoff.Code:
		return "cutoff"
	case appErrors.ErrNotFound.Code:
		return "not_found"
	default:
		return "error"
	}
}
