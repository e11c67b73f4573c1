package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aulafit/checkin-api/internal/models"
	"github.com/aulafit/checkin-api/internal/service"
	appErrors "github.com/aulafit/checkin-api/pkg/errors"
	"github.com/aulafit/checkin-api/pkg/response"
)

// ClassHandler wires HTTP endpoints to the class service.
type ClassHandler struct {
	service *service.ClassService
	reports *service.ReportService
}

// NewClassHandler creates a new handler.
func NewClassHandler(svc *service.ClassService, reports *service.ReportService) *ClassHandler {
	return &ClassHandler{service: svc, reports: reports}
}

// List godoc
// @Summary List classes
// @Description Students see classes starting within the upcoming window. Admins may pass all=true for the full catalogue.
// @Tags Classes
// @Produce json
// @Param all query bool false "Return all classes (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	if c.Query("all") == "true" {
		claims := claimsFromContext(c)
		if claims == nil || claims.Role != models.RoleAdmin {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		classes, err := h.service.ListAll(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, classes, nil)
		return
	}

	classes, err := h.service.ListUpcoming(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Get godoc
// @Summary Get class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Description Create a class from a multipart form with name, starts_at and an image
// @Tags Classes
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Class name"
// @Param starts_at formData string true "Schedule in RFC3339"
// @Param image formData file true "Class image"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	input, err := h.bindClassForm(c, true)
	if err != nil {
		response.Error(c, err)
		return
	}

	class, err := h.service.Create(c.Request.Context(), *input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Description Update name and schedule, and the image when a new file is uploaded
// @Tags Classes
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Class ID"
// @Param name formData string true "Class name"
// @Param starts_at formData string true "Schedule in RFC3339"
// @Param image formData file false "Class image"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	input, err := h.bindClassForm(c, false)
	if err != nil {
		response.Error(c, err)
		return
	}

	class, err := h.service.Update(c.Request.Context(), c.Param("id"), *input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// ExportReport godoc
// @Summary Export class report
// @Description Download the enrollment report for a class as CSV or PDF
// @Tags Classes
// @Produce octet-stream
// @Param id path string true "Class ID"
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/report/export [get]
func (h *ClassHandler) ExportReport(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	file, err := h.reports.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func (h *ClassHandler) bindClassForm(c *gin.Context, imageRequired bool) (*service.ClassInput, error) {
	name := c.PostForm("name")
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}

	startsAtRaw := c.PostForm("starts_at")
	if startsAtRaw == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "starts_at is required")
	}
	startsAt, err := time.Parse(time.RFC3339, startsAtRaw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "starts_at must be RFC3339")
	}

	input := &service.ClassInput{Name: name, StartsAt: startsAt}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		if imageRequired {
			return nil, appErrors.Clone(appErrors.ErrValidation, "image is required")
		}
		return input, nil
	}

	image, err := readUpload(fileHeader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read image upload")
	}
	input.Image = image
	return input, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
