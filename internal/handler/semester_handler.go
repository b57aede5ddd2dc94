package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type semesterService interface {
	List(ctx context.Context) ([]models.Semester, error)
	Get(ctx context.Context, id string) (*models.Semester, error)
	Active(ctx context.Context) (*models.Semester, error)
	Create(ctx context.Context, req dto.CreateSemesterRequest) (*models.Semester, error)
	Activate(ctx context.Context, id string) (*models.Semester, error)
}

// SemesterHandler manages semester endpoints.
type SemesterHandler struct {
	service semesterService
}

// NewSemesterHandler constructs the handler.
func NewSemesterHandler(service semesterService) *SemesterHandler {
	return &SemesterHandler{service: service}
}

// List godoc
// @Summary List semesters
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters [get]
func (h *SemesterHandler) List(c *gin.Context) {
	semesters, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semesters)
}

// Active godoc
// @Summary Get the active semester
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters/active [get]
func (h *SemesterHandler) Active(c *gin.Context) {
	semester, err := h.service.Active(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester)
}

// Get godoc
// @Summary Get a semester
// @Tags Semesters
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id} [get]
func (h *SemesterHandler) Get(c *gin.Context) {
	semester, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester)
}

// Create godoc
// @Summary Create a semester
// @Tags Semesters
// @Accept json
// @Produce json
// @Param payload body dto.CreateSemesterRequest true "Semester payload"
// @Success 201 {object} response.Envelope
// @Router /semesters [post]
func (h *SemesterHandler) Create(c *gin.Context) {
	var req dto.CreateSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid semester payload"))
		return
	}
	semester, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, semester)
}

// Activate godoc
// @Summary Make a semester the active one
// @Tags Semesters
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/activate [post]
func (h *SemesterHandler) Activate(c *gin.Context) {
	semester, err := h.service.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester)
}
