package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type timetableService interface {
	Propose(ctx context.Context, req dto.ProposeEntryRequest) (*models.TimetableEntry, error)
	Query(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error)
	BatchUpdate(ctx context.Context, patches []models.EntryPatch) []models.BatchItemResult
	Deactivate(ctx context.Context, id string) (*models.TimetableEntry, error)
	RetrieveUpcoming(ctx context.Context, now time.Time, horizonMinutes int, semesterID string) ([]models.TimetableEntry, error)
}

type exportService interface {
	Export(ctx context.Context, filter models.EntryFilter, format string) (*service.ExportResult, error)
}

// TimetableHandler exposes the timetable endpoints.
type TimetableHandler struct {
	service timetableService
	exports exportService
	now     func() time.Time
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(service timetableService, exports exportService) *TimetableHandler {
	return &TimetableHandler{service: service, exports: exports, now: time.Now}
}

// List godoc
// @Summary List timetable entries
// @Tags Timetable
// @Produce json
// @Param teacher query string false "Teacher ID"
// @Param classroom query string false "Classroom ID"
// @Param semester query string false "Semester ID"
// @Param day query string false "Day of week"
// @Param status query string false "active, inactive or all"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	entries, err := h.service.Query(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

// Propose godoc
// @Summary Propose a timetable entry
// @Description Persists the entry when neither the classroom nor the teacher is booked in an overlapping range.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.ProposeEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Propose(c *gin.Context) {
	var req dto.ProposeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	entry, err := h.service.Propose(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// BatchUpdate godoc
// @Summary Update several entries
// @Description Items are applied independently. Field validation runs per item; overlap checks do not.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.BatchUpdateRequest true "Patches"
// @Success 200 {object} response.Envelope
// @Router /timetables [put]
func (h *TimetableHandler) BatchUpdate(c *gin.Context) {
	var req dto.BatchUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	results := h.service.BatchUpdate(c.Request.Context(), req.Items)
	resp := dto.BatchUpdateResponse{Results: results}
	for _, r := range results {
		if r.Status == models.BatchItemUpdated {
			resp.Updated++
		} else {
			resp.Failed++
		}
	}
	response.JSON(c, http.StatusOK, resp)
}

// Deactivate godoc
// @Summary Deactivate an entry
// @Tags Timetable
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Deactivate(c *gin.Context) {
	entry, err := h.service.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry)
}

// Upcoming godoc
// @Summary Entries starting soon
// @Tags Timetable
// @Produce json
// @Param semester query string true "Semester ID"
// @Param horizon query int true "Minutes ahead"
// @Param now query string false "RFC3339 reference time"
// @Success 200 {object} response.Envelope
// @Router /timetables/upcoming [get]
func (h *TimetableHandler) Upcoming(c *gin.Context) {
	var q dto.UpcomingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidFilter.Code, appErrors.ErrInvalidFilter.Status, "invalid upcoming query"))
		return
	}
	now := h.now()
	if raw := strings.TrimSpace(q.Now); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidFilter, "now must be RFC3339"))
			return
		}
		now = parsed
	}

	entries, err := h.service.RetrieveUpcoming(c.Request.Context(), now, q.Horizon, q.SemesterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

// Export godoc
// @Summary Export entries
// @Tags Timetable
// @Produce octet-stream
// @Param format query string false "csv, pdf, xlsx or ics"
// @Success 200 {file} file
// @Router /timetables/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	result, err := h.exports.Export(c.Request.Context(), filterFromQuery(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.ContentType, result.Filename, result.Content)
}

func filterFromQuery(c *gin.Context) models.EntryFilter {
	return models.EntryFilter{
		TeacherID:   c.Query("teacher"),
		ClassroomID: c.Query("classroom"),
		SemesterID:  c.Query("semester"),
		DayOfWeek:   c.Query("day"),
		Status:      models.EntryStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
	}
}
