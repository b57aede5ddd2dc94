package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type alertRunner interface {
	Run(ctx context.Context, now time.Time) (*models.AlertRunResult, error)
}

// AlertHandler triggers alert sweeps on demand.
type AlertHandler struct {
	alerts alertRunner
}

// NewAlertHandler constructs the handler.
func NewAlertHandler(alerts alertRunner) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// Run godoc
// @Summary Run an alert sweep now
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alerts/run [post]
func (h *AlertHandler) Run(c *gin.Context) {
	result, err := h.alerts.Run(c.Request.Context(), time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
