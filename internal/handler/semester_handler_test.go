package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type semesterServiceMock struct {
	activated string
	created   dto.CreateSemesterRequest
}

func (m *semesterServiceMock) List(context.Context) ([]models.Semester, error) {
	return []models.Semester{{ID: "S1"}, {ID: "S2"}}, nil
}

func (m *semesterServiceMock) Get(_ context.Context, id string) (*models.Semester, error) {
	if id != "S1" {
		return nil, appErrors.ErrNotFound
	}
	return &models.Semester{ID: id}, nil
}

func (m *semesterServiceMock) Active(context.Context) (*models.Semester, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no active semester")
}

func (m *semesterServiceMock) Create(_ context.Context, req dto.CreateSemesterRequest) (*models.Semester, error) {
	m.created = req
	return &models.Semester{ID: "new", Name: req.Name}, nil
}

func (m *semesterServiceMock) Activate(_ context.Context, id string) (*models.Semester, error) {
	m.activated = id
	return &models.Semester{ID: id, IsActive: true}, nil
}

func TestSemesterHandlerRoutes(t *testing.T) {
	mock := &semesterServiceMock{}
	h := NewSemesterHandler(mock)

	assert.Equal(t, http.StatusOK, serve(t, http.MethodGet, "/semesters", nil, h.List).Code)
	assert.Equal(t, http.StatusNotFound, serve(t, http.MethodGet, "/semesters/active", nil, h.Active).Code)
	assert.Equal(t, http.StatusNotFound, serve(t, http.MethodGet, "/semesters/S9", nil, h.Get, gin.Param{Key: "id", Value: "S9"}).Code)

	w := serve(t, http.MethodPost, "/semesters/S1/activate", nil, h.Activate, gin.Param{Key: "id", Value: "S1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S1", mock.activated)
	assert.Contains(t, w.Body.String(), `"is_active":true`)

	created := serve(t, http.MethodPost, "/semesters", []byte(`{"name":"Odd 2026","start_date":"2026-07-13","end_date":"2026-12-18"}`), h.Create)
	require.Equal(t, http.StatusCreated, created.Code)
	assert.Equal(t, "Odd 2026", mock.created.Name)
}

type alertRunnerMock struct {
	err error
}

func (m alertRunnerMock) Run(context.Context, time.Time) (*models.AlertRunResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.AlertRunResult{SemesterID: "S1", Found: 2, Enqueued: 1, Skipped: 1}, nil
}

func TestAlertHandlerRun(t *testing.T) {
	ok := serve(t, http.MethodPost, "/alerts/run", nil, NewAlertHandler(alertRunnerMock{}).Run)
	require.Equal(t, http.StatusOK, ok.Code)
	assert.Contains(t, ok.Body.String(), `"enqueued":1`)

	failed := serve(t, http.MethodPost, "/alerts/run", nil, NewAlertHandler(alertRunnerMock{err: appErrors.ErrStoreUnavailable}).Run)
	assert.Equal(t, http.StatusServiceUnavailable, failed.Code)
}

type pingerMock struct{ err error }

func (p pingerMock) PingContext(context.Context) error { return p.err }

func TestMetricsHandlerReadyAndSummary(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordProposal("accepted")

	ready := serve(t, http.MethodGet, "/ready", nil, NewMetricsHandler(metrics, pingerMock{}).Ready)
	assert.Equal(t, http.StatusOK, ready.Code)

	down := serve(t, http.MethodGet, "/ready", nil, NewMetricsHandler(metrics, pingerMock{err: errors.New("refused")}).Ready)
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)

	summary := serve(t, http.MethodGet, "/metrics/summary", nil, NewMetricsHandler(metrics, nil).Summary)
	require.Equal(t, http.StatusOK, summary.Code)
	assert.Contains(t, summary.Body.String(), `"accepted":1`)

	prom := serve(t, http.MethodGet, "/metrics", nil, NewMetricsHandler(metrics, nil).Prometheus)
	assert.Contains(t, prom.Body.String(), "timetable_proposals_total")
}
