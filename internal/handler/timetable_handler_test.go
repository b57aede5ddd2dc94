package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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

type timetableServiceMock struct {
	proposeErr  error
	filter      models.EntryFilter
	batch       []models.EntryPatch
	upcomingAt  time.Time
	upcomingErr error
}

func (m *timetableServiceMock) Propose(_ context.Context, req dto.ProposeEntryRequest) (*models.TimetableEntry, error) {
	if m.proposeErr != nil {
		return nil, m.proposeErr
	}
	return &models.TimetableEntry{ID: "e1", ClassroomID: req.ClassroomID, IsActive: true}, nil
}

func (m *timetableServiceMock) Query(_ context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error) {
	m.filter = filter
	return []models.TimetableEntry{{ID: "e1"}}, nil
}

func (m *timetableServiceMock) BatchUpdate(_ context.Context, patches []models.EntryPatch) []models.BatchItemResult {
	m.batch = patches
	results := make([]models.BatchItemResult, len(patches))
	for i, p := range patches {
		results[i] = models.BatchItemResult{ID: p.ID, Status: models.BatchItemUpdated}
	}
	results[len(results)-1].Status = models.BatchItemNotFound
	return results
}

func (m *timetableServiceMock) Deactivate(_ context.Context, id string) (*models.TimetableEntry, error) {
	if id == "missing" {
		return nil, appErrors.ErrNotFound
	}
	return &models.TimetableEntry{ID: id}, nil
}

func (m *timetableServiceMock) RetrieveUpcoming(_ context.Context, now time.Time, _ int, _ string) ([]models.TimetableEntry, error) {
	m.upcomingAt = now
	return []models.TimetableEntry{}, m.upcomingErr
}

type exportServiceMock struct{}

func (exportServiceMock) Export(_ context.Context, _ models.EntryFilter, format string) (*service.ExportResult, error) {
	if format == "docx" {
		return nil, appErrors.ErrInvalidFilter
	}
	return &service.ExportResult{Filename: "timetable.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("Day\n")}, nil
}

func serve(t *testing.T, method, target string, body []byte, handle gin.HandlerFunc, params ...gin.Param) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	handle(c)
	return w
}

func TestTimetableHandlerProposeCreated(t *testing.T) {
	h := NewTimetableHandler(&timetableServiceMock{}, exportServiceMock{})
	w := serve(t, http.MethodPost, "/timetables", []byte(`{"teacher":"T1","subject":"math","classroom":"R1","semester":"S1","day_of_week":"Monday","start_time":"10:00","end_time":"10:45"}`), h.Propose)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"classroom":"R1"`)
}

func TestTimetableHandlerProposeConflictBody(t *testing.T) {
	conflict := &models.ConflictError{
		Axis:     models.ConflictAxisClassroom,
		Message:  "classroom R1 is booked",
		Conflict: models.TimetableEntry{ID: "held", ClassroomID: "R1"},
	}
	mock := &timetableServiceMock{proposeErr: appErrors.Wrap(conflict, appErrors.ErrClassroomConflict.Code, http.StatusConflict, conflict.Message).WithDetails(conflict)}
	h := NewTimetableHandler(mock, exportServiceMock{})
	w := serve(t, http.MethodPost, "/timetables", []byte(`{}`), h.Propose)

	require.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Axis     string `json:"axis"`
				Conflict struct {
					ID string `json:"id"`
				} `json:"conflict"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CLASSROOM_CONFLICT", body.Error.Code)
	assert.Equal(t, "CLASSROOM", body.Error.Details.Axis)
	assert.Equal(t, "held", body.Error.Details.Conflict.ID)
}

func TestTimetableHandlerProposeRejectsMalformedJSON(t *testing.T) {
	h := NewTimetableHandler(&timetableServiceMock{}, exportServiceMock{})
	w := serve(t, http.MethodPost, "/timetables", []byte(`{`), h.Propose)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerListPassesFilter(t *testing.T) {
	mock := &timetableServiceMock{}
	h := NewTimetableHandler(mock, exportServiceMock{})
	w := serve(t, http.MethodGet, "/timetables?teacher=T1&semester=S1&day=monday&status=ALL", nil, h.List)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EntryFilter{TeacherID: "T1", SemesterID: "S1", DayOfWeek: "monday", Status: models.EntryStatusAll}, mock.filter)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestTimetableHandlerBatchUpdateCounts(t *testing.T) {
	mock := &timetableServiceMock{}
	h := NewTimetableHandler(mock, exportServiceMock{})
	w := serve(t, http.MethodPut, "/timetables", []byte(`{"items":[{"id":"a","start_time":"11:30"},{"id":"b"}]}`), h.BatchUpdate)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mock.batch, 2)
	require.NotNil(t, mock.batch[0].StartTime)
	assert.Equal(t, "11:30", *mock.batch[0].StartTime)

	var body struct {
		Data dto.BatchUpdateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.Updated)
	assert.Equal(t, 1, body.Data.Failed)

	empty := serve(t, http.MethodPut, "/timetables", []byte(`{"items":[]}`), h.BatchUpdate)
	assert.Equal(t, http.StatusBadRequest, empty.Code)
}

func TestTimetableHandlerBatchUpdateRejectsOversizedBatch(t *testing.T) {
	mock := &timetableServiceMock{}
	h := NewTimetableHandler(mock, exportServiceMock{})

	items := make([]models.EntryPatch, 501)
	for i := range items {
		items[i] = models.EntryPatch{ID: fmt.Sprintf("e%d", i)}
	}
	payload, err := json.Marshal(dto.BatchUpdateRequest{Items: items})
	require.NoError(t, err)

	rec := serve(t, http.MethodPut, "/timetables", payload, h.BatchUpdate)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, mock.batch)

	payload, err = json.Marshal(dto.BatchUpdateRequest{Items: items[:500]})
	require.NoError(t, err)
	rec = serve(t, http.MethodPut, "/timetables", payload, h.BatchUpdate)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, mock.batch, 500)
}

func TestTimetableHandlerDeactivate(t *testing.T) {
	h := NewTimetableHandler(&timetableServiceMock{}, exportServiceMock{})
	ok := serve(t, http.MethodDelete, "/timetables/e1", nil, h.Deactivate, gin.Param{Key: "id", Value: "e1"})
	assert.Equal(t, http.StatusOK, ok.Code)

	missing := serve(t, http.MethodDelete, "/timetables/missing", nil, h.Deactivate, gin.Param{Key: "id", Value: "missing"})
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestTimetableHandlerUpcomingParsesNow(t *testing.T) {
	mock := &timetableServiceMock{}
	h := NewTimetableHandler(mock, exportServiceMock{})

	w := serve(t, http.MethodGet, "/timetables/upcoming?semester=S1&horizon=30&now=2026-10-19T10:00:00Z", nil, h.Upcoming)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.upcomingAt.Equal(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)))

	bad := serve(t, http.MethodGet, "/timetables/upcoming?semester=S1&horizon=30&now=yesterday", nil, h.Upcoming)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	mock.upcomingErr = appErrors.ErrInvalidFilter
	invalid := serve(t, http.MethodGet, "/timetables/upcoming?semester=S1&horizon=0", nil, h.Upcoming)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestTimetableHandlerExport(t *testing.T) {
	h := NewTimetableHandler(&timetableServiceMock{}, exportServiceMock{})
	w := serve(t, http.MethodGet, "/timetables/export?format=csv", nil, h.Export)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="timetable.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Day\n", w.Body.String())

	bad := serve(t, http.MethodGet, "/timetables/export?format=docx", nil, h.Export)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}
