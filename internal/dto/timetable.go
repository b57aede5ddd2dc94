package dto

import "github.com/noah-isme/timetable-api/internal/models"

// ProposeEntryRequest is the payload for scheduling a new timetable entry.
type ProposeEntryRequest struct {
	TeacherID   string `json:"teacher" validate:"required"`
	SubjectID   string `json:"subject" validate:"required"`
	ClassroomID string `json:"classroom" validate:"required"`
	SemesterID  string `json:"semester" validate:"required"`
	DayOfWeek   string `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// BatchUpdateRequest carries independent per-entry patches. Gin enforces
// the item bounds while binding.
type BatchUpdateRequest struct {
	Items []models.EntryPatch `json:"items" binding:"required,min=1,max=500"`
}

// BatchUpdateResponse reports per-item outcomes.
type BatchUpdateResponse struct {
	Results []models.BatchItemResult `json:"results"`
	Updated int                      `json:"updated"`
	Failed  int                      `json:"failed"`
}

// UpcomingQuery holds the query params of the upcoming endpoint.
type UpcomingQuery struct {
	SemesterID string `form:"semester"`
	Horizon    int    `form:"horizon"`
	Now        string `form:"now"`
}

// CreateSemesterRequest registers a semester.
type CreateSemesterRequest struct {
	Name      string `json:"name" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}
