package models

import (
	"time"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// TimetableEntry is one scheduled (teacher, subject, classroom, semester,
// day, time range) assignment. Referenced ids are opaque.
type TimetableEntry struct {
	ID          string    `db:"id" json:"id"`
	TeacherID   string    `db:"teacher_id" json:"teacher"`
	SubjectID   string    `db:"subject_id" json:"subject"`
	ClassroomID string    `db:"classroom_id" json:"classroom"`
	SemesterID  string    `db:"semester_id" json:"semester"`
	DayOfWeek   string    `db:"day_of_week" json:"day_of_week"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// EntryStatus selects entries by their active flag.
type EntryStatus string

const (
	EntryStatusActive   EntryStatus = "active"
	EntryStatusInactive EntryStatus = "inactive"
	EntryStatusAll      EntryStatus = "all"
)

// EntryFilter describes query params for listing entries. An empty Status
// means active entries only.
type EntryFilter struct {
	TeacherID   string
	ClassroomID string
	SemesterID  string
	DayOfWeek   string
	Status      EntryStatus
}

// EntryPatch carries the fields of a batch update item. Nil fields are left
// unchanged.
type EntryPatch struct {
	ID          string  `json:"id"`
	TeacherID   *string `json:"teacher,omitempty"`
	SubjectID   *string `json:"subject,omitempty"`
	ClassroomID *string `json:"classroom,omitempty"`
	SemesterID  *string `json:"semester,omitempty"`
	DayOfWeek   *string `json:"day_of_week,omitempty"`
	StartTime   *string `json:"start_time,omitempty"`
	EndTime     *string `json:"end_time,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Apply copies the set fields of the patch onto entry.
func (p EntryPatch) Apply(entry *TimetableEntry) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&entry.TeacherID, p.TeacherID)
	set(&entry.SubjectID, p.SubjectID)
	set(&entry.ClassroomID, p.ClassroomID)
	set(&entry.SemesterID, p.SemesterID)
	set(&entry.DayOfWeek, p.DayOfWeek)
	set(&entry.StartTime, p.StartTime)
	set(&entry.EndTime, p.EndTime)
	if p.IsActive != nil {
		entry.IsActive = *p.IsActive
	}
}

// BatchItemStatus is the per-item outcome of a batch update.
type BatchItemStatus string

const (
	BatchItemUpdated  BatchItemStatus = "updated"
	BatchItemNotFound BatchItemStatus = "not_found"
	BatchItemInvalid  BatchItemStatus = "invalid"
	BatchItemConflict BatchItemStatus = "conflict"
	BatchItemFailed   BatchItemStatus = "failed"
)

// BatchItemResult reports what happened to one batch update item.
type BatchItemResult struct {
	ID     string           `json:"id"`
	Status BatchItemStatus  `json:"status"`
	Entry  *TimetableEntry  `json:"entry,omitempty"`
	Error  *appErrors.Error `json:"error,omitempty"`
}

// ConflictAxis names the shared resource that collided.
type ConflictAxis string

const (
	ConflictAxisClassroom ConflictAxis = "CLASSROOM"
	ConflictAxisTeacher   ConflictAxis = "TEACHER"
)

// ConflictError is returned when a proposal collides with an active entry.
type ConflictError struct {
	Axis     ConflictAxis   `json:"axis"`
	Message  string         `json:"message"`
	Conflict TimetableEntry `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
