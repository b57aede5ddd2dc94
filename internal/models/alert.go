package models

import "fmt"

// ClassAlert is a reminder about an entry starting soon.
type ClassAlert struct {
	Entry TimetableEntry `json:"entry"`
	Date  string         `json:"date"`
}

// Message renders the reminder text handed to notifiers.
func (a ClassAlert) Message() string {
	return fmt.Sprintf("REMINDER: subject %s in classroom %s starting at %s (%s) for teacher %s.",
		a.Entry.SubjectID, a.Entry.ClassroomID, a.Entry.StartTime, a.Entry.DayOfWeek, a.Entry.TeacherID)
}

// DedupKey identifies one alert per entry per calendar day.
func (a ClassAlert) DedupKey() string {
	return a.Entry.ID + "@" + a.Date
}

// AlertRunResult summarises one alert sweep.
type AlertRunResult struct {
	SemesterID string `json:"semester_id"`
	Found      int    `json:"found"`
	Enqueued   int    `json:"enqueued"`
	Skipped    int    `json:"skipped"`
}
