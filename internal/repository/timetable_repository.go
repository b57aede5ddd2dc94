package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const entryColumns = "id, teacher_id, subject_id, classroom_id, semester_id, day_of_week, start_time, end_time, is_active, created_at, updated_at"

// dayOrder sorts weekday names in calendar order instead of lexically.
const dayOrder = "CASE day_of_week WHEN 'Monday' THEN 1 WHEN 'Tuesday' THEN 2 WHEN 'Wednesday' THEN 3 WHEN 'Thursday' THEN 4 WHEN 'Friday' THEN 5 WHEN 'Saturday' THEN 6 ELSE 7 END"

// TimetableRepository persists timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// FindByID loads an entry regardless of its active flag.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	query := r.db.Rebind(`SELECT ` + entryColumns + ` FROM timetable_entries WHERE id = ?`)
	var entry models.TimetableEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns entries matching the filter ordered by semester, day and start.
func (r *TimetableRepository) List(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error) {
	var conditions []string
	var args []interface{}

	if filter.SemesterID != "" {
		conditions = append(conditions, "semester_id = ?")
		args = append(args, filter.SemesterID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, "teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	if filter.ClassroomID != "" {
		conditions = append(conditions, "classroom_id = ?")
		args = append(args, filter.ClassroomID)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, "day_of_week = ?")
		args = append(args, filter.DayOfWeek)
	}
	switch filter.Status {
	case models.EntryStatusAll:
	case models.EntryStatusInactive:
		conditions = append(conditions, "is_active = ?")
		args = append(args, false)
	default:
		conditions = append(conditions, "is_active = ?")
		args = append(args, true)
	}

	query := "SELECT " + entryColumns + " FROM timetable_entries"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY semester_id ASC, " + dayOrder + " ASC, start_time ASC, classroom_id ASC"

	entries := []models.TimetableEntry{}
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// FindOverlapping returns active entries in the same semester and day that
// share the classroom or the teacher and intersect [start, end).
func (r *TimetableRepository) FindOverlapping(ctx context.Context, semesterID, day, classroomID, teacherID, start, end string) ([]models.TimetableEntry, error) {
	query := r.db.Rebind(`SELECT ` + entryColumns + ` FROM timetable_entries
		WHERE is_active = ? AND semester_id = ? AND day_of_week = ?
		AND (classroom_id = ? OR teacher_id = ?)
		AND start_time < ? AND ? < end_time
		ORDER BY start_time ASC`)
	entries := []models.TimetableEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, true, semesterID, day, classroomID, teacherID, end, start); err != nil {
		return nil, fmt.Errorf("find overlapping entries: %w", err)
	}
	return entries, nil
}

// FindActiveBySlot returns the active entry holding the exact slot on the
// given axis. It is used to describe a unique index rejection.
func (r *TimetableRepository) FindActiveBySlot(ctx context.Context, axis models.ConflictAxis, entry models.TimetableEntry) (*models.TimetableEntry, error) {
	column, owner := "classroom_id", entry.ClassroomID
	if axis == models.ConflictAxisTeacher {
		column, owner = "teacher_id", entry.TeacherID
	}
	query := r.db.Rebind(`SELECT ` + entryColumns + ` FROM timetable_entries
		WHERE is_active = ? AND ` + column + ` = ? AND semester_id = ? AND day_of_week = ?
		AND start_time = ? AND end_time = ? LIMIT 1`)
	var found models.TimetableEntry
	if err := r.db.GetContext(ctx, &found, query, true, owner, entry.SemesterID, entry.DayOfWeek, entry.StartTime, entry.EndTime); err != nil {
		return nil, err
	}
	return &found, nil
}

// ListStartingBetween returns active entries of a semester and day whose
// start time lies in [from, to].
func (r *TimetableRepository) ListStartingBetween(ctx context.Context, semesterID, day, from, to string) ([]models.TimetableEntry, error) {
	query := r.db.Rebind(`SELECT ` + entryColumns + ` FROM timetable_entries
		WHERE is_active = ? AND semester_id = ? AND day_of_week = ?
		AND start_time >= ? AND start_time <= ?
		ORDER BY start_time ASC, classroom_id ASC`)
	entries := []models.TimetableEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, true, semesterID, day, from, to); err != nil {
		return nil, fmt.Errorf("list upcoming entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry. Unique index rejections come back as
// *UniqueViolationError.
func (r *TimetableRepository) Create(ctx context.Context, entry *models.TimetableEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	query := r.db.Rebind(`INSERT INTO timetable_entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.TeacherID, entry.SubjectID, entry.ClassroomID, entry.SemesterID,
		entry.DayOfWeek, entry.StartTime, entry.EndTime, entry.IsActive, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create timetable entry: %w", translateWriteError(err))
	}
	return nil
}

// Update overwrites every mutable column of an existing entry.
func (r *TimetableRepository) Update(ctx context.Context, entry *models.TimetableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE timetable_entries SET teacher_id = ?, subject_id = ?, classroom_id = ?, semester_id = ?,
		day_of_week = ?, start_time = ?, end_time = ?, is_active = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		entry.TeacherID, entry.SubjectID, entry.ClassroomID, entry.SemesterID,
		entry.DayOfWeek, entry.StartTime, entry.EndTime, entry.IsActive, entry.UpdatedAt, entry.ID)
	if err != nil {
		return fmt.Errorf("update timetable entry: %w", translateWriteError(err))
	}
	return requireAffected(res)
}

// Deactivate clears the active flag and returns the stored entry.
func (r *TimetableRepository) Deactivate(ctx context.Context, id string) (*models.TimetableEntry, error) {
	query := r.db.Rebind(`UPDATE timetable_entries SET is_active = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, false, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("deactivate timetable entry: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// requireAffected maps a zero-row write to sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
