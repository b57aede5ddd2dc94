package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/noah-isme/timetable-api/internal/models"
)

// Unique index names shared by both migration sets.
const (
	ClassroomSlotIndex  = "uq_timetable_classroom_slot"
	TeacherSlotIndex    = "uq_timetable_teacher_slot"
	ActiveSemesterIndex = "uq_semesters_single_active"

	pqUniqueViolation = "23505"
)

// ErrUniqueViolation is matched by every *UniqueViolationError.
var ErrUniqueViolation = errors.New("unique violation")

// UniqueViolationError reports which unique index rejected a write.
type UniqueViolationError struct {
	Index string
	Axis  models.ConflictAxis
	Err   error
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique violation on %s: %v", e.Index, e.Err)
}

func (e *UniqueViolationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUniqueViolation) match.
func (e *UniqueViolationError) Is(target error) bool { return target == ErrUniqueViolation }

// translateWriteError converts driver-specific unique violations into
// *UniqueViolationError and returns every other error unchanged.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return &UniqueViolationError{Index: pqErr.Constraint, Axis: axisForIndex(pqErr.Constraint), Err: err}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		index := indexFromSQLiteMessage(liteErr.Error())
		return &UniqueViolationError{Index: index, Axis: axisForIndex(index), Err: err}
	}

	return err
}

func axisForIndex(index string) models.ConflictAxis {
	switch index {
	case ClassroomSlotIndex:
		return models.ConflictAxisClassroom
	case TeacherSlotIndex:
		return models.ConflictAxisTeacher
	default:
		return ""
	}
}

// SQLite reports the column list ("UNIQUE constraint failed: t.a, t.b")
// rather than the index name.
func indexFromSQLiteMessage(msg string) string {
	switch {
	case strings.Contains(msg, "timetable_entries.classroom_id"):
		return ClassroomSlotIndex
	case strings.Contains(msg, "timetable_entries.teacher_id"):
		return TeacherSlotIndex
	case strings.Contains(msg, "semesters.is_active"):
		return ActiveSemesterIndex
	default:
		return ""
	}
}
