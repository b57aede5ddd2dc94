package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

var entryRowColumns = []string{"id", "teacher_id", "subject_id", "classroom_id", "semester_id", "day_of_week", "start_time", "end_time", "is_active", "created_at", "updated_at"}

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableRepositoryListDefaultsToActive(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(entryRowColumns).
		AddRow("e1", "t1", "s1", "c1", "sem1", "Monday", "10:00", "10:45", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_entries WHERE semester_id = ? AND teacher_id = ? AND is_active = ? ORDER BY semester_id ASC")).
		WithArgs("sem1", "t1", true).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.EntryFilter{SemesterID: "sem1", TeacherID: "t1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ClassroomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListAllSkipsActiveFlag(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_entries WHERE day_of_week = ? ORDER BY")).
		WithArgs("Friday").
		WillReturnRows(sqlmock.NewRows(entryRowColumns))

	list, err := repo.List(context.Background(), models.EntryFilter{DayOfWeek: "Friday", Status: models.EntryStatusAll})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindOverlappingArgs(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	mock.ExpectQuery("FROM timetable_entries\\s+WHERE is_active = \\? AND semester_id = \\? AND day_of_week = \\?").
		WithArgs(true, "sem1", "Monday", "c1", "t1", "11:30", "10:45").
		WillReturnRows(sqlmock.NewRows(entryRowColumns).
			AddRow("e1", "t9", "s1", "c1", "sem1", "Monday", "10:00", "11:30", true, now, now))

	hits, err := repo.FindOverlapping(context.Background(), "sem1", "Monday", "c1", "t1", "10:45", "11:30")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "e1", hits[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreateTranslatesPostgresUniqueViolation(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec("INSERT INTO timetable_entries").
		WillReturnError(&pq.Error{Code: "23505", Constraint: TeacherSlotIndex})

	err := repo.Create(context.Background(), &models.TimetableEntry{TeacherID: "t1", ClassroomID: "c1", SemesterID: "sem1", DayOfWeek: "Monday", StartTime: "10:00", EndTime: "10:45", IsActive: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUniqueViolation))

	var violation *UniqueViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, models.ConflictAxisTeacher, violation.Axis)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreatePassesOtherErrors(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec("INSERT INTO timetable_entries").WillReturnError(sql.ErrConnDone)

	err := repo.Create(context.Background(), &models.TimetableEntry{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUniqueViolation))
	assert.True(t, errors.Is(err, sql.ErrConnDone))
}

func TestTimetableRepositoryDeactivateMissing(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_entries SET is_active = ?")).
		WithArgs(false, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Deactivate(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeactivateReloads(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_entries SET is_active = ?")).
		WithArgs(false, sqlmock.AnyArg(), "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_entries WHERE id = ?")).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(entryRowColumns).
			AddRow("e1", "t1", "s1", "c1", "sem1", "Monday", "10:00", "10:45", false, now, now))

	entry, err := repo.Deactivate(context.Background(), "e1")
	require.NoError(t, err)
	assert.False(t, entry.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexFromSQLiteMessage(t *testing.T) {
	assert.Equal(t, ClassroomSlotIndex, indexFromSQLiteMessage("UNIQUE constraint failed: timetable_entries.classroom_id, timetable_entries.day_of_week"))
	assert.Equal(t, TeacherSlotIndex, indexFromSQLiteMessage("UNIQUE constraint failed: timetable_entries.teacher_id, timetable_entries.day_of_week"))
	assert.Equal(t, ActiveSemesterIndex, indexFromSQLiteMessage("UNIQUE constraint failed: semesters.is_active"))
	assert.Equal(t, "", indexFromSQLiteMessage("UNIQUE constraint failed: other.id"))
}
