package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
)

func newSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{
		Driver:        config.DriverSQLite,
		SQLitePath:    filepath.Join(t.TempDir(), "timetable.db"),
		SQLiteTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.RunMigrations(db, nil))
	return db
}

func slotEntry(teacher, classroom string) *models.TimetableEntry {
	return &models.TimetableEntry{
		TeacherID:   teacher,
		SubjectID:   "math",
		ClassroomID: classroom,
		SemesterID:  "sem1",
		DayOfWeek:   "Monday",
		StartTime:   "10:00",
		EndTime:     "10:45",
		IsActive:    true,
	}
}

func TestSQLiteUniqueIndexesRejectDuplicateSlots(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewTimetableRepository(db)
	ctx := context.Background()

	first := slotEntry("t1", "c1")
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, slotEntry("t2", "c1"))
	var violation *UniqueViolationError
	require.True(t, errors.As(err, &violation), "got %v", err)
	assert.Equal(t, models.ConflictAxisClassroom, violation.Axis)

	err = repo.Create(ctx, slotEntry("t1", "c2"))
	require.True(t, errors.As(err, &violation), "got %v", err)
	assert.Equal(t, models.ConflictAxisTeacher, violation.Axis)

	holder, err := repo.FindActiveBySlot(ctx, models.ConflictAxisTeacher, *slotEntry("t1", "c2"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, holder.ID)
}

func TestSQLiteDeactivatedSlotCanBeReused(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewTimetableRepository(db)
	ctx := context.Background()

	first := slotEntry("t1", "c1")
	require.NoError(t, repo.Create(ctx, first))

	deactivated, err := repo.Deactivate(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	require.NoError(t, repo.Create(ctx, slotEntry("t1", "c1")))

	all, err := repo.List(ctx, models.EntryFilter{SemesterID: "sem1", Status: models.EntryStatusAll})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	inactive, err := repo.List(ctx, models.EntryFilter{SemesterID: "sem1", Status: models.EntryStatusInactive})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, first.ID, inactive[0].ID)
}

func TestSQLiteOverlapAndUpcomingQueries(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewTimetableRepository(db)
	ctx := context.Background()

	long := slotEntry("t1", "c1")
	long.EndTime = "11:30"
	require.NoError(t, repo.Create(ctx, long))

	other := slotEntry("t2", "c2")
	other.StartTime, other.EndTime = "11:30", "12:15"
	require.NoError(t, repo.Create(ctx, other))

	hits, err := repo.FindOverlapping(ctx, "sem1", "Monday", "c1", "t9", "10:45", "11:30")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, long.ID, hits[0].ID)

	hits, err = repo.FindOverlapping(ctx, "sem1", "Monday", "c2", "t9", "10:45", "11:30")
	require.NoError(t, err)
	assert.Empty(t, hits)

	upcoming, err := repo.ListStartingBetween(ctx, "sem1", "Monday", "10:30", "11:30")
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, other.ID, upcoming[0].ID)
}

func TestSQLiteSemesterActivation(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewSemesterRepository(db)
	ctx := context.Background()

	start := time.Date(2026, 7, 13, 0, 0, 0, 0, time.UTC)
	odd := &models.Semester{Name: "2026 Odd", StartDate: start, EndDate: start.AddDate(0, 5, 0), IsActive: true}
	even := &models.Semester{Name: "2027 Even", StartDate: start.AddDate(0, 6, 0), EndDate: start.AddDate(0, 11, 0)}
	require.NoError(t, repo.Create(ctx, odd))
	require.NoError(t, repo.Create(ctx, even))

	require.NoError(t, repo.SetActive(ctx, even.ID))
	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, even.ID, active.ID)

	assert.Error(t, repo.SetActive(ctx, "missing"))
	active, err = repo.FindActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, even.ID, active.ID)

	dup := &models.Semester{Name: "rogue", StartDate: start, EndDate: start.AddDate(0, 1, 0), IsActive: true}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrUniqueViolation)

	sameDay := &models.Semester{Name: "one day", StartDate: start, EndDate: start}
	assert.Error(t, repo.Create(ctx, sameDay))
}
