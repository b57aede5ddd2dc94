package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const semesterColumns = "id, name, start_date, end_date, is_active, created_at, updated_at"

// SemesterRepository handles persistence for semesters.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository instantiates a semester repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// List returns every semester, newest first.
func (r *SemesterRepository) List(ctx context.Context) ([]models.Semester, error) {
	semesters := []models.Semester{}
	if err := r.db.SelectContext(ctx, &semesters, `SELECT `+semesterColumns+` FROM semesters ORDER BY start_date DESC`); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// FindByID loads a semester by identifier.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, r.db.Rebind(`SELECT `+semesterColumns+` FROM semesters WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// FindActive returns the currently active semester.
func (r *SemesterRepository) FindActive(ctx context.Context) (*models.Semester, error) {
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, r.db.Rebind(`SELECT `+semesterColumns+` FROM semesters WHERE is_active = ? LIMIT 1`), true); err != nil {
		return nil, err
	}
	return &semester, nil
}

// Create inserts a new semester record.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if semester.CreatedAt.IsZero() {
		semester.CreatedAt = now
	}
	semester.UpdatedAt = now

	query := r.db.Rebind(`INSERT INTO semesters (` + semesterColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		semester.ID, semester.Name, semester.StartDate, semester.EndDate, semester.IsActive, semester.CreatedAt, semester.UpdatedAt); err != nil {
		return fmt.Errorf("create semester: %w", translateWriteError(err))
	}
	return nil
}

// SetActive marks the semester active and deactivates the rest in one
// transaction. A missing id rolls back and returns sql.ErrNoRows.
func (r *SemesterRepository) SetActive(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE semesters SET is_active = ?, updated_at = ? WHERE is_active = ? AND id <> ?`), false, now, true, id); err != nil {
		return fmt.Errorf("deactivate other semesters: %w", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE semesters SET is_active = ?, updated_at = ? WHERE id = ?`), true, now, id)
	if err != nil {
		return fmt.Errorf("activate semester: %w", translateWriteError(err))
	}
	if err = requireAffected(res); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set active tx: %w", err)
	}
	return nil
}
