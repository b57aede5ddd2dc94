package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type semesterRepository interface {
	List(ctx context.Context) ([]models.Semester, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
	Create(ctx context.Context, semester *models.Semester) error
	SetActive(ctx context.Context, id string) error
}

// SemesterService manages semesters and the single active one.
type SemesterService struct {
	repo      semesterRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService instantiates SemesterService.
func NewSemesterService(repo semesterRepository, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{repo: repo, validator: validate, logger: logger}
}

// List returns every semester.
func (s *SemesterService) List(ctx context.Context) ([]models.Semester, error) {
	semesters, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeUnavailable(err, "failed to list semesters")
	}
	return semesters, nil
}

// Get loads a semester by id.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, storeUnavailable(err, "failed to load semester")
	}
	return semester, nil
}

// Active returns the active semester or NOT_FOUND when none is active.
func (s *SemesterService) Active(ctx context.Context) (*models.Semester, error) {
	semester, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active semester")
		}
		return nil, storeUnavailable(err, "failed to load active semester")
	}
	return semester, nil
}

// Create registers an inactive semester.
func (s *SemesterService) Create(ctx context.Context, req dto.CreateSemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)
	if !end.After(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}

	semester := &models.Semester{Name: strings.TrimSpace(req.Name), StartDate: start, EndDate: end}
	if err := s.repo.Create(ctx, semester); err != nil {
		return nil, storeUnavailable(err, "failed to create semester")
	}
	return semester, nil
}

// Activate makes id the only active semester in a single transaction.
func (s *SemesterService) Activate(ctx context.Context, id string) (*models.Semester, error) {
	id = strings.TrimSpace(id)
	if err := s.repo.SetActive(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, storeUnavailable(err, "failed to activate semester")
	}
	s.logger.Info("semester activated", zap.String("id", id))
	return s.Get(ctx, id)
}
