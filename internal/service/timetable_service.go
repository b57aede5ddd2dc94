package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/repository"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/lock"
	"github.com/noah-isme/timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-api/pkg/timegrid"
)

type timetableStore interface {
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	List(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error)
	FindOverlapping(ctx context.Context, semesterID, day, classroomID, teacherID, start, end string) ([]models.TimetableEntry, error)
	FindActiveBySlot(ctx context.Context, axis models.ConflictAxis, entry models.TimetableEntry) (*models.TimetableEntry, error)
	ListStartingBetween(ctx context.Context, semesterID, day, from, to string) ([]models.TimetableEntry, error)
	Create(ctx context.Context, entry *models.TimetableEntry) error
	Update(ctx context.Context, entry *models.TimetableEntry) error
	Deactivate(ctx context.Context, id string) (*models.TimetableEntry, error)
}

// TimetableConfig tunes the engine's time budgets.
type TimetableConfig struct {
	LockWait     time.Duration
	StoreTimeout time.Duration
	Location     *time.Location
}

// TimetableService detects conflicts and owns every write to timetable entries.
type TimetableService struct {
	store     timetableStore
	grid      *timegrid.Grid
	locker    lock.Locker
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       TimetableConfig
}

// NewTimetableService instantiates TimetableService.
func NewTimetableService(store timetableStore, grid *timegrid.Grid, locker lock.Locker, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg TimetableConfig) *TimetableService {
	if grid == nil {
		grid = timegrid.Default()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 3 * time.Second
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &TimetableService{store: store, grid: grid, locker: locker, validator: validate, metrics: metrics, logger: logger, cfg: cfg}
}

// Grid exposes the slot grid entries are validated against.
func (s *TimetableService) Grid() *timegrid.Grid {
	return s.grid
}

// Propose validates a candidate, checks it against active entries sharing
// its classroom or teacher and stores it when no overlap exists.
func (s *TimetableService) Propose(ctx context.Context, req dto.ProposeEntryRequest) (entry *models.TimetableEntry, err error) {
	defer func() {
		outcome := "accepted"
		if err != nil {
			outcome = strings.ToLower(appErrors.FromError(err).Code)
		}
		s.metrics.RecordProposal(outcome)
	}()

	candidate, err := s.normalizeProposal(req)
	if err != nil {
		return nil, err
	}

	release, err := s.acquireSlotLocks(ctx, candidate)
	if err != nil {
		return nil, err
	}
	defer release()

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	started := time.Now()
	existing, err := s.store.FindOverlapping(storeCtx, candidate.SemesterID, candidate.DayOfWeek, candidate.ClassroomID, candidate.TeacherID, candidate.StartTime, candidate.EndTime)
	s.metrics.ObserveStoreCall("find_overlapping", time.Since(started))
	if err != nil {
		return nil, storeUnavailable(err, "failed to check timetable conflicts")
	}
	if err := detectConflict(candidate, existing); err != nil {
		return nil, err
	}

	candidate.IsActive = true
	started = time.Now()
	err = s.store.Create(storeCtx, &candidate)
	s.metrics.ObserveStoreCall("create", time.Since(started))
	if err != nil {
		return nil, s.translateWriteError(storeCtx, candidate, err, "failed to create timetable entry")
	}

	s.logger.Info("timetable entry created",
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.String("id", candidate.ID),
		zap.String("semester", candidate.SemesterID),
		zap.String("day", candidate.DayOfWeek),
		zap.String("start", candidate.StartTime),
		zap.String("end", candidate.EndTime),
	)
	return &candidate, nil
}

// Query lists entries matching the filter. Only active entries are returned
// unless the status says otherwise.
func (s *TimetableService) Query(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error) {
	normalized, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	started := time.Now()
	entries, err := s.store.List(storeCtx, normalized)
	s.metrics.ObserveStoreCall("list", time.Since(started))
	if err != nil {
		return nil, storeUnavailable(err, "failed to list timetable entries")
	}
	return entries, nil
}

// BatchUpdate applies each patch independently. Field validity is enforced
// but overlaps with other entries are not re-checked; only the exact-slot
// unique indexes can reject an item.
func (s *TimetableService) BatchUpdate(ctx context.Context, patches []models.EntryPatch) []models.BatchItemResult {
	results := make([]models.BatchItemResult, 0, len(patches))
	for _, patch := range patches {
		results = append(results, s.updateOne(ctx, patch))
	}
	return results
}

func (s *TimetableService) updateOne(ctx context.Context, patch models.EntryPatch) models.BatchItemResult {
	result := models.BatchItemResult{ID: strings.TrimSpace(patch.ID)}
	if result.ID == "" {
		result.Status = models.BatchItemInvalid
		result.Error = appErrors.Clone(appErrors.ErrMissingReference, "id is required")
		return result
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	existing, err := s.store.FindByID(storeCtx, result.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Status = models.BatchItemNotFound
			result.Error = appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
			return result
		}
		result.Status = models.BatchItemFailed
		result.Error = storeUnavailable(err, "failed to load timetable entry")
		return result
	}

	updated := *existing
	patch.Apply(&updated)
	if err := s.normalizeEntry(&updated); err != nil {
		result.Status = models.BatchItemInvalid
		result.Error = appErrors.FromError(err)
		return result
	}

	if err := s.store.Update(storeCtx, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Status = models.BatchItemNotFound
			result.Error = appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
			return result
		}
		appErr := appErrors.FromError(s.translateWriteError(storeCtx, updated, err, "failed to update timetable entry"))
		result.Status = models.BatchItemFailed
		if errors.Is(appErr, appErrors.ErrClassroomConflict) || errors.Is(appErr, appErrors.ErrTeacherConflict) {
			result.Status = models.BatchItemConflict
		}
		result.Error = appErr
		return result
	}

	result.Status = models.BatchItemUpdated
	result.Entry = &updated
	return result
}

// Deactivate soft-deletes an entry, freeing its slot for new proposals.
func (s *TimetableService) Deactivate(ctx context.Context, id string) (*models.TimetableEntry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	entry, err := s.store.Deactivate(storeCtx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, storeUnavailable(err, "failed to deactivate timetable entry")
	}
	s.logger.Info("timetable entry deactivated", zap.String("request_id", requestid.FromContext(ctx)), zap.String("id", id))
	return entry, nil
}

// RetrieveUpcoming returns active entries of the semester scheduled on now's
// weekday whose start lies within [now, now+horizon]. The window never
// extends past 23:59 of the same day.
func (s *TimetableService) RetrieveUpcoming(ctx context.Context, now time.Time, horizonMinutes int, semesterID string) ([]models.TimetableEntry, error) {
	semesterID = strings.TrimSpace(semesterID)
	if horizonMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidFilter, "horizon must be positive")
	}
	if semesterID == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidFilter, "semester is required")
	}

	local := now.In(s.cfg.Location)
	day, ok := timegrid.WeekdayOf(local)
	if !ok {
		return []models.TimetableEntry{}, nil
	}

	from := timegrid.ClockOf(local)
	to := from + timegrid.Clock(horizonMinutes)
	if to > lastMinute {
		to = lastMinute
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	started := time.Now()
	entries, err := s.store.ListStartingBetween(storeCtx, semesterID, day, from.String(), to.String())
	s.metrics.ObserveStoreCall("list_upcoming", time.Since(started))
	if err != nil {
		return nil, storeUnavailable(err, "failed to list upcoming entries")
	}
	return entries, nil
}

const lastMinute = timegrid.Clock(23*60 + 59)

func (s *TimetableService) normalizeProposal(req dto.ProposeEntryRequest) (models.TimetableEntry, error) {
	entry := models.TimetableEntry{
		TeacherID:   req.TeacherID,
		SubjectID:   req.SubjectID,
		ClassroomID: req.ClassroomID,
		SemesterID:  req.SemesterID,
		DayOfWeek:   req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	if err := s.normalizeEntry(&entry); err != nil {
		return models.TimetableEntry{}, err
	}
	return entry, nil
}

// normalizeEntry trims and validates an entry in the order time range,
// references, day.
func (s *TimetableService) normalizeEntry(entry *models.TimetableEntry) error {
	entry.TeacherID = strings.TrimSpace(entry.TeacherID)
	entry.SubjectID = strings.TrimSpace(entry.SubjectID)
	entry.ClassroomID = strings.TrimSpace(entry.ClassroomID)
	entry.SemesterID = strings.TrimSpace(entry.SemesterID)
	entry.StartTime = strings.TrimSpace(entry.StartTime)
	entry.EndTime = strings.TrimSpace(entry.EndTime)

	if err := s.grid.ValidateRange(entry.StartTime, entry.EndTime); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidTimeRange.Code, appErrors.ErrInvalidTimeRange.Status, err.Error())
	}

	refs := dto.ProposeEntryRequest{
		TeacherID:   entry.TeacherID,
		SubjectID:   entry.SubjectID,
		ClassroomID: entry.ClassroomID,
		SemesterID:  entry.SemesterID,
	}
	if err := s.validator.Struct(refs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrMissingReference.Code, appErrors.ErrMissingReference.Status, "teacher, subject, classroom and semester are required").
			WithDetails(missingFields(err))
	}

	day, err := timegrid.ParseWeekday(entry.DayOfWeek)
	if err != nil || !s.grid.HasDay(day) {
		return appErrors.Clone(appErrors.ErrInvalidDayOfWeek, fmt.Sprintf("day_of_week %q is not a teaching day", entry.DayOfWeek))
	}
	entry.DayOfWeek = day
	return nil
}

func missingFields(err error) map[string]interface{} {
	var fields []string
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(strings.TrimSuffix(fe.Field(), "ID")))
		}
	}
	return map[string]interface{}{"fields": fields}
}

func normalizeFilter(filter models.EntryFilter) (models.EntryFilter, error) {
	filter.TeacherID = strings.TrimSpace(filter.TeacherID)
	filter.ClassroomID = strings.TrimSpace(filter.ClassroomID)
	filter.SemesterID = strings.TrimSpace(filter.SemesterID)

	if raw := strings.TrimSpace(filter.DayOfWeek); raw != "" {
		day, err := timegrid.ParseWeekday(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrInvalidFilter, fmt.Sprintf("invalid day %q", raw))
		}
		filter.DayOfWeek = day
	} else {
		filter.DayOfWeek = ""
	}

	switch status := models.EntryStatus(strings.ToLower(strings.TrimSpace(string(filter.Status)))); status {
	case "":
		filter.Status = models.EntryStatusActive
	case models.EntryStatusActive, models.EntryStatusInactive, models.EntryStatusAll:
		filter.Status = status
	default:
		return filter, appErrors.Clone(appErrors.ErrInvalidFilter, fmt.Sprintf("invalid status %q", filter.Status))
	}
	return filter, nil
}

// slotLockKeys names the two critical sections a candidate belongs to.
func slotLockKeys(entry models.TimetableEntry) []string {
	return []string{
		fmt.Sprintf("classroom:%s:%s:%s", entry.SemesterID, entry.DayOfWeek, entry.ClassroomID),
		fmt.Sprintf("teacher:%s:%s:%s", entry.SemesterID, entry.DayOfWeek, entry.TeacherID),
	}
}

func (s *TimetableService) acquireSlotLocks(ctx context.Context, entry models.TimetableEntry) (lock.Release, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()

	started := time.Now()
	release, err := s.locker.Acquire(lockCtx, slotLockKeys(entry)...)
	s.metrics.ObserveLockWait(time.Since(started))
	if err != nil {
		s.logger.Warn("slot lock unavailable",
			zap.Error(err),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Strings("keys", slotLockKeys(entry)),
		)
		return nil, storeUnavailable(err, "timetable slot is busy, retry later")
	}
	return release, nil
}

// detectConflict reports the first overlapping entry, classroom before
// teacher.
func detectConflict(candidate models.TimetableEntry, existing []models.TimetableEntry) error {
	for _, item := range existing {
		if item.IsActive && item.ClassroomID == candidate.ClassroomID &&
			timegrid.Overlaps(candidate.StartTime, candidate.EndTime, item.StartTime, item.EndTime) {
			return conflictError(models.ConflictAxisClassroom, item)
		}
	}
	for _, item := range existing {
		if item.IsActive && item.TeacherID == candidate.TeacherID &&
			timegrid.Overlaps(candidate.StartTime, candidate.EndTime, item.StartTime, item.EndTime) {
			return conflictError(models.ConflictAxisTeacher, item)
		}
	}
	return nil
}

func conflictError(axis models.ConflictAxis, existing models.TimetableEntry) error {
	base := appErrors.ErrClassroomConflict
	if axis == models.ConflictAxisTeacher {
		base = appErrors.ErrTeacherConflict
	}
	domainErr := &models.ConflictError{Axis: axis, Message: base.Message, Conflict: existing}
	return appErrors.Wrap(domainErr, base.Code, base.Status, fmt.Sprintf("%s (%s %s-%s)", base.Message, existing.DayOfWeek, existing.StartTime, existing.EndTime)).
		WithDetails(domainErr)
}

// translateWriteError turns a unique index rejection into the matching
// conflict with the holder of the slot attached. Everything else is a store
// failure.
func (s *TimetableService) translateWriteError(ctx context.Context, entry models.TimetableEntry, err error, message string) error {
	var violation *repository.UniqueViolationError
	if !errors.As(err, &violation) {
		return storeUnavailable(err, message)
	}

	axis := violation.Axis
	if axis == "" {
		axis = models.ConflictAxisClassroom
	}
	holder, lookupErr := s.store.FindActiveBySlot(ctx, axis, entry)
	if lookupErr != nil {
		s.logger.Warn("conflicting entry lookup failed", zap.Error(lookupErr), zap.String("axis", string(axis)))
		holder = &models.TimetableEntry{
			TeacherID:   entry.TeacherID,
			ClassroomID: entry.ClassroomID,
			SemesterID:  entry.SemesterID,
			DayOfWeek:   entry.DayOfWeek,
			StartTime:   entry.StartTime,
			EndTime:     entry.EndTime,
			IsActive:    true,
		}
	}
	return conflictError(axis, *holder)
}

func storeUnavailable(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, message)
}
