package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

const alertJobType = "class_alert"

type upcomingFinder interface {
	RetrieveUpcoming(ctx context.Context, now time.Time, horizonMinutes int, semesterID string) ([]models.TimetableEntry, error)
}

type activeSemesterFinder interface {
	Active(ctx context.Context) (*models.Semester, error)
}

type alertQueue interface {
	Enqueue(job jobs.Job) error
}

// AlertConfig tunes the reminder sweep.
type AlertConfig struct {
	Horizon  time.Duration
	Location *time.Location
	// DedupTTL bounds how long a delivered alert suppresses repeats.
	DedupTTL time.Duration
}

// AlertService finds classes about to start and hands reminders to a Notifier.
type AlertService struct {
	timetable upcomingFinder
	semesters activeSemesterFinder
	marker    cache.Marker
	notifier  Notifier
	queue     alertQueue
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       AlertConfig
}

// NewAlertService instantiates AlertService. Without a queue alerts are
// delivered inline.
func NewAlertService(timetable upcomingFinder, semesters activeSemesterFinder, marker cache.Marker, notifier Notifier, metrics *MetricsService, logger *zap.Logger, cfg AlertConfig) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if marker == nil {
		marker = cache.NewMemoryMarker()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 30 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 24 * time.Hour
	}
	return &AlertService{timetable: timetable, semesters: semesters, marker: marker, notifier: notifier, metrics: metrics, logger: logger, cfg: cfg}
}

// UseQueue routes deliveries through q.
func (s *AlertService) UseQueue(q alertQueue) {
	s.queue = q
}

// Run performs one sweep for the active semester.
func (s *AlertService) Run(ctx context.Context, now time.Time) (*models.AlertRunResult, error) {
	semester, err := s.semesters.Active(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.timetable.RetrieveUpcoming(ctx, now, int(s.cfg.Horizon/time.Minute), semester.ID)
	if err != nil {
		return nil, err
	}

	result := &models.AlertRunResult{SemesterID: semester.ID, Found: len(entries)}
	date := now.In(s.cfg.Location).Format("2006-01-02")
	for _, entry := range entries {
		alert := models.ClassAlert{Entry: entry, Date: date}
		first, err := s.marker.MarkOnce(ctx, alert.DedupKey(), s.cfg.DedupTTL)
		if err != nil {
			s.logger.Warn("alert dedup unavailable", zap.Error(err), zap.String("key", alert.DedupKey()))
			first = true
		}
		if !first {
			result.Skipped++
			continue
		}

		job := jobs.Job{ID: alert.DedupKey(), Type: alertJobType, Payload: alert}
		if s.queue == nil {
			if err := s.Deliver(ctx, job); err != nil {
				s.logger.Warn("class alert failed", zap.Error(err), zap.String("entry", entry.ID))
				s.forget(ctx, alert.DedupKey())
				result.Skipped++
				continue
			}
		} else if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("class alert not queued", zap.Error(err), zap.String("entry", entry.ID))
			s.forget(ctx, alert.DedupKey())
			result.Skipped++
			continue
		}
		result.Enqueued++
	}

	s.logger.Info("alert sweep finished",
		zap.String("semester", result.SemesterID),
		zap.Int("found", result.Found),
		zap.Int("enqueued", result.Enqueued),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// Deliver is the queue handler for alert jobs.
func (s *AlertService) Deliver(ctx context.Context, job jobs.Job) error {
	alert, ok := job.Payload.(models.ClassAlert)
	if !ok {
		return fmt.Errorf("unexpected alert payload %T", job.Payload)
	}
	err := s.notifier.Notify(ctx, alert)
	s.metrics.RecordAlert(err == nil)
	return err
}

// DeadLetter releases the dedup mark of a job the queue gave up on so the
// next sweep retries it. It matches jobs.DeadLetterFunc.
func (s *AlertService) DeadLetter(job jobs.Job, err error) {
	s.logger.Error("class alert dropped", zap.String("job", job.ID), zap.Error(err))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.forget(ctx, job.ID)
}

// forget clears a dedup mark after an undelivered alert.
func (s *AlertService) forget(ctx context.Context, key string) {
	if err := s.marker.Unmark(ctx, key); err != nil {
		s.logger.Warn("alert dedup release failed", zap.Error(err), zap.String("key", key))
	}
}

// Schedule registers Run on a cron spec and returns the unstarted scheduler.
func (s *AlertService) Schedule(spec string, timeout time.Duration) (*cron.Cron, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	c := cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.Run(ctx, time.Now()); err != nil {
			s.logger.Warn("scheduled alert sweep failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid alert schedule %q: %w", spec, err)
	}
	return c, nil
}
