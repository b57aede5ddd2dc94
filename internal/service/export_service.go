package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
	"github.com/noah-isme/timetable-api/pkg/timegrid"
)

var exportHeaders = []string{"Day", "Start", "End", "Subject", "Classroom", "Teacher", "Semester"}

type entryQuerier interface {
	Query(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, error)
}

type semesterGetter interface {
	Get(ctx context.Context, id string) (*models.Semester, error)
}

// ExportResult is a rendered document ready to be streamed.
type ExportResult struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders timetable listings as downloadable documents.
type ExportService struct {
	timetable entryQuerier
	semesters semesterGetter
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	xlsx      *export.XLSXExporter
	ics       *export.ICSExporter
	location  *time.Location
	logger    *zap.Logger
}

// NewExportService instantiates ExportService.
func NewExportService(timetable entryQuerier, semesters semesterGetter, location *time.Location, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.Local
	}
	return &ExportService{
		timetable: timetable,
		semesters: semesters,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		xlsx:      export.NewXLSXExporter(),
		ics:       export.NewICSExporter(),
		location:  location,
		logger:    logger,
	}
}

// Export renders the entries matching filter in the requested format.
func (s *ExportService) Export(ctx context.Context, filter models.EntryFilter, rawFormat string) (*ExportResult, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidFilter, err.Error())
	}
	if format == export.FormatICS && filter.SemesterID == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidFilter, "calendar export requires a semester")
	}

	entries, err := s.timetable.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)

	var content []byte
	switch format {
	case export.FormatICS:
		semester, err := s.semesters.Get(ctx, filter.SemesterID)
		if err != nil {
			return nil, err
		}
		content, err = s.ics.Render(s.calendar(semester, entries))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar")
		}
	default:
		data := dataset(entries)
		switch format {
		case export.FormatPDF:
			content, err = s.pdf.Render(data)
		case export.FormatXLSX:
			content, err = s.xlsx.Render(data)
		default:
			content, err = s.csv.Render(data)
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
	}

	s.logger.Debug("timetable exported", zap.String("format", string(format)), zap.Int("entries", len(entries)))
	return &ExportResult{
		Filename:    exportFilename(filter, format),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

func (s *ExportService) calendar(semester *models.Semester, entries []models.TimetableEntry) export.Calendar {
	cal := export.Calendar{Name: semester.Name}
	first := dateIn(semester.StartDate, s.location)
	until := dateIn(semester.EndDate, s.location).Add(24*time.Hour - time.Second)

	for _, entry := range entries {
		weekday, ok := timegrid.TimeWeekday(entry.DayOfWeek)
		if !ok {
			continue
		}
		day := first.AddDate(0, 0, (int(weekday)-int(first.Weekday())+7)%7)
		if day.After(until) {
			continue
		}
		start, err := timegrid.ParseClock(entry.StartTime)
		if err != nil {
			continue
		}
		end, err := timegrid.ParseClock(entry.EndTime)
		if err != nil {
			continue
		}
		cal.Events = append(cal.Events, export.Event{
			UID:         entry.ID,
			Summary:     entry.SubjectID,
			Location:    entry.ClassroomID,
			Description: "Teacher " + entry.TeacherID,
			Start:       day.Add(time.Duration(start) * time.Minute),
			End:         day.Add(time.Duration(end) * time.Minute),
			Until:       until,
		})
	}
	return cal
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func dataset(entries []models.TimetableEntry) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, map[string]string{
			"Day":       entry.DayOfWeek,
			"Start":     entry.StartTime,
			"End":       entry.EndTime,
			"Subject":   entry.SubjectID,
			"Classroom": entry.ClassroomID,
			"Teacher":   entry.TeacherID,
			"Semester":  entry.SemesterID,
		})
	}
	return export.Dataset{Title: "Timetable", Headers: exportHeaders, Rows: rows}
}

func sortEntries(entries []models.TimetableEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if da, db := timegrid.DayOrder(a.DayOfWeek), timegrid.DayOrder(b.DayOfWeek); da != db {
			return da < db
		}
		return a.StartTime < b.StartTime
	})
}

func exportFilename(filter models.EntryFilter, format export.Format) string {
	name := "timetable"
	if filter.SemesterID != "" {
		name += "-" + filter.SemesterID
	}
	return fmt.Sprintf("%s.%s", name, format)
}
