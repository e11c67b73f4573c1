package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aulafit/checkin-api/internal/models"
	appErrors "github.com/aulafit/checkin-api/pkg/errors"
	"github.com/aulafit/checkin-api/pkg/export"
)

type reportEnrollmentRepository interface {
	ListDetailByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
}

type reportClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// ReportFile is a rendered export ready to be served as a download.
type ReportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ReportService renders class enrollment reports as downloadable files.
// Schedules are printed in the configured display timezone so the sheet
// matches the studio wall clock.
type ReportService struct {
	enrollments reportEnrollmentRepository
	classes     reportClassRepository
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
	location    *time.Location
}

// NewReportService constructs a ReportService. An unknown timezone name
// falls back to UTC.
func NewReportService(enrollments reportEnrollmentRepository, classes reportClassRepository, logger *zap.Logger, timezone string) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("unknown display timezone, using UTC", zap.String("timezone", timezone))
		location = time.UTC
	}
	return &ReportService{
		enrollments: enrollments,
		classes:     classes,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
		location:    location,
	}
}

// Export renders the enrollment report for a class in the requested format
// ("csv" or "pdf").
func (s *ReportService) Export(ctx context.Context, classID, format string) (*ReportFile, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	details, err := s.enrollments.ListDetailByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	dataset := export.Dataset{
		Headers: []string{"Login", "Enrolled At", "Class", "Schedule"},
	}
	for _, detail := range details {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Login":       detail.UserLogin,
			"Enrolled At": detail.EnrolledAt.In(s.location).Format("2006-01-02 15:04"),
			"Class":       detail.ClassName,
			"Schedule":    detail.ClassStartsAt.In(s.location).Format("2006-01-02 15:04"),
		})
	}

	stamp := class.StartsAt.In(s.location).Format("2006-01-02")
	switch format {
	case "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("class-report-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case "pdf":
		content, err := s.pdf.Render(dataset, fmt.Sprintf("%s - %s", class.Name, stamp))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("class-report-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
