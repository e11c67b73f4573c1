package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aulafit/checkin-api/internal/models"
	appErrors "github.com/aulafit/checkin-api/pkg/errors"
)

type mockReportEnrollments struct {
	details []models.EnrollmentDetail
}

func (m *mockReportEnrollments) ListDetailByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	return m.details, nil
}

func newReportTestService(details []models.EnrollmentDetail, classes map[string]*models.Class, timezone string) *ReportService {
	return NewReportService(
		&mockReportEnrollments{details: details},
		&mockEnrollmentClassRepo{classes: classes},
		zap.NewNop(),
		timezone,
	)
}

func TestReportServiceExportCSV(t *testing.T) {
	startsAt := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	classes := map[string]*models.Class{
		"cls-1": {ID: "cls-1", Name: "Spinning", StartsAt: startsAt},
	}
	details := []models.EnrollmentDetail{
		{
			Enrollment:    models.Enrollment{ID: "enr-1", UserID: "usr-1", ClassID: "cls-1", EnrolledAt: startsAt.Add(-time.Hour)},
			UserLogin:     "maria",
			ClassName:     "Spinning",
			ClassStartsAt: startsAt,
		},
	}
	svc := newReportTestService(details, classes, "America/Manaus")

	file, err := svc.Export(context.Background(), "cls-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.FileName, ".csv"))

	content := string(file.Content)
	assert.Contains(t, content, "maria")
	// 22:00 UTC renders as 18:00 in Manaus (UTC-4).
	assert.Contains(t, content, "18:00")
}

func TestReportServiceExportPDF(t *testing.T) {
	classes := map[string]*models.Class{
		"cls-1": {ID: "cls-1", Name: "Spinning", StartsAt: time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)},
	}
	svc := newReportTestService(nil, classes, "UTC")

	file, err := svc.Export(context.Background(), "cls-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.NotEmpty(t, file.Content)
}

func TestReportServiceExportUnknownFormat(t *testing.T) {
	classes := map[string]*models.Class{"cls-1": {ID: "cls-1", Name: "Spinning"}}
	svc := newReportTestService(nil, classes, "UTC")

	_, err := svc.Export(context.Background(), "cls-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceExportMissingClass(t *testing.T) {
	svc := newReportTestService(nil, nil, "UTC")

	_, err := svc.Export(context.Background(), "missing", "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
