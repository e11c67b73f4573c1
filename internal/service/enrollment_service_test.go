package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aulafit/checkin-api/internal/models"
	"github.com/aulafit/checkin-api/internal/repository"
	appErrors "github.com/aulafit/checkin-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	details     []models.EnrollmentDetail
	enrollErr   error
	unenrolled  []string
	cleared     string
	restored    bool
}

func (m *mockEnrollmentRepo) ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error) {
	var list []models.Enrollment
	for _, e := range m.enrollments {
		if e.UserID == userID {
			list = append(list, e)
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) ListDetailByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	return m.details, nil
}

func (m *mockEnrollmentRepo) FindByIDForUser(ctx context.Context, id, userID string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok && e.UserID == userID {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Enroll(ctx context.Context, userID, classID string, maxPerClass int) (*models.Enrollment, error) {
	if m.enrollErr != nil {
		return nil, m.enrollErr
	}
	return &models.Enrollment{ID: "enr-new", UserID: userID, ClassID: classID, EnrolledAt: time.Now().UTC()}, nil
}

func (m *mockEnrollmentRepo) Unenroll(ctx context.Context, id, userID string) error {
	m.unenrolled = append(m.unenrolled, id)
	return nil
}

func (m *mockEnrollmentRepo) ClearByClass(ctx context.Context, classID string, restoreSeats bool) (int64, error) {
	m.cleared = classID
	m.restored = restoreSeats
	return int64(len(m.details)), nil
}

type mockEnrollmentClassRepo struct {
	classes map[string]*models.Class
}

func (m *mockEnrollmentClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func newEnrollmentTestService(repo *mockEnrollmentRepo, classes *mockEnrollmentClassRepo, cfg EnrollmentConfig) *EnrollmentService {
	return NewEnrollmentService(repo, classes, validator.New(), zap.NewNop(), cfg)
}

func defaultEnrollmentConfig() EnrollmentConfig {
	return EnrollmentConfig{MaxPerClass: 6, CancelCutoff: 3 * time.Hour}
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := newEnrollmentTestService(repo, &mockEnrollmentClassRepo{}, defaultEnrollmentConfig())

	enrollment, err := svc.Enroll(context.Background(), "usr-1", "cls-1")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", enrollment.UserID)
	assert.Equal(t, "cls-1", enrollment.ClassID)
}

func TestEnrollmentServiceEnrollGuardMapping(t *testing.T) {
	cases := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{"seats exhausted", repository.ErrNoSeats, appErrors.ErrSeatsExhausted.Code},
		{"class full", repository.ErrClassCapacity, appErrors.ErrClassFull.Code},
		{"duplicate", repository.ErrDuplicate, appErrors.ErrAlreadyEnrolled.Code},
		{"missing class", sql.ErrNoRows, appErrors.ErrNotFound.Code},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockEnrollmentRepo{enrollErr: tc.repoErr}
			svc := newEnrollmentTestService(repo, &mockEnrollmentClassRepo{}, defaultEnrollmentConfig())

			_, err := svc.Enroll(context.Background(), "usr-1", "cls-1")
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, appErrors.FromError(err).Code)
		})
	}
}

func TestEnrollmentServiceEnrollRequiresClassID(t *testing.T) {
	svc := newEnrollmentTestService(&mockEnrollmentRepo{}, &mockEnrollmentClassRepo{}, defaultEnrollmentConfig())

	_, err := svc.Enroll(context.Background(), "usr-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUnenrollInsideCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", UserID: "usr-1", ClassID: "cls-1"},
	}}
	classes := &mockEnrollmentClassRepo{classes: map[string]*models.Class{
		"cls-1": {ID: "cls-1", StartsAt: now.Add(2 * time.Hour)},
	}}
	svc := newEnrollmentTestService(repo, classes, defaultEnrollmentConfig())
	svc.now = func() time.Time { return now }

	err := svc.Unenroll(context.Background(), "enr-1", "usr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCancelCutoff.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.unenrolled)
}

func TestEnrollmentServiceUnenrollOutsideCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", UserID: "usr-1", ClassID: "cls-1"},
	}}
	classes := &mockEnrollmentClassRepo{classes: map[string]*models.Class{
		"cls-1": {ID: "cls-1", StartsAt: now.Add(4 * time.Hour)},
	}}
	svc := newEnrollmentTestService(repo, classes, defaultEnrollmentConfig())
	svc.now = func() time.Time { return now }

	err := svc.Unenroll(context.Background(), "enr-1", "usr-1")
	require.NoError(t, err)
	assert.Contains(t, repo.unenrolled, "enr-1")
}

func TestEnrollmentServiceUnenrollNotOwner(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", UserID: "usr-1", ClassID: "cls-1"},
	}}
	svc := newEnrollmentTestService(repo, &mockEnrollmentClassRepo{}, defaultEnrollmentConfig())

	err := svc.Unenroll(context.Background(), "enr-1", "usr-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceReportEmptyIsNotFound(t *testing.T) {
	svc := newEnrollmentTestService(&mockEnrollmentRepo{}, &mockEnrollmentClassRepo{}, defaultEnrollmentConfig())

	_, err := svc.Report(context.Background(), "cls-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceReport(t *testing.T) {
	repo := &mockEnrollmentRepo{details: []models.EnrollmentDetail{
		{Enrollment: models.Enrollment{ID: "enr-1", UserID: "usr-1", ClassID: "cls-1"}, UserLogin: "maria"},
	}}
	svc := newEnrollmentTestService(repo, &mockEnrollmentClassRepo{}, defaultEnrollmentConfig())

	details, err := svc.Report(context.Background(), "cls-1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "maria", details[0].UserLogin)
}

func TestEnrollmentServiceClearReportPolicy(t *testing.T) {
	for _, restores := range []bool{true, false} {
		repo := &mockEnrollmentRepo{details: []models.EnrollmentDetail{{}, {}}}
		classes := &mockEnrollmentClassRepo{classes: map[string]*models.Class{"cls-1": {ID: "cls-1"}}}
		cfg := defaultEnrollmentConfig()
		cfg.ClearRestoresSeats = restores
		svc := newEnrollmentTestService(repo, classes, cfg)

		deleted, err := svc.ClearReport(context.Background(), "cls-1")
		require.NoError(t, err)
		assert.EqualValues(t, 2, deleted)
		assert.Equal(t, restores, repo.restored)
	}
}

func TestEnrollmentServiceClearReportMissingClass(t *testing.T) {
	svc := newEnrollmentTestService(&mockEnrollmentRepo{}, &mockEnrollmentClassRepo{}, defaultEnrollmentConfig())

	_, err := svc.ClearReport(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
