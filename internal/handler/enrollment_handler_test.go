package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/aulafit/checkin-api/internal/middleware"
	"github.com/aulafit/checkin-api/internal/models"
	"github.com/aulafit/checkin-api/internal/repository"
	"github.com/aulafit/checkin-api/internal/service"
)

type enrollmentRepoStub struct {
	enrollErr error
	details   []models.EnrollmentDetail
}

func (s *enrollmentRepoStub) ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error) {
	return []models.Enrollment{{ID: "enr-1", UserID: userID, ClassID: "cls-1"}}, nil
}

func (s *enrollmentRepoStub) ListDetailByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	return s.details, nil
}

func (s *enrollmentRepoStub) FindByIDForUser(ctx context.Context, id, userID string) (*models.Enrollment, error) {
	return nil, sql.ErrNoRows
}

func (s *enrollmentRepoStub) Enroll(ctx context.Context, userID, classID string, maxPerClass int) (*models.Enrollment, error) {
	if s.enrollErr != nil {
		return nil, s.enrollErr
	}
	return &models.Enrollment{ID: "enr-new", UserID: userID, ClassID: classID, EnrolledAt: time.Now().UTC()}, nil
}

func (s *enrollmentRepoStub) Unenroll(ctx context.Context, id, userID string) error {
	return nil
}

func (s *enrollmentRepoStub) ClearByClass(ctx context.Context, classID string, restoreSeats bool) (int64, error) {
	return 0, nil
}

type classRepoStub struct{}

func (s *classRepoStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return &models.Class{ID: id, StartsAt: time.Now().UTC().Add(24 * time.Hour)}, nil
}

func newEnrollmentHandlerTest(repo *enrollmentRepoStub) *EnrollmentHandler {
	svc := service.NewEnrollmentService(repo, &classRepoStub{}, nil, nil, service.EnrollmentConfig{
		MaxPerClass:  6,
		CancelCutoff: 3 * time.Hour,
	})
	return NewEnrollmentHandler(svc, nil)
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestEnrollmentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerTest(&enrollmentRepoStub{})

	c, w := newGinContext(http.MethodPost, "/enrollments", []byte(`{"class_id":"cls-1"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "usr-1", Role: models.RoleStudent})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestEnrollmentHandlerCreateClassFull(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerTest(&enrollmentRepoStub{enrollErr: repository.ErrClassCapacity})

	c, w := newGinContext(http.MethodPost, "/enrollments", []byte(`{"class_id":"cls-1"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "usr-1", Role: models.RoleStudent})

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerListOwn(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerTest(&enrollmentRepoStub{})

	c, w := newGinContext(http.MethodGet, "/enrollments", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "usr-1", Role: models.RoleStudent})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestEnrollmentHandlerReportRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerTest(&enrollmentRepoStub{})

	c, w := newGinContext(http.MethodGet, "/enrollments?classId=cls-1", nil)
	c.Request.URL.RawQuery = "classId=cls-1"
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "usr-1", Role: models.RoleStudent})

	handler.List(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestEnrollmentHandlerEmptyReportIsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerTest(&enrollmentRepoStub{})

	c, w := newGinContext(http.MethodGet, "/enrollments?classId=cls-1", nil)
	c.Request.URL.RawQuery = "classId=cls-1"
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})

	handler.List(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
