package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aulafit/checkin-api/internal/models"
	"github.com/aulafit/checkin-api/internal/repository"
	appErrors "github.com/aulafit/checkin-api/pkg/errors"
)

type enrollmentRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error)
	ListDetailByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
	FindByIDForUser(ctx context.Context, id, userID string) (*models.Enrollment, error)
	Enroll(ctx context.Context, userID, classID string, maxPerClass int) (*models.Enrollment, error)
	Unenroll(ctx context.Context, id, userID string) error
	ClearByClass(ctx context.Context, classID string, restoreSeats bool) (int64, error)
}

type enrollmentClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// EnrollmentConfig carries the business rules applied to check-ins.
type EnrollmentConfig struct {
	MaxPerClass        int
	CancelCutoff       time.Duration
	ClearRestoresSeats bool
}

// EnrollmentService implements enrollment use cases: check-in, cancellation
// and the per-class report.
type EnrollmentService struct {
	repo      enrollmentRepository
	classRepo enrollmentClassRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    EnrollmentConfig
	now       func() time.Time
}

// NewEnrollmentService constructs an EnrollmentService instance.
func NewEnrollmentService(repo enrollmentRepository, classRepo enrollmentClassRepository, validate *validator.Validate, logger *zap.Logger, config EnrollmentConfig) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{
		repo:      repo,
		classRepo: classRepo,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListOwn returns the caller's enrollments.
func (s *EnrollmentService) ListOwn(ctx context.Context, userID string) ([]models.Enrollment, error) {
	enrollments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if enrollments == nil {
		enrollments = []models.Enrollment{}
	}
	return enrollments, nil
}

// Report returns the enrollments held against a class with user logins.
// An empty report is a not-found condition, matching the original behaviour
// of the check-in screen.
func (s *EnrollmentService) Report(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}

	details, err := s.repo.ListDetailByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build enrollment report")
	}
	if len(details) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no enrollments found for this class")
	}
	return details, nil
}

// Enroll registers the caller into a class. Capacity, seat quota and the
// duplicate guard are enforced atomically by the repository.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, classID string) (*models.Enrollment, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}

	enrollment, err := s.repo.Enroll(ctx, userID, classID, s.config.MaxPerClass)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoSeats):
			return nil, appErrors.ErrSeatsExhausted
		case errors.Is(err, repository.ErrClassCapacity):
			return nil, appErrors.ErrClassFull
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.ErrAlreadyEnrolled
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user or class not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
		}
	}

	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("user_id", userID),
		zap.String("class_id", classID))
	return enrollment, nil
}

// Unenroll cancels the caller's enrollment and restores the seat, provided
// the class starts later than the cancellation cutoff.
func (s *EnrollmentService) Unenroll(ctx context.Context, id, userID string) error {
	enrollment, err := s.repo.FindByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	class, err := s.classRepo.FindByID(ctx, enrollment.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if class.StartsAt.Sub(s.now()) <= s.config.CancelCutoff {
		return appErrors.ErrCancelCutoff
	}

	if err := s.repo.Unenroll(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}

	s.logger.Info("enrollment cancelled",
		zap.String("enrollment_id", id),
		zap.String("user_id", userID))
	return nil
}

// ClearReport removes every enrollment held against a class. Whether the
// affected users get their seats back is a deployment policy.
func (s *EnrollmentService) ClearReport(ctx context.Context, classID string) (int64, error) {
	if classID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}

	if _, err := s.classRepo.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	deleted, err := s.repo.ClearByClass(ctx, classID, s.config.ClearRestoresSeats)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear enrollments")
	}

	s.logger.Info("class report cleared",
		zap.String("class_id", classID),
		zap.Int64("deleted", deleted),
		zap.Bool("seats_restored", s.config.ClearRestoresSeats))
	return deleted, nil
}
