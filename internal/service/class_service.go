package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aulafit/checkin-api/internal/models"
	appErrors "github.com/aulafit/checkin-api/pkg/errors"
)

const classListCacheKey = "classes:upcoming"

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, id, name string, startsAt time.Time, image []byte) error
}

type classCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ClassConfig carries listing and upload constraints for classes.
type ClassConfig struct {
	WindowDays        int
	CacheTTL          time.Duration
	MaxImageSizeBytes int64
	AllowedMIMEs      []string
}

// ClassInput is the write payload for creating or updating a class. Image
// is optional on update and keeps the stored blob when nil.
type ClassInput struct {
	Name     string    `validate:"required,min=2,max=120"`
	StartsAt time.Time `validate:"required"`
	Image    []byte
}

// ClassService manages the class catalogue.
type ClassService struct {
	repo      classRepository
	cache     classCache
	validator *validator.Validate
	logger    *zap.Logger
	config    ClassConfig
	now       func() time.Time
}

// NewClassService constructs a ClassService instance.
func NewClassService(repo classRepository, cache classCache, validate *validator.Validate, logger *zap.Logger, config ClassConfig) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{
		repo:      repo,
		cache:     cache,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListUpcoming returns the classes starting within the configured window,
// served from cache when fresh.
func (s *ClassService) ListUpcoming(ctx context.Context) ([]models.Class, error) {
	if s.cache != nil {
		var cached []models.Class
		if err := s.cache.Get(ctx, classListCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("class list cache read failed", zap.Error(err))
		}
	}

	now := s.now()
	filter := models.ClassFilter{
		From:  now,
		Until: now.AddDate(0, 0, s.config.WindowDays),
	}
	classes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	if classes == nil {
		classes = []models.Class{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, classListCacheKey, classes, s.config.CacheTTL); err != nil {
			s.logger.Warn("class list cache write failed", zap.Error(err))
		}
	}
	return classes, nil
}

// ListAll returns every active class regardless of schedule, for admins.
func (s *ClassService) ListAll(ctx context.Context) ([]models.Class, error) {
	classes, err := s.repo.List(ctx, models.ClassFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	if classes == nil {
		classes = []models.Class{}
	}
	return classes, nil
}

// GetByID returns a single class.
func (s *ClassService) GetByID(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create registers a new class. The image is mandatory on creation.
func (s *ClassService) Create(ctx context.Context, input ClassInput) (*models.Class, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if len(input.Image) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image is required")
	}
	if err := s.checkImage(input.Image); err != nil {
		return nil, err
	}

	class := &models.Class{
		Name:     input.Name,
		StartsAt: input.StartsAt.UTC(),
		Image:    input.Image,
		Active:   true,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.invalidateListCache(ctx)
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("name", class.Name))
	return class, nil
}

// Update replaces the class name and schedule, and the image when a new one
// is uploaded.
func (s *ClassService) Update(ctx context.Context, id string, input ClassInput) (*models.Class, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if len(input.Image) > 0 {
		if err := s.checkImage(input.Image); err != nil {
			return nil, err
		}
	}

	var image []byte
	if len(input.Image) > 0 {
		image = input.Image
	}
	if err := s.repo.Update(ctx, id, input.Name, input.StartsAt.UTC(), image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}

	s.invalidateListCache(ctx)

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *ClassService) checkImage(image []byte) error {
	if s.config.MaxImageSizeBytes > 0 && int64(len(image)) > s.config.MaxImageSizeBytes {
		return appErrors.ErrPayloadTooLarge
	}

	detected := http.DetectContentType(image)
	for _, allowed := range s.config.AllowedMIMEs {
		if detected == allowed {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrUnsupportedMedia, "unsupported image type "+detected)
}

func (s *ClassService) invalidateListCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, classListCacheKey); err != nil {
		s.logger.Warn("class list cache invalidation failed", zap.Error(err))
	}
}
