package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/academyhq/academy-api/internal/models"
	apperrors "github.com/academyhq/academy-api/pkg/errors"
	"github.com/academyhq/academy-api/pkg/export"
)

const (
	courseCachePrefix  = "courses:"
	courseListCacheKey = courseCachePrefix + "list:%s"
	courseItemCacheKey = courseCachePrefix + "item:%s"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithInstructor, int, error)
	ListAll(ctx context.Context) ([]models.CourseWithInstructor, error)
	FindByID(ctx context.Context, id string) (*models.CourseWithInstructor, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type instructorFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type courseCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateCourseRequest captures fields for creating courses.
type CreateCourseRequest struct {
	InstructorID string   `json:"instructor_id" validate:"required"`
	Title        string   `json:"title" validate:"required,max=255"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price" validate:"required,gte=0"`
	Status       string   `json:"status" validate:"required,oneof=published unpublished"`
}

// UpdateCourseRequest modifies course fields; nil fields are left untouched.
type UpdateCourseRequest struct {
	InstructorID *string  `json:"instructor_id"`
	Title        *string  `json:"title" validate:"omitempty,max=255"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price" validate:"omitempty,gte=0"`
	Status       *string  `json:"status" validate:"omitempty,oneof=published unpublished"`
}

// CourseService handles the course catalog managed by admins on
// instructors' behalf.
type CourseService struct {
	repo      courseRepository
	users     instructorFinder
	cache     courseCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewCourseService creates a new course service. Cache and metrics are
// optional.
func NewCourseService(repo courseRepository, users instructorFinder, cache courseCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, users: users, cache: cache, metrics: metrics, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

type cachedCourseList struct {
	Courses    []models.CourseWithInstructor `json:"courses"`
	Pagination models.Pagination             `json:"pagination"`
}

// List returns paginated courses, served from cache when possible.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithInstructor, *models.Pagination, error) {
	key := fmt.Sprintf(courseListCacheKey, listCacheSuffix(filter))

	if s.cache != nil {
		start := time.Now()
		var cached cachedCourseList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.recordCache(true, time.Since(start))
			return cached.Courses, &cached.Pagination, nil
		}
		s.recordCache(false, time.Since(start))
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to list courses")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedCourseList{Courses: courses, Pagination: *pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache course list", zap.Error(err))
		}
	}

	return courses, pagination, nil
}

// Get returns a course by identifier.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseWithInstructor, error) {
	key := fmt.Sprintf(courseItemCacheKey, id)

	if s.cache != nil {
		start := time.Now()
		var cached models.CourseWithInstructor
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.recordCache(true, time.Since(start))
			return &cached, nil
		}
		s.recordCache(false, time.Since(start))
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "Course not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load course")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, course, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache course", zap.Error(err))
		}
	}

	return course, nil
}

// Create adds a new course after validating the owning instructor's role.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid course payload")
	}

	if err := s.checkInstructor(ctx, req.InstructorID); err != nil {
		return nil, err
	}

	course := &models.Course{
		InstructorID: req.InstructorID,
		Title:        req.Title,
		Description:  req.Description,
		Price:        *req.Price,
		Status:       models.CourseStatus(req.Status),
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidate(ctx)
	return course, nil
}

// Update modifies an existing course; a changed instructor is re-validated.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid course payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "Course not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load course")
	}

	course := existing.Course

	if req.InstructorID != nil && *req.InstructorID != course.InstructorID {
		if err := s.checkInstructor(ctx, *req.InstructorID); err != nil {
			return nil, err
		}
		course.InstructorID = *req.InstructorID
	}
	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = req.Description
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.Status != nil {
		course.Status = models.CourseStatus(*req.Status)
	}

	if err := s.repo.Update(ctx, &course); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidate(ctx)
	return &course, nil
}

// Delete removes a course.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrNotFound, "Course not found")
		}
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load course")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to delete course")
	}

	s.invalidate(ctx)
	return nil
}

// Export renders the full catalog as CSV or PDF.
func (s *CourseService) Export(ctx context.Context, format string) ([]byte, string, error) {
	courses, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to list courses")
	}

	table := export.Table{
		Headers: []string{"Title", "Instructor", "Price", "Status"},
	}
	for _, c := range courses {
		table.Rows = append(table.Rows, []string{
			c.Title,
			c.InstructorFirstname + " " + c.InstructorLastname,
			strconv.FormatFloat(c.Price, 'f', 2, 64),
			string(c.Status),
		})
	}

	switch format {
	case "csv":
		data, err := export.NewCSVExporter().Render(table)
		if err != nil {
			return nil, "", apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to render csv")
		}
		return data, "text/csv", nil
	case "pdf":
		data, err := export.NewPDFExporter().Render(table, "Course Catalog")
		if err != nil {
			return nil, "", apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to render pdf")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", apperrors.New(apperrors.ErrValidation.Code, 400, "format must be csv or pdf")
	}
}

// checkInstructor enforces that the referenced user exists and holds the
// instructor role.
func (s *CourseService) checkInstructor(ctx context.Context, instructorID string) error {
	instructor, err := s.users.FindByID(ctx, instructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrValidation, "The selected instructor does not exist")
		}
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load instructor")
	}
	if instructor.Role != models.RoleInstructor {
		return apperrors.Clone(apperrors.ErrValidation, "The selected instructor is not a valid instructor")
	}
	return nil
}

func (s *CourseService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, courseCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate course cache", zap.Error(err))
	}
}

func (s *CourseService) recordCache(hit bool, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit, d)
	}
}

func listCacheSuffix(filter models.CourseFilter) string {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	return fmt.Sprintf("%s:%s:%s:%d:%d", status, filter.InstructorID, filter.Search, filter.Page, filter.PageSize)
}
