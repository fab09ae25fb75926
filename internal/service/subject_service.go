package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/validation"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.SubjectDetail, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type subjectTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// SubjectRequest is the payload for creating or updating a subject.
type SubjectRequest struct {
	Code        string  `json:"code" validate:"required,max=20"`
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	TeacherID   string  `json:"teacher_id" validate:"required"`
	Active      *bool   `json:"active"`
}

// SubjectService handles subject workflows. Each subject has exactly one teacher.
type SubjectService struct {
	repo      subjectRepository
	teachers  subjectTeacherReader
	audit     auditLogWriter
	cache     *CacheService
	validator *validation.Validator
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, teachers subjectTeacherReader, audit auditLogWriter, cacheSvc *CacheService, validate *validation.Validator, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, teachers: teachers, audit: audit, cache: cacheSvc, validator: newValidator(validate), logger: logger}
}

// List returns paginated subjects.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectDetail, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list subjects")
	}
	return subjects, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.SubjectDetail, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "subject not found", "failed to load subject")
	}
	return subject, nil
}

// Create adds a subject assigned to an active teacher.
func (s *SubjectService) Create(ctx context.Context, req SubjectRequest, actor Actor) (*models.SubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	subject := &models.Subject{Active: true}
	if err := s.apply(ctx, subject, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, writeError(err, "subject code already exists", "", "failed to create subject")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "subject", subject.ID, subject)
	return s.Get(ctx, subject.ID)
}

// Update modifies a subject. Existing schedules are not re-checked when the
// teacher changes; the conflict audit reports such collisions.
func (s *SubjectService) Update(ctx context.Context, id string, req SubjectRequest, actor Actor) (*models.SubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	subject := current.Subject
	if err := s.apply(ctx, &subject, req, id); err != nil {
		return nil, err
	}
	if err := s.save(ctx, &subject, actor); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Toggle flips the active flag. Inactive subjects cannot be scheduled or enrolled.
func (s *SubjectService) Toggle(ctx context.Context, id string, actor Actor) (*models.SubjectDetail, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	subject := current.Subject
	subject.Active = !subject.Active
	if err := s.save(ctx, &subject, actor); err != nil {
		return nil, err
	}
	current.Subject = subject
	return current, nil
}

// Delete removes a subject without schedules or enrollments.
func (s *SubjectService) Delete(ctx context.Context, id string, actor Actor) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return deleteError(err, "subject has schedules or enrollments", "subject not found", "failed to delete subject")
	}
	s.cache.InvalidateScheduling(ctx)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "subject", id, nil)
	return nil
}

func (s *SubjectService) apply(ctx context.Context, subject *models.Subject, req SubjectRequest, excludeID string) error {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return internalError(err, "failed to check subject code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "subject code already exists")
	}

	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		return lookupError(err, "teacher not found", "failed to load teacher")
	}
	if !teacher.Active {
		return validationError("teacher is inactive", map[string]string{"teacher_id": req.TeacherID})
	}

	subject.Code = code
	subject.Name = strings.TrimSpace(req.Name)
	subject.Description = normalizeOptional(req.Description)
	subject.TeacherID = teacher.ID
	if req.Active != nil {
		subject.Active = *req.Active
	}
	return nil
}

func (s *SubjectService) save(ctx context.Context, subject *models.Subject, actor Actor) error {
	if err := s.repo.Update(ctx, subject); err != nil {
		return writeError(err, "subject code already exists", "subject not found", "failed to update subject")
	}
	s.cache.InvalidateScheduling(ctx)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "subject", subject.ID, subject)
	return nil
}
