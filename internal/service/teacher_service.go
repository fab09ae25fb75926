package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/validation"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Deactivate(ctx context.Context, id string) error
}

// CreateTeacherRequest represents payload for creating teachers.
type CreateTeacherRequest struct {
	FirstName  string  `json:"first_name" validate:"required,max=100"`
	MiddleName *string `json:"middle_name" validate:"omitempty,max=100"`
	LastName   string  `json:"last_name" validate:"required,max=100"`
	Email      string  `json:"email" validate:"required,email"`
}

// UpdateTeacherRequest represents payload for updating teachers.
type UpdateTeacherRequest struct {
	FirstName  string  `json:"first_name" validate:"required,max=100"`
	MiddleName *string `json:"middle_name" validate:"omitempty,max=100"`
	LastName   string  `json:"last_name" validate:"required,max=100"`
	Email      string  `json:"email" validate:"required,email"`
	Active     *bool   `json:"active"`
}

// TeacherAccount is returned once on creation with the generated login.
type TeacherAccount struct {
	Teacher     *models.Teacher `json:"teacher"`
	Credentials Credentials     `json:"credentials"`
}

// TeacherService orchestrates teacher operations.
type TeacherService struct {
	repo        teacherRepository
	users       accountRepository
	tx          txRunner
	audit       auditLogWriter
	provisioner accountProvisioner
	validator   *validation.Validator
	logger      *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, users accountRepository, tx txRunner, audit auditLogWriter, defaultPassword string, validate *validation.Validator, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{
		repo:        repo,
		users:       users,
		tx:          tx,
		audit:       audit,
		provisioner: accountProvisioner{users: users, defaultPassword: defaultPassword},
		validator:   newValidator(validate),
		logger:      logger,
	}
}

// List returns teachers plus pagination data.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list teachers")
	}
	return teachers, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "teacher not found", "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a teacher together with a TEACHER login account.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest, actor Actor) (*TeacherAccount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureUniqueEmail(ctx, email, ""); err != nil {
		return nil, err
	}

	teacher := &models.Teacher{
		FirstName:  strings.TrimSpace(req.FirstName),
		MiddleName: normalizeOptional(req.MiddleName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      email,
		Active:     true,
	}
	user, creds, err := s.provisioner.prepare(ctx, teacher.FullName(), teacher.LastName, email, models.RoleTeacher)
	if err != nil {
		return nil, internalError(err, "failed to prepare teacher account")
	}

	err = s.tx.WithinTx(ctx, func(tx sqlx.ExtContext) error {
		if err := s.users.Create(ctx, tx, user); err != nil {
			return err
		}
		teacher.UserID = &user.ID
		return s.repo.Create(ctx, tx, teacher)
	})
	if err != nil {
		return nil, writeError(err, "teacher email or username already in use", "", "failed to create teacher")
	}

	s.logger.Info("teacher created", zap.String("teacher_id", teacher.ID), zap.String("username", creds.Username))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "teacher", teacher.ID, map[string]string{"email": email, "username": creds.Username})
	return &TeacherAccount{Teacher: teacher, Credentials: creds}, nil
}

// Update modifies an existing teacher.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest, actor Actor) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureUniqueEmail(ctx, email, id); err != nil {
		return nil, err
	}

	teacher.FirstName = strings.TrimSpace(req.FirstName)
	teacher.MiddleName = normalizeOptional(req.MiddleName)
	teacher.LastName = strings.TrimSpace(req.LastName)
	teacher.Email = email
	if req.Active != nil {
		teacher.Active = *req.Active
	}

	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, writeError(err, "teacher email already in use", "teacher not found", "failed to update teacher")
	}
	if teacher.UserID != nil && req.Active != nil {
		if err := s.users.SetActive(ctx, *teacher.UserID, teacher.Active); err != nil {
			s.logger.Warn("failed to sync teacher account status", zap.String("teacher_id", id), zap.Error(err))
		}
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "teacher", id, teacher)
	return teacher, nil
}

// Deactivate marks a teacher and its login inactive.
func (s *TeacherService) Deactivate(ctx context.Context, id string, actor Actor) error {
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return lookupError(err, "teacher not found", "failed to deactivate teacher")
	}
	if teacher.UserID != nil {
		if err := s.users.SetActive(ctx, *teacher.UserID, false); err != nil {
			return internalError(err, "failed to deactivate teacher account")
		}
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "teacher", id, nil)
	return nil
}

// ResetPassword restores the teacher's login to the default password. The new
// password is returned once.
func (s *TeacherService) ResetPassword(ctx context.Context, id string, actor Actor) (*Credentials, error) {
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if teacher.UserID == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher has no login account")
	}
	creds, err := s.provisioner.reset(ctx, *teacher.UserID)
	if err != nil {
		return nil, lookupError(err, "teacher account not found", "failed to reset password")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionPasswordReset, "teacher", id, map[string]string{"username": creds.Username})
	return &creds, nil
}

func (s *TeacherService) ensureUniqueEmail(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return internalError(err, "failed to check email")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}
	return nil
}
