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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByStudentNumber(ctx context.Context, number, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type cardAssigner interface {
	SetRFID(ctx context.Context, userID string, uid *string) error
}

// CreateStudentRequest describes the payload to create a student.
type CreateStudentRequest struct {
	StudentNumber string  `json:"student_number" validate:"required,max=50"`
	FirstName     string  `json:"first_name" validate:"required,max=100"`
	MiddleName    *string `json:"middle_name" validate:"omitempty,max=100"`
	LastName      string  `json:"last_name" validate:"required,max=100"`
	Email         string  `json:"email" validate:"required,email"`
	Course        string  `json:"course" validate:"required,max=100"`
	YearLevel     int     `json:"year_level" validate:"required,min=1,max=6"`
}

// UpdateStudentRequest describes the payload to update a student.
type UpdateStudentRequest struct {
	CreateStudentRequest
	FaceRegistered *bool `json:"face_registered"`
	Active         *bool `json:"active"`
}

// AssignRFIDRequest binds a card to the student's login. An empty UID clears it.
type AssignRFIDRequest struct {
	UID *string `json:"rfid_uid" validate:"omitempty,max=64"`
}

// StudentAccount is returned once on creation with the generated login.
type StudentAccount struct {
	Student     *models.Student `json:"student"`
	Credentials Credentials     `json:"credentials"`
}

// StudentService handles student business logic.
type StudentService struct {
	repo        studentRepository
	users       accountRepository
	cards       cardAssigner
	tx          txRunner
	audit       auditLogWriter
	provisioner accountProvisioner
	validator   *validation.Validator
	logger      *zap.Logger
}

// NewStudentService creates a new StudentService instance.
func NewStudentService(repo studentRepository, users accountRepository, cards cardAssigner, tx txRunner, audit auditLogWriter, defaultPassword string, validate *validation.Validator, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:        repo,
		users:       users,
		cards:       cards,
		tx:          tx,
		audit:       audit,
		provisioner: accountProvisioner{users: users, defaultPassword: defaultPassword},
		validator:   newValidator(validate),
		logger:      logger,
	}
}

// List returns paginated students.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	return students, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	return student, nil
}

// Create registers a student together with a STUDENT login account.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, actor Actor) (*StudentAccount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	student := studentFromRequest(&models.Student{Active: true}, req)
	if err := s.ensureUnique(ctx, student, ""); err != nil {
		return nil, err
	}

	user, creds, err := s.provisioner.prepare(ctx, student.FullName(), student.LastName, student.Email, models.RoleStudent)
	if err != nil {
		return nil, internalError(err, "failed to prepare student account")
	}

	err = s.tx.WithinTx(ctx, func(tx sqlx.ExtContext) error {
		if err := s.users.Create(ctx, tx, user); err != nil {
			return err
		}
		student.UserID = &user.ID
		return s.repo.Create(ctx, tx, student)
	})
	if err != nil {
		return nil, writeError(err, "student number, email or username already in use", "", "failed to create student")
	}

	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("username", creds.Username))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "student", student.ID,
		map[string]string{"student_number": student.StudentNumber, "username": creds.Username})
	return &StudentAccount{Student: student, Credentials: creds}, nil
}

// Update modifies a student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest, actor Actor) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	studentFromRequest(student, req.CreateStudentRequest)
	if err := s.ensureUnique(ctx, student, id); err != nil {
		return nil, err
	}
	if req.FaceRegistered != nil {
		student.FaceRegistered = *req.FaceRegistered
	}
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, writeError(err, "student number or email already in use", "student not found", "failed to update student")
	}
	if student.UserID != nil && req.Active != nil {
		if err := s.users.SetActive(ctx, *student.UserID, student.Active); err != nil {
			s.logger.Warn("failed to sync student account status", zap.String("student_id", id), zap.Error(err))
		}
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "student", id, student)
	return student, nil
}

// Deactivate marks a student and its login inactive.
func (s *StudentService) Deactivate(ctx context.Context, id string, actor Actor) error {
	student, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to deactivate student")
	}
	if student.UserID != nil {
		if err := s.users.SetActive(ctx, *student.UserID, false); err != nil {
			return internalError(err, "failed to deactivate student account")
		}
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "student", id, nil)
	return nil
}

// AssignRFID binds an RFID card to the student's login account.
func (s *StudentService) AssignRFID(ctx context.Context, id string, req AssignRFIDRequest, actor Actor) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if student.UserID == nil {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no login account")
	}

	uid := normalizeOptional(req.UID)
	if err := s.cards.SetRFID(ctx, *student.UserID, uid); err != nil {
		return writeError(err, "rfid card is already assigned", "student account not found", "failed to assign rfid card")
	}
	payload := map[string]interface{}{"rfid_uid": uid}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "student_rfid", id, payload)
	return nil
}

// ResetPassword restores the student's login to the default password. The new
// password is returned once.
func (s *StudentService) ResetPassword(ctx context.Context, id string, actor Actor) (*Credentials, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if student.UserID == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no login account")
	}
	creds, err := s.provisioner.reset(ctx, *student.UserID)
	if err != nil {
		return nil, lookupError(err, "student account not found", "failed to reset password")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionPasswordReset, "student", id, map[string]string{"username": creds.Username})
	return &creds, nil
}

func (s *StudentService) ensureUnique(ctx context.Context, student *models.Student, excludeID string) error {
	exists, err := s.repo.ExistsByStudentNumber(ctx, student.StudentNumber, excludeID)
	if err != nil {
		return internalError(err, "failed to check student number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "student number already in use")
	}
	exists, err = s.repo.ExistsByEmail(ctx, student.Email, excludeID)
	if err != nil {
		return internalError(err, "failed to check email")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}
	return nil
}

func studentFromRequest(student *models.Student, req CreateStudentRequest) *models.Student {
	student.StudentNumber = strings.TrimSpace(req.StudentNumber)
	student.FirstName = strings.TrimSpace(req.FirstName)
	student.MiddleName = normalizeOptional(req.MiddleName)
	student.LastName = strings.TrimSpace(req.LastName)
	student.Email = strings.ToLower(strings.TrimSpace(req.Email))
	student.Course = strings.TrimSpace(req.Course)
	student.YearLevel = req.YearLevel
	return student
}
