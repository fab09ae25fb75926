package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/validation"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.UserAccount, int, error)
	FindAccount(ctx context.Context, id string) (*models.UserAccount, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// CreateUserRequest creates an administrative login. Teacher and student
// logins are provisioned together with their profiles.
type CreateUserRequest struct {
	Username string          `json:"username" validate:"required,min=3,max=50"`
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,max=200"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN"`
	Password string          `json:"password" validate:"required,min=8,max=72"`
}

// UpdateUserRequest edits an account.
type UpdateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,max=200"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN TEACHER STUDENT"`
	Active   *bool           `json:"active"`
}

// UserService administers login accounts.
type UserService struct {
	repo        userRepository
	users       accountRepository
	audit       auditLogWriter
	provisioner accountProvisioner
	validator   *validation.Validator
	logger      *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, users accountRepository, audit auditLogWriter, defaultPassword string, validate *validation.Validator, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		repo:        repo,
		users:       users,
		audit:       audit,
		provisioner: accountProvisioner{users: users, defaultPassword: defaultPassword},
		validator:   newValidator(validate),
		logger:      logger,
	}
}

// List returns paginated accounts.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.UserAccount, *models.Pagination, error) {
	accounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	return accounts, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, id string) (*models.UserAccount, error) {
	account, err := s.repo.FindAccount(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user not found", "failed to load user")
	}
	return account, nil
}

// Create adds an ADMIN or SUPERADMIN login. Only a superadmin may create another superadmin.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actor Actor) (*models.UserAccount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if req.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can create superadmin accounts")
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, internalError(err, "failed to check username")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}
	user := &models.User{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       true,
	}
	if err := s.users.Create(ctx, nil, user); err != nil {
		return nil, writeError(err, "username or email already in use", "", "failed to create user")
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "user", user.ID, map[string]interface{}{"username": username, "role": user.Role})
	return &models.UserAccount{User: *user}, nil
}

// Update edits an account. Linked teacher and student logins keep their role,
// and nobody can change their own role or status.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actor Actor) (*models.UserAccount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guardTarget(account, actor); err != nil {
		return nil, err
	}
	if req.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can grant the superadmin role")
	}

	active := account.Active
	if req.Active != nil {
		active = *req.Active
	}
	if account.ID == actor.UserID && (req.Role != account.Role || !active) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "you cannot change your own role or deactivate yourself")
	}
	if linked := linkedRole(account); linked != "" && req.Role != linked {
		return nil, validationError("role of a linked account cannot change", map[string]string{"role": string(linked)})
	}

	wasActive := account.Active
	user := account.User
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	user.Active = active
	if err := s.repo.Update(ctx, &user); err != nil {
		return nil, writeError(err, "email already in use", "user not found", "failed to update user")
	}
	if wasActive && !user.Active {
		if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("failed to revoke sessions of deactivated user", zap.String("user_id", id), zap.Error(err))
		}
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "user", id,
		map[string]interface{}{"role": user.Role, "active": user.Active})
	account.User = user
	return account, nil
}

// Delete removes an account. A linked teacher or student keeps its profile without a login.
func (s *UserService) Delete(ctx context.Context, id string, actor Actor) error {
	if id == actor.UserID {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "you cannot delete your own account")
	}
	account, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guardTarget(account, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return deleteError(err, "user is still referenced", "user not found", "failed to delete user")
	}
	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("username", account.Username))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "user", id, map[string]string{"username": account.Username})
	return nil
}

// ResetPassword restores the default password of any account and returns it once.
func (s *UserService) ResetPassword(ctx context.Context, id string, actor Actor) (*Credentials, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guardTarget(account, actor); err != nil {
		return nil, err
	}
	creds, err := s.provisioner.reset(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user not found", "failed to reset password")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionPasswordReset, "user", id, map[string]string{"username": creds.Username})
	return &creds, nil
}

// guardTarget keeps superadmin accounts out of reach of plain admins.
func (s *UserService) guardTarget(account *models.UserAccount, actor Actor) error {
	if account.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can manage superadmin accounts")
	}
	return nil
}

func linkedRole(account *models.UserAccount) models.UserRole {
	switch {
	case account.TeacherID != nil:
		return models.RoleTeacher
	case account.StudentID != nil:
		return models.RoleStudent
	default:
		return ""
	}
}
