package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

const userColumns = "id, username, email, password_hash, full_name, role, active, rfid_uid, last_login, created_at, updated_at"

// UserRepository provides database access for login accounts, refresh tokens and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByLogin resolves a username, an email or a student number to its account.
func (r *UserRepository) FindByLogin(ctx context.Context, identifier string) (*models.User, error) {
	query := "SELECT " + userColumns + ` FROM users
WHERE username = $1 OR LOWER(email) = LOWER($1)
	OR id = (SELECT user_id FROM students WHERE student_number = $1 LIMIT 1)
LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, identifier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by login: %w", err)
	}
	return &user, nil
}

const accountSelect = `SELECT u.id, u.username, u.email, u.password_hash, u.full_name, u.role, u.active, u.rfid_uid,
	u.last_login, u.created_at, u.updated_at, t.id AS teacher_id, s.id AS student_id
FROM users u
LEFT JOIN teachers t ON t.user_id = u.id
LEFT JOIN students s ON s.user_id = u.id`

// List returns accounts with their linked profile ids.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.UserAccount, int, error) {
	var where whereBuilder
	if filter.Role != nil {
		where.add("u.role = ?", *filter.Role)
	}
	if filter.Active != nil {
		where.add("u.active = ?", *filter.Active)
	}
	if filter.Search != "" {
		where.add("(LOWER(u.username) LIKE ? OR LOWER(u.full_name) LIKE ? OR LOWER(u.email) LIKE ?)", "%"+strings.ToLower(filter.Search)+"%")
	}

	order := orderBy(map[string]string{
		"username":   "u.username",
		"full_name":  "u.full_name",
		"role":       "u.role",
		"last_login": "u.last_login",
		"created_at": "u.created_at",
	}, filter.SortBy, "username", filter.SortOrder)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", accountSelect, where.clause(), order, limit, offset)
	var accounts []models.UserAccount
	if err := r.db.SelectContext(ctx, &accounts, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users u"+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return accounts, total, nil
}

// FindAccount returns one account with its linked profile ids.
func (r *UserRepository) FindAccount(ctx context.Context, id string) (*models.UserAccount, error) {
	var account models.UserAccount
	if err := r.db.GetContext(ctx, &account, accountSelect+" WHERE u.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &account, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByRFID returns the account holding an RFID card.
func (r *UserRepository) FindByRFID(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE rfid_uid = $1", uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by rfid: %w", err)
	}
	return &user, nil
}

// ExistsByUsername reports whether username is taken.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM users WHERE username = $1 LIMIT 1`, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check username: %w", err)
	}
	return true, nil
}

// Create inserts a user using exec when provided.
func (r *UserRepository) Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	const query = `INSERT INTO users (id, username, email, password_hash, full_name, role, active, rfid_uid, created_at, updated_at)
		VALUES (:id, :username, :email, :password_hash, :full_name, :role, :active, :rfid_uid, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, execer(r.db, exec), query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// SetRFID assigns or clears the RFID card of a user.
func (r *UserRepository) SetRFID(ctx context.Context, userID string, uid *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET rfid_uid = $2, updated_at = $3 WHERE id = $1`, userID, uid, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set rfid: %w", err)
	}
	return affectedOrNotFound(res)
}

// SetActive toggles a user account.
func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET active = $2, updated_at = $3 WHERE id = $1`, userID, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return nil
}

// Update saves the editable account fields.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET email = :email, full_name = :full_name, role = :role, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return affectedOrNotFound(res)
}

// UpdatePassword replaces the password hash of a user.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, userID, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return affectedOrNotFound(res)
}

// Delete removes an account. Linked teacher or student rows keep their data with user_id cleared.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return affectedOrNotFound(res)
}

// UpdateLastLogin stamps the last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
