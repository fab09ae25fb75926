package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

const (
	usernameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789!@#$%&"
	maxUsernameBase  = 10
)

type accountRepository interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error
	SetActive(ctx context.Context, userID string, active bool) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error
}

// Credentials are returned once, when an account is provisioned.
type Credentials struct {
	Username        string `json:"username"`
	DefaultPassword string `json:"default_password"`
}

// accountProvisioner creates the login account that accompanies a new teacher or student.
type accountProvisioner struct {
	users           accountRepository
	defaultPassword string
}

// prepare builds an unsaved user with a unique username and a hashed password.
func (p accountProvisioner) prepare(ctx context.Context, fullName, lastName, email string, role models.UserRole) (*models.User, Credentials, error) {
	username, err := p.uniqueUsername(ctx, lastName)
	if err != nil {
		return nil, Credentials{}, err
	}
	password, hash, err := p.password()
	if err != nil {
		return nil, Credentials{}, err
	}
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         role,
		Active:       true,
	}
	return user, Credentials{Username: username, DefaultPassword: password}, nil
}

// reset gives an existing account the default password again and signs it out everywhere.
func (p accountProvisioner) reset(ctx context.Context, userID string) (Credentials, error) {
	user, err := p.users.FindByID(ctx, userID)
	if err != nil {
		return Credentials{}, err
	}
	password, hash, err := p.password()
	if err != nil {
		return Credentials{}, err
	}
	if err := p.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return Credentials{}, err
	}
	if err := p.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		return Credentials{}, err
	}
	return Credentials{Username: user.Username, DefaultPassword: password}, nil
}

// password returns the configured default, or a random one when none is set, with its bcrypt hash.
func (p accountProvisioner) password() (string, string, error) {
	password := p.defaultPassword
	if password == "" {
		var err error
		if password, err = randomString(passwordAlphabet, 8); err != nil {
			return "", "", err
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return password, string(hash), nil
}

// uniqueUsername derives "<lastname>_<4 random chars>" and appends a counter on collision.
func (p accountProvisioner) uniqueUsername(ctx context.Context, lastName string) (string, error) {
	base := usernameBase(lastName)
	suffix, err := randomString(usernameAlphabet, 4)
	if err != nil {
		return "", err
	}
	original := base + "_" + suffix
	candidate := original
	for counter := 1; ; counter++ {
		exists, err := p.users.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = original + strconv.Itoa(counter)
	}
}

func usernameBase(lastName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(lastName) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	base := []rune(b.String())
	if len(base) > maxUsernameBase {
		base = base[:maxUsernameBase]
	}
	if len(base) == 0 {
		return "user"
	}
	return string(base)
}

func randomString(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
