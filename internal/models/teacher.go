package models

import (
	"strings"
	"time"
)

// Teacher represents an instructor. Each teacher owns a login account.
type Teacher struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	FirstName  string    `db:"first_name" json:"first_name"`
	MiddleName *string   `db:"middle_name" json:"middle_name,omitempty"`
	LastName   string    `db:"last_name" json:"last_name"`
	Email      string    `db:"email" json:"email"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first, middle and last names.
func (t Teacher) FullName() string {
	return joinName(t.FirstName, t.MiddleName, t.LastName)
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

func joinName(first string, middle *string, last string) string {
	parts := []string{strings.TrimSpace(first)}
	if middle != nil && strings.TrimSpace(*middle) != "" {
		parts = append(parts, strings.TrimSpace(*middle))
	}
	parts = append(parts, strings.TrimSpace(last))
	return strings.TrimSpace(strings.Join(parts, " "))
}
