package models

import "time"

// Subject is a course taught by exactly one teacher.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectDetail adds the assigned teacher's display name.
type SubjectDetail struct {
	Subject
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	TeacherID string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
