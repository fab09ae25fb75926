package models

import "time"

// Student represents a learner. StudentNumber is the school issued id
// students may also log in with.
type Student struct {
	ID             string    `db:"id" json:"id"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	StudentNumber  string    `db:"student_number" json:"student_number"`
	FirstName      string    `db:"first_name" json:"first_name"`
	MiddleName     *string   `db:"middle_name" json:"middle_name,omitempty"`
	LastName       string    `db:"last_name" json:"last_name"`
	Email          string    `db:"email" json:"email"`
	Course         string    `db:"course" json:"course"`
	YearLevel      int       `db:"year_level" json:"year_level"`
	Active         bool      `db:"active" json:"active"`
	FaceRegistered bool      `db:"face_registered" json:"face_registered"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first, middle and last names.
func (s Student) FullName() string {
	return joinName(s.FirstName, s.MiddleName, s.LastName)
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Course    string
	YearLevel int
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
