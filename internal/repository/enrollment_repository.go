package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

// EnrollmentRepository persists student to subject enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByStudent returns a student's enrollments with subject details.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT ss.id, ss.student_id, ss.subject_id, ss.enrolled_at,
	s.code AS subject_code, s.name AS subject_name, s.teacher_id,
	concat_ws(' ', t.first_name, t.middle_name, t.last_name) AS teacher_name
FROM student_subjects ss
JOIN subjects s ON s.id = ss.subject_id
JOIN teachers t ON t.id = s.teacher_id
WHERE ss.student_id = $1
ORDER BY ss.enrolled_at, s.code`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments by student: %w", err)
	}
	return enrollments, nil
}

// Exists reports whether the student is enrolled in the subject.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM student_subjects WHERE student_id = $1 AND subject_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Create inserts an enrollment. Duplicates are rejected by the unique key.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_subjects (id, student_id, subject_id, enrolled_at) VALUES (:id, :student_id, :subject_id, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment, returning sql.ErrNoRows when absent.
func (r *EnrollmentRepository) Delete(ctx context.Context, studentID, subjectID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM student_subjects WHERE student_id = $1 AND subject_id = $2`, studentID, subjectID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return affectedOrNotFound(res)
}
