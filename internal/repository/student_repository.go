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

const studentColumns = "id, user_id, student_number, first_name, middle_name, last_name, email, course, year_level, active, face_registered, created_at, updated_at"

// StudentRepository handles persistence of students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching filters along with total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var where whereBuilder
	if filter.Active != nil {
		where.add("active = ?", *filter.Active)
	}
	if filter.Course != "" {
		where.add("LOWER(course) = LOWER(?)", filter.Course)
	}
	if filter.YearLevel > 0 {
		where.add("year_level = ?", filter.YearLevel)
	}
	if filter.Search != "" {
		where.add("(LOWER(first_name || ' ' || last_name) LIKE ? OR LOWER(student_number) LIKE ? OR LOWER(email) LIKE ?)", "%"+strings.ToLower(filter.Search)+"%")
	}
	base := "FROM students" + where.clause()

	order := orderBy(map[string]string{
		"last_name":      "last_name",
		"student_number": "student_number",
		"year_level":     "year_level",
		"created_at":     "created_at",
	}, filter.SortBy, "last_name", filter.SortOrder)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", studentColumns, base, order, limit, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID fetches the student linked to a login account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE user_id = $1", userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListBySubject returns the active students enrolled in a subject.
func (r *StudentRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.Student, error) {
	query := `SELECT st.id, st.user_id, st.student_number, st.first_name, st.middle_name, st.last_name, st.email, st.course, st.year_level, st.active, st.face_registered, st.created_at, st.updated_at
FROM students st
JOIN student_subjects ss ON ss.student_id = st.id
WHERE ss.subject_id = $1 AND st.active = TRUE
ORDER BY st.last_name, st.first_name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, subjectID); err != nil {
		return nil, fmt.Errorf("list students by subject: %w", err)
	}
	return students, nil
}

// ExistsByEmail checks whether another student uses email.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return r.exists(ctx, "LOWER(email) = LOWER($1)", email, excludeID)
}

// ExistsByStudentNumber checks whether another student uses number.
func (r *StudentRepository) ExistsByStudentNumber(ctx context.Context, number, excludeID string) (bool, error) {
	return r.exists(ctx, "student_number = $1", number, excludeID)
}

func (r *StudentRepository) exists(ctx context.Context, cond, value, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE " + cond
	args := []interface{}{value}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student uniqueness: %w", err)
	}
	return true, nil
}

// Create inserts a student using exec when provided.
func (r *StudentRepository) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, student_number, first_name, middle_name, last_name, email, course, year_level, active, face_registered, created_at, updated_at)
		VALUES (:id, :user_id, :student_number, :first_name, :middle_name, :last_name, :email, :course, :year_level, :active, :face_registered, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, execer(r.db, exec), query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET student_number = :student_number, first_name = :first_name, middle_name = :middle_name, last_name = :last_name, email = :email, course = :course, year_level = :year_level, active = :active, face_registered = :face_registered, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate marks a student inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE students SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
