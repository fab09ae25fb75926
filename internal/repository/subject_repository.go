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

const subjectDetailSelect = `SELECT s.id, s.code, s.name, s.description, s.teacher_id, s.active, s.created_at, s.updated_at,
	concat_ws(' ', t.first_name, t.middle_name, t.last_name) AS teacher_name
FROM subjects s
JOIN teachers t ON t.id = s.teacher_id`

// SubjectRepository manages persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects with their teacher name.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectDetail, int, error) {
	var where whereBuilder
	if filter.TeacherID != "" {
		where.add("s.teacher_id = ?", filter.TeacherID)
	}
	if filter.Active != nil {
		where.add("s.active = ?", *filter.Active)
	}
	if filter.Search != "" {
		where.add("(LOWER(s.name) LIKE ? OR LOWER(s.code) LIKE ?)", "%"+strings.ToLower(filter.Search)+"%")
	}
	clause := where.clause()

	order := orderBy(map[string]string{
		"code":       "s.code",
		"name":       "s.name",
		"created_at": "s.created_at",
	}, filter.SortBy, "code", filter.SortOrder)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", subjectDetailSelect, clause, order, limit, offset)
	var subjects []models.SubjectDetail
	if err := r.db.SelectContext(ctx, &subjects, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM subjects s"+clause, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// FindByID fetches a subject with its teacher name.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.SubjectDetail, error) {
	var subject models.SubjectDetail
	if err := r.db.GetContext(ctx, &subject, subjectDetailSelect+" WHERE s.id = $1", id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ExistsByCode checks whether another subject already uses code.
func (r *SubjectRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM subjects WHERE UPPER(code) = UPPER($1)"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return true, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now
	const query = `INSERT INTO subjects (id, code, name, description, teacher_id, active, created_at, updated_at)
		VALUES (:id, :code, :name, :description, :teacher_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET code = :code, name = :name, description = :description, teacher_id = :teacher_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject and, through cascading keys, its schedules and enrollments.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return affectedOrNotFound(res)
}
