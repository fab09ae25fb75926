package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

const scheduleDetailSelect = `SELECT sc.id, sc.subject_id, sc.classroom_id, sc.days, sc.start_time, sc.end_time, sc.created_at, sc.updated_at,
	s.code AS subject_code, s.name AS subject_name, s.teacher_id,
	concat_ws(' ', t.first_name, t.middle_name, t.last_name) AS teacher_name,
	c.room_number
FROM schedules sc
JOIN subjects s ON s.id = sc.subject_id
JOIN teachers t ON t.id = s.teacher_id
JOIN classrooms c ON c.id = sc.classroom_id`

// ScheduleRepository provides persistence for class schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns schedules filtered by the provided options.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error) {
	var where whereBuilder
	if filter.SubjectID != "" {
		where.add("sc.subject_id = ?", filter.SubjectID)
	}
	if filter.ClassroomID != "" {
		where.add("sc.classroom_id = ?", filter.ClassroomID)
	}
	if filter.TeacherID != "" {
		where.add("s.teacher_id = ?", filter.TeacherID)
	}
	if filter.Day != nil {
		where.add("? = ANY(string_to_array(sc.days, ','))", filter.Day.Code())
	}
	clause := where.clause()

	order := orderBy(map[string]string{
		"start_time":   "sc.start_time",
		"subject_name": "s.name",
		"room_number":  "c.room_number",
		"created_at":   "sc.created_at",
	}, filter.SortBy, "start_time", filter.SortOrder)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", scheduleDetailSelect, clause, order, limit, offset)
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM schedules sc JOIN subjects s ON s.id = sc.subject_id JOIN classrooms c ON c.id = sc.classroom_id` + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return schedules, total, nil
}

// FindByID retrieves a schedule by ID.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	var schedule models.ScheduleDetail
	if err := r.db.GetContext(ctx, &schedule, scheduleDetailSelect+" WHERE sc.id = $1", id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListForConflictCheck returns every schedule held in the classroom or taught
// by the teacher. Other schedules can never collide with a candidate.
func (r *ScheduleRepository) ListForConflictCheck(ctx context.Context, classroomID, teacherID string) ([]models.ScheduleDetail, error) {
	query := scheduleDetailSelect + " WHERE sc.classroom_id = $1 OR s.teacher_id = $2 ORDER BY sc.created_at, sc.id"
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, classroomID, teacherID); err != nil {
		return nil, fmt.Errorf("list schedules for conflict check: %w", err)
	}
	return schedules, nil
}

// ListAll returns every stored schedule in creation order.
func (r *ScheduleRepository) ListAll(ctx context.Context) ([]models.ScheduleDetail, error) {
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, scheduleDetailSelect+" ORDER BY sc.created_at, sc.id"); err != nil {
		return nil, fmt.Errorf("list all schedules: %w", err)
	}
	return schedules, nil
}

// ListBySubject returns the meetings of one subject.
func (r *ScheduleRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.ScheduleDetail, error) {
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, scheduleDetailSelect+" WHERE sc.subject_id = $1 ORDER BY sc.start_time, sc.id", subjectID); err != nil {
		return nil, fmt.Errorf("list schedules by subject: %w", err)
	}
	return schedules, nil
}

// ListByStudent returns the meetings of every subject a student is enrolled in.
func (r *ScheduleRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ScheduleDetail, error) {
	query := scheduleDetailSelect + `
JOIN student_subjects ss ON ss.subject_id = sc.subject_id
WHERE ss.student_id = $1
ORDER BY ss.enrolled_at, sc.start_time, sc.id`
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, studentID); err != nil {
		return nil, fmt.Errorf("list schedules by student: %w", err)
	}
	return schedules, nil
}

// ListByClassroom returns the meetings held in a classroom.
func (r *ScheduleRepository) ListByClassroom(ctx context.Context, classroomID string) ([]models.ScheduleDetail, error) {
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, scheduleDetailSelect+" WHERE sc.classroom_id = $1 ORDER BY sc.start_time, sc.id", classroomID); err != nil {
		return nil, fmt.Errorf("list schedules by classroom: %w", err)
	}
	return schedules, nil
}

// Create inserts a schedule. The (classroom_id, days, start_time, end_time)
// unique constraint rejects exact duplicates written concurrently.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO schedules (id, subject_id, classroom_id, days, start_time, end_time, created_at, updated_at)
		VALUES (:id, :subject_id, :classroom_id, :days, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update modifies a schedule.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET subject_id = :subject_id, classroom_id = :classroom_id, days = :days, start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Delete removes a schedule.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return affectedOrNotFound(res)
}
