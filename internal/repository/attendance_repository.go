package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

const upsertAttendanceQuery = `INSERT INTO attendance (id, schedule_id, student_id, date, status, source, remarks, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (schedule_id, student_id, date)
DO UPDATE SET status = EXCLUDED.status, source = EXCLUDED.source, remarks = EXCLUDED.remarks, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
RETURNING id, schedule_id, student_id, date, status, source, remarks, recorded_by, created_at, updated_at`

// AttendanceRepository persists per meeting attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert records attendance, replacing the status of an existing row for the same schedule, student and date.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	return r.upsert(ctx, r.db, record)
}

// UpsertBatch records several rows atomically.
func (r *AttendanceRepository) UpsertBatch(ctx context.Context, records []models.Attendance) ([]models.Attendance, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stored := make([]models.Attendance, 0, len(records))
	for i := range records {
		row, err := r.upsert(ctx, tx, &records[i])
		if err != nil {
			return nil, err
		}
		stored = append(stored, *row)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance batch: %w", err)
	}
	committed = true
	return stored, nil
}

func (r *AttendanceRepository) upsert(ctx context.Context, exec sqlx.QueryerContext, record *models.Attendance) (*models.Attendance, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	var stored models.Attendance
	if err := sqlx.GetContext(ctx, exec, &stored, upsertAttendanceQuery,
		record.ID, record.ScheduleID, record.StudentID, record.Date, record.Status, record.Source,
		record.Remarks, record.RecordedBy, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// Find returns the row for a schedule, student and date.
func (r *AttendanceRepository) Find(ctx context.Context, scheduleID, studentID string, date time.Time) (*models.Attendance, error) {
	const query = `SELECT id, schedule_id, student_id, date, status, source, remarks, recorded_by, created_at, updated_at
FROM attendance WHERE schedule_id = $1 AND student_id = $2 AND date = $3`
	var row models.Attendance
	if err := r.db.GetContext(ctx, &row, query, scheduleID, studentID, date); err != nil {
		return nil, err
	}
	return &row, nil
}

const attendanceSubjectJoin = `
JOIN schedules sc ON sc.id = a.schedule_id
JOIN subjects s ON s.id = sc.subject_id`

// List returns attendance rows with student and subject names.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	var where whereBuilder
	if filter.ScheduleID != "" {
		where.add("a.schedule_id = ?", filter.ScheduleID)
	}
	if filter.StudentID != "" {
		where.add("a.student_id = ?", filter.StudentID)
	}
	if filter.TeacherID != "" {
		where.add("s.teacher_id = ?", filter.TeacherID)
	}
	if filter.Date != nil {
		where.add("a.date = ?", *filter.Date)
	}
	if filter.Status != nil {
		where.add("a.status = ?", *filter.Status)
	}
	clause := where.clause()
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT a.id, a.schedule_id, a.student_id, a.date, a.status, a.source, a.remarks, a.recorded_by, a.created_at, a.updated_at,
	concat_ws(' ', st.first_name, st.middle_name, st.last_name) AS student_name,
	st.student_number, s.name AS subject_name
FROM attendance a
JOIN students st ON st.id = a.student_id%s%s
ORDER BY a.date DESC, st.last_name, st.first_name LIMIT %d OFFSET %d`, attendanceSubjectJoin, clause, limit, offset)
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendance a"+attendanceSubjectJoin+clause, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}
