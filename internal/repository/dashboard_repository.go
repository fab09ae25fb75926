package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository instantiates the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Counts returns active teachers, students, subjects and classrooms plus
// schedule, enrollment and attendance totals for day.
func (r *DashboardRepository) Counts(ctx context.Context, day time.Time) (*models.DashboardCounts, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM teachers WHERE active) AS teachers,
	(SELECT COUNT(*) FROM students WHERE active) AS students,
	(SELECT COUNT(*) FROM subjects WHERE active) AS subjects,
	(SELECT COUNT(*) FROM classrooms WHERE active) AS classrooms,
	(SELECT COUNT(*) FROM schedules) AS schedules,
	(SELECT COUNT(*) FROM student_subjects) AS enrollments,
	(SELECT COUNT(*) FROM attendance WHERE date = $1 AND status IN ('present', 'late')) AS attendance_today`
	var counts models.DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query, day.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &counts, nil
}

// TeacherLoad counts the active subjects of a teacher, the distinct students
// enrolled in them, the distinct rooms they meet in and today's attendance.
func (r *DashboardRepository) TeacherLoad(ctx context.Context, teacherID string, day time.Time) (*models.TeacherLoad, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM subjects WHERE teacher_id = $1 AND active) AS subjects,
	(SELECT COUNT(DISTINCT ss.student_id) FROM student_subjects ss
		JOIN subjects s ON s.id = ss.subject_id WHERE s.teacher_id = $1) AS students,
	(SELECT COUNT(DISTINCT sc.classroom_id) FROM schedules sc
		JOIN subjects s ON s.id = sc.subject_id WHERE s.teacher_id = $1) AS classrooms,
	(SELECT COUNT(*) FROM attendance a
		JOIN schedules sc ON sc.id = a.schedule_id
		JOIN subjects s ON s.id = sc.subject_id
		WHERE s.teacher_id = $1 AND a.date = $2 AND a.status IN ('present', 'late')) AS attendance_today`
	var load models.TeacherLoad
	if err := r.db.GetContext(ctx, &load, query, teacherID, day.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("teacher load: %w", err)
	}
	return &load, nil
}
