package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/pkg/database"
)

var scheduleCols = []string{"id", "subject_id", "classroom_id", "days", "start_time", "end_time", "created_at", "updated_at",
	"subject_code", "subject_name", "teacher_id", "teacher_name", "room_number"}

func TestScheduleRepositoryListForConflictCheck(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(scheduleCols).
		AddRow("sc1", "s1", "r1", "M,W", "09:00:00", "10:30:00", now, now, "MATH1", "Algebra", "t1", "Ana Cruz", "101").
		AddRow("sc2", "s2", "r2", "Th", []byte("13:00:00"), []byte("14:00:00"), now, now, "BIO1", "Biology", "t1", "Ana Cruz", "202")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sc.classroom_id = $1 OR s.teacher_id = $2 ORDER BY sc.created_at, sc.id")).
		WithArgs("r1", "t1").
		WillReturnRows(rows)

	list, err := repo.ListForConflictCheck(context.Background(), "r1", "t1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.WeekdaySet{models.Monday, models.Wednesday}, list[0].Days)
	assert.Equal(t, models.NewTimeOfDay(10, 30), list[0].EndTime)
	assert.Equal(t, models.WeekdaySet{models.Thursday}, list[1].Days)
	assert.Equal(t, "Ana Cruz", list[1].TeacherName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListFiltersByDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND sc.classroom_id = $1 AND $2 = ANY(string_to_array(sc.days, ',')) ORDER BY sc.start_time ASC LIMIT 20 OFFSET 0")).
		WithArgs("r1", "Th").
		WillReturnRows(sqlmock.NewRows(scheduleCols))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedules sc")).
		WithArgs("r1", "Th").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	day := models.Thursday
	list, total, err := repo.List(context.Background(), models.ScheduleFilter{ClassroomID: "r1", Day: &day})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateEncodesDaysAndTimes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO schedules").
		WithArgs(sqlmock.AnyArg(), "s1", "r1", "M,W,F", "09:00:00", "10:00:00", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	schedule := &models.Schedule{
		SubjectID:   "s1",
		ClassroomID: "r1",
		Days:        models.NewWeekdaySet(models.Monday, models.Wednesday, models.Friday),
		StartTime:   models.NewTimeOfDay(9, 0),
		EndTime:     models.NewTimeOfDay(10, 0),
	}
	require.NoError(t, repo.Create(context.Background(), schedule))
	assert.NotEmpty(t, schedule.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateSurfacesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO schedules").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "schedules_classroom_slot_key"})

	err := repo.Create(context.Background(), &models.Schedule{Days: models.WeekdaySet{models.Monday}})
	require.Error(t, err)
	constraint, ok := database.IsUniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "schedules_classroom_slot_key", constraint)
}

func TestScheduleRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedules WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
