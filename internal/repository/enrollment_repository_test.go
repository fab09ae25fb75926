package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

func TestEnrollmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_subjects WHERE student_id = $1 AND subject_id = $2")).
		WithArgs("st1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_subjects WHERE student_id = $1 AND subject_id = $2")).
		WithArgs("st1", "s2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	enrolled, err := repo.Exists(context.Background(), "st1", "s1")
	require.NoError(t, err)
	assert.True(t, enrolled)

	enrolled, err = repo.Exists(context.Background(), "st1", "s2")
	require.NoError(t, err)
	assert.False(t, enrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	enrolledAt := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM student_subjects ss").
		WithArgs("st1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "subject_id", "enrolled_at", "subject_code", "subject_name", "teacher_id", "teacher_name"}).
			AddRow("e1", "st1", "s1", enrolledAt, "MATH1", "Algebra", "t1", "Ana Cruz"))

	list, err := repo.ListByStudent(context.Background(), "st1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Algebra", list[0].SubjectName)
	assert.Equal(t, enrolledAt, list[0].EnrolledAt)
}

func TestEnrollmentRepositoryCreateAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO student_subjects").
		WithArgs(sqlmock.AnyArg(), "st1", "s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_subjects WHERE student_id = $1 AND subject_id = $2")).
		WithArgs("st1", "s9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	enrollment := &models.Enrollment{StudentID: "st1", SubjectID: "s1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.EnrolledAt.IsZero())

	err := repo.Delete(context.Background(), "st1", "s9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
