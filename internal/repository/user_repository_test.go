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

var userCols = []string{"id", "username", "email", "password_hash", "full_name", "role", "active", "rfid_uid", "last_login", "created_at", "updated_at"}

func TestUserRepositoryFindByLoginAcceptsStudentNumber(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM students WHERE student_number = $1")).
		WithArgs("2024-0001").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "jdelacruz", "juan@example.com", "hash", "Juan Dela Cruz", "STUDENT", true, nil, nil, now, now))

	user, err := repo.FindByLogin(context.Background(), "2024-0001")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Nil(t, user.RFIDUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByLoginMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.FindByLogin(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositorySetRFID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	uid := "04A1B2C3"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET rfid_uid = $2")).
		WithArgs("u1", uid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET rfid_uid = $2")).
		WithArgs("u2", uid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetRFID(context.Background(), "u1", &uid))
	assert.ErrorIs(t, repo.SetRFID(context.Background(), "u2", &uid), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditActionConflictBlocked, Resource: "schedule"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestUserRepositoryListJoinsProfiles(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	cols := append(append([]string{}, userCols...), "teacher_id", "student_id")
	role := models.RoleTeacher
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN teachers t ON t.user_id = u.id")).
		WithArgs("TEACHER", "%cruz%").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u1", "cruz_ab12", "ana@example.com", "hash", "Ana Cruz", "TEACHER", true, nil, nil, now, now, "t1", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users u WHERE 1=1 AND u.role = $1")).
		WithArgs("TEACHER", "%cruz%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	accounts, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, Search: "Cruz"})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, accounts[0].TeacherID)
	assert.Equal(t, "t1", *accounts[0].TeacherID)
	assert.Nil(t, accounts[0].StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdatePasswordAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $2")).
		WithArgs("u1", "new-hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdatePassword(context.Background(), "u1", "new-hash"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "ghost"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
