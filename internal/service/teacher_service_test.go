package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
)

var adminActor = Actor{UserID: "u-admin", Role: models.RoleAdmin}

func newTeacherFixture() (*TeacherService, *fakeDB, *fakeTx) {
	db := newFakeDB()
	tx := &fakeTx{}
	svc := NewTeacherService(&fakeTeacherRepo{fakeTeacherReader{db: db}}, &fakeUserRepo{db: db}, tx, &fakeAuditRepo{db: db}, "changeme123", nil, zap.NewNop())
	return svc, db, tx
}

func TestTeacherServiceCreateProvisionsAccount(t *testing.T) {
	svc, db, tx := newTeacherFixture()

	account, err := svc.Create(context.Background(), CreateTeacherRequest{
		FirstName: " Carla ", LastName: "Villanueva-Santos", Email: "Carla@School.test",
	}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, 1, tx.calls)

	teacher := account.Teacher
	assert.Equal(t, "Carla", teacher.FirstName)
	assert.Equal(t, "carla@school.test", teacher.Email)
	require.NotNil(t, teacher.UserID)

	user := db.users[*teacher.UserID]
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.Equal(t, "Carla Villanueva-Santos", user.FullName)
	assert.True(t, strings.HasPrefix(account.Credentials.Username, "villanueva_"))
	assert.Equal(t, user.Username, account.Credentials.Username)
	assert.Equal(t, "changeme123", account.Credentials.DefaultPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("changeme123")))
	assert.Equal(t, []string{models.AuditActionCreate}, db.auditActions())
}

func TestTeacherServiceCreateRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newTeacherFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateTeacherRequest{FirstName: "Carla", LastName: "Reyes", Email: "carla@school.test"}, adminActor)
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateTeacherRequest{FirstName: "Other", LastName: "Reyes", Email: "CARLA@school.test"}, adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(ctx, CreateTeacherRequest{FirstName: "Other", LastName: "Reyes", Email: "not-an-email"}, adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceUpdateAndDeactivate(t *testing.T) {
	svc, db, _ := newTeacherFixture()
	ctx := context.Background()
	db.users["u-ana"] = models.User{ID: "u-ana", Username: "cruz_ab12", Role: models.RoleTeacher, Active: true}

	updated, err := svc.Update(ctx, "t1", UpdateTeacherRequest{FirstName: "Ana", LastName: "Cruz-Lim", Email: "ana@school.test"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "Ana Cruz-Lim", updated.FullName())
	assert.True(t, updated.Active)

	require.NoError(t, svc.Deactivate(ctx, "t1", adminActor))
	assert.False(t, db.teachers["t1"].Active)
	assert.False(t, db.users["u-ana"].Active)

	_, err = svc.Get(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceList(t *testing.T) {
	svc, _, _ := newTeacherFixture()

	teachers, pagination, err := svc.List(context.Background(), models.TeacherFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, teachers, 2)
	assert.Equal(t, 2, pagination.TotalCount)
	assert.Equal(t, 10, pagination.PageSize)
}

func TestTeacherServiceResetPassword(t *testing.T) {
	svc, db, _ := newTeacherFixture()
	ctx := context.Background()
	db.users["u-ana"] = models.User{ID: "u-ana", Username: "cruz_a1b2", PasswordHash: "old", Role: models.RoleTeacher, Active: true}

	creds, err := svc.ResetPassword(ctx, "t1", adminActor)
	require.NoError(t, err)
	assert.Equal(t, "cruz_a1b2", creds.Username)
	assert.Equal(t, "changeme123", creds.DefaultPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(db.users["u-ana"].PasswordHash), []byte("changeme123")))
	assert.Equal(t, []string{"u-ana"}, db.revoked)

	_, err = svc.ResetPassword(ctx, "t2", adminActor)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
