package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
)

func newSubjectFixture() (*SubjectService, *fakeDB) {
	db := newFakeDB()
	svc := NewSubjectService(&fakeSubjectRepo{fakeSubjectReader{db: db}}, &fakeTeacherReader{db: db}, &fakeAuditRepo{db: db}, nil, nil, zap.NewNop())
	return svc, db
}

func TestSubjectServiceCreate(t *testing.T) {
	svc, _ := newSubjectFixture()

	subject, err := svc.Create(context.Background(), SubjectRequest{Code: " phy101 ", Name: "Physics", TeacherID: "t2"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "PHY101", subject.Code)
	assert.Equal(t, "Ben Reyes", subject.TeacherName)
	assert.True(t, subject.Active)
}

func TestSubjectServiceCreateRules(t *testing.T) {
	svc, db := newSubjectFixture()
	ctx := context.Background()
	retired := db.teachers["t2"]
	retired.Active = false
	db.teachers["t-retired"] = retired

	cases := []struct {
		name string
		req  SubjectRequest
		code string
	}{
		{"duplicate code", SubjectRequest{Code: "S-BIO", Name: "Bio 2", TeacherID: "t1"}, appErrors.ErrConflict.Code},
		{"unknown teacher", SubjectRequest{Code: "NEW1", Name: "New", TeacherID: "ghost"}, appErrors.ErrNotFound.Code},
		{"inactive teacher", SubjectRequest{Code: "NEW2", Name: "New", TeacherID: "t-retired"}, appErrors.ErrValidation.Code},
		{"missing name", SubjectRequest{Code: "NEW3", TeacherID: "t1"}, appErrors.ErrValidation.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req, adminActor)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestSubjectServiceUpdateReassignsTeacher(t *testing.T) {
	svc, db := newSubjectFixture()

	subject, err := svc.Update(context.Background(), "s-bio", SubjectRequest{Code: "s-bio", Name: "Biology I", TeacherID: "t2"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "S-BIO", subject.Code)
	assert.Equal(t, "t2", db.subjects["s-bio"].TeacherID)
	assert.Equal(t, "Ben Reyes", subject.TeacherName)
}

func TestSubjectServiceToggleAndDelete(t *testing.T) {
	svc, db := newSubjectFixture()
	ctx := context.Background()
	db.addSchedule(t, "sc1", "s-bio", "r101", "M", "09:00", "10:00")

	subject, err := svc.Toggle(ctx, "s-old", adminActor)
	require.NoError(t, err)
	assert.True(t, subject.Active)

	err = svc.Delete(ctx, "s-bio", adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(ctx, "s-chem", adminActor))
	assert.NotContains(t, db.subjects, "s-chem")
	assert.Equal(t, []string{models.AuditActionUpdate, models.AuditActionDelete}, db.auditActions())
}
