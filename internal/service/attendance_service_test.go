package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
)

var manila = time.FixedZone("PHT", 8*60*60)

func newAttendanceFixture(t *testing.T) (*fakeDB, *fakeAttendanceRepo, *AttendanceService) {
	t.Helper()
	db := newFakeDB()
	db.addSchedule(t, "sc-bio", "s-bio", "r101", "M,W", "09:00", "10:00")
	db.enroll("st1", "s-bio")
	db.enroll("st2", "s-bio")
	card := "CARD-1"
	db.users["u-juan"] = models.User{ID: "u-juan", Username: "juan", Role: models.RoleStudent, Active: true, RFIDUID: &card}

	repo := &fakeAttendanceRepo{db: db}
	svc := NewAttendanceService(repo, &fakeScheduleRepo{db: db}, &fakeStudentReader{db: db}, &fakeTeacherReader{db: db}, &fakeUserRepo{db: db}, nil, manila, zap.NewNop())
	// Monday 2024-09-02 09:15 in Manila.
	svc.now = func() time.Time { return time.Date(2024, 9, 2, 1, 15, 0, 0, time.UTC) }
	return db, repo, svc
}

var subjectTeacher = Actor{UserID: "u-ana", Role: models.RoleTeacher}

func TestAttendanceServiceRecordUpsertsRoster(t *testing.T) {
	db, _, svc := newAttendanceFixture(t)

	req := RecordAttendanceRequest{Date: "2024-09-02", Entries: []AttendanceEntry{
		{StudentID: "st1", Status: "present"},
		{StudentID: "st2", Status: "absent"},
	}}
	stored, err := svc.Record(context.Background(), "sc-bio", req, subjectTeacher)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, models.AttendanceSourceManual, stored[0].Source)
	require.NotNil(t, stored[0].RecordedBy)
	assert.Equal(t, "t1", *stored[0].RecordedBy)

	req.Entries = []AttendanceEntry{{StudentID: "st2", Status: "late"}}
	_, err = svc.Record(context.Background(), "sc-bio", req, Actor{Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, db.attendance, 2)
	assert.Equal(t, models.AttendanceStatusLate, db.attendance[1].Status)
}

func TestAttendanceServiceRecordRejectsOutsiders(t *testing.T) {
	_, _, svc := newAttendanceFixture(t)
	req := RecordAttendanceRequest{Date: "2024-09-02", Entries: []AttendanceEntry{{StudentID: "st1", Status: "present"}}}

	_, err := svc.Record(context.Background(), "sc-bio", req, Actor{UserID: "u-ben", Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Record(context.Background(), "sc-bio", req, Actor{UserID: "u-juan", Role: models.RoleStudent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Record(context.Background(), "missing", req, subjectTeacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceRecordValidatesPayload(t *testing.T) {
	db, _, svc := newAttendanceFixture(t)

	cases := map[string]RecordAttendanceRequest{
		"not a meeting day": {Date: "2024-09-03", Entries: []AttendanceEntry{{StudentID: "st1", Status: "present"}}},
		"not enrolled":      {Date: "2024-09-02", Entries: []AttendanceEntry{{StudentID: "stranger", Status: "present"}}},
		"unknown status":    {Date: "2024-09-02", Entries: []AttendanceEntry{{StudentID: "st1", Status: "asleep"}}},
		"bad date":          {Date: "09/02/2024", Entries: []AttendanceEntry{{StudentID: "st1", Status: "present"}}},
		"no entries":        {Date: "2024-09-02"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), "sc-bio", req, subjectTeacher)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, db.attendance)
}

func TestAttendanceServiceScanMarksRunningClass(t *testing.T) {
	_, _, svc := newAttendanceFixture(t)

	result, err := svc.ScanRFID(context.Background(), RFIDScanRequest{UID: " CARD-1 "})
	require.NoError(t, err)
	assert.False(t, result.AlreadyRecorded)
	assert.Equal(t, "Biology", result.SubjectName)
	assert.Equal(t, "sc-bio", result.Attendance.ScheduleID)
	assert.Equal(t, models.AttendanceSourceRFID, result.Attendance.Source)
	assert.Equal(t, time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC), result.Attendance.Date)
}

func TestAttendanceServiceScanDoubleTapKeepsRecord(t *testing.T) {
	_, repo, svc := newAttendanceFixture(t)

	first, err := svc.ScanRFID(context.Background(), RFIDScanRequest{UID: "CARD-1"})
	require.NoError(t, err)
	second, err := svc.ScanRFID(context.Background(), RFIDScanRequest{UID: "CARD-1"})
	require.NoError(t, err)

	assert.True(t, second.AlreadyRecorded)
	assert.Equal(t, first.Attendance.ID, second.Attendance.ID)
	assert.Equal(t, "Juan Santos Dela Cruz is already marked present for Biology.", second.Message)
	assert.Equal(t, 1, repo.upserts)
}

func TestAttendanceServiceScanUpgradesAbsentToPresent(t *testing.T) {
	db, _, svc := newAttendanceFixture(t)
	_, err := svc.Record(context.Background(), "sc-bio", RecordAttendanceRequest{
		Date: "2024-09-02", Entries: []AttendanceEntry{{StudentID: "st1", Status: "absent"}},
	}, subjectTeacher)
	require.NoError(t, err)

	result, err := svc.ScanRFID(context.Background(), RFIDScanRequest{UID: "CARD-1"})
	require.NoError(t, err)
	assert.False(t, result.AlreadyRecorded)
	require.Len(t, db.attendance, 1)
	assert.Equal(t, models.AttendanceStatusPresent, db.attendance[0].Status)
}

func TestAttendanceServiceScanOutsideClassHours(t *testing.T) {
	_, _, svc := newAttendanceFixture(t)
	// 10:01 in Manila, one minute after the meeting ends.
	svc.now = func() time.Time { return time.Date(2024, 9, 2, 2, 1, 0, 0, time.UTC) }

	_, err := svc.ScanRFID(context.Background(), RFIDScanRequest{UID: "CARD-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = svc.ScanRFID(context.Background(), RFIDScanRequest{UID: "UNKNOWN"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceListForSchedule(t *testing.T) {
	_, _, svc := newAttendanceFixture(t)
	_, err := svc.Record(context.Background(), "sc-bio", RecordAttendanceRequest{
		Date: "2024-09-02", Entries: []AttendanceEntry{{StudentID: "st1", Status: "present"}, {StudentID: "st2", Status: "excused"}},
	}, subjectTeacher)
	require.NoError(t, err)

	rows, pagination, err := svc.ListForSchedule(context.Background(), "sc-bio", AttendanceListRequest{Date: "2024-09-02", Status: "excused"}, subjectTeacher)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Maria Lopez", rows[0].StudentName)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, err = svc.ListForSchedule(context.Background(), "sc-bio", AttendanceListRequest{}, Actor{UserID: "u-juan", Role: models.RoleStudent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceListForTeacher(t *testing.T) {
	db, _, svc := newAttendanceFixture(t)
	db.addSchedule(t, "sc-math", "s-math", "r202", "M", "10:00", "11:00")
	db.enroll("st1", "s-math")
	ctx := context.Background()

	_, err := svc.Record(ctx, "sc-bio", RecordAttendanceRequest{
		Date: "2024-09-02", Entries: []AttendanceEntry{{StudentID: "st1", Status: "present"}},
	}, subjectTeacher)
	require.NoError(t, err)
	_, err = svc.Record(ctx, "sc-math", RecordAttendanceRequest{
		Date: "2024-09-02", Entries: []AttendanceEntry{{StudentID: "st1", Status: "late"}},
	}, adminActor)
	require.NoError(t, err)

	rows, _, err := svc.ListForTeacher(ctx, "t1", AttendanceListRequest{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "sc-bio", rows[0].ScheduleID)

	rows, _, err = svc.ListForTeacher(ctx, "t2", AttendanceListRequest{Status: "late"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "sc-math", rows[0].ScheduleID)

	_, _, err = svc.ListForTeacher(ctx, "ghost", AttendanceListRequest{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
