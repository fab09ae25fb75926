package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-scheduling-api/internal/handler"
	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type enrollmentStub struct{}

func (enrollmentStub) List(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return []models.EnrollmentDetail{}, nil
}

func (enrollmentStub) Check(ctx context.Context, studentID string, req service.EnrollRequest) (*service.EnrollmentCheckResult, error) {
	return &service.EnrollmentCheckResult{}, nil
}

func (enrollmentStub) Enroll(ctx context.Context, studentID string, req service.EnrollRequest, actor service.Actor) (*models.Enrollment, error) {
	return &models.Enrollment{StudentID: studentID, SubjectID: req.SubjectID}, nil
}

func (enrollmentStub) Unenroll(ctx context.Context, studentID, subjectID string, actor service.Actor) error {
	return nil
}

type dashboardStub struct{}

func (dashboardStub) Admin(ctx context.Context) (*service.AdminDashboard, error) {
	return &service.AdminDashboard{Weekday: models.Monday}, nil
}

func (dashboardStub) Teacher(ctx context.Context, teacherID string) (*service.TeacherDashboard, error) {
	return &service.TeacherDashboard{TeacherID: teacherID, Weekday: models.Monday}, nil
}

func (dashboardStub) Student(ctx context.Context, studentID string) (*service.StudentDashboard, error) {
	return &service.StudentDashboard{StudentID: studentID, Weekday: models.Monday}, nil
}

func buildRouter(ready handler.Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := tokenStub{
		"admin":   {UserID: "u-admin", Role: models.RoleAdmin},
		"teacher": {UserID: "u-teacher", Role: models.RoleTeacher},
		"student": {UserID: "u-student", Role: models.RoleStudent},
	}
	students := func(ctx context.Context, userID string) (string, error) {
		if userID == "u-student" {
			return "stu-1", nil
		}
		return "", errors.New("not a student")
	}

	return New(Options{
		APIPrefix:    "/api/v1",
		Tokens:       tokens,
		StudentOwner: students,
	}, Handlers{
		Auth:          handler.NewAuthHandler(nil),
		Teachers:      handler.NewTeacherHandler(nil, nil),
		Students:      handler.NewStudentHandler(nil),
		Classrooms:    handler.NewClassroomHandler(nil),
		Subjects:      handler.NewSubjectHandler(nil),
		Schedules:     handler.NewScheduleHandler(nil),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentStub{}),
		Timetables:    handler.NewTimetableHandler(nil),
		Attendance:    handler.NewAttendanceHandler(nil),
		ConflictAudit: handler.NewConflictAuditHandler(nil),
		Users:         handler.NewUserHandler(nil),
		Dashboard:     handler.NewDashboardHandler(dashboardStub{}),
		Metrics:       handler.NewMetricsHandler(nil, map[string]handler.Pinger{"database": ready}),
	})
}

func perform(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterAccessRules(t *testing.T) {
	r := buildRouter(handler.PingFunc(func(context.Context) error { return nil }))

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"ready pings dependencies", http.MethodGet, "/ready", "", http.StatusOK},
		{"missing token", http.MethodGet, "/api/v1/schedules", "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/api/v1/schedules", "bogus", http.StatusUnauthorized},
		{"teacher cannot create schedules", http.MethodPost, "/api/v1/schedules", "teacher", http.StatusForbidden},
		{"student cannot run conflict audits", http.MethodPost, "/api/v1/conflict-audits", "student", http.StatusForbidden},
		{"student cannot list teachers", http.MethodGet, "/api/v1/teachers", "student", http.StatusForbidden},
		{"student reads own subjects", http.MethodGet, "/api/v1/students/stu-1/subjects", "student", http.StatusOK},
		{"student cannot read other subjects", http.MethodGet, "/api/v1/students/stu-2/subjects", "student", http.StatusForbidden},
		{"admin reads any subjects", http.MethodGet, "/api/v1/students/stu-2/subjects", "admin", http.StatusOK},
		{"teacher cannot enroll", http.MethodDelete, "/api/v1/students/stu-1/subjects/sub-1", "teacher", http.StatusForbidden},
		{"student cannot scan cards", http.MethodPost, "/api/v1/attendance/rfid", "student", http.StatusForbidden},
		{"teacher cannot manage users", http.MethodGet, "/api/v1/users", "teacher", http.StatusForbidden},
		{"teacher cannot reset student passwords", http.MethodPost, "/api/v1/students/stu-1/reset-password", "teacher", http.StatusForbidden},
		{"admin dashboard", http.MethodGet, "/api/v1/dashboard", "admin", http.StatusOK},
		{"student cannot open admin dashboard", http.MethodGet, "/api/v1/dashboard", "student", http.StatusForbidden},
		{"student opens own dashboard", http.MethodGet, "/api/v1/students/stu-1/dashboard", "student", http.StatusOK},
		{"student cannot open other dashboard", http.MethodGet, "/api/v1/students/stu-2/dashboard", "student", http.StatusForbidden},
		{"teacher cannot read another teacher's attendance", http.MethodGet, "/api/v1/teachers/t-9/attendance", "teacher", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := perform(r, tc.method, tc.path, tc.token)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRouterReadyReportsDegraded(t *testing.T) {
	r := buildRouter(handler.PingFunc(func(context.Context) error { return errors.New("connection refused") }))

	w := perform(r, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
