package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-scheduling-api/internal/conflict"
	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
)

type enrollmentServiceMock struct {
	unenrolled [2]string
}

func (m *enrollmentServiceMock) List(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return []models.EnrollmentDetail{}, nil
}

func (m *enrollmentServiceMock) Check(ctx context.Context, studentID string, req service.EnrollRequest) (*service.EnrollmentCheckResult, error) {
	report := conflict.Report{{Kind: conflict.KindEnrollment, Message: "overlaps MATH101 on Monday"}}
	return &service.EnrollmentCheckResult{CheckResult: service.CheckResult{HasConflict: true, Conflicts: report, Messages: report.Messages()}}, nil
}

func (m *enrollmentServiceMock) Enroll(ctx context.Context, studentID string, req service.EnrollRequest, actor service.Actor) (*models.Enrollment, error) {
	if req.SubjectID == "sub-dup" {
		return nil, appErrors.ErrAlreadyEnrolled
	}
	return &models.Enrollment{StudentID: studentID, SubjectID: req.SubjectID}, nil
}

func (m *enrollmentServiceMock) Unenroll(ctx context.Context, studentID, subjectID string, actor service.Actor) error {
	m.unenrolled = [2]string{studentID, subjectID}
	return nil
}

func TestEnrollmentHandlerEnroll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})

	c, w := newGinContext(http.MethodPost, "/students/stu-1/subjects", []byte(`{"subject_id":"sub-1"}`))
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	asAdmin(c)
	handler.Enroll(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newGinContext(http.MethodPost, "/students/stu-1/subjects", []byte(`{"subject_id":"sub-dup"}`))
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.Enroll(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_ENROLLED")
}

func TestEnrollmentHandlerCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})

	c, w := newGinContext(http.MethodPost, "/students/stu-1/subjects/check", []byte(`{"subject_id":"sub-1"}`))
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.Check(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_conflict":true`)
	assert.Contains(t, w.Body.String(), "overlaps MATH101 on Monday")
}

func TestEnrollmentHandlerUnenroll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/students/stu-1/subjects/sub-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}, {Key: "subjectId", Value: "sub-1"}}
	handler.Unenroll(c)

	// gin defers writing the 204 header until the response is flushed
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, [2]string{"stu-1", "sub-1"}, mockSvc.unenrolled)
}
