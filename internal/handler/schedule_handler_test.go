package handler

import (
	"context"
	"encoding/json"
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

type scheduleServiceMock struct {
	filter   models.ScheduleFilter
	check    service.CheckScheduleRequest
	createFn func(req service.ScheduleRequest) (*models.ScheduleDetail, error)
}

func (m *scheduleServiceMock) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, *models.Pagination, error) {
	m.filter = filter
	return []models.ScheduleDetail{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (m *scheduleServiceMock) Get(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
}

func (m *scheduleServiceMock) Check(ctx context.Context, req service.CheckScheduleRequest) (*service.CheckResult, error) {
	m.check = req
	return &service.CheckResult{Conflicts: conflict.Report{}, Messages: []string{}}, nil
}

func (m *scheduleServiceMock) Create(ctx context.Context, req service.ScheduleRequest, actor service.Actor) (*models.ScheduleDetail, error) {
	return m.createFn(req)
}

func (m *scheduleServiceMock) Update(ctx context.Context, id string, req service.ScheduleRequest, actor service.Actor) (*models.ScheduleDetail, error) {
	return m.createFn(req)
}

func (m *scheduleServiceMock) Delete(ctx context.Context, id string, actor service.Actor) error {
	return nil
}

func TestScheduleHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	report := conflict.Report{{Kind: conflict.KindRoom, Weekday: models.Monday, Message: "Room 101 is occupied"}}
	handler := NewScheduleHandler(&scheduleServiceMock{createFn: func(service.ScheduleRequest) (*models.ScheduleDetail, error) {
		return nil, appErrors.WithDetails(appErrors.ErrScheduleConflict, report)
	}})

	body := []byte(`{"subject_id":"sub-1","classroom_id":"room-1","days":["M"],"start_time":"08:00","end_time":"09:00"}`)
	c, w := newGinContext(http.MethodPost, "/schedules", body)
	asAdmin(c)

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code    string          `json:"code"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "SCHEDULE_CONFLICT", envelope.Error.Code)
	assert.Contains(t, string(envelope.Error.Details), "Room 101 is occupied")
}

func TestScheduleHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewScheduleHandler(&scheduleServiceMock{createFn: func(req service.ScheduleRequest) (*models.ScheduleDetail, error) {
		return &models.ScheduleDetail{Schedule: models.Schedule{ID: "sch-1", SubjectID: req.SubjectID}}, nil
	}})

	body := []byte(`{"subject_id":"sub-1","classroom_id":"room-1","days":["M","W"],"start_time":"08:00","end_time":"09:00"}`)
	c, w := newGinContext(http.MethodPost, "/schedules", body)
	asAdmin(c)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "sch-1")
}

func TestScheduleHandlerListParsesDay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleServiceMock{}
	handler := NewScheduleHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/schedules?day=Th&teacher_id=t-1", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.filter.Day)
	assert.Equal(t, models.Thursday, *mockSvc.filter.Day)
	assert.Equal(t, "t-1", mockSvc.filter.TeacherID)
}

func TestScheduleHandlerListRejectsUnknownDay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewScheduleHandler(&scheduleServiceMock{})

	c, w := newGinContext(http.MethodGet, "/schedules?day=X", nil)
	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerCheckPassesExcludeID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleServiceMock{}
	handler := NewScheduleHandler(mockSvc)

	body := []byte(`{"subject_id":"sub-1","classroom_id":"room-1","days":["F"],"start_time":"10:00","end_time":"11:30","exclude_id":"sch-9"}`)
	c, w := newGinContext(http.MethodPost, "/schedules/check", body)
	handler.Check(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sch-9", mockSvc.check.ExcludeID)
	assert.Equal(t, []string{"F"}, mockSvc.check.Days)
}
