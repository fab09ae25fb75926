package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
)

type userServiceMock struct {
	filter  models.UserFilter
	actor   service.Actor
	updErr  error
	deleted string
}

func (m *userServiceMock) List(ctx context.Context, filter models.UserFilter) ([]models.UserAccount, *models.Pagination, error) {
	m.filter = filter
	return []models.UserAccount{{User: models.User{ID: "u1", Username: "registrar"}}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *userServiceMock) Get(ctx context.Context, id string) (*models.UserAccount, error) {
	return &models.UserAccount{User: models.User{ID: id}}, nil
}

func (m *userServiceMock) Create(ctx context.Context, req service.CreateUserRequest, actor service.Actor) (*models.UserAccount, error) {
	m.actor = actor
	return &models.UserAccount{User: models.User{ID: "u2", Username: req.Username, Role: req.Role}}, nil
}

func (m *userServiceMock) Update(ctx context.Context, id string, req service.UpdateUserRequest, actor service.Actor) (*models.UserAccount, error) {
	if m.updErr != nil {
		return nil, m.updErr
	}
	return &models.UserAccount{User: models.User{ID: id, Role: req.Role}}, nil
}

func (m *userServiceMock) Delete(ctx context.Context, id string, actor service.Actor) error {
	m.deleted = id
	return nil
}

func (m *userServiceMock) ResetPassword(ctx context.Context, id string, actor service.Actor) (*service.Credentials, error) {
	return &service.Credentials{Username: "registrar", DefaultPassword: "changeme123"}, nil
}

func TestUserHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/users?role=teacher&active=false&search=+cruz+&page=2&limit=5&sort=role&order=desc", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.filter.Role)
	assert.Equal(t, models.RoleTeacher, *mockSvc.filter.Role)
	require.NotNil(t, mockSvc.filter.Active)
	assert.False(t, *mockSvc.filter.Active)
	assert.Equal(t, "cruz", mockSvc.filter.Search)
	assert.Equal(t, 2, mockSvc.filter.Page)
	assert.Equal(t, 5, mockSvc.filter.PageSize)
	assert.Equal(t, "role", mockSvc.filter.SortBy)
	assert.Contains(t, w.Body.String(), `"total_count":1`)
}

func TestUserHandlerListRejectsUnknownRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUserHandler(&userServiceMock{})

	c, w := newGinContext(http.MethodGet, "/users?role=janitor", nil)
	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandlerCreatePassesActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/users", []byte(`{"username":"registrar2","email":"r@school.test","full_name":"R","role":"ADMIN","password":"s3cret-pass"}`))
	asAdmin(c)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "admin", mockSvc.actor.UserID)
	assert.Equal(t, models.RoleAdmin, mockSvc.actor.Role)
}

func TestUserHandlerUpdatePrecondition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUserHandler(&userServiceMock{updErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "you cannot change your own role or deactivate yourself")})

	c, w := newGinContext(http.MethodPut, "/users/admin", []byte(`{"email":"a@school.test","full_name":"A","role":"TEACHER"}`))
	c.Params = gin.Params{{Key: "id", Value: "admin"}}
	asAdmin(c)
	handler.Update(c)

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Contains(t, w.Body.String(), "PRECONDITION_FAILED")
}

func TestUserHandlerDeleteAndReset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/users/u9", nil)
	c.Params = gin.Params{{Key: "id", Value: "u9"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u9", mockSvc.deleted)

	c, w = newGinContext(http.MethodPost, "/users/u9/reset-password", nil)
	c.Params = gin.Params{{Key: "id", Value: "u9"}}
	handler.ResetPassword(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "changeme123")
}
