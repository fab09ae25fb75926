package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	"github.com/noah-isme/class-scheduling-api/pkg/response"
)

type classroomService interface {
	List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Classroom, error)
	Create(ctx context.Context, req service.ClassroomRequest, actor service.Actor) (*models.Classroom, error)
	Update(ctx context.Context, id string, req service.ClassroomRequest, actor service.Actor) (*models.Classroom, error)
	Toggle(ctx context.Context, id string, actor service.Actor) (*models.Classroom, error)
	Delete(ctx context.Context, id string, actor service.Actor) error
}

// ClassroomHandler handles classroom endpoints.
type ClassroomHandler struct {
	service classroomService
}

// NewClassroomHandler constructs ClassroomHandler.
func NewClassroomHandler(svc classroomService) *ClassroomHandler {
	return &ClassroomHandler{service: svc}
}

// List godoc
// @Summary List classrooms
// @Tags Classrooms
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by room number"
// @Param active query bool false "Filter by active status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classrooms [get]
func (h *ClassroomHandler) List(c *gin.Context) {
	filter := models.ClassroomFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Active:    boolQuery(c, "active"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	rooms, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, pagination)
}

// Get godoc
// @Summary Get classroom
// @Tags Classrooms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id} [get]
func (h *ClassroomHandler) Get(c *gin.Context) {
	room, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, room)
}

// Create godoc
// @Summary Create classroom
// @Tags Classrooms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ClassroomRequest true "Classroom payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms [post]
func (h *ClassroomHandler) Create(c *gin.Context) {
	var req service.ClassroomRequest
	if !bindJSON(c, &req, "invalid classroom payload") {
		return
	}
	room, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// Update godoc
// @Summary Update classroom
// @Tags Classrooms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Classroom ID"
// @Param payload body service.ClassroomRequest true "Classroom payload"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id} [put]
func (h *ClassroomHandler) Update(c *gin.Context) {
	var req service.ClassroomRequest
	if !bindJSON(c, &req, "invalid classroom payload") {
		return
	}
	room, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, room)
}

// Toggle godoc
// @Summary Toggle classroom availability
// @Tags Classrooms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/toggle [patch]
func (h *ClassroomHandler) Toggle(c *gin.Context) {
	room, err := h.service.Toggle(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, room)
}

// Delete godoc
// @Summary Delete classroom
// @Tags Classrooms
// @Security BearerAuth
// @Param id path string true "Classroom ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /classrooms/{id} [delete]
func (h *ClassroomHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
