package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/response"
)

type scheduleService interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ScheduleDetail, error)
	Check(ctx context.Context, req service.CheckScheduleRequest) (*service.CheckResult, error)
	Create(ctx context.Context, req service.ScheduleRequest, actor service.Actor) (*models.ScheduleDetail, error)
	Update(ctx context.Context, id string, req service.ScheduleRequest, actor service.Actor) (*models.ScheduleDetail, error)
	Delete(ctx context.Context, id string, actor service.Actor) error
}

// ScheduleHandler manages schedule endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param subject_id query string false "Filter by subject"
// @Param classroom_id query string false "Filter by classroom"
// @Param teacher_id query string false "Filter by teacher"
// @Param day query string false "Filter by weekday code (M,T,W,Th,F,S,Su)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	filter := models.ScheduleFilter{
		SubjectID:   c.Query("subject_id"),
		ClassroomID: c.Query("classroom_id"),
		TeacherID:   c.Query("teacher_id"),
		SortBy:      c.Query("sort"),
		SortOrder:   c.Query("order"),
	}
	if raw := c.Query("day"); raw != "" {
		day, err := models.ParseWeekday(raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid day filter"))
			return
		}
		filter.Day = &day
	}
	filter.Page, filter.PageSize = pageParams(c)

	schedules, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get schedule
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, schedule)
}

// Check godoc
// @Summary Dry-run the room and teacher conflict check
// @Description Returns the conflicts a schedule would cause without saving it. Set exclude_id when editing.
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CheckScheduleRequest true "Candidate schedule"
// @Success 200 {object} response.Envelope
// @Router /schedules/check [post]
func (h *ScheduleHandler) Check(c *gin.Context) {
	var req service.CheckScheduleRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	result, err := h.service.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Create godoc
// @Summary Create schedule
// @Description Rejected with SCHEDULE_CONFLICT when the room or the subject's teacher is busy.
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req service.ScheduleRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	schedule, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Update schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req service.ScheduleRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	schedule, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, schedule)
}

// Delete godoc
// @Summary Delete schedule
// @Tags Schedules
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
