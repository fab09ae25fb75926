package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	"github.com/noah-isme/class-scheduling-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	Check(ctx context.Context, studentID string, req service.EnrollRequest) (*service.EnrollmentCheckResult, error)
	Enroll(ctx context.Context, studentID string, req service.EnrollRequest, actor service.Actor) (*models.Enrollment, error)
	Unenroll(ctx context.Context, studentID, subjectID string, actor service.Actor) error
}

// EnrollmentHandler exposes a student's subject enrollments.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs handler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// List godoc
// @Summary List a student's subjects
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/subjects [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	enrollments, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollments)
}

// Enroll godoc
// @Summary Enroll a student in a subject
// @Description Rejected with ENROLLMENT_CONFLICT when a meeting overlaps the student's timetable, or ALREADY_ENROLLED.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body service.EnrollRequest true "Subject to enroll"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id}/subjects [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return
	}
	enrollment, err := h.service.Enroll(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Check godoc
// @Summary Dry-run the enrollment conflict check
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body service.EnrollRequest true "Subject to check"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/subjects/check [post]
func (h *EnrollmentHandler) Check(c *gin.Context) {
	var req service.EnrollRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return
	}
	result, err := h.service.Check(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Unenroll godoc
// @Summary Remove a student from a subject
// @Tags Enrollments
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param subjectId path string true "Subject ID"
// @Success 204
// @Router /students/{id}/subjects/{subjectId} [delete]
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	if err := h.service.Unenroll(c.Request.Context(), c.Param("id"), c.Param("subjectId"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
