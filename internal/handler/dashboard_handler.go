package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-scheduling-api/internal/middleware"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	"github.com/noah-isme/class-scheduling-api/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context) (*service.AdminDashboard, error)
	Teacher(ctx context.Context, teacherID string) (*service.TeacherDashboard, error)
	Student(ctx context.Context, studentID string) (*service.StudentDashboard, error)
}

// DashboardHandler serves the per-role landing pages.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Admin godoc
// @Summary School-wide dashboard for today
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	dash, err := h.service.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, dash.Cached)
	respondWithMeta(c, http.StatusOK, dash, nil)
}

// Teacher godoc
// @Summary Teacher dashboard with today's classes and teaching load
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/dashboard [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	dash, err := h.service.Teacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, dash.Cached)
	respondWithMeta(c, http.StatusOK, dash, nil)
}

// Student godoc
// @Summary Student dashboard with today's classes and enrolled subjects
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/dashboard [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	dash, err := h.service.Student(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, dash.Cached)
	respondWithMeta(c, http.StatusOK, dash, nil)
}
