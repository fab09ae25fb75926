package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-scheduling-api/internal/middleware"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	"github.com/noah-isme/class-scheduling-api/pkg/response"
)

type timetableService interface {
	ForStudent(ctx context.Context, studentID string) (*service.Timetable, error)
	ForClassroom(ctx context.Context, classroomID string) (*service.Timetable, error)
	Export(t *service.Timetable, format string) (*service.ExportedFile, error)
}

// TimetableHandler serves weekly timetables as JSON or downloadable files.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(svc timetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Student godoc
// @Summary Student weekly timetable
// @Tags Timetables
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param format query string false "json (default), csv, pdf or xlsx"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/timetable [get]
func (h *TimetableHandler) Student(c *gin.Context) {
	timetable, err := h.service.ForStudent(c.Request.Context(), c.Param("id"))
	h.render(c, timetable, err)
}

// Classroom godoc
// @Summary Classroom weekly timetable
// @Tags Timetables
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Classroom ID"
// @Param format query string false "json (default), csv, pdf or xlsx"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/timetable [get]
func (h *TimetableHandler) Classroom(c *gin.Context) {
	timetable, err := h.service.ForClassroom(c.Request.Context(), c.Param("id"))
	h.render(c, timetable, err)
}

func (h *TimetableHandler) render(c *gin.Context, timetable *service.Timetable, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "json")))
	if format == "json" {
		middleware.SetCacheHit(c, timetable.Cached)
		respondWithMeta(c, http.StatusOK, timetable, nil)
		return
	}
	file, err := h.service.Export(timetable, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, file.ContentType, file.Data)
}
