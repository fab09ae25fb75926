package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	"github.com/noah-isme/class-scheduling-api/pkg/response"
)

type attendanceService interface {
	Record(ctx context.Context, scheduleID string, req service.RecordAttendanceRequest, actor service.Actor) ([]models.Attendance, error)
	ListForSchedule(ctx context.Context, scheduleID string, req service.AttendanceListRequest, actor service.Actor) ([]models.AttendanceRecord, *models.Pagination, error)
	ListForTeacher(ctx context.Context, teacherID string, req service.AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error)
	List(ctx context.Context, req service.AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error)
	ScanRFID(ctx context.Context, req service.RFIDScanRequest) (*service.RFIDScanResult, error)
}

// AttendanceHandler exposes manual and RFID attendance endpoints.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Record godoc
// @Summary Record attendance for one meeting
// @Description Upserts a status per enrolled student for the given date. Allowed for the subject's teacher and admins.
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Param payload body service.RecordAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req service.RecordAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	rows, err := h.service.Record(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// ListForSchedule godoc
// @Summary Attendance of a schedule
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Param date query string false "Meeting date (YYYY-MM-DD)"
// @Param status query string false "present, absent, late or excused"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/attendance [get]
func (h *AttendanceHandler) ListForSchedule(c *gin.Context) {
	req := listRequest(c)
	rows, pagination, err := h.service.ListForSchedule(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// ListForTeacher godoc
// @Summary Attendance history of a teacher
// @Description Rows across every subject the teacher handles. Allowed for the teacher and admins.
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Teacher ID"
// @Param date query string false "Meeting date (YYYY-MM-DD)"
// @Param status query string false "present, absent, late or excused"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/attendance [get]
func (h *AttendanceHandler) ListForTeacher(c *gin.Context) {
	rows, pagination, err := h.service.ListForTeacher(c.Request.Context(), c.Param("id"), listRequest(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// List godoc
// @Summary Search attendance
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param schedule_id query string false "Schedule"
// @Param student_id query string false "Student"
// @Param date query string false "Meeting date (YYYY-MM-DD)"
// @Param status query string false "present, absent, late or excused"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	req := listRequest(c)
	req.ScheduleID = c.Query("schedule_id")
	req.StudentID = c.Query("student_id")
	rows, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// ScanRFID godoc
// @Summary Mark the card holder present in the class running now
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RFIDScanRequest true "Card UID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /attendance/rfid [post]
func (h *AttendanceHandler) ScanRFID(c *gin.Context) {
	var req service.RFIDScanRequest
	if !bindJSON(c, &req, "invalid rfid payload") {
		return
	}
	result, err := h.service.ScanRFID(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyRecorded {
		status = http.StatusOK
	}
	response.JSON(c, status, result, nil)
}

func listRequest(c *gin.Context) service.AttendanceListRequest {
	req := service.AttendanceListRequest{Date: c.Query("date"), Status: c.Query("status")}
	req.Page, req.PageSize = pageParams(c)
	return req
}
