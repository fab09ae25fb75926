package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/validation"
)

const attendanceDateLayout = "2006-01-02"

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	UpsertBatch(ctx context.Context, records []models.Attendance) ([]models.Attendance, error)
	Find(ctx context.Context, scheduleID, studentID string, date time.Time) (*models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

type attendanceScheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ScheduleDetail, error)
}

type rosterReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.Student, error)
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

type cardholderReader interface {
	FindByRFID(ctx context.Context, uid string) (*models.User, error)
}

// AttendanceEntry is one student's status within a bulk submission.
type AttendanceEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,oneof=present absent late excused"`
	Remarks   *string `json:"remarks"`
}

// RecordAttendanceRequest records statuses for one meeting of a schedule.
type RecordAttendanceRequest struct {
	Date    string            `json:"date" validate:"required,datetime=2006-01-02"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceListRequest filters attendance listings.
type AttendanceListRequest struct {
	ScheduleID string `json:"schedule_id"`
	StudentID  string `json:"student_id"`
	TeacherID  string `json:"teacher_id"`
	Date       string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Status     string `json:"status" validate:"omitempty,oneof=present absent late excused"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

// RFIDScanRequest carries a card UID read at a kiosk.
type RFIDScanRequest struct {
	UID string `json:"rfid_uid" validate:"required"`
}

// RFIDScanResult describes the attendance a card tap produced.
type RFIDScanResult struct {
	Attendance      *models.Attendance `json:"attendance"`
	StudentName     string             `json:"student_name"`
	SubjectName     string             `json:"subject_name"`
	AlreadyRecorded bool               `json:"already_recorded"`
	Message         string             `json:"message"`
}

// AttendanceService records per meeting attendance, manually or by RFID tap.
type AttendanceService struct {
	repo      attendanceRepository
	schedules attendanceScheduleReader
	students  rosterReader
	teachers  teacherLookup
	users     cardholderReader
	validator *validation.Validator
	location  *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service. Scans are resolved in loc.
func NewAttendanceService(repo attendanceRepository, schedules attendanceScheduleReader, students rosterReader, teachers teacherLookup, users cardholderReader, validate *validation.Validator, loc *time.Location, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceService{
		repo:      repo,
		schedules: schedules,
		students:  students,
		teachers:  teachers,
		users:     users,
		validator: newValidator(validate),
		location:  loc,
		now:       time.Now,
		logger:    logger,
	}
}

// Record upserts the statuses of enrolled students for one meeting date.
func (s *AttendanceService) Record(ctx context.Context, scheduleID string, req RecordAttendanceRequest, actor Actor) ([]models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	date, err := time.ParseInLocation(attendanceDateLayout, req.Date, time.UTC)
	if err != nil {
		return nil, validationError("invalid date", map[string]string{"date": err.Error()})
	}
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, lookupError(err, "schedule not found", "failed to load schedule")
	}
	if err := s.authorize(ctx, schedule, actor); err != nil {
		return nil, err
	}
	if !schedule.Days.Contains(models.WeekdayOf(date)) {
		return nil, validationError("schedule does not meet on this date", map[string]string{
			"date": fmt.Sprintf("%s is a %s; the schedule meets on %s", req.Date, models.WeekdayOf(date), strings.Join(schedule.Days.Names(), ", ")),
		})
	}

	roster, err := s.students.ListBySubject(ctx, schedule.SubjectID)
	if err != nil {
		return nil, internalError(err, "failed to load class roster")
	}
	enrolled := make(map[string]bool, len(roster))
	for _, st := range roster {
		if st.Active {
			enrolled[st.ID] = true
		}
	}

	recordedBy := stringPtr(schedule.TeacherID)
	records := make([]models.Attendance, 0, len(req.Entries))
	problems := map[string]string{}
	for i, entry := range req.Entries {
		if !enrolled[entry.StudentID] {
			problems[fmt.Sprintf("entries[%d].student_id", i)] = "student is not enrolled in " + schedule.SubjectName
			continue
		}
		records = append(records, models.Attendance{
			ScheduleID: schedule.ID,
			StudentID:  entry.StudentID,
			Date:       date,
			Status:     models.AttendanceStatus(entry.Status),
			Source:     models.AttendanceSourceManual,
			Remarks:    normalizeOptional(entry.Remarks),
			RecordedBy: recordedBy,
		})
	}
	if len(problems) > 0 {
		return nil, validationError("attendance includes students outside the class roster", problems)
	}

	stored, err := s.repo.UpsertBatch(ctx, records)
	if err != nil {
		return nil, internalError(err, "failed to record attendance")
	}
	s.logger.Info("attendance recorded",
		zap.String("schedule_id", schedule.ID),
		zap.String("date", req.Date),
		zap.Int("entries", len(stored)),
	)
	return stored, nil
}

// ListForSchedule returns a meeting's attendance, restricted to the subject's teacher and admins.
func (s *AttendanceService) ListForSchedule(ctx context.Context, scheduleID string, req AttendanceListRequest, actor Actor) ([]models.AttendanceRecord, *models.Pagination, error) {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, nil, lookupError(err, "schedule not found", "failed to load schedule")
	}
	if err := s.authorize(ctx, schedule, actor); err != nil {
		return nil, nil, err
	}
	req.ScheduleID = schedule.ID
	return s.List(ctx, req)
}

// ListForTeacher returns the attendance history across every subject a teacher handles.
func (s *AttendanceService) ListForTeacher(ctx context.Context, teacherID string, req AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		return nil, nil, lookupError(err, "teacher not found", "failed to load teacher")
	}
	req.TeacherID = teacher.ID
	return s.List(ctx, req)
}

// List returns attendance rows matching the filter.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, err
	}
	filter := models.AttendanceFilter{
		ScheduleID: req.ScheduleID,
		StudentID:  req.StudentID,
		TeacherID:  req.TeacherID,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if req.Date != "" {
		date, err := time.ParseInLocation(attendanceDateLayout, req.Date, time.UTC)
		if err != nil {
			return nil, nil, validationError("invalid date", map[string]string{"date": err.Error()})
		}
		filter.Date = &date
	}
	if req.Status != "" {
		status := models.AttendanceStatus(req.Status)
		filter.Status = &status
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list attendance")
	}
	if rows == nil {
		rows = []models.AttendanceRecord{}
	}
	return rows, newPagination(req.Page, req.PageSize, total), nil
}

// ScanRFID marks the card holder present in the schedule they attend right now.
// A second tap for a meeting already marked present returns the stored row unchanged.
func (s *AttendanceService) ScanRFID(ctx context.Context, req RFIDScanRequest) (*RFIDScanResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(req.UID)
	user, err := s.users.FindByRFID(ctx, uid)
	if err != nil {
		return nil, lookupError(err, "RFID card is not registered", "failed to resolve RFID card")
	}
	student, err := s.students.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, lookupError(err, "RFID card is not assigned to a student", "failed to resolve RFID card")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "student is inactive")
	}

	now := s.now().In(s.location)
	schedule, err := s.runningSchedule(ctx, student.ID, now)
	if err != nil {
		return nil, err
	}
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	name := student.FullName()

	existing, err := s.repo.Find(ctx, schedule.ID, student.ID, date)
	switch {
	case err == nil && existing.Status == models.AttendanceStatusPresent:
		return &RFIDScanResult{
			Attendance:      existing,
			StudentName:     name,
			SubjectName:     schedule.SubjectName,
			AlreadyRecorded: true,
			Message:         fmt.Sprintf("%s is already marked present for %s.", name, schedule.SubjectName),
		}, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to load attendance")
	}

	record := &models.Attendance{
		ScheduleID: schedule.ID,
		StudentID:  student.ID,
		Date:       date,
		Status:     models.AttendanceStatusPresent,
		Source:     models.AttendanceSourceRFID,
		RecordedBy: stringPtr(schedule.TeacherID),
	}
	if existing != nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, internalError(err, "failed to record attendance")
	}
	s.logger.Info("rfid attendance recorded", zap.String("schedule_id", schedule.ID), zap.String("student_id", student.ID))
	return &RFIDScanResult{
		Attendance:  stored,
		StudentName: name,
		SubjectName: schedule.SubjectName,
		Message:     fmt.Sprintf("Attendance recorded for %s in %s.", name, schedule.SubjectName),
	}, nil
}

// runningSchedule finds the student's meeting whose window contains now, bounds inclusive.
func (s *AttendanceService) runningSchedule(ctx context.Context, studentID string, now time.Time) (*models.ScheduleDetail, error) {
	schedules, err := s.schedules.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to load student timetable")
	}
	day := models.WeekdayOf(now)
	at := models.TimeOfDayOf(now)
	for i := range schedules {
		sc := schedules[i]
		if sc.Days.Contains(day) && sc.StartTime <= at && at <= sc.EndTime {
			return &sc, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no class is in session for this student right now")
}

// authorize admits admins and the teacher who handles the schedule's subject.
func (s *AttendanceService) authorize(ctx context.Context, schedule *models.ScheduleDetail, actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "only the subject teacher can take attendance")
	}
	teacher, err := s.teachers.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "only the subject teacher can take attendance")
		}
		return internalError(err, "failed to load teacher")
	}
	if teacher.ID != schedule.TeacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the subject teacher can take attendance")
	}
	return nil
}
