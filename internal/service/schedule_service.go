package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/conflict"
	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/pkg/cache"
	"github.com/noah-isme/class-scheduling-api/pkg/database"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/validation"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleDetail, error)
	ListForConflictCheck(ctx context.Context, classroomID, teacherID string) ([]models.ScheduleDetail, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.SubjectDetail, error)
}

type classroomReader interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

// ScheduleRequest is the payload for creating, updating or checking a schedule.
type ScheduleRequest struct {
	SubjectID   string   `json:"subject_id" validate:"required"`
	ClassroomID string   `json:"classroom_id" validate:"required"`
	Days        []string `json:"days" validate:"required,min=1,dive,weekday"`
	StartTime   string   `json:"start_time" validate:"required,hhmm"`
	EndTime     string   `json:"end_time" validate:"required,hhmm"`
}

// CheckScheduleRequest runs the conflict check without saving. ExcludeID
// names the schedule being edited.
type CheckScheduleRequest struct {
	ScheduleRequest
	ExcludeID string `json:"exclude_id"`
}

// ScheduleService gates schedule writes behind the room and teacher conflict check.
type ScheduleService struct {
	repo       scheduleRepository
	subjects   subjectReader
	classrooms classroomReader
	audit      auditLogWriter
	cache      *CacheService
	metrics    *MetricsService
	validator  *validation.Validator
	logger     *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, subjects subjectReader, classrooms classroomReader, audit auditLogWriter, cacheSvc *CacheService, metrics *MetricsService, validate *validation.Validator, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		repo:       repo,
		subjects:   subjects,
		classrooms: classrooms,
		audit:      audit,
		cache:      cacheSvc,
		metrics:    metrics,
		validator:  newValidator(validate),
		logger:     logger,
	}
}

type scheduleListCache struct {
	Items []models.ScheduleDetail `json:"items"`
	Total int                     `json:"total"`
}

// List returns schedules with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, *models.Pagination, error) {
	key := scheduleListKey(filter)
	var cached scheduleListCache
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Items, newPagination(filter.Page, filter.PageSize, cached.Total), nil
	}

	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list schedules")
	}
	if schedules == nil {
		schedules = []models.ScheduleDetail{}
	}
	_ = s.cache.Set(ctx, key, scheduleListCache{Items: schedules, Total: total}, 0)
	return schedules, newPagination(filter.Page, filter.PageSize, total), nil
}

// ListByTeacher returns every schedule of the subjects a teacher handles.
func (s *ScheduleService) ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error) {
	schedules, _, err := s.List(ctx, models.ScheduleFilter{TeacherID: teacherID, PageSize: 100})
	return schedules, err
}

// Get returns a schedule by id.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "schedule not found", "failed to load schedule")
	}
	return schedule, nil
}

// Check reports the conflicts a schedule would cause without saving it.
func (s *ScheduleService) Check(ctx context.Context, req CheckScheduleRequest) (*CheckResult, error) {
	candidate, err := s.buildCandidate(ctx, req.ScheduleRequest, req.ExcludeID, false)
	if err != nil {
		return nil, err
	}
	report, err := s.detect(ctx, candidate)
	if err != nil {
		return nil, err
	}
	return newCheckResult(report), nil
}

// Create inserts a new schedule after conflict detection.
func (s *ScheduleService) Create(ctx context.Context, req ScheduleRequest, actor Actor) (*models.ScheduleDetail, error) {
	candidate, err := s.buildCandidate(ctx, req, "", true)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, candidate, actor); err != nil {
		return nil, err
	}

	schedule := scheduleFromCandidate(candidate)
	if err := s.repo.Create(ctx, &schedule); err != nil {
		return nil, s.persistError(err, "failed to create schedule")
	}
	s.cache.InvalidateScheduling(ctx)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "schedule", schedule.ID, schedule)
	return s.Get(ctx, schedule.ID)
}

// Update modifies an existing schedule, excluding it from its own conflict check.
func (s *ScheduleService) Update(ctx context.Context, id string, req ScheduleRequest, actor Actor) (*models.ScheduleDetail, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "schedule not found", "failed to load schedule")
	}

	// Inactive subjects and rooms may stay on schedules that already use them.
	requireActive := req.SubjectID != existing.SubjectID || req.ClassroomID != existing.ClassroomID
	candidate, err := s.buildCandidate(ctx, req, existing.ID, requireActive)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, candidate, actor); err != nil {
		return nil, err
	}

	schedule := scheduleFromCandidate(candidate)
	schedule.ID = existing.ID
	schedule.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, &schedule); err != nil {
		return nil, s.persistError(err, "failed to update schedule")
	}
	s.cache.InvalidateScheduling(ctx)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "schedule", schedule.ID, schedule)
	return s.Get(ctx, schedule.ID)
}

// Delete removes a schedule entry.
func (s *ScheduleService) Delete(ctx context.Context, id string, actor Actor) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "schedule not found", "failed to delete schedule")
	}
	s.cache.InvalidateScheduling(ctx)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "schedule", id, nil)
	return nil
}

// buildCandidate validates the payload and resolves its subject and classroom.
func (s *ScheduleService) buildCandidate(ctx context.Context, req ScheduleRequest, excludeID string, requireActive bool) (conflict.Candidate, error) {
	var candidate conflict.Candidate
	if err := s.validator.Struct(req); err != nil {
		return candidate, err
	}
	days, err := parseWeekdays(req.Days)
	if err != nil {
		return candidate, validationError("invalid schedule", map[string]string{"days": err.Error()})
	}
	start, err := models.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return candidate, validationError("invalid schedule", map[string]string{"start_time": err.Error()})
	}
	end, err := models.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return candidate, validationError("invalid schedule", map[string]string{"end_time": err.Error()})
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		return candidate, lookupError(err, "subject not found", "failed to load subject")
	}
	room, err := s.classrooms.FindByID(ctx, req.ClassroomID)
	if err != nil {
		return candidate, lookupError(err, "classroom not found", "failed to load classroom")
	}
	if requireActive {
		if !subject.Active {
			return candidate, validationError("subject is inactive", map[string]string{"subject_id": "subject is inactive"})
		}
		if !room.Active {
			return candidate, validationError("classroom is unavailable", map[string]string{"classroom_id": "classroom is unavailable"})
		}
	}

	candidate = conflict.Candidate{
		Slot: conflict.Slot{
			Subject:   subjectRef(*subject),
			Classroom: conflict.ClassroomRef{ID: room.ID, RoomNumber: room.RoomNumber},
			Weekdays:  days,
			Start:     start,
			End:       end,
		},
		ExcludeID: excludeID,
	}
	if err := conflict.ValidateCandidate(candidate); err != nil {
		return candidate, candidateError(err)
	}
	return candidate, nil
}

// detect reads a fresh snapshot from the store and runs the checker.
func (s *ScheduleService) detect(ctx context.Context, candidate conflict.Candidate) (conflict.Report, error) {
	existing, err := s.repo.ListForConflictCheck(ctx, candidate.Classroom.ID, candidate.Subject.Teacher.ID)
	if err != nil {
		return nil, internalError(err, "failed to check schedule conflicts")
	}
	report := conflict.CheckSchedule(candidate, slotsFromDetails(existing))
	s.metrics.RecordConflictCheck(CheckKindSchedule, report)
	return report, nil
}

func (s *ScheduleService) ensureNoConflict(ctx context.Context, candidate conflict.Candidate, actor Actor) error {
	report, err := s.detect(ctx, candidate)
	if err != nil {
		return err
	}
	if report.Empty() {
		return nil
	}
	s.logger.Info("schedule rejected by conflict check",
		zap.String("subject_id", candidate.Subject.ID),
		zap.String("classroom_id", candidate.Classroom.ID),
		zap.Int("room_conflicts", report.Count(conflict.KindRoom)),
		zap.Int("teacher_conflicts", report.Count(conflict.KindTeacher)),
	)
	details := newConflictDetails(report)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionConflictBlocked, "schedule", candidate.ExcludeID, details)
	return appErrors.WithDetails(appErrors.ErrScheduleConflict, details)
}

func (s *ScheduleService) persistError(err error, failure string) error {
	if _, ok := database.IsUniqueViolation(err); ok {
		return appErrors.Clone(appErrors.ErrScheduleConflict, "an identical schedule already exists in this classroom")
	}
	return lookupError(err, "schedule not found", failure)
}

func scheduleFromCandidate(c conflict.Candidate) models.Schedule {
	return models.Schedule{
		SubjectID:   c.Subject.ID,
		ClassroomID: c.Classroom.ID,
		Days:        c.Weekdays,
		StartTime:   c.Start,
		EndTime:     c.End,
	}
}

func scheduleListKey(f models.ScheduleFilter) string {
	day := ""
	if f.Day != nil {
		day = f.Day.Code()
	}
	return cache.Key(cache.PrefixSchedules, "list",
		fmt.Sprintf("subject=%s|room=%s|teacher=%s|day=%s|page=%d|size=%d|sort=%s:%s",
			f.SubjectID, f.ClassroomID, f.TeacherID, day, f.Page, f.PageSize, f.SortBy, f.SortOrder))
}
