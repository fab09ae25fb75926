package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/conflict"
	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/pkg/database"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/validation"
)

type enrollmentRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	Exists(ctx context.Context, studentID, subjectID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, studentID, subjectID string) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type enrollmentScheduleReader interface {
	ListBySubject(ctx context.Context, subjectID string) ([]models.ScheduleDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ScheduleDetail, error)
}

// EnrollRequest enrolls a student in a subject.
type EnrollRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
}

// EnrollmentCheckResult extends a dry-run report with the enrollment state.
type EnrollmentCheckResult struct {
	CheckResult
	AlreadyEnrolled bool `json:"already_enrolled"`
}

// EnrollmentService manages student enrollments, rejecting any that would
// overlap a meeting the student already attends.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	subjects  subjectReader
	schedules enrollmentScheduleReader
	audit     auditLogWriter
	cache     *CacheService
	metrics   *MetricsService
	validator *validation.Validator
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, subjects subjectReader, schedules enrollmentScheduleReader, audit auditLogWriter, cacheSvc *CacheService, metrics *MetricsService, validate *validation.Validator, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		subjects:  subjects,
		schedules: schedules,
		audit:     audit,
		cache:     cacheSvc,
		metrics:   metrics,
		validator: newValidator(validate),
		logger:    logger,
	}
}

// List returns the subjects a student is enrolled in.
func (s *EnrollmentService) List(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	return enrollments, nil
}

// Check reports the conflicts enrolling would cause without saving.
func (s *EnrollmentService) Check(ctx context.Context, studentID string, req EnrollRequest) (*EnrollmentCheckResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	student, subject, err := s.resolve(ctx, studentID, req.SubjectID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.repo.Exists(ctx, student.ID, subject.ID)
	if err != nil {
		return nil, internalError(err, "failed to check enrollment")
	}
	if enrolled {
		return &EnrollmentCheckResult{CheckResult: *newCheckResult(nil), AlreadyEnrolled: true}, nil
	}
	report, err := s.detect(ctx, student, subject)
	if err != nil {
		return nil, err
	}
	return &EnrollmentCheckResult{CheckResult: *newCheckResult(report)}, nil
}

// Enroll adds a subject to a student's load. An existing enrollment is
// reported as ALREADY_ENROLLED before any conflict check runs.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID string, req EnrollRequest, actor Actor) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	student, subject, err := s.resolve(ctx, studentID, req.SubjectID)
	if err != nil {
		return nil, err
	}
	if !subject.Active {
		return nil, validationError("subject is inactive", map[string]string{"subject_id": "subject is inactive"})
	}

	enrolled, err := s.repo.Exists(ctx, student.ID, subject.ID)
	if err != nil {
		return nil, internalError(err, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student is already enrolled in "+subject.Name)
	}

	report, err := s.detect(ctx, student, subject)
	if err != nil {
		return nil, err
	}
	if !report.Empty() {
		s.logger.Info("enrollment rejected by conflict check",
			zap.String("student_id", student.ID),
			zap.String("subject_id", subject.ID),
			zap.Int("conflicts", len(report)),
		)
		details := newConflictDetails(report)
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionConflictBlocked, "enrollment", student.ID, details)
		return nil, appErrors.WithDetails(appErrors.ErrEnrollmentConflict, details)
	}

	enrollment := &models.Enrollment{StudentID: student.ID, SubjectID: subject.ID}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if _, ok := database.IsUniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student is already enrolled in "+subject.Name)
		}
		return nil, internalError(err, "failed to enroll student")
	}
	s.cache.InvalidateScheduling(ctx)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionEnroll, "enrollment", enrollment.ID, enrollment)
	return enrollment, nil
}

// Unenroll removes a subject from a student's load.
func (s *EnrollmentService) Unenroll(ctx context.Context, studentID, subjectID string, actor Actor) error {
	if err := s.repo.Delete(ctx, studentID, subjectID); err != nil {
		return lookupError(err, "enrollment not found", "failed to unenroll student")
	}
	s.cache.InvalidateScheduling(ctx)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUnenroll, "enrollment", studentID, map[string]string{"subject_id": subjectID})
	return nil
}

func (s *EnrollmentService) resolve(ctx context.Context, studentID, subjectID string) (*models.Student, *models.SubjectDetail, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, nil, lookupError(err, "student not found", "failed to load student")
	}
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		return nil, nil, lookupError(err, "subject not found", "failed to load subject")
	}
	return student, subject, nil
}

// detect reads the subject's meetings and the student's current timetable
// from the store and runs the enrollment check.
func (s *EnrollmentService) detect(ctx context.Context, student *models.Student, subject *models.SubjectDetail) (conflict.Report, error) {
	subjectSchedules, err := s.schedules.ListBySubject(ctx, subject.ID)
	if err != nil {
		return nil, internalError(err, "failed to load subject schedules")
	}
	if len(subjectSchedules) == 0 {
		s.metrics.RecordConflictCheck(CheckKindEnrollment, nil)
		return nil, nil
	}
	enrolledSchedules, err := s.schedules.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, internalError(err, "failed to load student timetable")
	}
	enrollments, err := s.repo.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, internalError(err, "failed to list enrollments")
	}

	enrolledSubjects := make([]conflict.SubjectRef, len(enrollments))
	for i, e := range enrollments {
		enrolledSubjects[i] = conflict.SubjectRef{
			ID:      e.SubjectID,
			Name:    e.SubjectName,
			Teacher: conflict.TeacherRef{ID: e.TeacherID, FullName: e.TeacherName},
		}
	}

	report := conflict.CheckEnrollment(conflict.EnrollmentInput{
		Student:          conflict.StudentRef{ID: student.ID, FullName: student.FullName()},
		Subject:          subjectRef(*subject),
		SubjectSlots:     slotsFromDetails(subjectSchedules),
		EnrolledSubjects: enrolledSubjects,
		EnrolledSlots:    slotsFromDetails(enrolledSchedules),
	})
	s.metrics.RecordConflictCheck(CheckKindEnrollment, report)
	return report, nil
}
