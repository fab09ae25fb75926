package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/pkg/cache"
)

const dashboardTodayLimit = 100

type dashboardRepository interface {
	Counts(ctx context.Context, day time.Time) (*models.DashboardCounts, error)
	TeacherLoad(ctx context.Context, teacherID string, day time.Time) (*models.TeacherLoad, error)
}

type dashboardScheduleReader interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ScheduleDetail, error)
}

type dashboardEnrollmentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

// AdminDashboard is the school-wide overview for the current day.
type AdminDashboard struct {
	Date       string                  `json:"date"`
	Weekday    models.Weekday          `json:"weekday"`
	Counts     models.DashboardCounts  `json:"counts"`
	TodayTotal int                     `json:"today_total"`
	Today      []models.ScheduleDetail `json:"today"`
	Cached     bool                    `json:"-"`
}

// TeacherDashboard lists a teacher's classes for the day and their teaching load.
type TeacherDashboard struct {
	Date      string                  `json:"date"`
	Weekday   models.Weekday          `json:"weekday"`
	TeacherID string                  `json:"teacher_id"`
	Teacher   string                  `json:"teacher"`
	Load      models.TeacherLoad      `json:"load"`
	Today     []models.ScheduleDetail `json:"today"`
	Cached    bool                    `json:"-"`
}

// StudentSubject is an enrolled subject with its weekly meetings.
type StudentSubject struct {
	models.EnrollmentDetail
	Meetings []models.ScheduleDetail `json:"meetings"`
}

// StudentDashboard lists a student's classes for the day and every enrolled subject.
type StudentDashboard struct {
	Date        string                  `json:"date"`
	Weekday     models.Weekday          `json:"weekday"`
	StudentID   string                  `json:"student_id"`
	Student     string                  `json:"student"`
	Enrollments int                     `json:"enrollments"`
	Today       []models.ScheduleDetail `json:"today"`
	Subjects    []StudentSubject        `json:"subjects"`
	Cached      bool                    `json:"-"`
}

// DashboardService composes the per-role landing pages. Payloads are cached
// per day and dropped whenever scheduling data changes.
type DashboardService struct {
	repo        dashboardRepository
	schedules   dashboardScheduleReader
	enrollments dashboardEnrollmentReader
	teachers    subjectTeacherReader
	students    studentReader
	cache       *CacheService
	location    *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

// NewDashboardService constructs a DashboardService. "Today" is evaluated in loc.
func NewDashboardService(repo dashboardRepository, schedules dashboardScheduleReader, enrollments dashboardEnrollmentReader, teachers subjectTeacherReader, students studentReader, cacheSvc *CacheService, loc *time.Location, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		repo:        repo,
		schedules:   schedules,
		enrollments: enrollments,
		teachers:    teachers,
		students:    students,
		cache:       cacheSvc,
		location:    loc,
		now:         time.Now,
		logger:      logger,
	}
}

// Admin returns totals and every meeting held today.
func (s *DashboardService) Admin(ctx context.Context) (*AdminDashboard, error) {
	today := s.today()
	key := cache.Key(cache.PrefixDashboard, "admin", today.Format("2006-01-02"))
	var cached AdminDashboard
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		cached.Cached = true
		return &cached, nil
	}

	counts, err := s.repo.Counts(ctx, today)
	if err != nil {
		return nil, internalError(err, "failed to load dashboard counts")
	}
	weekday := models.WeekdayOf(today)
	schedules, total, err := s.schedules.List(ctx, models.ScheduleFilter{Day: &weekday, PageSize: dashboardTodayLimit, SortBy: "start_time"})
	if err != nil {
		return nil, internalError(err, "failed to load today's schedules")
	}

	dash := &AdminDashboard{
		Date:       today.Format("2006-01-02"),
		Weekday:    weekday,
		Counts:     *counts,
		TodayTotal: total,
		Today:      byStartTime(schedules),
	}
	_ = s.cache.Set(ctx, key, dash, 0)
	return dash, nil
}

// Teacher returns today's classes of a teacher together with their load.
func (s *DashboardService) Teacher(ctx context.Context, teacherID string) (*TeacherDashboard, error) {
	today := s.today()
	key := cache.Key(cache.PrefixDashboard, "teacher", teacherID, today.Format("2006-01-02"))
	var cached TeacherDashboard
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		cached.Cached = true
		return &cached, nil
	}

	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		return nil, lookupError(err, "teacher not found", "failed to load teacher")
	}
	load, err := s.repo.TeacherLoad(ctx, teacher.ID, today)
	if err != nil {
		return nil, internalError(err, "failed to load teacher load")
	}
	weekday := models.WeekdayOf(today)
	schedules, _, err := s.schedules.List(ctx, models.ScheduleFilter{TeacherID: teacher.ID, Day: &weekday, PageSize: dashboardTodayLimit})
	if err != nil {
		return nil, internalError(err, "failed to load today's schedules")
	}

	dash := &TeacherDashboard{
		Date:      today.Format("2006-01-02"),
		Weekday:   weekday,
		TeacherID: teacher.ID,
		Teacher:   teacher.FullName(),
		Load:      *load,
		Today:     byStartTime(schedules),
	}
	_ = s.cache.Set(ctx, key, dash, 0)
	return dash, nil
}

// Student returns today's classes of a student and every enrolled subject with its meetings.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*StudentDashboard, error) {
	today := s.today()
	key := cache.Key(cache.PrefixDashboard, "student", studentID, today.Format("2006-01-02"))
	var cached StudentDashboard
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		cached.Cached = true
		return &cached, nil
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, internalError(err, "failed to load enrollments")
	}
	schedules, err := s.schedules.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, internalError(err, "failed to load student schedules")
	}
	schedules = byStartTime(schedules)

	weekday := models.WeekdayOf(today)
	meetings := make(map[string][]models.ScheduleDetail, len(enrollments))
	todays := make([]models.ScheduleDetail, 0)
	for _, sc := range schedules {
		meetings[sc.SubjectID] = append(meetings[sc.SubjectID], sc)
		if sc.Days.Contains(weekday) {
			todays = append(todays, sc)
		}
	}
	subjects := make([]StudentSubject, 0, len(enrollments))
	for _, e := range enrollments {
		list := meetings[e.SubjectID]
		if list == nil {
			list = []models.ScheduleDetail{}
		}
		subjects = append(subjects, StudentSubject{EnrollmentDetail: e, Meetings: list})
	}
	sort.SliceStable(subjects, func(i, j int) bool { return subjects[i].SubjectCode < subjects[j].SubjectCode })

	dash := &StudentDashboard{
		Date:        today.Format("2006-01-02"),
		Weekday:     weekday,
		StudentID:   student.ID,
		Student:     student.FullName(),
		Enrollments: len(enrollments),
		Today:       todays,
		Subjects:    subjects,
	}
	_ = s.cache.Set(ctx, key, dash, 0)
	return dash, nil
}

func (s *DashboardService) today() time.Time {
	now := s.now().In(s.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
}

func byStartTime(schedules []models.ScheduleDetail) []models.ScheduleDetail {
	out := append([]models.ScheduleDetail{}, schedules...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].SubjectCode < out[j].SubjectCode
	})
	return out
}
