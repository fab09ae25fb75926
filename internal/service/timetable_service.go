package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/pkg/cache"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/export"
)

type timetableScheduleReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.ScheduleDetail, error)
	ListByClassroom(ctx context.Context, classroomID string) ([]models.ScheduleDetail, error)
}

// Timetable owners.
const (
	TimetableStudent   = "student"
	TimetableClassroom = "classroom"
)

// TimetableEntry is one weekly meeting.
type TimetableEntry struct {
	Weekday     models.Weekday   `json:"weekday"`
	StartTime   models.TimeOfDay `json:"start_time"`
	EndTime     models.TimeOfDay `json:"end_time"`
	ScheduleID  string           `json:"schedule_id"`
	SubjectCode string           `json:"subject_code"`
	SubjectName string           `json:"subject_name"`
	TeacherName string           `json:"teacher_name"`
	RoomNumber  string           `json:"room_number"`
}

// Timetable is the weekly grid of a student or a classroom.
type Timetable struct {
	Kind    string           `json:"kind"`
	OwnerID string           `json:"owner_id"`
	Owner   string           `json:"owner"`
	Entries []TimetableEntry `json:"entries"`
	// Cached is set when the timetable was served from cache.
	Cached bool `json:"-"`
}

// ExportedFile is a rendered timetable ready for download.
type ExportedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// TimetableService builds weekly timetables ordered by weekday and start time.
type TimetableService struct {
	schedules  timetableScheduleReader
	students   studentReader
	classrooms classroomReader
	cache      *CacheService
	logger     *zap.Logger
}

// NewTimetableService constructs a TimetableService.
func NewTimetableService(schedules timetableScheduleReader, students studentReader, classrooms classroomReader, cacheSvc *CacheService, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{schedules: schedules, students: students, classrooms: classrooms, cache: cacheSvc, logger: logger}
}

// ForStudent returns the meetings of every subject the student is enrolled in.
func (s *TimetableService) ForStudent(ctx context.Context, studentID string) (*Timetable, error) {
	key := cache.Key(cache.PrefixTimetable, TimetableStudent, studentID)
	var cached Timetable
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		cached.Cached = true
		return &cached, nil
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	schedules, err := s.schedules.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, internalError(err, "failed to load student timetable")
	}
	timetable := buildTimetable(TimetableStudent, student.ID, student.FullName(), schedules)
	_ = s.cache.Set(ctx, key, timetable, 0)
	return timetable, nil
}

// ForClassroom returns every meeting held in the classroom.
func (s *TimetableService) ForClassroom(ctx context.Context, classroomID string) (*Timetable, error) {
	key := cache.Key(cache.PrefixTimetable, TimetableClassroom, classroomID)
	var cached Timetable
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		cached.Cached = true
		return &cached, nil
	}

	room, err := s.classrooms.FindByID(ctx, classroomID)
	if err != nil {
		return nil, lookupError(err, "classroom not found", "failed to load classroom")
	}
	schedules, err := s.schedules.ListByClassroom(ctx, room.ID)
	if err != nil {
		return nil, internalError(err, "failed to load classroom timetable")
	}
	timetable := buildTimetable(TimetableClassroom, room.ID, "Room "+room.RoomNumber, schedules)
	_ = s.cache.Set(ctx, key, timetable, 0)
	return timetable, nil
}

// Export renders the timetable as csv, pdf or xlsx.
func (s *TimetableService) Export(t *Timetable, format string) (*ExportedFile, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	data, err := renderer.Render(timetableTable(t))
	if err != nil {
		s.logger.Error("timetable export failed", zap.String("owner_id", t.OwnerID), zap.String("format", format), zap.Error(err))
		return nil, internalError(err, "failed to export timetable")
	}
	return &ExportedFile{
		Name:        fmt.Sprintf("timetable-%s-%s.%s", t.Kind, slug(t.Owner), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func buildTimetable(kind, ownerID, owner string, schedules []models.ScheduleDetail) *Timetable {
	entries := make([]TimetableEntry, 0, len(schedules))
	for _, sc := range schedules {
		for _, day := range sc.Days {
			entries = append(entries, TimetableEntry{
				Weekday:     day,
				StartTime:   sc.StartTime,
				EndTime:     sc.EndTime,
				ScheduleID:  sc.ID,
				SubjectCode: sc.SubjectCode,
				SubjectName: sc.SubjectName,
				TeacherName: sc.TeacherName,
				RoomNumber:  sc.RoomNumber,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.SubjectName < b.SubjectName
	})
	return &Timetable{Kind: kind, OwnerID: ownerID, Owner: owner, Entries: entries}
}

func timetableTable(t *Timetable) export.Table {
	table := export.Table{
		Title:   "Timetable: " + t.Owner,
		Columns: []string{"Day", "Start", "End", "Code", "Subject", "Teacher", "Room"},
		Rows:    make([][]string, 0, len(t.Entries)),
	}
	for _, e := range t.Entries {
		table.Rows = append(table.Rows, []string{
			e.Weekday.String(), e.StartTime.String(), e.EndTime.String(),
			e.SubjectCode, e.SubjectName, e.TeacherName, e.RoomNumber,
		})
	}
	return table
}

func slug(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, "-")
}
