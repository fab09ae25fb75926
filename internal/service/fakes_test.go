package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
)

// fakeDB is an in-memory store shared by the scheduling fakes below.
type fakeDB struct {
	teachers    map[string]models.Teacher
	subjects    map[string]models.SubjectDetail
	classrooms  map[string]models.Classroom
	students    map[string]models.Student
	users       map[string]models.User
	schedules   []models.ScheduleDetail
	enrollments []models.EnrollmentDetail
	attendance  []models.Attendance
	audits      []models.AuditLog
	revoked     []string
	seq         int
}

func newFakeDB() *fakeDB {
	db := &fakeDB{
		teachers:   map[string]models.Teacher{},
		subjects:   map[string]models.SubjectDetail{},
		classrooms: map[string]models.Classroom{},
		students:   map[string]models.Student{},
		users:      map[string]models.User{},
	}
	ana := "u-ana"
	db.teachers["t1"] = models.Teacher{ID: "t1", UserID: &ana, FirstName: "Ana", LastName: "Cruz", Active: true}
	db.teachers["t2"] = models.Teacher{ID: "t2", FirstName: "Ben", LastName: "Reyes", Active: true}

	db.addSubject("s-bio", "Biology", "t1", true)
	db.addSubject("s-chem", "Chemistry", "t1", true)
	db.addSubject("s-math", "Algebra", "t2", true)
	db.addSubject("s-old", "Latin", "t2", false)

	db.classrooms["r101"] = models.Classroom{ID: "r101", RoomNumber: "101", Capacity: 40, Active: true}
	db.classrooms["r202"] = models.Classroom{ID: "r202", RoomNumber: "202", Capacity: 30, Active: true}
	db.classrooms["r-closed"] = models.Classroom{ID: "r-closed", RoomNumber: "303", Capacity: 30, Active: false}

	juan := "u-juan"
	middle := "Santos"
	db.students["st1"] = models.Student{ID: "st1", UserID: &juan, StudentNumber: "2024-0001", FirstName: "Juan", MiddleName: &middle, LastName: "Dela Cruz", Active: true}
	db.students["st2"] = models.Student{ID: "st2", StudentNumber: "2024-0002", FirstName: "Maria", LastName: "Lopez", Active: true}
	return db
}

func (db *fakeDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

func (db *fakeDB) addSubject(id, name, teacherID string, active bool) {
	teacher := db.teachers[teacherID]
	db.subjects[id] = models.SubjectDetail{
		Subject:     models.Subject{ID: id, Code: id, Name: name, TeacherID: teacherID, Active: active},
		TeacherName: teacher.FullName(),
	}
}

func (db *fakeDB) detail(s models.Schedule) models.ScheduleDetail {
	subject := db.subjects[s.SubjectID]
	return models.ScheduleDetail{
		Schedule:    s,
		SubjectCode: subject.Code,
		SubjectName: subject.Name,
		TeacherID:   subject.TeacherID,
		TeacherName: subject.TeacherName,
		RoomNumber:  db.classrooms[s.ClassroomID].RoomNumber,
	}
}

func (db *fakeDB) addSchedule(t *testing.T, id, subjectID, classroomID, days, start, end string) {
	t.Helper()
	set, err := models.ParseWeekdaySet(days)
	require.NoError(t, err)
	startAt, err := models.ParseTimeOfDay(start)
	require.NoError(t, err)
	endAt, err := models.ParseTimeOfDay(end)
	require.NoError(t, err)
	db.schedules = append(db.schedules, db.detail(models.Schedule{
		ID: id, SubjectID: subjectID, ClassroomID: classroomID, Days: set, StartTime: startAt, EndTime: endAt,
	}))
}

func (db *fakeDB) enroll(studentID, subjectID string) {
	subject := db.subjects[subjectID]
	db.enrollments = append(db.enrollments, models.EnrollmentDetail{
		Enrollment:  models.Enrollment{ID: db.nextID("e"), StudentID: studentID, SubjectID: subjectID, EnrolledAt: time.Now()},
		SubjectCode: subject.Code,
		SubjectName: subject.Name,
		TeacherID:   subject.TeacherID,
		TeacherName: subject.TeacherName,
	})
}

func (db *fakeDB) enrolled(studentID, subjectID string) bool {
	for _, e := range db.enrollments {
		if e.StudentID == studentID && e.SubjectID == subjectID {
			return true
		}
	}
	return false
}

type fakeScheduleRepo struct {
	db        *fakeDB
	listCalls int
	createErr error
}

func (r *fakeScheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error) {
	r.listCalls++
	var out []models.ScheduleDetail
	for _, s := range r.db.schedules {
		if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
			continue
		}
		if filter.ClassroomID != "" && s.ClassroomID != filter.ClassroomID {
			continue
		}
		if filter.Day != nil && !s.Days.Contains(*filter.Day) {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (r *fakeScheduleRepo) FindByID(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	for _, s := range r.db.schedules {
		if s.ID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeScheduleRepo) ListForConflictCheck(ctx context.Context, classroomID, teacherID string) ([]models.ScheduleDetail, error) {
	var out []models.ScheduleDetail
	for _, s := range r.db.schedules {
		if s.ClassroomID == classroomID || s.TeacherID == teacherID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) ListAll(ctx context.Context) ([]models.ScheduleDetail, error) {
	return append([]models.ScheduleDetail(nil), r.db.schedules...), nil
}

func (r *fakeScheduleRepo) ListBySubject(ctx context.Context, subjectID string) ([]models.ScheduleDetail, error) {
	var out []models.ScheduleDetail
	for _, s := range r.db.schedules {
		if s.SubjectID == subjectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) ListByStudent(ctx context.Context, studentID string) ([]models.ScheduleDetail, error) {
	var out []models.ScheduleDetail
	for _, e := range r.db.enrollments {
		if e.StudentID != studentID {
			continue
		}
		for _, s := range r.db.schedules {
			if s.SubjectID == e.SubjectID {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) ListByClassroom(ctx context.Context, classroomID string) ([]models.ScheduleDetail, error) {
	var out []models.ScheduleDetail
	for _, s := range r.db.schedules {
		if s.ClassroomID == classroomID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) Create(ctx context.Context, schedule *models.Schedule) error {
	if r.createErr != nil {
		return r.createErr
	}
	schedule.ID = r.db.nextID("sc")
	r.db.schedules = append(r.db.schedules, r.db.detail(*schedule))
	return nil
}

func (r *fakeScheduleRepo) Update(ctx context.Context, schedule *models.Schedule) error {
	for i, s := range r.db.schedules {
		if s.ID == schedule.ID {
			r.db.schedules[i] = r.db.detail(*schedule)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeScheduleRepo) Delete(ctx context.Context, id string) error {
	for i, s := range r.db.schedules {
		if s.ID == id {
			r.db.schedules = append(r.db.schedules[:i], r.db.schedules[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeSubjectReader struct{ db *fakeDB }

func (r *fakeSubjectReader) FindByID(ctx context.Context, id string) (*models.SubjectDetail, error) {
	if s, ok := r.db.subjects[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type fakeClassroomReader struct{ db *fakeDB }

func (r *fakeClassroomReader) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if c, ok := r.db.classrooms[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type fakeStudentReader struct{ db *fakeDB }

func (r *fakeStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := r.db.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (r *fakeStudentReader) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	for _, s := range r.db.students {
		if s.UserID != nil && *s.UserID == userID {
			cp := s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeStudentReader) ListBySubject(ctx context.Context, subjectID string) ([]models.Student, error) {
	var out []models.Student
	for _, e := range r.db.enrollments {
		if e.SubjectID == subjectID {
			out = append(out, r.db.students[e.StudentID])
		}
	}
	return out, nil
}

type fakeTeacherReader struct{ db *fakeDB }

func (r *fakeTeacherReader) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if t, ok := r.db.teachers[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (r *fakeTeacherReader) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	for _, t := range r.db.teachers {
		if t.UserID != nil && *t.UserID == userID {
			cp := t
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeEnrollmentRepo struct{ db *fakeDB }

func (r *fakeEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range r.db.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEnrollmentRepo) Exists(ctx context.Context, studentID, subjectID string) (bool, error) {
	return r.db.enrolled(studentID, subjectID), nil
}

func (r *fakeEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	r.db.enroll(enrollment.StudentID, enrollment.SubjectID)
	enrollment.ID = r.db.enrollments[len(r.db.enrollments)-1].ID
	return nil
}

func (r *fakeEnrollmentRepo) Delete(ctx context.Context, studentID, subjectID string) error {
	for i, e := range r.db.enrollments {
		if e.StudentID == studentID && e.SubjectID == subjectID {
			r.db.enrollments = append(r.db.enrollments[:i], r.db.enrollments[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeAuditRepo struct{ db *fakeDB }

func (r *fakeAuditRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.db.audits = append(r.db.audits, *log)
	return nil
}

func (db *fakeDB) auditActions() []string {
	actions := make([]string, len(db.audits))
	for i, a := range db.audits {
		actions[i] = a.Action
	}
	return actions
}

// memoryCache is a CacheRepository backed by a map of JSON-compatible values.
type memoryCache struct {
	values      map[string][]byte
	ttls        map[string]time.Duration
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	return nil
}

type fakeAttendanceRepo struct {
	db      *fakeDB
	upserts int
}

func (r *fakeAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	r.upserts++
	for i, a := range r.db.attendance {
		if a.ScheduleID == record.ScheduleID && a.StudentID == record.StudentID && a.Date.Equal(record.Date) {
			record.ID = a.ID
			r.db.attendance[i] = *record
			return record, nil
		}
	}
	if record.ID == "" {
		record.ID = r.db.nextID("a")
	}
	r.db.attendance = append(r.db.attendance, *record)
	return record, nil
}

func (r *fakeAttendanceRepo) UpsertBatch(ctx context.Context, records []models.Attendance) ([]models.Attendance, error) {
	out := make([]models.Attendance, 0, len(records))
	for i := range records {
		stored, err := r.Upsert(ctx, &records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (r *fakeAttendanceRepo) Find(ctx context.Context, scheduleID, studentID string, date time.Time) (*models.Attendance, error) {
	for _, a := range r.db.attendance {
		if a.ScheduleID == scheduleID && a.StudentID == studentID && a.Date.Equal(date) {
			cp := a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	var out []models.AttendanceRecord
	for _, a := range r.db.attendance {
		if filter.ScheduleID != "" && a.ScheduleID != filter.ScheduleID {
			continue
		}
		if filter.Date != nil && !a.Date.Equal(*filter.Date) {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" && r.db.subjectTeacher(a.ScheduleID) != filter.TeacherID {
			continue
		}
		st := r.db.students[a.StudentID]
		out = append(out, models.AttendanceRecord{Attendance: a, StudentName: st.FullName(), StudentNumber: st.StudentNumber})
	}
	return out, len(out), nil
}

func (db *fakeDB) subjectTeacher(scheduleID string) string {
	for _, sc := range db.schedules {
		if sc.ID == scheduleID {
			return sc.TeacherID
		}
	}
	return ""
}

type fakeUserRepo struct{ db *fakeDB }

func (r *fakeUserRepo) FindByRFID(ctx context.Context, uid string) (*models.User, error) {
	for _, u := range r.db.users {
		if u.RFIDUID != nil && *u.RFIDUID == uid {
			cp := u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	for _, u := range r.db.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error {
	if user.ID == "" {
		user.ID = r.db.nextID("u")
	}
	r.db.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) SetActive(ctx context.Context, userID string, active bool) error {
	u, ok := r.db.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	u.Active = active
	r.db.users[userID] = u
	return nil
}

func (r *fakeUserRepo) SetRFID(ctx context.Context, userID string, uid *string) error {
	u, ok := r.db.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	if uid != nil {
		for id, other := range r.db.users {
			if id != userID && other.RFIDUID != nil && *other.RFIDUID == *uid {
				return fmt.Errorf("set rfid: %w", &pq.Error{Code: "23505", Constraint: "users_rfid_uid_key"})
			}
		}
	}
	u.RFIDUID = uid
	r.db.users[userID] = u
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.db.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, userID, hash string) error {
	u, ok := r.db.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	r.db.users[userID] = u
	return nil
}

func (r *fakeUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	r.db.revoked = append(r.db.revoked, userID)
	return nil
}

// fakeTx runs the callback without a transaction handle.
type fakeTx struct{ calls int }

func (f *fakeTx) WithinTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error {
	f.calls++
	return fn(nil)
}

type fakeTeacherRepo struct{ fakeTeacherReader }

func (r *fakeTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	var out []models.Teacher
	for _, t := range r.db.teachers {
		if filter.Active != nil && t.Active != *filter.Active {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *fakeTeacherRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for id, t := range r.db.teachers {
		if id != excludeID && strings.EqualFold(t.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTeacherRepo) Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	teacher.ID = r.db.nextID("t")
	r.db.teachers[teacher.ID] = *teacher
	return nil
}

func (r *fakeTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	if _, ok := r.db.teachers[teacher.ID]; !ok {
		return sql.ErrNoRows
	}
	r.db.teachers[teacher.ID] = *teacher
	return nil
}

func (r *fakeTeacherRepo) Deactivate(ctx context.Context, id string) error {
	t := r.db.teachers[id]
	t.Active = false
	r.db.teachers[id] = t
	return nil
}

type fakeStudentRepo struct{ fakeStudentReader }

func (r *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range r.db.students {
		if filter.Course != "" && s.Course != filter.Course {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *fakeStudentRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for id, s := range r.db.students {
		if id != excludeID && strings.EqualFold(s.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeStudentRepo) ExistsByStudentNumber(ctx context.Context, number, excludeID string) (bool, error) {
	for id, s := range r.db.students {
		if id != excludeID && s.StudentNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeStudentRepo) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	student.ID = r.db.nextID("st")
	r.db.students[student.ID] = *student
	return nil
}

func (r *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if _, ok := r.db.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	r.db.students[student.ID] = *student
	return nil
}

func (r *fakeStudentRepo) Deactivate(ctx context.Context, id string) error {
	s := r.db.students[id]
	s.Active = false
	r.db.students[id] = s
	return nil
}

type fakeClassroomRepo struct{ fakeClassroomReader }

func (r *fakeClassroomRepo) List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, int, error) {
	var out []models.Classroom
	for _, c := range r.db.classrooms {
		if filter.Active != nil && c.Active != *filter.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out, len(out), nil
}

func (r *fakeClassroomRepo) ExistsByRoomNumber(ctx context.Context, roomNumber, excludeID string) (bool, error) {
	for id, c := range r.db.classrooms {
		if id != excludeID && strings.EqualFold(c.RoomNumber, roomNumber) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeClassroomRepo) Create(ctx context.Context, room *models.Classroom) error {
	room.ID = r.db.nextID("r")
	r.db.classrooms[room.ID] = *room
	return nil
}

func (r *fakeClassroomRepo) Update(ctx context.Context, room *models.Classroom) error {
	if _, ok := r.db.classrooms[room.ID]; !ok {
		return sql.ErrNoRows
	}
	r.db.classrooms[room.ID] = *room
	return nil
}

func (r *fakeClassroomRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.db.classrooms[id]; !ok {
		return sql.ErrNoRows
	}
	for _, s := range r.db.schedules {
		if s.ClassroomID == id {
			return fmt.Errorf("delete classroom: %w", &pq.Error{Code: "23503"})
		}
	}
	delete(r.db.classrooms, id)
	return nil
}

type fakeSubjectRepo struct{ fakeSubjectReader }

func (r *fakeSubjectRepo) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectDetail, int, error) {
	var out []models.SubjectDetail
	for _, s := range r.db.subjects {
		if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, len(out), nil
}

func (r *fakeSubjectRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	for id, s := range r.db.subjects {
		if id != excludeID && strings.EqualFold(s.Code, code) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = r.db.nextID("s")
	return r.store(subject)
}

func (r *fakeSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	if _, ok := r.db.subjects[subject.ID]; !ok {
		return sql.ErrNoRows
	}
	return r.store(subject)
}

func (r *fakeSubjectRepo) store(subject *models.Subject) error {
	r.db.subjects[subject.ID] = models.SubjectDetail{Subject: *subject, TeacherName: r.db.teachers[subject.TeacherID].FullName()}
	return nil
}

func (r *fakeSubjectRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.db.subjects[id]; !ok {
		return sql.ErrNoRows
	}
	for _, s := range r.db.schedules {
		if s.SubjectID == id {
			return fmt.Errorf("delete subject: %w", &pq.Error{Code: "23503"})
		}
	}
	delete(r.db.subjects, id)
	return nil
}
