package models

import "time"

// Schedule is a weekly recurring meeting of a subject in a classroom.
// Days is stored as a comma joined list of weekday codes.
type Schedule struct {
	ID          string     `db:"id" json:"id"`
	SubjectID   string     `db:"subject_id" json:"subject_id"`
	ClassroomID string     `db:"classroom_id" json:"classroom_id"`
	Days        WeekdaySet `db:"days" json:"days"`
	StartTime   TimeOfDay  `db:"start_time" json:"start_time"`
	EndTime     TimeOfDay  `db:"end_time" json:"end_time"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ScheduleDetail joins the subject, its teacher and the classroom.
type ScheduleDetail struct {
	Schedule
	SubjectCode string `db:"subject_code" json:"subject_code"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	RoomNumber  string `db:"room_number" json:"room_number"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	SubjectID   string
	ClassroomID string
	TeacherID   string
	Day         *Weekday
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
