package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceSource records how an attendance row was captured.
type AttendanceSource string

const (
	AttendanceSourceManual AttendanceSource = "MANUAL"
	AttendanceSourceRFID   AttendanceSource = "RFID"
)

// Attendance is one student's status for one schedule meeting on a date.
// (schedule_id, student_id, date) is unique.
type Attendance struct {
	ID         string           `db:"id" json:"id"`
	ScheduleID string           `db:"schedule_id" json:"schedule_id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Source     AttendanceSource `db:"source" json:"source"`
	Remarks    *string          `db:"remarks" json:"remarks,omitempty"`
	// RecordedBy is the teacher of the subject.
	RecordedBy *string          `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends an attendance row with display names.
type AttendanceRecord struct {
	Attendance
	StudentName   string `db:"student_name" json:"student_name"`
	StudentNumber string `db:"student_number" json:"student_number"`
	SubjectName   string `db:"subject_name" json:"subject_name"`
}

// AttendanceFilter scopes attendance listings.
type AttendanceFilter struct {
	ScheduleID string
	StudentID  string
	TeacherID  string
	Date       *time.Time
	Status     *AttendanceStatus
	Page       int
	PageSize   int
}
