package models

// DashboardCounts are the headline totals shown to administrators.
type DashboardCounts struct {
	Teachers        int `db:"teachers" json:"teachers"`
	Students        int `db:"students" json:"students"`
	Subjects        int `db:"subjects" json:"subjects"`
	Classrooms      int `db:"classrooms" json:"classrooms"`
	Schedules       int `db:"schedules" json:"schedules"`
	Enrollments     int `db:"enrollments" json:"enrollments"`
	AttendanceToday int `db:"attendance_today" json:"attendance_today"`
}

// TeacherLoad summarises the subjects, students and rooms a teacher handles.
type TeacherLoad struct {
	Subjects        int `db:"subjects" json:"subjects"`
	Students        int `db:"students" json:"students"`
	Classrooms      int `db:"classrooms" json:"classrooms"`
	AttendanceToday int `db:"attendance_today" json:"attendance_today"`
}
