package conflict

import (
	"fmt"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

// TeacherRef identifies a teacher by id and display name.
type TeacherRef struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// ClassroomRef identifies a classroom.
type ClassroomRef struct {
	ID         string `json:"id"`
	RoomNumber string `json:"room_number"`
}

// SubjectRef identifies a subject and the single teacher assigned to it.
type SubjectRef struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Teacher TeacherRef `json:"teacher"`
}

// StudentRef identifies a student.
type StudentRef struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// Slot is a recurring weekly meeting of a subject in a classroom.
type Slot struct {
	ID        string            `json:"id"`
	Subject   SubjectRef        `json:"subject"`
	Classroom ClassroomRef      `json:"classroom"`
	Weekdays  models.WeekdaySet `json:"weekdays"`
	Start     models.TimeOfDay  `json:"start"`
	End       models.TimeOfDay  `json:"end"`
}

// Range returns the slot's time range.
func (s Slot) Range() Range {
	return Range{Start: s.Start, End: s.End}
}

// Candidate is a proposed slot. ExcludeID names the stored record being
// edited so it is not compared against itself; empty excludes nothing.
type Candidate struct {
	Slot
	ExcludeID string `json:"exclude_id,omitempty"`
}

// Range is a time interval within one day.
type Range struct {
	Start models.TimeOfDay `json:"start"`
	End   models.TimeOfDay `json:"end"`
}

func (r Range) String() string {
	return fmt.Sprintf("%s to %s", r.Start, r.End)
}

// Kind classifies a conflict.
type Kind string

const (
	KindRoom       Kind = "ROOM"
	KindTeacher    Kind = "TEACHER"
	KindEnrollment Kind = "ENROLLMENT"
)

// Conflict is one detected collision. Existing describes the stored record,
// Candidate the proposed one.
type Conflict struct {
	Kind             Kind           `json:"kind"`
	Weekday          models.Weekday `json:"weekday"`
	ExistingID       string         `json:"existing_id,omitempty"`
	ExistingSubject  string         `json:"existing_subject"`
	CandidateSubject string         `json:"candidate_subject,omitempty"`
	Existing         Range          `json:"existing"`
	Candidate        Range          `json:"candidate"`
	Classroom        string         `json:"classroom,omitempty"`
	Teacher          string         `json:"teacher,omitempty"`
	Student          string         `json:"student,omitempty"`
	Message          string         `json:"message"`
}

// Report is the ordered list of conflicts found by a check. An empty report
// means no conflict.
type Report []Conflict

// Empty reports whether no conflict was found.
func (r Report) Empty() bool {
	return len(r) == 0
}

// Messages returns the human readable message of every conflict, in order.
func (r Report) Messages() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Message
	}
	return out
}

// Count returns the number of conflicts of kind k.
func (r Report) Count(k Kind) int {
	n := 0
	for _, c := range r {
		if c.Kind == k {
			n++
		}
	}
	return n
}
