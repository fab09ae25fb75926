package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

var juan = StudentRef{ID: "st-1", FullName: "Juan Dela Cruz"}

func TestCheckEnrollmentBackToBackConflicts(t *testing.T) {
	in := EnrollmentInput{
		Student:          juan,
		Subject:          algebra,
		SubjectSlots:     []Slot{slot("n1", algebra, room101, "10:00", "11:00", models.Monday)},
		EnrolledSubjects: []SubjectRef{biology},
		EnrolledSlots:    []Slot{slot("o1", biology, room202, "09:00", "10:00", models.Monday)},
	}

	report := CheckEnrollment(in)

	require.Len(t, report, 1)
	assert.Equal(t, KindEnrollment, report[0].Kind)
	assert.Equal(t,
		"Schedule conflict: Juan Dela Cruz is already enrolled in Biology on Monday from 09:00 to 10:00, which conflicts with Algebra scheduled on Monday from 10:00 to 11:00.",
		report[0].Message)
}

func TestCheckEnrollmentPolicyDiffersFromScheduleCheck(t *testing.T) {
	existing := slot("o1", biology, room101, "09:00", "10:00", models.Monday)
	proposed := slot("n1", algebra, room101, "10:00", "11:00", models.Monday)

	assert.True(t, CheckSchedule(Candidate{Slot: proposed}, []Slot{existing}).Empty())
	assert.Len(t, CheckEnrollment(EnrollmentInput{
		Student:       juan,
		Subject:       algebra,
		SubjectSlots:  []Slot{proposed},
		EnrolledSlots: []Slot{existing},
	}), 1)
}

func TestCheckEnrollmentNoSlots(t *testing.T) {
	in := EnrollmentInput{
		Student:       juan,
		Subject:       algebra,
		EnrolledSlots: []Slot{slot("o1", biology, room202, "09:00", "10:00", models.Monday)},
	}
	assert.True(t, CheckEnrollment(in).Empty())
}

func TestCheckEnrollmentNoEnrollments(t *testing.T) {
	in := EnrollmentInput{
		Student:      juan,
		Subject:      algebra,
		SubjectSlots: []Slot{slot("n1", algebra, room101, "09:00", "10:00", models.Monday)},
	}
	assert.True(t, CheckEnrollment(in).Empty())
}

func TestCheckEnrollmentResolvesSubjectNames(t *testing.T) {
	old := slot("o1", SubjectRef{ID: biology.ID}, room202, "09:00", "10:00", models.Thursday)
	in := EnrollmentInput{
		Student:          juan,
		Subject:          algebra,
		SubjectSlots:     []Slot{slot("n1", algebra, room101, "09:30", "10:30", models.Thursday)},
		EnrolledSubjects: []SubjectRef{biology},
		EnrolledSlots:    []Slot{old},
	}

	report := CheckEnrollment(in)

	require.Len(t, report, 1)
	assert.Equal(t, "Biology", report[0].ExistingSubject)
	assert.Equal(t, models.Thursday, report[0].Weekday)
}

func TestCheckEnrollmentOrdering(t *testing.T) {
	in := EnrollmentInput{
		Student: juan,
		Subject: algebra,
		SubjectSlots: []Slot{
			slot("n1", algebra, room101, "09:00", "10:00", models.Wednesday, models.Monday),
			slot("n2", algebra, room101, "13:00", "14:00", models.Friday),
		},
		EnrolledSlots: []Slot{
			slot("o1", biology, room202, "09:00", "10:00", models.Monday, models.Wednesday, models.Friday),
			slot("o2", geometry, room202, "14:00", "15:00", models.Friday),
		},
	}

	report := CheckEnrollment(in)

	got := make([]string, 0, len(report))
	for _, c := range report {
		got = append(got, c.Weekday.Code()+"/"+c.ExistingID)
	}
	assert.Equal(t, []string{"W/o1", "M/o1", "F/o2"}, got)
}
