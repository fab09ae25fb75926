package conflict

import "fmt"

// EnrollmentInput is the snapshot needed to check a proposed enrollment.
type EnrollmentInput struct {
	Student StudentRef
	// Subject is the subject the student wants to join and SubjectSlots its meetings.
	Subject      SubjectRef
	SubjectSlots []Slot
	// EnrolledSubjects are the subjects the student already holds.
	// EnrolledSlots are their meetings. A slot whose subject name is empty
	// is resolved against EnrolledSubjects by id.
	EnrolledSubjects []SubjectRef
	EnrolledSlots    []Slot
}

// CheckEnrollment lists every enrolled meeting that collides with a meeting
// of the new subject. Iteration is new slot, then its weekdays, then enrolled
// slots. Back-to-back meetings DO conflict here.
func CheckEnrollment(in EnrollmentInput) Report {
	if len(in.SubjectSlots) == 0 {
		return nil
	}

	names := make(map[string]string, len(in.EnrolledSubjects))
	for _, s := range in.EnrolledSubjects {
		names[s.ID] = s.Name
	}

	var report Report
	for _, newSlot := range in.SubjectSlots {
		for _, day := range newSlot.Weekdays {
			for _, old := range in.EnrolledSlots {
				if !old.Weekdays.Contains(day) {
					continue
				}
				if !Overlaps(PolicyTouching, newSlot.Start, newSlot.End, old.Start, old.End) {
					continue
				}
				oldName := old.Subject.Name
				if oldName == "" {
					oldName = names[old.Subject.ID]
				}
				report = append(report, Conflict{
					Kind:             KindEnrollment,
					Weekday:          day,
					ExistingID:       old.ID,
					ExistingSubject:  oldName,
					CandidateSubject: in.Subject.Name,
					Existing:         old.Range(),
					Candidate:        newSlot.Range(),
					Student:          in.Student.FullName,
					Message: fmt.Sprintf("Schedule conflict: %s is already enrolled in %s on %s from %s, which conflicts with %s scheduled on %s from %s.",
						in.Student.FullName, oldName, day, old.Range(), in.Subject.Name, day, newSlot.Range()),
				})
			}
		}
	}
	return report
}
