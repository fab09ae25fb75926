package conflict

import "fmt"

// CheckSchedule compares a candidate against existing slots for room and
// teacher double booking. Weekdays are visited in the candidate's order and
// existing slots in input order; for a single pair a room conflict is listed
// before a teacher conflict. Back-to-back slots do not conflict.
//
// The candidate must have passed ValidateCandidate.
func CheckSchedule(candidate Candidate, existing []Slot) Report {
	var report Report
	for _, day := range candidate.Weekdays {
		for _, r := range existing {
			if candidate.ExcludeID != "" && r.ID == candidate.ExcludeID {
				continue
			}
			if !r.Weekdays.Contains(day) {
				continue
			}
			if !Overlaps(PolicyStrict, candidate.Start, candidate.End, r.Start, r.End) {
				continue
			}

			if r.Classroom.ID == candidate.Classroom.ID {
				report = append(report, Conflict{
					Kind:             KindRoom,
					Weekday:          day,
					ExistingID:       r.ID,
					ExistingSubject:  r.Subject.Name,
					CandidateSubject: candidate.Subject.Name,
					Existing:         r.Range(),
					Candidate:        candidate.Range(),
					Classroom:        candidate.Classroom.RoomNumber,
					Message: fmt.Sprintf("Room %s is already scheduled for %s on %s from %s, which overlaps the requested %s.",
						candidate.Classroom.RoomNumber, r.Subject.Name, day, r.Range(), candidate.Range()),
				})
			}

			if r.Subject.Teacher.ID == candidate.Subject.Teacher.ID && r.Subject.ID != candidate.Subject.ID {
				report = append(report, Conflict{
					Kind:             KindTeacher,
					Weekday:          day,
					ExistingID:       r.ID,
					ExistingSubject:  r.Subject.Name,
					CandidateSubject: candidate.Subject.Name,
					Existing:         r.Range(),
					Candidate:        candidate.Range(),
					Teacher:          candidate.Subject.Teacher.FullName,
					Message: fmt.Sprintf("Teacher %s is already teaching %s on %s from %s, which overlaps the requested %s.",
						candidate.Subject.Teacher.FullName, r.Subject.Name, day, r.Range(), candidate.Range()),
				})
			}
		}
	}
	return report
}
