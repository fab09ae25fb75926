package conflict

import (
	"errors"
	"fmt"
	"strings"
)

// Validation failures. A candidate that fails validation is malformed and is
// never compared against stored slots.
var (
	ErrInvalidRange     = errors.New("end time must be after start time")
	ErrNoWeekdays       = errors.New("at least one weekday is required")
	ErrInvalidWeekday   = errors.New("invalid weekday")
	ErrInvalidTime      = errors.New("time must be within a single day")
	ErrMissingClassroom = errors.New("classroom is required")
	ErrMissingSubject   = errors.New("subject is required")
	ErrMissingTeacher   = errors.New("subject has no teacher assigned")
)

// ValidationError collects every problem found in a candidate.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "invalid schedule: " + strings.Join(msgs, "; ")
}

// Is lets errors.Is match any collected problem.
func (e *ValidationError) Is(target error) bool {
	for _, p := range e.Problems {
		if errors.Is(p, target) {
			return true
		}
	}
	return false
}

// ValidateCandidate checks the shape of a candidate before conflict detection.
func ValidateCandidate(c Candidate) error {
	var problems []error
	if c.Classroom.ID == "" {
		problems = append(problems, ErrMissingClassroom)
	}
	if c.Subject.ID == "" {
		problems = append(problems, ErrMissingSubject)
	} else if c.Subject.Teacher.ID == "" {
		problems = append(problems, ErrMissingTeacher)
	}
	problems = append(problems, validateSlotShape(c.Slot)...)
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func validateSlotShape(s Slot) []error {
	var problems []error
	if len(s.Weekdays) == 0 {
		problems = append(problems, ErrNoWeekdays)
	}
	for _, d := range s.Weekdays {
		if !d.Valid() {
			problems = append(problems, fmt.Errorf("%w: %d", ErrInvalidWeekday, int(d)))
		}
	}
	if !s.Start.Valid() || !s.End.Valid() {
		problems = append(problems, ErrInvalidTime)
	} else if s.End <= s.Start {
		problems = append(problems, ErrInvalidRange)
	}
	return problems
}
