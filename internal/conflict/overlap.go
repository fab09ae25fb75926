// Package conflict detects overlapping commitments between schedules and
// between a student's enrolled subjects. It works on in-memory snapshots only
// and performs no I/O; callers fetch the snapshot, run a check and decide
// whether to persist.
package conflict

import "github.com/noah-isme/class-scheduling-api/internal/models"

// Policy selects how interval boundaries are treated.
type Policy int

const (
	// PolicyStrict treats back-to-back intervals (one ends when the other
	// starts) as not overlapping. Used for room and teacher checks.
	PolicyStrict Policy = iota
	// PolicyTouching treats back-to-back intervals as overlapping. Used for
	// enrollment checks.
	PolicyTouching
)

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyTouching:
		return "touching"
	default:
		return "unknown"
	}
}

// Overlaps reports whether [startA, endA) and [startB, endB) collide under p.
// Callers guarantee start < end for both intervals.
func Overlaps(p Policy, startA, endA, startB, endB models.TimeOfDay) bool {
	if p == PolicyTouching {
		return startA <= endB && startB <= endA
	}
	return startA < endB && startB < endA
}
