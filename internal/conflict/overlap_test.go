package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

func hm(raw string) models.TimeOfDay {
	t, err := models.ParseTimeOfDay(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name             string
		aStart, aEnd     string
		bStart, bEnd     string
		strict, touching bool
	}{
		{"identical", "09:00", "10:00", "09:00", "10:00", true, true},
		{"partial", "09:00", "10:00", "09:30", "10:30", true, true},
		{"contained", "08:00", "12:00", "09:00", "10:00", true, true},
		{"back to back", "09:00", "10:00", "10:00", "11:00", false, true},
		{"back to back reversed", "10:00", "11:00", "09:00", "10:00", false, true},
		{"disjoint", "09:00", "10:00", "10:01", "11:00", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a1, a2, b1, b2 := hm(tc.aStart), hm(tc.aEnd), hm(tc.bStart), hm(tc.bEnd)
			assert.Equal(t, tc.strict, Overlaps(PolicyStrict, a1, a2, b1, b2))
			assert.Equal(t, tc.touching, Overlaps(PolicyTouching, a1, a2, b1, b2))
			// symmetry
			assert.Equal(t, tc.strict, Overlaps(PolicyStrict, b1, b2, a1, a2))
			assert.Equal(t, tc.touching, Overlaps(PolicyTouching, b1, b2, a1, a2))
		})
	}
}

func TestOverlapsSelf(t *testing.T) {
	for _, p := range []Policy{PolicyStrict, PolicyTouching} {
		assert.True(t, Overlaps(p, hm("13:15"), hm("14:45"), hm("13:15"), hm("14:45")), p.String())
	}
}
