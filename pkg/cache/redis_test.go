package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "schedules:list:page=1", Key(PrefixSchedules, "list", "", "page=1"))
	assert.Equal(t, "timetable", Key(PrefixTimetable))
	assert.Equal(t, "timetable:*", Pattern(PrefixTimetable))
}
