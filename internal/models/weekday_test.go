package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekday(t *testing.T) {
	cases := map[string]Weekday{
		"M": Monday, "T": Tuesday, "W": Wednesday, "Th": Thursday,
		"F": Friday, "S": Saturday, "Su": Sunday, "thursday": Thursday, " Su ": Sunday,
	}
	for raw, want := range cases {
		got, err := ParseWeekday(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseWeekday("X")
	assert.Error(t, err)
	_, err = ParseWeekday("")
	assert.Error(t, err)
}

func TestWeekdayOf(t *testing.T) {
	sunday := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, Sunday, WeekdayOf(sunday))
	assert.Equal(t, Monday, WeekdayOf(sunday.AddDate(0, 0, 1)))
	assert.Equal(t, Saturday, WeekdayOf(sunday.AddDate(0, 0, 6)))
}

func TestWeekdaySetPreservesOrderAndDedupes(t *testing.T) {
	set, err := ParseWeekdaySet("W,M,W,Th")
	require.NoError(t, err)
	assert.Equal(t, WeekdaySet{Wednesday, Monday, Thursday}, set)
	assert.Equal(t, "W,M,Th", set.String())
	assert.True(t, set.Contains(Monday))
	assert.False(t, set.Contains(Friday))
	assert.Equal(t, []string{"Wednesday", "Monday", "Thursday"}, set.Names())

	_, err = ParseWeekdaySet("M,Funday")
	assert.Error(t, err)
}

func TestWeekdaySetSQL(t *testing.T) {
	var set WeekdaySet
	require.NoError(t, set.Scan([]byte("M,W,F")))
	assert.Equal(t, WeekdaySet{Monday, Wednesday, Friday}, set)

	v, err := set.Value()
	require.NoError(t, err)
	assert.Equal(t, "M,W,F", v)

	require.NoError(t, set.Scan(nil))
	assert.Empty(t, set)
	assert.Error(t, set.Scan(42))
}

func TestWeekdaySetJSON(t *testing.T) {
	var payload struct {
		Days WeekdaySet `json:"days"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"days":["Th","Monday","Th"]}`), &payload))
	assert.Equal(t, WeekdaySet{Thursday, Monday}, payload.Days)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"days":["Th","M"]}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"days":["Xx"]}`), &payload))
}
