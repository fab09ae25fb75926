package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
)

type schedulePayload struct {
	SubjectID string   `json:"subject_id" validate:"required"`
	Days      []string `json:"days" validate:"required,min=1,dive,weekday"`
	StartTime string   `json:"start_time" validate:"required,hhmm"`
}

func TestStructValid(t *testing.T) {
	v := New()
	err := v.Struct(schedulePayload{SubjectID: "s1", Days: []string{"M", "Th"}, StartTime: "09:00"})
	assert.NoError(t, err)
}

func TestStructTranslatesFieldErrors(t *testing.T) {
	v := New()
	err := v.Struct(schedulePayload{Days: []string{"M", "Xx"}, StartTime: "9am"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "subject_id is a required field", details["subject_id"])
	assert.Equal(t, "days[1] must be one of M, T, W, Th, F, S, Su", details["days[1]"])
	assert.Equal(t, "start_time must be a time formatted as HH:MM", details["start_time"])
}
