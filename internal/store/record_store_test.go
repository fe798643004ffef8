package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lesson-booking/internal/status"
)

func TestDecodeParticipants_Valid(t *testing.T) {
	participants, err := decodeParticipants("lesson1",
		`[{"email":"amy@school.test","seats":3},{"email":"bob@school.test","seats":2}]`)
	require.NoError(t, err)

	require.Len(t, participants, 2)
	assert.Equal(t, "amy@school.test", participants[0].Email)
	assert.Equal(t, 3, participants[0].Seats)
}

func TestDecodeParticipants_EmptyVariants(t *testing.T) {
	for _, raw := range []string{"", "null", "[]"} {
		participants, err := decodeParticipants("lesson1", raw)
		require.NoError(t, err, "raw %q", raw)
		assert.NotNil(t, participants)
		assert.Empty(t, participants)
	}
}

// A participants column that no longer parses is a damaged ledger; it
// must surface as an error, not read back as an empty lesson where
// every booked seat suddenly looks free.
func TestDecodeParticipants_CorruptColumn(t *testing.T) {
	_, err := decodeParticipants("lesson1", `[{"email":"amy@school.test",`)
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrUnavailable)
	assert.Contains(t, err.Error(), "lesson1")
}

func TestDecodeOrderLessons_Valid(t *testing.T) {
	lessons, err := decodeOrderLessons("order1", `[{"lesson_id":"lesson1","seats":2}]`)
	require.NoError(t, err)

	require.Len(t, lessons, 1)
	assert.Equal(t, "lesson1", lessons[0].LessonID)
	assert.Equal(t, 2, lessons[0].Seats)
}

func TestDecodeOrderLessons_CorruptColumn(t *testing.T) {
	_, err := decodeOrderLessons("order1", `not json`)
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrUnavailable)
	assert.Contains(t, err.Error(), "order1")
}
