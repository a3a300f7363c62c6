package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocalDateTime(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{
			name:     "naive date-time is read as IST",
			input:    "2026-03-10T10:00",
			expected: time.Date(2026, 3, 10, 4, 30, 0, 0, time.UTC),
		},
		{
			name:     "date only is midnight IST",
			input:    "2026-03-10",
			expected: time.Date(2026, 3, 9, 18, 30, 0, 0, time.UTC),
		},
		{
			name:     "explicit offset is kept",
			input:    "2026-03-10T10:00:00Z",
			expected: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "space separated with seconds",
			input:    " 2026-03-10 10:00:30 ",
			expected: time.Date(2026, 3, 10, 4, 30, 30, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocalDateTime(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseLocalDateTime("10/03/2026")
		assert.Error(t, err)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseLocalDateTime("")
		assert.Error(t, err)
	})
}

func TestFormatLocal(t *testing.T) {
	instant := time.Date(2026, 3, 10, 4, 30, 0, 0, time.UTC)
	assert.Equal(t, "10 Mar 2026, 10:00 AM", FormatLocal(instant))
}

func TestFixedClock(t *testing.T) {
	ist := time.FixedZone("IST", 19800)
	clock := FixedClock{T: time.Date(2026, 1, 1, 12, 0, 0, 0, ist)}
	now := clock.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Equal(t, 6, now.Hour())
	assert.Equal(t, 30, now.Minute())
}
