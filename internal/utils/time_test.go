package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreWeekday(t *testing.T) {
	tests := []struct {
		native time.Weekday
		want   int
	}{
		{time.Monday, 1},
		{time.Tuesday, 2},
		{time.Wednesday, 3},
		{time.Thursday, 4},
		{time.Friday, 5},
		{time.Saturday, 6},
		{time.Sunday, 7},
	}

	seen := make(map[int]bool)
	for _, tt := range tests {
		t.Run(tt.native.String(), func(t *testing.T) {
			got := StoreWeekday(tt.native)
			assert.Equal(t, tt.want, got)
		})
		seen[StoreWeekday(tt.native)] = true
	}
	assert.Len(t, seen, 7, "mapping must be a bijection onto 1-7")
}

func TestNextMidnight(t *testing.T) {
	utc := time.UTC
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid afternoon",
			now:  time.Date(2024, 1, 1, 15, 30, 0, 0, utc),
			want: time.Date(2024, 1, 2, 0, 0, 0, 0, utc),
		},
		{
			name: "exactly midnight is not strictly after",
			now:  time.Date(2024, 1, 2, 0, 0, 0, 0, utc),
			want: time.Date(2024, 1, 3, 0, 0, 0, 0, utc),
		},
		{
			name: "one nanosecond before midnight",
			now:  time.Date(2024, 1, 1, 23, 59, 59, 999999999, utc),
			want: time.Date(2024, 1, 2, 0, 0, 0, 0, utc),
		},
		{
			name: "month and year rollover",
			now:  time.Date(2024, 12, 31, 8, 0, 0, 0, utc),
			want: time.Date(2025, 1, 1, 0, 0, 0, 0, utc),
		},
		{
			name: "leap day",
			now:  time.Date(2024, 2, 28, 22, 0, 0, 0, utc),
			want: time.Date(2024, 2, 29, 0, 0, 0, 0, utc),
		},
		{
			name: "local zone across DST start",
			now:  time.Date(2024, 3, 9, 12, 0, 0, 0, ny),
			want: time.Date(2024, 3, 10, 0, 0, 0, 0, ny),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextMidnight(tt.now)
			assert.True(t, got.Equal(tt.want), "NextMidnight(%v) = %v, want %v", tt.now, got, tt.want)
			assert.True(t, got.After(tt.now))
			assert.Equal(t, tt.now.Location(), got.Location())
		})
	}
}

func TestDateString(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	instant := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-01", DateString(instant, time.UTC))
	assert.Equal(t, "2024-01-02", DateString(instant, tokyo))
}

func TestLoadLocation(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{name: "empty string returns local", timezone: ""},
		{name: "Local returns local", timezone: "Local"},
		{name: "valid timezone UTC", timezone: "UTC"},
		{name: "valid timezone Europe/London", timezone: "Europe/London"},
		{name: "invalid timezone", timezone: "Invalid/Timezone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadLocation(tt.timezone)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, ValidateTimezone(tt.timezone))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, loc)
			assert.True(t, ValidateTimezone(tt.timezone))
		})
	}
}
