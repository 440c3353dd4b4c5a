package uptime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "00:00:00", want: 0},
		{in: "09:30:00", want: Clock(9*time.Hour + 30*time.Minute)},
		{in: "14:05", want: Clock(14*time.Hour + 5*time.Minute)},
		{in: "24:00:00", want: Clock(24 * time.Hour)},
		{in: "25:00:00", wantErr: true},
		{in: "12:61:00", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestResolver_TimezoneDefaulting(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	r, err := NewResolver([]Store{
		{ID: 1, Timezone: "America/Chicago"},
		{ID: 2}, // unconfigured
		{ID: 3, Timezone: "Asia/Kolkata"},
	}, nil, "")
	require.NoError(t, err)

	// A store with no timezone behaves identically to one explicitly set
	// to America/Chicago.
	loc1, err := r.Location(1)
	require.NoError(t, err)
	loc2, err := r.Location(2)
	require.NoError(t, err)
	assert.Equal(t, chicago.String(), loc1.String())
	assert.Equal(t, chicago.String(), loc2.String())

	loc3, err := r.Location(3)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc3.String())

	// Store ids known only from the observation log still resolve.
	loc9, err := r.Location(999)
	require.NoError(t, err)
	assert.Equal(t, chicago.String(), loc9.String())
}

func TestResolver_InvalidTimezone(t *testing.T) {
	r, err := NewResolver([]Store{{ID: 1, Timezone: "Mars/Olympus_Mons"}}, nil, "")
	require.NoError(t, err)

	_, err = r.Location(1)
	assert.Error(t, err)
}

func TestResolver_SegmentsDefault24x7(t *testing.T) {
	r, err := NewResolver(nil, nil, "")
	require.NoError(t, err)

	day := time.Date(2023, 1, 25, 13, 0, 0, 0, time.UTC) // a Wednesday
	segs := r.Segments(42, day)
	require.Len(t, segs, 1)
	assert.Equal(t, time.Date(2023, 1, 25, 0, 0, 0, 0, time.UTC), segs[0].Start)
	assert.Equal(t, time.Date(2023, 1, 26, 0, 0, 0, 0, time.UTC), segs[0].End)
	assert.Equal(t, 24*time.Hour, segs[0].Length())
}

func TestResolver_SegmentsPerWeekday(t *testing.T) {
	open, _ := ParseClock("09:00:00")
	cls, _ := ParseClock("17:00:00")
	r, err := NewResolver(nil, []BusinessHours{
		{StoreID: 1, DayOfWeek: 2, Open: open, Close: cls}, // Wednesday
	}, "")
	require.NoError(t, err)

	wed := time.Date(2023, 1, 25, 12, 0, 0, 0, time.UTC)
	segs := r.Segments(1, wed)
	require.Len(t, segs, 1)
	assert.Equal(t, time.Date(2023, 1, 25, 9, 0, 0, 0, time.UTC), segs[0].Start)
	assert.Equal(t, time.Date(2023, 1, 25, 17, 0, 0, 0, time.UTC), segs[0].End)

	// The 24/7 default applies per missing weekday, not per store.
	thu := time.Date(2023, 1, 26, 12, 0, 0, 0, time.UTC)
	segs = r.Segments(1, thu)
	require.Len(t, segs, 1)
	assert.Equal(t, 24*time.Hour, segs[0].Length())
}

func TestResolver_MultipleSegmentsSameDay(t *testing.T) {
	morning, _ := ParseClock("08:00:00")
	noon, _ := ParseClock("12:00:00")
	evening, _ := ParseClock("17:00:00")
	night, _ := ParseClock("22:00:00")
	r, err := NewResolver(nil, []BusinessHours{
		{StoreID: 1, DayOfWeek: 4, Open: morning, Close: noon},
		{StoreID: 1, DayOfWeek: 4, Open: evening, Close: night},
	}, "")
	require.NoError(t, err)

	fri := time.Date(2023, 1, 27, 9, 0, 0, 0, time.UTC)
	segs := r.Segments(1, fri)
	assert.Len(t, segs, 2)
}

func TestResolver_RejectsBadWeekday(t *testing.T) {
	_, err := NewResolver(nil, []BusinessHours{{StoreID: 1, DayOfWeek: 7}}, "")
	assert.Error(t, err)
}

func TestMondayIndex(t *testing.T) {
	// 2023-01-23 is a Monday.
	for i := 0; i < 7; i++ {
		d := time.Date(2023, 1, 23+i, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, i, mondayIndex(d), d.Weekday().String())
	}
}
