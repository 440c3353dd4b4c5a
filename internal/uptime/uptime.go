// Package uptime reconstructs continuous uptime/downtime signals for
// monitored stores from sparse point-in-time status observations. All
// computation is pure and in-memory; storage lives in internal/store.
package uptime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezone is assumed for stores without a configured timezone.
const DefaultTimezone = "America/Chicago"

// Status is the observed operational state of a store.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Store is a monitored location. Timezone may be empty, in which case
// DefaultTimezone applies.
type Store struct {
	ID       int64
	Timezone string
}

// Clock is a time of day expressed as an offset from local midnight.
// "24:00:00" (end of day) is representable as 24 * time.Hour.
type Clock time.Duration

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day: %q", s)
	}
	var hms [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time of day: %q", s)
		}
		hms[i] = n
	}
	if hms[0] > 24 || hms[1] > 59 || hms[2] > 59 {
		return 0, fmt.Errorf("invalid time of day: %q", s)
	}
	return Clock(time.Duration(hms[0])*time.Hour +
		time.Duration(hms[1])*time.Minute +
		time.Duration(hms[2])*time.Second), nil
}

func (c Clock) String() string {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d:%02d",
		int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// BusinessHours is one open period for a store on one weekday.
// DayOfWeek is Monday=0 through Sunday=6.
type BusinessHours struct {
	StoreID   int64
	DayOfWeek int
	Open      Clock
	Close     Clock
}

// Observation is a single status sample. ID is the append-only log row id
// and serves as the tie-break for duplicate timestamps. Timestamp is UTC.
type Observation struct {
	ID        int64
	StoreID   int64
	Timestamp time.Time
	Status    Status
}

// WindowKind identifies one of the three trailing report windows.
type WindowKind string

const (
	WindowHour WindowKind = "hour"
	WindowDay  WindowKind = "day"
	WindowWeek WindowKind = "week"
)

// Window is a half-open [Start, End) range of store-local wall time.
// Local wall times are carried as naive timestamps in time.UTC so that
// date/time arithmetic is offset-free.
type Window struct {
	Kind  WindowKind
	Start time.Time
	End   time.Time
}

// StoreTotals is the per-store result of one window computation.
type StoreTotals struct {
	StoreID  int64
	Uptime   time.Duration
	Downtime time.Duration
}

// Localize converts a UTC instant to the naive local wall time of loc,
// carried in time.UTC.
func Localize(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	y, m, d := lt.Date()
	return time.Date(y, m, d, lt.Hour(), lt.Minute(), lt.Second(), lt.Nanosecond(), time.UTC)
}

// DeriveWindows computes the three report windows from the reference
// instant (the max localized observation timestamp, a naive local time).
//
// Week and day both end at midnight of the reference date. The hour window
// ends at the reference instant truncated to the hour but starts one hour
// before the day window's end, not one hour before its own end. That
// coupling is inherited behavior and is treated as a fixed contract.
func DeriveWindows(ref time.Time) []Window {
	dayEnd := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	return []Window{
		{Kind: WindowWeek, Start: dayEnd.AddDate(0, 0, -7), End: dayEnd},
		{Kind: WindowDay, Start: dayEnd.AddDate(0, 0, -1), End: dayEnd},
		{Kind: WindowHour, Start: dayEnd.Add(-time.Hour), End: ref.Truncate(time.Hour)},
	}
}

// ReferenceInstant returns the maximum localized observation timestamp
// across all stores, given each store's latest UTC observation time.
// The zero time is returned when the observation log is empty.
func ReferenceInstant(r *Resolver, latest map[int64]time.Time) (time.Time, error) {
	var ref time.Time
	for storeID, ts := range latest {
		loc, err := r.Location(storeID)
		if err != nil {
			return time.Time{}, err
		}
		if local := Localize(ts, loc); local.After(ref) {
			ref = local
		}
	}
	return ref, nil
}
