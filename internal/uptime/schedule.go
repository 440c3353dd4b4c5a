package uptime

import (
	"fmt"
	"time"
)

// Segment is one contiguous open period for a store on one calendar date,
// as a half-open [Start, End) range of naive local time. Segments never
// cross a date boundary; a 24/7 store has End exactly at the next midnight.
type Segment struct {
	Start time.Time
	End   time.Time
}

func (s Segment) Length() time.Duration { return s.End.Sub(s.Start) }

type hoursRange struct {
	open  Clock
	close Clock
}

// Resolver answers timezone and business-hours questions for stores.
//
// A store id that appears only in the observation log (no stores row, no
// business_hours rows) is legal: it resolves to the default timezone and an
// open-24/7 schedule. The 24/7 default also applies per weekday — a store
// with configured hours for Monday but nothing for Tuesday is open all of
// Tuesday.
type Resolver struct {
	defaultLoc *time.Location
	timezones  map[int64]string
	hours      map[int64]map[int][]hoursRange
	locCache   map[string]*time.Location
}

// NewResolver builds a Resolver from store and business-hours reference
// data. defaultTZ falls back to DefaultTimezone when empty.
func NewResolver(stores []Store, hours []BusinessHours, defaultTZ string) (*Resolver, error) {
	if defaultTZ == "" {
		defaultTZ = DefaultTimezone
	}
	defaultLoc, err := time.LoadLocation(defaultTZ)
	if err != nil {
		return nil, fmt.Errorf("loading default timezone %q: %w", defaultTZ, err)
	}

	r := &Resolver{
		defaultLoc: defaultLoc,
		timezones:  make(map[int64]string, len(stores)),
		hours:      make(map[int64]map[int][]hoursRange),
		locCache:   map[string]*time.Location{defaultTZ: defaultLoc},
	}
	for _, s := range stores {
		if s.Timezone != "" {
			r.timezones[s.ID] = s.Timezone
		}
	}
	for _, h := range hours {
		if h.DayOfWeek < 0 || h.DayOfWeek > 6 {
			return nil, fmt.Errorf("store %d: day_of_week %d out of range", h.StoreID, h.DayOfWeek)
		}
		byDay := r.hours[h.StoreID]
		if byDay == nil {
			byDay = make(map[int][]hoursRange)
			r.hours[h.StoreID] = byDay
		}
		byDay[h.DayOfWeek] = append(byDay[h.DayOfWeek], hoursRange{open: h.Open, close: h.Close})
	}
	return r, nil
}

// Location resolves the store's timezone, defaulting when unconfigured.
func (r *Resolver) Location(storeID int64) (*time.Location, error) {
	name, ok := r.timezones[storeID]
	if !ok {
		return r.defaultLoc, nil
	}
	if loc, ok := r.locCache[name]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("store %d: loading timezone %q: %w", storeID, name, err)
	}
	r.locCache[name] = loc
	return loc, nil
}

// mondayIndex maps time.Weekday (Sunday=0) to the Monday=0 convention used
// by business-hours rows.
func mondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Segments returns the business-hour segments for a store on the calendar
// date containing the given naive local time. With no configured entries
// for that weekday the store is treated as open the full day.
func (r *Resolver) Segments(storeID int64, local time.Time) []Segment {
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	ranges := r.hours[storeID][mondayIndex(local)]
	if len(ranges) == 0 {
		return []Segment{{Start: midnight, End: midnight.AddDate(0, 0, 1)}}
	}
	segs := make([]Segment, 0, len(ranges))
	for _, hr := range ranges {
		segs = append(segs, Segment{
			Start: midnight.Add(time.Duration(hr.open)),
			End:   midnight.Add(time.Duration(hr.close)),
		})
	}
	return segs
}
