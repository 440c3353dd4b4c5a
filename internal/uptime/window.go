package uptime

import (
	"sort"
	"time"
)

// hourCap bounds both uptime and downtime reported for the hour window.
const hourCap = time.Hour

// Aggregate computes per-store uptime and downtime for one window from the
// raw UTC observation log. Observations are localized per store, filtered
// to [w.Start, w.End), and bucketed into the business-hour segments that
// contain them; each non-empty segment is interpolated independently and
// summed per store. Segments with no qualifying observations are omitted,
// so stores with no observation inside business hours during the window do
// not appear in the result at all.
//
// For the hour window, uptime is capped at 60 minutes per segment and again
// per store, and segment downtime is min(segment length, 60m) minus the
// capped segment uptime. Day and week windows use plain subtraction.
func Aggregate(w Window, r *Resolver, observations []Observation) ([]StoreTotals, error) {
	type bucket struct {
		seg     Segment
		samples []sample
	}
	type segKey struct {
		storeID    int64
		start, end time.Time
	}

	buckets := make(map[segKey]*bucket)
	locs := make(map[int64]*time.Location)

	for _, obs := range observations {
		loc, ok := locs[obs.StoreID]
		if !ok {
			var err error
			loc, err = r.Location(obs.StoreID)
			if err != nil {
				return nil, err
			}
			locs[obs.StoreID] = loc
		}

		local := Localize(obs.Timestamp, loc)
		if local.Before(w.Start) || !local.Before(w.End) {
			continue
		}

		// Overlapping segments each receive the observation independently.
		for _, seg := range r.Segments(obs.StoreID, local) {
			if local.Before(seg.Start) || !local.Before(seg.End) {
				continue
			}
			key := segKey{storeID: obs.StoreID, start: seg.Start, end: seg.End}
			b, ok := buckets[key]
			if !ok {
				b = &bucket{seg: seg}
				buckets[key] = b
			}
			b.samples = append(b.samples, sample{local: local, seq: obs.ID, status: obs.Status})
		}
	}

	totals := make(map[int64]*StoreTotals)
	for key, b := range buckets {
		active := interpolate(b.seg, b.samples)
		segLen := b.seg.Length()

		var up, down time.Duration
		if w.Kind == WindowHour {
			up = min(active, hourCap)
			down = min(segLen, hourCap) - up
		} else {
			up = active
			down = segLen - active
		}

		t, ok := totals[key.storeID]
		if !ok {
			t = &StoreTotals{StoreID: key.storeID}
			totals[key.storeID] = t
		}
		t.Uptime += up
		t.Downtime += down
	}

	result := make([]StoreTotals, 0, len(totals))
	for _, t := range totals {
		if w.Kind == WindowHour {
			t.Uptime = min(t.Uptime, hourCap)
			t.Downtime = min(t.Downtime, hourCap)
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StoreID < result[j].StoreID })
	return result, nil
}
