package uptime

import (
	"sort"
	"time"
)

// sample is one observation localized into a business-hour segment.
type sample struct {
	local  time.Time
	seq    int64
	status Status
}

// interpolate reduces a segment's samples to the total duration spent
// active, using last-observation-carried-forward between samples and
// next-observation-carried-backward from the segment start to the first
// sample. The last sample's status holds until the segment end, so the
// attributed durations partition the segment exactly: inactive time is the
// segment length minus the returned active total.
//
// Samples must lie within [seg.Start, seg.End). An empty sample set
// contributes nothing; callers omit such segments entirely.
func interpolate(seg Segment, samples []sample) time.Duration {
	if len(samples) == 0 {
		return 0
	}

	// Ascending local time; log insertion order breaks ties so duplicate
	// timestamps resolve deterministically.
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].local.Equal(samples[j].local) {
			return samples[i].seq < samples[j].seq
		}
		return samples[i].local.Before(samples[j].local)
	})

	var active time.Duration

	// NOCB: the first observed status is assumed retroactively back to the
	// segment opening.
	if samples[0].status == StatusActive {
		active += samples[0].local.Sub(seg.Start)
	}

	// LOCF: each status holds until the next sample, the final one until
	// the segment closes.
	for i, s := range samples {
		next := seg.End
		if i+1 < len(samples) {
			next = samples[i+1].local
		}
		if s.status == StatusActive {
			active += next.Sub(s.local)
		}
	}
	return active
}
