package availability

import (
	"iter"
	"time"
)

// AvailableSlots yields slot start times within window where a booking of
// length duration would not overlap any busy interval. Candidates start at
// window.Start and advance by step; a candidate whose end would pass
// window.End is never produced. The sequence is lazy and can be ranged over
// any number of times.
func AvailableSlots(window Interval, duration, step time.Duration, busy []Interval) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if duration <= 0 || step <= 0 || !window.Valid() {
			return
		}
		for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
			if overlapsAny(NewInterval(t, duration), busy) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}
