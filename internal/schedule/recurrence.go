// Package schedule decides when billing passes run: it produces recurrence
// sequences of trigger instants and fires a task at each of them.
package schedule

import (
	"iter"
	"time"

	"k8s.io/utils/clock"
)

// MonthlyFrom returns the start of every month after the clock's current month.
// The clock is sampled once, so ranging the sequence again replays the same instants.
func MonthlyFrom(clk clock.PassiveClock) iter.Seq[time.Time] {
	now := clk.Now()
	year, month, _ := now.Date()
	loc := now.Location()

	return func(yield func(time.Time) bool) {
		for n := 1; ; n++ {
			// time.Date normalises month overflow into the following years.
			if !yield(time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, loc)) {
				return
			}
		}
	}
}

// Take collects the first n instants of seq.
func Take(seq iter.Seq[time.Time], n int) []time.Time {
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for t := range seq {
		out = append(out, t)
		if len(out) == n {
			break
		}
	}
	return out
}

// Instants turns a fixed list into a sequence.
func Instants(ts ...time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for _, t := range ts {
			if !yield(t) {
				return
			}
		}
	}
}
