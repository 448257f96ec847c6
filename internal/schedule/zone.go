package schedule

import (
	"time"

	"k8s.io/utils/clock"
)

type zonedClock struct {
	clock.Clock
	loc *time.Location
}

// InLocation returns a clock whose Now reports times in loc, so monthly
// instants fall on local midnight. A nil loc returns clk unchanged.
func InLocation(clk clock.Clock, loc *time.Location) clock.Clock {
	if loc == nil {
		return clk
	}
	return zonedClock{Clock: clk, loc: loc}
}

func (c zonedClock) Now() time.Time {
	return c.Clock.Now().In(c.loc)
}
