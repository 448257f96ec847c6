package schedule

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	testclock "k8s.io/utils/clock/testing"
)

func TestMonthlyFrom_FirstInstantIsStartOfNextMonth(t *testing.T) {
	t.Parallel()

	clk := testclock.NewFakePassiveClock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))

	got := Take(MonthlyFrom(clk), 1)
	want := []time.Time{time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("first instant mismatch (-want +got):\n%s", diff)
	}
}

func TestMonthlyFrom_CalendarMonthsAcrossYearAndLeapFebruary(t *testing.T) {
	t.Parallel()

	clk := testclock.NewFakePassiveClock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	got := Take(MonthlyFrom(clk), 14)

	want := []time.Time{
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}

	first := got[0]
	for n := 1; n <= 14; n++ {
		if expected := first.AddDate(0, n-1, 0); !got[n-1].Equal(expected) {
			t.Errorf("element %d = %v, want first + %d months = %v", n, got[n-1], n-1, expected)
		}
	}
}

func TestMonthlyFrom_LeapFebruaryIsAFullCalendarMonth(t *testing.T) {
	t.Parallel()

	clk := testclock.NewFakePassiveClock(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC))
	got := Take(MonthlyFrom(clk), 2)

	if got[1].Sub(got[0]) != 29*24*time.Hour {
		t.Errorf("expected February 2024 to span 29 days, got %v", got[1].Sub(got[0]))
	}
}

func TestMonthlyFrom_IsRestartableAndIgnoresLaterClockChanges(t *testing.T) {
	t.Parallel()

	clk := testclock.NewFakeClock(time.Date(2023, 11, 20, 8, 30, 0, 0, time.UTC))
	seq := MonthlyFrom(clk)

	first := Take(seq, 5)
	clk.SetTime(time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC))
	second := Take(seq, 5)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("replay differs (-first +second):\n%s", diff)
	}
	if !first[1].Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected year rollover to 2024-01-01, got %v", first[1])
	}
}

func TestMonthlyFrom_UsesClockLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 3600)
	clk := testclock.NewFakePassiveClock(time.Date(2024, 12, 31, 23, 30, 0, 0, loc))
	got := Take(MonthlyFrom(clk), 1)[0]

	if want := time.Date(2025, 1, 1, 0, 0, 0, 0, loc); !got.Equal(want) || got.Location() != loc {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTake_NonPositive(t *testing.T) {
	t.Parallel()

	if got := Take(Instants(time.Now()), 0); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
