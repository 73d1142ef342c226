package stats

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestFormatUptime(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "0h 0m 0s"},
		{in: 59*time.Second + 900*time.Millisecond, want: "0h 0m 59s"},
		{in: time.Hour + 2*time.Minute + 3*time.Second, want: "1h 2m 3s"},
		{in: 50 * time.Hour, want: "50h 0m 0s"},
		{in: -time.Second, want: "0h 0m 0s"},
	}
	for _, tc := range cases {
		if got := FormatUptime(tc.in); got != tc.want {
			t.Fatalf("FormatUptime(%v): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestTrackerCounters(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	tracker := NewTrackerWithClock(clock)

	tracker.RecordVisit()
	tracker.RecordVisit()
	tracker.RecordLogin()
	clock.Advance(90 * time.Second)

	snap := tracker.Snapshot()
	if snap.TotalVisits != 2 {
		t.Fatalf("expected 2 visits, got %d", snap.TotalVisits)
	}
	if snap.ActiveUsers != 1 {
		t.Fatalf("expected 1 active user, got %d", snap.ActiveUsers)
	}
	if snap.StartTime != "2024-01-02 03:04:05" {
		t.Fatalf("unexpected start time %q", snap.StartTime)
	}
	if snap.Uptime != "0h 1m 30s" {
		t.Fatalf("unexpected uptime %q", snap.Uptime)
	}
}

func TestTrackerUptimeIncreases(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tracker := NewTrackerWithClock(clock)

	clock.Advance(time.Second)
	first := tracker.Snapshot().Uptime
	clock.Advance(time.Second)
	second := tracker.Snapshot().Uptime
	if first == second {
		t.Fatalf("expected uptime to advance, got %q twice", first)
	}
}

func TestVisitsLastHour(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	tracker := NewTrackerWithClock(clock)

	tracker.RecordVisit()
	clock.Advance(30 * time.Minute)
	tracker.RecordVisit()
	tracker.RecordVisit()

	if got := tracker.Snapshot().VisitsLastHour; got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	clock.Advance(31 * time.Minute)
	if got := tracker.Snapshot().VisitsLastHour; got != 2 {
		t.Fatalf("expected 2 after first hit expires, got %d", got)
	}
	clock.Advance(time.Hour)
	if got := tracker.Snapshot().VisitsLastHour; got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := tracker.Snapshot().TotalVisits; got != 3 {
		t.Fatalf("expected total to stay 3, got %d", got)
	}
}

func TestWindowBucketsSameSecond(t *testing.T) {
	w := newWindow(2 * time.Second)
	now := time.Unix(100, 0)
	w.add(now)
	w.add(now.Add(200 * time.Millisecond))
	if count := w.add(now.Add(time.Second)); count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
	if len(w.buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(w.buckets))
	}
	if count := w.count(now.Add(3 * time.Second)); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}
