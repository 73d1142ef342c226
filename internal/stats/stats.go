package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

const startTimeLayout = "2006-01-02 15:04:05"

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Tracker holds the process-wide counters. Counters reset on restart.
type Tracker struct {
	clock       Clock
	startTime   time.Time
	totalVisits atomic.Int64
	activeUsers atomic.Int64
	recent      *window
}

type Snapshot struct {
	Uptime         string `json:"uptime"`
	StartTime      string `json:"start_time"`
	TotalVisits    int64  `json:"total_visits"`
	ActiveUsers    int64  `json:"active_users"`
	VisitsLastHour int    `json:"visits_last_hour"`
}

func NewTracker() *Tracker {
	return NewTrackerWithClock(realClock{})
}

func NewTrackerWithClock(clock Clock) *Tracker {
	return &Tracker{
		clock:     clock,
		startTime: clock.Now(),
		recent:    newWindow(time.Hour),
	}
}

func (t *Tracker) RecordVisit() {
	t.totalVisits.Add(1)
	t.recent.add(t.clock.Now())
}

// RecordLogin counts a successful OAuth exchange. It is never decremented.
func (t *Tracker) RecordLogin() {
	t.activeUsers.Add(1)
}

func (t *Tracker) Snapshot() Snapshot {
	now := t.clock.Now()
	return Snapshot{
		Uptime:         FormatUptime(now.Sub(t.startTime)),
		StartTime:      t.startTime.Format(startTimeLayout),
		TotalVisits:    t.totalVisits.Load(),
		ActiveUsers:    t.activeUsers.Load(),
		VisitsLastHour: t.recent.count(now),
	}
}

// FormatUptime renders d as "{h}h {m}m {s}s" with whole seconds.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
