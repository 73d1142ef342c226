package stats

import (
	"sync"
	"time"
)

// window counts events in the trailing span using per-second buckets, so
// memory stays bounded no matter how many hits arrive.
type window struct {
	mu      sync.Mutex
	span    time.Duration
	buckets []bucket
}

type bucket struct {
	second int64
	hits   int
}

func newWindow(span time.Duration) *window {
	return &window{span: span}
}

func (w *window) add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	sec := now.Unix()
	if n := len(w.buckets); n > 0 && w.buckets[n-1].second == sec {
		w.buckets[n-1].hits++
	} else {
		w.buckets = append(w.buckets, bucket{second: sec, hits: 1})
	}
	return w.total()
}

func (w *window) count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	return w.total()
}

func (w *window) evict(now time.Time) {
	cutoff := now.Add(-w.span).Unix()
	idx := 0
	for _, b := range w.buckets {
		if b.second > cutoff {
			break
		}
		idx++
	}
	w.buckets = w.buckets[idx:]
}

func (w *window) total() int {
	sum := 0
	for _, b := range w.buckets {
		sum += b.hits
	}
	return sum
}
