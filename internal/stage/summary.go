package stage

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Summary reports what one stage run did, keyed by outcome label.
type Summary struct {
	Stage    string
	Counts   map[string]int
	Duration time.Duration
}

// Count returns the tally for label.
func (s Summary) Count(label string) int {
	return s.Counts[label]
}

// Total sums every outcome.
func (s Summary) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// Labels returns the outcome labels in sorted order.
func (s Summary) Labels() []string {
	return slices.Sorted(maps.Keys(s.Counts))
}

// Tally is a concurrency-safe outcome counter.
type Tally struct {
	mu     sync.Mutex
	counts map[string]int
}

// Add increments label by one.
func (t *Tally) Add(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	t.counts[label]++
}

// Summary snapshots the tally.
func (t *Tally) Summary(stage string, started time.Time) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[string]int, len(t.counts))
	maps.Copy(counts, t.counts)
	return Summary{Stage: stage, Counts: counts, Duration: time.Since(started)}
}
