package component

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of one handler's statistics (spec.md
// §4.3 "Statistics": "count, total/min/max/avg microseconds, invocation
// rate").
type Snapshot struct {
	Count           int64
	TotalUs, MinUs, MaxUs, AvgUs int64
	RateHz          float64
}

// handlerStats accumulates one handler's per-invocation timings.
type handlerStats struct {
	mu          sync.Mutex
	count       int64
	totalUs     int64
	minUs       int64
	maxUs       int64
	windowStart time.Time
	windowCount int64
	rateHz      float64
}

func (s *handlerStats) record(d time.Duration) {
	us := d.Microseconds()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.totalUs += us
	if s.count == 1 || us < s.minUs {
		s.minUs = us
	}
	if us > s.maxUs {
		s.maxUs = us
	}
	s.windowCount++
	if s.windowStart.IsZero() {
		s.windowStart = time.Now()
		return
	}
	if elapsed := time.Since(s.windowStart); elapsed >= time.Second {
		s.rateHz = float64(s.windowCount) / elapsed.Seconds()
		s.windowCount = 0
		s.windowStart = time.Now()
	}
}

func (s *handlerStats) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var avg int64
	if s.count > 0 {
		avg = s.totalUs / s.count
	}
	return Snapshot{
		Count:   s.count,
		TotalUs: s.totalUs,
		MinUs:   s.minUs,
		MaxUs:   s.maxUs,
		AvgUs:   avg,
		RateHz:  s.rateHz,
	}
}

// statsTable holds one handlerStats per handler name, created lazily.
type statsTable struct {
	mu    sync.Mutex
	byKey map[string]*handlerStats
}

func newStatsTable() *statsTable { return &statsTable{byKey: make(map[string]*handlerStats)} }

func (t *statsTable) record(name string, d time.Duration) {
	t.mu.Lock()
	s, ok := t.byKey[name]
	if !ok {
		s = &handlerStats{}
		t.byKey[name] = s
	}
	t.mu.Unlock()
	s.record(d)
}

func (t *statsTable) snapshotAll() map[string]Snapshot {
	t.mu.Lock()
	names := make([]string, 0, len(t.byKey))
	entries := make([]*handlerStats, 0, len(t.byKey))
	for k, v := range t.byKey {
		names = append(names, k)
		entries = append(entries, v)
	}
	t.mu.Unlock()

	out := make(map[string]Snapshot, len(names))
	for i, name := range names {
		out[name] = entries[i].snapshot()
	}
	return out
}
