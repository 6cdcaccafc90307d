package pipeline

import (
	"slices"
	"sync"
	"time"
)

type jobSample struct {
	at       time.Time
	duration time.Duration
	failed   bool
}

// LatencySnapshot aggregates the job samples still inside the window.
type LatencySnapshot struct {
	Count  int     `json:"count"`
	Failed int     `json:"failed"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// LatencyStats keeps job durations for a rolling window.
type LatencyStats struct {
	mu      sync.Mutex
	samples []jobSample
	window  time.Duration
}

func NewLatencyStats(window time.Duration) *LatencyStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LatencyStats{
		samples: make([]jobSample, 0, 256),
		window:  window,
	}
}

// Record adds one finished job.
func (s *LatencyStats) Record(d time.Duration, failed bool) {
	d = max(d, 0)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	s.samples = append(s.samples, jobSample{at: now, duration: d, failed: failed})
}

func (s *LatencyStats) Snapshot() LatencySnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return LatencySnapshot{}
	}

	ms := make([]int64, len(s.samples))
	var sum int64
	failed := 0
	for i, sm := range s.samples {
		ms[i] = sm.duration.Milliseconds()
		sum += ms[i]
		if sm.failed {
			failed++
		}
	}
	slices.Sort(ms)

	return LatencySnapshot{
		Count:  len(ms),
		Failed: failed,
		MinMs:  ms[0],
		MaxMs:  ms[len(ms)-1],
		AvgMs:  float64(sum) / float64(len(ms)),
		P50Ms:  percentile(ms, 50),
		P95Ms:  percentile(ms, 95),
		P99Ms:  percentile(ms, 99),
	}
}

func (s *LatencyStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.samples = slices.DeleteFunc(s.samples, func(sm jobSample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the two closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[n-1])
	}
	idx := float64(n-1) * pct / 100
	lo := int(idx)
	if lo+1 >= n {
		return float64(sorted[lo])
	}
	w := idx - float64(lo)
	return float64(sorted[lo]) + float64(sorted[lo+1]-sorted[lo])*w
}
