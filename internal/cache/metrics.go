package cache

import (
	"time"

	"examscore/internal/utils"
)

// Metrics is a point-in-time copy of a store's counters.
type Metrics struct {
	Hits                int64           `json:"hits"`
	Misses              int64           `json:"misses"`
	TotalOperations     int64           `json:"totalOperations"`
	AverageAccessTime   time.Duration   `json:"averageAccessTime"`
	LastCleanup         time.Time       `json:"lastCleanup"`
	LastAccessTimestamp time.Time       `json:"lastAccessTimestamp"`
	RecentAccessTimes   []time.Duration `json:"recentAccessTimes"`
}

// HitRatio returns hits over lookups, or 0 before the first lookup.
func (m Metrics) HitRatio() float64 {
	lookups := m.Hits + m.Misses
	if lookups == 0 {
		return 0
	}
	return float64(m.Hits) / float64(lookups)
}

// recorder accumulates metrics. Callers hold the store lock.
type recorder struct {
	hits, misses, ops int64
	avgNanos          float64
	lastCleanup       time.Time
	lastAccess        time.Time
	recent            *utils.RingBuffer[time.Duration]
}

func newRecorder(samples int) *recorder {
	return &recorder{recent: utils.NewRingBuffer[time.Duration](samples)}
}

// access records one operation taking sample, observed at at.
// The running mean uses avg' = (avg*(n-1) + sample) / n.
func (r *recorder) access(sample time.Duration, at time.Time) {
	r.ops++
	n := float64(r.ops)
	r.avgNanos = (r.avgNanos*(n-1) + float64(sample)) / n
	r.lastAccess = at
	r.recent.Push(sample)
}

func (r *recorder) hit()  { r.hits++ }
func (r *recorder) miss() { r.misses++ }

func (r *recorder) cleanup(at time.Time) {
	r.lastCleanup = at
}

func (r *recorder) reset() {
	r.hits, r.misses, r.ops = 0, 0, 0
	r.avgNanos = 0
	r.lastCleanup = time.Time{}
	r.lastAccess = time.Time{}
	r.recent.Reset()
}

func (r *recorder) snapshot() Metrics {
	return Metrics{
		Hits:                r.hits,
		Misses:              r.misses,
		TotalOperations:     r.ops,
		AverageAccessTime:   time.Duration(r.avgNanos),
		LastCleanup:         r.lastCleanup,
		LastAccessTimestamp: r.lastAccess,
		RecentAccessTimes:   r.recent.ToSlice(),
	}
}
