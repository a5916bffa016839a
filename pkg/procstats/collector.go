// Package procstats keeps a bounded history of CPU and memory samples of the
// serving process.
package procstats

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// ProcessStats is one reading of the process counters.
type ProcessStats struct {
	CPUTimeSec float64 `json:"cpu_time_sec"`
	MemoryRSS  uint64  `json:"memory_rss_bytes"`
}

// Sample is a ProcessStats reading stamped with the time it was taken.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	ProcessStats
}

// Collector retains the most recent samples of one process, oldest first.
type Collector struct {
	mu    sync.RWMutex
	clock clock.PassiveClock
	ring  []Sample
	next  int
	full  bool
}

// NewCollector returns a Collector retaining at most size samples. A nil
// clock uses the wall clock.
func NewCollector(size int, c clock.PassiveClock) *Collector {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Collector{
		clock: c,
		ring:  make([]Sample, max(size, 1)),
	}
}

// AddSample stamps stats with the current time and stores it, overwriting the
// oldest sample once the collector is full.
func (c *Collector) AddSample(stats ProcessStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.next] = Sample{Timestamp: c.clock.Now(), ProcessStats: stats}
	c.next = (c.next + 1) % len(c.ring)
	if c.next == 0 {
		c.full = true
	}
}

// ordered must be called with the lock held.
func (c *Collector) ordered() []Sample {
	if !c.full {
		return append([]Sample(nil), c.ring[:c.next]...)
	}
	out := make([]Sample, 0, len(c.ring))
	out = append(out, c.ring[c.next:]...)
	return append(out, c.ring[:c.next]...)
}

// GetSamples returns the samples taken within the last window.
func (c *Collector) GetSamples(window time.Duration) []Sample {
	cutoff := c.clock.Now().Add(-window)

	c.mu.RLock()
	all := c.ordered()
	c.mu.RUnlock()

	for i, s := range all {
		if s.Timestamp.After(cutoff) {
			return all[i:]
		}
	}
	return nil
}

// Latest returns the most recent sample.
func (c *Collector) Latest() (Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.full && c.next == 0 {
		return Sample{}, false
	}
	return c.ring[(c.next-1+len(c.ring))%len(c.ring)], true
}

// AverageCPUUsage is the mean CPU utilisation between consecutive samples of
// the window, as a fraction of one core.
func (c *Collector) AverageCPUUsage(window time.Duration) float64 {
	samples := c.GetSamples(window)

	var sum float64
	var n int
	for i := 1; i < len(samples); i++ {
		elapsed := samples[i].Timestamp.Sub(samples[i-1].Timestamp).Seconds()
		if elapsed <= 0 {
			continue
		}
		sum += (samples[i].CPUTimeSec - samples[i-1].CPUTimeSec) / elapsed
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AverageMemoryUsage is the mean resident memory of the window.
func (c *Collector) AverageMemoryUsage(window time.Duration) uint64 {
	samples := c.GetSamples(window)
	if len(samples) == 0 {
		return 0
	}

	var sum uint64
	for _, s := range samples {
		sum += s.MemoryRSS
	}
	return sum / uint64(len(samples))
}
