package procstats

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

var epoch = time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)

func TestCollector_AverageUsage(t *testing.T) {
	tests := []struct {
		Samples         []ProcessStats
		ExpectedAverage ProcessStats
	}{
		{
			Samples: []ProcessStats{
				{CPUTimeSec: 5, MemoryRSS: 1000},
				{CPUTimeSec: 10, MemoryRSS: 1500},
				{CPUTimeSec: 15, MemoryRSS: 1000},
				{CPUTimeSec: 20, MemoryRSS: 1500},
				{CPUTimeSec: 25, MemoryRSS: 1000},
				{CPUTimeSec: 30, MemoryRSS: 1500},
			},
			ExpectedAverage: ProcessStats{CPUTimeSec: 5, MemoryRSS: 1250},
		},
		{
			Samples:         []ProcessStats{{CPUTimeSec: 3, MemoryRSS: 2048}},
			ExpectedAverage: ProcessStats{CPUTimeSec: 0, MemoryRSS: 2048},
		},
	}

	for _, test := range tests {
		clk := testingclock.NewFakeClock(epoch)
		collector := NewCollector(len(test.Samples), clk)
		for _, sample := range test.Samples {
			collector.AddSample(sample)
			clk.Step(time.Second)
		}

		assert.Equal(t, test.ExpectedAverage.CPUTimeSec, collector.AverageCPUUsage(time.Minute))
		assert.Equal(t, test.ExpectedAverage.MemoryRSS, collector.AverageMemoryUsage(time.Minute))
	}
}

func TestCollector_TrimSamples(t *testing.T) {
	clk := testingclock.NewFakeClock(epoch)
	collector := NewCollector(3, clk)

	for i := 0; i < 5; i++ {
		collector.AddSample(ProcessStats{
			CPUTimeSec: float64(i * 10),
			MemoryRSS:  uint64(i * 100),
		})
		clk.Step(time.Millisecond)
	}

	samples := collector.GetSamples(time.Hour)
	require.Len(t, samples, 3)
	assert.Equal(t, float64(20), samples[0].CPUTimeSec)
	assert.Equal(t, float64(40), samples[2].CPUTimeSec)

	latest, ok := collector.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(400), latest.MemoryRSS)
}

func TestCollector_AverageUsage_RespectsWindow(t *testing.T) {
	clk := testingclock.NewFakeClock(epoch)
	collector := NewCollector(10, clk)

	collector.AddSample(ProcessStats{CPUTimeSec: 100, MemoryRSS: 9999})
	clk.Step(2 * time.Minute)
	collector.AddSample(ProcessStats{CPUTimeSec: 105, MemoryRSS: 1000})
	clk.Step(time.Second)
	collector.AddSample(ProcessStats{CPUTimeSec: 110, MemoryRSS: 1500})

	assert.Equal(t, float64(5), collector.AverageCPUUsage(time.Minute))
	assert.Equal(t, uint64(1250), collector.AverageMemoryUsage(time.Minute))
}

func TestCollector_Empty(t *testing.T) {
	collector := NewCollector(5, nil)

	_, ok := collector.Latest()
	assert.False(t, ok)
	assert.Zero(t, collector.AverageCPUUsage(time.Hour))
	assert.Zero(t, collector.AverageMemoryUsage(time.Hour))
}

func TestRun_SamplesSelf(t *testing.T) {
	g := NewWithT(t)
	proc, err := Self()
	require.NoError(t, err)

	collector := NewCollector(10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Run(ctx, proc, collector, 10*time.Millisecond)

	g.Eventually(func() int { return len(collector.GetSamples(time.Minute)) }, 2*time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 2))

	latest, ok := collector.Latest()
	require.True(t, ok)
	assert.Greater(t, latest.MemoryRSS, uint64(0))
}
