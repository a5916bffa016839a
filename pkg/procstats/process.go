package procstats

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
)

// Self returns a handle on the current process.
func Self() (*process.Process, error) {
	return process.NewProcess(int32(os.Getpid()))
}

// GetProcessStats extracts CPU + memory usage from a gopsutil Process
func GetProcessStats(proc *process.Process) (*ProcessStats, error) {
	times, err := proc.Times()
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU times: %w", err)
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory info: %w", err)
	}

	return &ProcessStats{
		CPUTimeSec: times.User + times.System,
		MemoryRSS:  mem.RSS,
	}, nil
}

// Collect takes one sample of proc into collector.
func Collect(proc *process.Process, collector *Collector) error {
	stats, err := GetProcessStats(proc)
	if err != nil {
		return err
	}
	collector.AddSample(*stats)
	return nil
}

// Run samples proc every interval until ctx is done.
func Run(ctx context.Context, proc *process.Process, collector *Collector, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := Collect(proc, collector); err != nil {
		log.Errorf("error collecting process stats: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := Collect(proc, collector); err != nil {
				log.Errorf("error collecting process stats: %v", err)
			}
		}
	}
}
