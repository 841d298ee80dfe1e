// Package machine samples host resource usage for the dashboard.
package machine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"clawdash/logger"
	"clawdash/models"
)

const gib = 1024 * 1024 * 1024

var (
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		return cpu.PercentWithContext(ctx, interval, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
	netCountersFn = func(ctx context.Context) ([]gnet.IOCountersStat, error) {
		return gnet.IOCountersWithContext(ctx, false)
	}
	processNamesFn = func(ctx context.Context) ([]string, error) {
		procs, err := process.ProcessesWithContext(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(procs))
		for _, p := range procs {
			// processes can exit between listing and inspection
			if name, err := p.NameWithContext(ctx); err == nil {
				names = append(names, name)
			}
		}
		return names, nil
	}
	nowFn = time.Now
)

// Collector takes one host sample per call.
type Collector struct {
	diskPath     string
	interval     time.Duration
	processMatch string
	log          *logger.Entry
}

func NewCollector(diskPath string, interval time.Duration, processMatch string) *Collector {
	if diskPath == "" {
		diskPath = "/"
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Collector{
		diskPath:     diskPath,
		interval:     interval,
		processMatch: strings.ToLower(processMatch),
		log:          logger.GetLogger().WithComponent("machine_collector"),
	}
}

// Collect samples the host. Network throughput is measured across the CPU
// sampling window.
func (c *Collector) Collect(ctx context.Context) (models.MachineHealth, error) {
	netBefore, err := netCountersFn(ctx)
	if err != nil {
		return models.MachineHealth{}, fmt.Errorf("sample network: %w", err)
	}
	start := nowFn()

	cpuSamples, err := cpuPercentFn(ctx, c.interval)
	if err != nil {
		return models.MachineHealth{}, fmt.Errorf("sample cpu: %w", err)
	}

	netAfter, err := netCountersFn(ctx)
	if err != nil {
		return models.MachineHealth{}, fmt.Errorf("sample network: %w", err)
	}
	elapsed := nowFn().Sub(start)

	memStats, err := memoryStatsFn(ctx)
	if err != nil {
		return models.MachineHealth{}, fmt.Errorf("sample memory: %w", err)
	}

	diskStats, err := diskUsageFn(ctx, c.diskPath)
	if err != nil {
		return models.MachineHealth{}, fmt.Errorf("sample disk %s: %w", c.diskPath, err)
	}

	names, err := processNamesFn(ctx)
	if err != nil {
		return models.MachineHealth{}, fmt.Errorf("list processes: %w", err)
	}

	health := models.MachineHealth{
		CPUPercent:         round(firstSample(cpuSamples), 1),
		MemUsedGB:          round(float64(memStats.Used)/gib, 2),
		MemTotalGB:         round(float64(memStats.Total)/gib, 2),
		MemPercent:         round(memStats.UsedPercent, 1),
		DiskUsedGB:         round(float64(diskStats.Used)/gib, 2),
		DiskTotalGB:        round(float64(diskStats.Total)/gib, 2),
		DiskPercent:        round(diskStats.UsedPercent, 1),
		NetSpeedKBs:        round(throughputKBs(netBefore, netAfter, elapsed), 2),
		ActiveProcessCount: countMatching(names, c.processMatch),
		SampledAt:          nowFn().Format(time.RFC3339),
	}
	c.log.WithFields(logger.Fields{
		"cpu_percent":  health.CPUPercent,
		"mem_percent":  health.MemPercent,
		"disk_percent": health.DiskPercent,
	}).Debug("machine sampled")
	return health, nil
}

func firstSample(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return samples[0]
}

func totalBytes(stats []gnet.IOCountersStat) uint64 {
	var total uint64
	for _, s := range stats {
		total += s.BytesSent + s.BytesRecv
	}
	return total
}

func throughputKBs(before, after []gnet.IOCountersStat, elapsed time.Duration) float64 {
	b, a := totalBytes(before), totalBytes(after)
	if elapsed <= 0 || a < b {
		return 0
	}
	return float64(a-b) / elapsed.Seconds() / 1024
}

func countMatching(names []string, match string) int {
	if match == "" {
		return len(names)
	}
	n := 0
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), match) {
			n++
		}
	}
	return n
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
