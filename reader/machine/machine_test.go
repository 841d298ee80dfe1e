package machine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
)

// stubHost replaces every sampler with deterministic data and restores them on cleanup.
func stubHost(t *testing.T) {
	t.Helper()
	originalCPU := cpuPercentFn
	originalMem := memoryStatsFn
	originalDisk := diskUsageFn
	originalNet := netCountersFn
	originalProcs := processNamesFn
	originalNow := nowFn
	t.Cleanup(func() {
		cpuPercentFn = originalCPU
		memoryStatsFn = originalMem
		diskUsageFn = originalDisk
		netCountersFn = originalNet
		processNamesFn = originalProcs
		nowFn = originalNow
	})

	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		return []float64{42.54}, nil
	}
	memoryStatsFn = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Used: 4 * gib, Total: 16 * gib, UsedPercent: 25}, nil
	}
	diskUsageFn = func(ctx context.Context, path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Used: 100 * gib, Total: 400 * gib, UsedPercent: 25}, nil
	}
	calls := 0
	netCountersFn = func(ctx context.Context) ([]gnet.IOCountersStat, error) {
		calls++
		if calls == 1 {
			return []gnet.IOCountersStat{{BytesSent: 1000, BytesRecv: 1000}}, nil
		}
		return []gnet.IOCountersStat{{BytesSent: 1000 + 1024, BytesRecv: 1000 + 1024}}, nil
	}
	processNamesFn = func(ctx context.Context) ([]string, error) {
		return []string{"python3", "Python.exe", "bash", "openclaw"}, nil
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	nowFn = func() time.Time {
		tick++
		if tick == 1 {
			return base
		}
		return base.Add(time.Second)
	}
}

func TestCollect(t *testing.T) {
	stubHost(t)

	got, err := NewCollector("/", time.Millisecond, "python").Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got.CPUPercent != 42.5 {
		t.Errorf("unexpected cpu: %v", got.CPUPercent)
	}
	if got.MemUsedGB != 4 || got.MemTotalGB != 16 || got.MemPercent != 25 {
		t.Errorf("unexpected memory: %+v", got)
	}
	if got.DiskUsedGB != 100 || got.DiskTotalGB != 400 {
		t.Errorf("unexpected disk: %+v", got)
	}
	if got.NetSpeedKBs != 2 {
		t.Errorf("unexpected net speed: %v", got.NetSpeedKBs)
	}
	if got.ActiveProcessCount != 2 {
		t.Errorf("unexpected process count: %d", got.ActiveProcessCount)
	}
	if got.SampledAt == "" {
		t.Errorf("missing sample time")
	}
}

func TestCollectCountsAllProcessesWithoutMatch(t *testing.T) {
	stubHost(t)

	got, err := NewCollector("", 0, "").Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got.ActiveProcessCount != 4 {
		t.Fatalf("expected all processes counted, got %d", got.ActiveProcessCount)
	}
}

func TestCollectErrorReturnsEmpty(t *testing.T) {
	stubHost(t)
	diskUsageFn = func(ctx context.Context, path string) (*disk.UsageStat, error) {
		return nil, errors.New("no such device")
	}

	got, err := NewCollector("/mnt/missing", time.Millisecond, "python").Collect(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !got.Empty() {
		t.Fatalf("expected empty sample, got %+v", got)
	}
}

func TestThroughputCounterReset(t *testing.T) {
	before := []gnet.IOCountersStat{{BytesSent: 5000}}
	after := []gnet.IOCountersStat{{BytesSent: 10}}
	if v := throughputKBs(before, after, time.Second); v != 0 {
		t.Fatalf("expected 0 after counter reset, got %v", v)
	}
}
