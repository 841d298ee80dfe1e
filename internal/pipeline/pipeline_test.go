package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawdash/models"
	"clawdash/reader/workspace"
	"clawdash/writer"
)

type fakeLedger struct {
	positions []models.PositionRecord
	err       error
}

func (f fakeLedger) Read(context.Context) ([]models.PositionRecord, error) {
	return f.positions, f.err
}

type fakeJobs struct {
	bots  []models.BotStatus
	err   error
	panic bool
}

func (f fakeJobs) Collect(context.Context) ([]models.BotStatus, error) {
	if f.panic {
		panic("listing exploded")
	}
	return f.bots, f.err
}

type fakeSessions struct {
	sessions []models.SessionInfo
	err      error
}

func (f fakeSessions) Collect(context.Context) ([]models.SessionInfo, error) {
	return f.sessions, f.err
}

type fakeMachine struct {
	health models.MachineHealth
	err    error
}

func (f fakeMachine) Collect(context.Context) (models.MachineHealth, error) {
	return f.health, f.err
}

type fakeCounters struct {
	counters models.RawCounters
	err      error
}

func (f fakeCounters) Read(context.Context) (models.RawCounters, error) {
	return f.counters, f.err
}

type fakeSizer struct {
	sizes workspace.Sizes
	err   error
}

func (f fakeSizer) Measure(context.Context) (workspace.Sizes, error) {
	return f.sizes, f.err
}

type fakePrices struct {
	prices map[string]float64
	err    error
}

func (f fakePrices) Prices(context.Context, []string) (map[string]float64, error) {
	return f.prices, f.err
}

type recordingPublisher struct {
	name string
	err  error

	mu       sync.Mutex
	payloads [][]byte
	metas    []writer.Meta
	closed   bool
}

func (r *recordingPublisher) Name() string { return r.name }

func (r *recordingPublisher) Publish(_ context.Context, payload []byte, meta writer.Meta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, payload)
	r.metas = append(r.metas, meta)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func position(coin string, dir models.Direction, pnl float64) models.PositionRecord {
	p := models.NewPosition(coin, dir)
	p.PnL = pnl
	return p
}

func healthyPipeline(t *testing.T) *Pipeline {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out", "data.json")
	return &Pipeline{
		Ledger: fakeLedger{positions: []models.PositionRecord{
			position("BTC", models.Long, 120.5),
			position("ETH", models.Short, -20.25),
		}},
		Jobs: fakeJobs{bots: []models.BotStatus{
			{Name: "Scanner", Status: models.BotOK, Interval: "Hourly", LastRun: "5 min ago", NextRun: "in 55 min"},
		}},
		Sessions: fakeSessions{sessions: []models.SessionInfo{
			{DisplayName: "Main session", Channel: models.ChannelDiscord, TokenCount: 50000, SessionKey: "agent:main:main"},
		}},
		Machine:  fakeMachine{health: models.MachineHealth{CPUPercent: 12.5, MemPercent: 40, DiskPercent: 70}},
		Counters: fakeCounters{counters: models.RawCounters{YTQuotaUsed: 1200}},
		Sizer:    fakeSizer{sizes: workspace.Sizes{WorkspaceBytes: 3 * 1024 * 1024, DataBytes: 1024 * 1024}},
		Primary:  writer.NewFileWriter(out),
		LockPath: out + ".lock",
		Version:  "test",
		now:      func() time.Time { return fixedNow },
	}
}

func TestAssembleConcurrentCallsShareLogger(t *testing.T) {
	p := healthyPipeline(t)

	var wg sync.WaitGroup
	results := make([]Result, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.Assemble(context.Background())
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Empty(t, results[i].Failed)
		assert.Len(t, results[i].Snapshot.Positions, 2)
	}
	assert.Same(t, p.entry(), p.entry())
}

func TestRunPublishesSnapshot(t *testing.T) {
	p := healthyPipeline(t)

	snap, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)

	path := p.Primary.(*writer.FileWriter).Path
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, key := range []string{"timestamp", "bots", "positions", "sessions", "machine", "stats"} {
		assert.Contains(t, doc, key)
	}

	var decoded models.DashboardSnapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, fixedNow.Format(time.RFC3339), decoded.Timestamp)
	assert.Len(t, decoded.Positions, 2)
	assert.Equal(t, 100.25, decoded.Stats.DailyPnL)
	assert.Equal(t, float64(50), decoded.Stats.WinRate)
	assert.Equal(t, int64(50000), decoded.Stats.AnthropicTokens)
	assert.Equal(t, float64(25), decoded.Stats.AnthropicPercent)
	assert.Equal(t, 1200, decoded.Stats.YTQuotaUsed)
	assert.Equal(t, float64(3), decoded.Stats.WorkspaceSizeMB)
	assert.Equal(t, float64(1), decoded.Stats.DataSizeMB)
}

func TestRunFallsBackWhenCommandsFail(t *testing.T) {
	p := healthyPipeline(t)
	p.Ledger = fakeLedger{}
	p.Jobs = fakeJobs{err: errors.New("openclaw: not found")}
	p.Sessions = fakeSessions{err: errors.New("openclaw: not found")}
	p.Machine = fakeMachine{err: errors.New("no host")}
	p.SampleSessions = true

	res, err := p.Assemble(context.Background())
	require.NoError(t, err)
	snap := res.Snapshot

	assert.Empty(t, snap.Positions)
	require.Len(t, snap.Bots, 9)
	for _, b := range snap.Bots {
		assert.Equal(t, models.BotIdle, b.Status)
	}
	assert.Len(t, snap.Sessions, 2)
	assert.True(t, snap.Machine.Empty())
	assert.Equal(t, float64(0), snap.Stats.DailyPnL)
	assert.Equal(t, float64(0), snap.Stats.WinRate)
	assert.ElementsMatch(t, []string{"jobs", "sessions", "machine"}, res.Failed)
}

func TestSessionFailureWithoutSamples(t *testing.T) {
	p := healthyPipeline(t)
	p.Sessions = fakeSessions{err: errors.New("timeout")}

	snap, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap.Sessions)
	assert.Empty(t, snap.Sessions)
}

func TestCollectorPanicIsRecovered(t *testing.T) {
	p := healthyPipeline(t)
	p.Jobs = fakeJobs{panic: true}

	res, err := p.Assemble(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Snapshot.Bots, 9)
	assert.Equal(t, []string{"jobs"}, res.Failed)
}

func TestDisabledCollectorsYieldEmptyValues(t *testing.T) {
	p := healthyPipeline(t)
	p.Jobs = nil
	p.Sessions = nil
	p.Machine = nil

	res, err := p.Assemble(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.NotNil(t, res.Snapshot.Bots)
	assert.Empty(t, res.Snapshot.Bots)
	assert.Empty(t, res.Snapshot.Sessions)
	assert.True(t, res.Snapshot.Machine.Empty())
}

func TestRunMarksPositionsWithPrices(t *testing.T) {
	p := healthyPipeline(t)
	btc := models.NewPosition("BTC", models.Long)
	btc.EntryPrice = 100
	btc.Size = 2
	p.Ledger = fakeLedger{positions: []models.PositionRecord{btc}}
	p.Prices = fakePrices{prices: map[string]float64{"BTC": 110}}

	snap, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, float64(20), snap.Positions[0].PnL)
	assert.Equal(t, float64(10), snap.Positions[0].PnLPercent)
	assert.Equal(t, float64(20), snap.Stats.DailyPnL)
}

func TestPriceFailureKeepsLedgerPnL(t *testing.T) {
	p := healthyPipeline(t)
	p.Prices = fakePrices{err: errors.New("exchange down")}

	snap, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120.5, snap.Positions[0].PnL)
}

func TestRunReturnsErrRunInProgress(t *testing.T) {
	p := healthyPipeline(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.LockPath), 0o755))

	held := flock.New(p.LockPath)
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = held.Unlock() })

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	_, statErr := os.Stat(p.Primary.(*writer.FileWriter).Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunReleasesLock(t *testing.T) {
	p := healthyPipeline(t)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)
}

func TestPrimaryFailureIsFatal(t *testing.T) {
	p := healthyPipeline(t)
	p.Primary = &recordingPublisher{name: "file", err: errors.New("disk full")}

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestMirrorFailureIsNotFatal(t *testing.T) {
	p := healthyPipeline(t)
	broken := &recordingPublisher{name: "s3", err: errors.New("access denied")}
	ok := &recordingPublisher{name: "redis"}
	p.Mirrors = []writer.Publisher{broken, ok}

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, ok.payloads, 1)
	assert.NotEmpty(t, ok.metas[0].RunID)
	assert.Equal(t, "test", ok.metas[0].Version)
	assert.Equal(t, fixedNow.Format(time.RFC3339), ok.metas[0].Timestamp)
}

func TestCloseClosesPublishers(t *testing.T) {
	primary := &recordingPublisher{name: "file"}
	mirror := &recordingPublisher{name: "kafka"}
	p := &Pipeline{Primary: primary, Mirrors: []writer.Publisher{mirror}}

	require.NoError(t, p.Close())
	assert.True(t, primary.closed)
	assert.True(t, mirror.closed)
}
