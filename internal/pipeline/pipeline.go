// Package pipeline assembles one dashboard snapshot per run: it gathers every
// input concurrently, derives the stats and publishes the document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"clawdash/internal/metrics"
	"clawdash/logger"
	"clawdash/models"
	"clawdash/processor"
	"clawdash/reader/cron"
	"clawdash/reader/sessions"
	"clawdash/reader/workspace"
	"clawdash/writer"
)

// ErrRunInProgress is returned when another run holds the output lock.
var ErrRunInProgress = errors.New("snapshot run already in progress")

type LedgerReader interface {
	Read(ctx context.Context) ([]models.PositionRecord, error)
}

type JobCollector interface {
	Collect(ctx context.Context) ([]models.BotStatus, error)
}

type SessionCollector interface {
	Collect(ctx context.Context) ([]models.SessionInfo, error)
}

type MachineCollector interface {
	Collect(ctx context.Context) (models.MachineHealth, error)
}

type CounterReader interface {
	Read(ctx context.Context) (models.RawCounters, error)
}

type WorkspaceSizer interface {
	Measure(ctx context.Context) (workspace.Sizes, error)
}

// PriceSource returns the latest mark price per coin. Coins it cannot price
// are simply absent from the map.
type PriceSource interface {
	Prices(ctx context.Context, coins []string) (map[string]float64, error)
}

// Pipeline wires the readers to the publishers. A nil reader is treated as
// disabled and contributes an empty value without counting as a failure.
type Pipeline struct {
	Ledger   LedgerReader
	Jobs     JobCollector
	Sessions SessionCollector
	Machine  MachineCollector
	Counters CounterReader
	Sizer    WorkspaceSizer
	Prices   PriceSource

	Primary writer.Publisher
	Mirrors []writer.Publisher

	Stats processor.Options
	// SampleSessions substitutes the sample session list when the session
	// collector fails. Otherwise a failure yields an empty list.
	SampleSessions bool
	LockPath       string
	Version        string

	now     func() time.Time
	log     *logger.Entry
	logOnce sync.Once
}

// Result is one assembled snapshot and the collectors that fell back.
type Result struct {
	Snapshot *models.DashboardSnapshot
	Failed   []string
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p *Pipeline) entry() *logger.Entry {
	p.logOnce.Do(func() {
		if p.log == nil {
			p.log = logger.GetLogger().WithComponent("pipeline")
		}
	})
	return p.log
}

// Run assembles and publishes one snapshot. Only a failure of the primary
// publisher is returned as an error.
func (p *Pipeline) Run(ctx context.Context) (*models.DashboardSnapshot, error) {
	if p.Primary == nil {
		return nil, errors.New("no primary publisher configured")
	}

	lock, err := acquireLock(p.LockPath)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	start := time.Now()
	runID := uuid.NewString()
	log := p.entry().WithRun(runID)
	log.Info("snapshot run started")

	res, err := p.assemble(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := writer.Encode(res.Snapshot)
	if err != nil {
		return nil, err
	}
	meta := writer.Meta{RunID: runID, Timestamp: res.Snapshot.Timestamp, Version: p.Version}

	if err := p.Primary.Publish(ctx, payload, meta); err != nil {
		return nil, fmt.Errorf("publish %s: %w", p.Primary.Name(), err)
	}
	logger.LogDataFlowEntry(log, "pipeline", p.Primary.Name(), len(payload), "snapshot_bytes")

	p.publishMirrors(ctx, payload, meta)

	elapsed := time.Since(start)
	p.emitRunMetrics(res, elapsed)
	logger.LogPerformanceEntry(log, "pipeline", "run", elapsed, logger.Fields{
		"positions":          len(res.Snapshot.Positions),
		"bots":               len(res.Snapshot.Bots),
		"sessions":           len(res.Snapshot.Sessions),
		"collector_failures": len(res.Failed),
	})
	p.logReport(log)
	return res.Snapshot, nil
}

// Build assembles a snapshot without taking the lock or publishing it.
func (p *Pipeline) Build(ctx context.Context) (*models.DashboardSnapshot, error) {
	res, err := p.assemble(ctx)
	if err != nil {
		return nil, err
	}
	return res.Snapshot, nil
}

// Assemble is Build plus the names of collectors that fell back.
func (p *Pipeline) Assemble(ctx context.Context) (Result, error) {
	return p.assemble(ctx)
}

func (p *Pipeline) assemble(ctx context.Context) (Result, error) {
	var (
		positions []models.PositionRecord
		bots      []models.BotStatus
		sessList  []models.SessionInfo
		machine   models.MachineHealth
		counters  models.RawCounters
		sizes     workspace.Sizes
	)
	failures := &failureSet{}
	log := p.entry()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		positions = guard(gCtx, log, failures, "ledger", noPositions, readerFunc(p.Ledger))
		return nil
	})
	g.Go(func() error {
		bots = guard(gCtx, log, failures, "jobs", cron.Fallback, collectorFunc[[]models.BotStatus](p.Jobs))
		return nil
	})
	g.Go(func() error {
		sessList = guard(gCtx, log, failures, "sessions", p.sessionFallback, collectorFunc[[]models.SessionInfo](p.Sessions))
		return nil
	})
	g.Go(func() error {
		machine = guard(gCtx, log, failures, "machine", emptyMachine, collectorFunc[models.MachineHealth](p.Machine))
		return nil
	})
	g.Go(func() error {
		counters = guard(gCtx, log, failures, "counters", noCounters, counterFunc(p.Counters))
		return nil
	})
	g.Go(func() error {
		sizes = guard(gCtx, log, failures, "workspace", noSizes, sizerFunc(p.Sizer))
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("assemble snapshot: %w", err)
	}

	positions = p.mark(ctx, positions)

	counters.WorkspaceBytes = sizes.WorkspaceBytes
	counters.DataBytes = sizes.DataBytes
	stats := processor.Calculate(positions, sessList, counters, p.Stats)

	snap := models.NewSnapshot(p.clock(), bots, positions, sessList, machine, stats)
	return Result{Snapshot: &snap, Failed: failures.names()}, nil
}

func (p *Pipeline) mark(ctx context.Context, positions []models.PositionRecord) []models.PositionRecord {
	if p.Prices == nil || len(positions) == 0 {
		return positions
	}
	start := time.Now()
	prices, err := p.Prices.Prices(ctx, processor.Coins(positions))
	if err != nil {
		p.entry().WithError(err).Warn("price lookup failed; keeping ledger pnl")
		return positions
	}
	logger.LogPerformanceEntry(p.entry(), "pipeline", "mark_positions", time.Since(start), logger.Fields{"priced": len(prices)})
	return processor.MarkPositions(positions, prices)
}

func (p *Pipeline) sessionFallback() []models.SessionInfo {
	if p.SampleSessions {
		return sessions.Fallback()
	}
	return []models.SessionInfo{}
}

func (p *Pipeline) publishMirrors(ctx context.Context, payload []byte, meta writer.Meta) {
	if len(p.Mirrors) == 0 {
		return
	}
	var g errgroup.Group
	for _, m := range p.Mirrors {
		g.Go(func() error {
			start := time.Now()
			if err := m.Publish(ctx, payload, meta); err != nil {
				p.entry().WithError(err).WithFields(logger.Fields{"mirror": m.Name()}).Warn("mirror publish failed")
				metrics.EmitMetric(nil, "pipeline", "mirror_failure", 1, "counter", logger.Fields{"mirror": m.Name(), "unit": "count"})
				return nil
			}
			logger.LogPerformanceEntry(p.entry(), "pipeline", "publish_"+m.Name(), time.Since(start), nil)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) emitRunMetrics(res Result, elapsed time.Duration) {
	snap := res.Snapshot
	count := logger.Fields{"unit": "count"}
	metrics.EmitMetric(nil, "pipeline", "positions", len(snap.Positions), "gauge", count)
	metrics.EmitMetric(nil, "pipeline", "bots", len(snap.Bots), "gauge", count)
	metrics.EmitMetric(nil, "pipeline", "sessions", len(snap.Sessions), "gauge", count)
	for _, name := range res.Failed {
		metrics.EmitMetric(nil, "pipeline", "collector_failure", 1, "counter", logger.Fields{logger.FieldCollector: name, "unit": "count"})
	}
	if !snap.Machine.Empty() {
		pct := logger.Fields{"unit": "percent"}
		metrics.EmitMetric(nil, "pipeline", "cpu_percent", snap.Machine.CPUPercent, "gauge", pct)
		metrics.EmitMetric(nil, "pipeline", "mem_percent", snap.Machine.MemPercent, "gauge", pct)
		metrics.EmitMetric(nil, "pipeline", "disk_percent", snap.Machine.DiskPercent, "gauge", pct)
	}
	metrics.EmitMetric(nil, "pipeline", "run_duration", elapsed.Seconds(), "gauge", logger.Fields{"unit": "seconds"})
	metrics.EmitMetric(nil, "pipeline", "last_success", float64(p.clock().Unix()), "gauge", logger.Fields{"unit": "seconds"})
}

func (p *Pipeline) logReport(log *logger.Entry) {
	for _, r := range logger.Report() {
		if r.Warnings == 0 && r.Errors == 0 {
			continue
		}
		log.WithFields(logger.Fields{
			"report_component": r.Component,
			"warnings":         r.Warnings,
			"errors":           r.Errors,
		}).Info("component log summary")
	}
}

// Close releases every publisher.
func (p *Pipeline) Close() error {
	var errs []error
	if p.Primary != nil {
		errs = append(errs, p.Primary.Close())
	}
	for _, m := range p.Mirrors {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}

type failureSet struct {
	mu    sync.Mutex
	items []string
}

func (f *failureSet) add(name string) {
	f.mu.Lock()
	f.items = append(f.items, name)
	f.mu.Unlock()
}

func (f *failureSet) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.items...)
}
