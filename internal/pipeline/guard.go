package pipeline

import (
	"context"
	"fmt"
	"time"

	"clawdash/logger"
	"clawdash/models"
	"clawdash/reader/workspace"
)

type collectFn[T any] func(ctx context.Context) (T, error)

// guard runs fn and substitutes fallback() when it errors or panics. The
// failure is logged under the collector's name and recorded in failures. A
// nil fn means the input is disabled and yields the zero value.
func guard[T any](ctx context.Context, log *logger.Entry, failures *failureSet, name string, fallback func() T, fn collectFn[T]) (out T) {
	if fn == nil {
		return out
	}

	log = log.WithCollector(name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.WithError(fmt.Errorf("panic: %v", r)).Error("collector panicked; using fallback")
			failures.add(name)
			out = fallback()
		}
	}()

	v, err := fn(ctx)
	if err != nil {
		log.WithError(err).Warn("collector failed; using fallback")
		failures.add(name)
		return fallback()
	}
	logger.LogPerformanceEntry(log, name, "collect", time.Since(start), nil)
	return v
}

func collectorFunc[T any](c interface {
	Collect(ctx context.Context) (T, error)
}) collectFn[T] {
	if c == nil {
		return nil
	}
	return c.Collect
}

func readerFunc(r LedgerReader) collectFn[[]models.PositionRecord] {
	if r == nil {
		return nil
	}
	return r.Read
}

func counterFunc(r CounterReader) collectFn[models.RawCounters] {
	if r == nil {
		return nil
	}
	return r.Read
}

func sizerFunc(s WorkspaceSizer) collectFn[workspace.Sizes] {
	if s == nil {
		return nil
	}
	return s.Measure
}

func noPositions() []models.PositionRecord { return []models.PositionRecord{} }

func emptyMachine() models.MachineHealth { return models.MachineHealth{} }

func noCounters() models.RawCounters { return models.RawCounters{} }

func noSizes() workspace.Sizes { return workspace.Sizes{} }
