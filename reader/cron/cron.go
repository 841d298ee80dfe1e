// Package cron collects the state of scheduled jobs from `openclaw cron list`.
package cron

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clawdash/logger"
	"clawdash/models"
	"clawdash/reader/command"
	"clawdash/reader/reltime"
)

// Collector lists scheduled jobs through the process-control tool.
type Collector struct {
	runner command.Runner
	binary string
	args   []string
	now    func() time.Time
	log    *logger.Entry
}

func NewCollector(runner command.Runner, binary string, args []string) *Collector {
	if len(args) == 0 {
		args = []string{"cron", "list", "--json"}
	}
	return &Collector{
		runner: runner,
		binary: binary,
		args:   args,
		now:    time.Now,
		log:    logger.GetLogger().WithComponent("cron_collector"),
	}
}

// Collect runs the listing command and parses either output shape. A
// successful run with no jobs returns an empty list.
func (c *Collector) Collect(ctx context.Context) ([]models.BotStatus, error) {
	out, err := c.runner.Run(ctx, c.binary, c.args...)
	if err != nil {
		return nil, fmt.Errorf("list cron jobs: %w", err)
	}
	bots, err := Parse(out, c.now())
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logger.Fields{"jobs": len(bots)}).Debug("cron jobs collected")
	return bots, nil
}

// Parse dispatches on the output shape: JSON when the first non-space byte
// opens an object or array, tabular text otherwise.
func Parse(out []byte, now time.Time) ([]models.BotStatus, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return parseStructured(trimmed, now)
	}
	return parseTable(string(out), now), nil
}

var statusWords = map[string]models.BotState{
	"running":   models.BotRunning,
	"active":    models.BotRunning,
	"ok":        models.BotOK,
	"success":   models.BotOK,
	"succeeded": models.BotOK,
	"done":      models.BotOK,
	"idle":      models.BotIdle,
	"pending":   models.BotIdle,
	"scheduled": models.BotIdle,
	"disabled":  models.BotIdle,
	"paused":    models.BotIdle,
	"never":     models.BotIdle,
	"error":     models.BotError,
	"failed":    models.BotError,
	"failure":   models.BotError,
	"timeout":   models.BotError,
	"timed out": models.BotError,
}

// Classify maps a free-form status token onto the bot state enum. Decorated
// tokens such as "error (3)" are classified by their first word.
func Classify(token string) models.BotState {
	s := strings.ToLower(strings.TrimSpace(token))
	if st, ok := statusWords[s]; ok {
		return st
	}
	f := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '(' || r == ':' })
	if len(f) > 0 {
		if st, ok := statusWords[f[0]]; ok {
			return st
		}
	}
	return models.BotUnknown
}

// Fallback is published in place of live job state when the listing fails.
func Fallback() []models.BotStatus {
	bot := func(name, interval string) models.BotStatus {
		return models.BotStatus{
			Name:     name,
			Status:   models.BotIdle,
			Interval: interval,
			LastRun:  models.UnknownTime,
			NextRun:  models.UnknownTime,
		}
	}
	return []models.BotStatus{
		bot("RSI Bot", "30 min"),
		bot("SMC Bot", "Hourly"),
		bot("Arc Highlightz Clipper", "30 min"),
		bot("FomoHighlights Clipper", "30 min"),
		bot("Content Health Monitor", "Hourly"),
		bot("Data Collector", "Daily"),
		bot("Morning Market Briefing", "Daily 9AM"),
		bot("Idea Generator", "Weekly"),
		bot("Security Scan", "Daily"),
	}
}

// Interval renders a fixed period the way the dashboard labels schedules.
func Interval(d time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case d <= 0:
		return models.UnknownTime
	case d%day == 0:
		switch n := int(d / day); n {
		case 1:
			return "Daily"
		case 7:
			return "Weekly"
		default:
			return fmt.Sprintf("%d days", n)
		}
	case d%time.Hour == 0:
		if n := int(d / time.Hour); n != 1 {
			return fmt.Sprintf("%d hours", n)
		}
		return "Hourly"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d min", int(d/time.Minute))
	default:
		return strconv.Itoa(int(d/time.Second)) + "s"
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// relative renders a tool-provided time cell. Machine timestamps are
// converted; text the tool already humanized is kept as is.
func relative(raw string, now time.Time, future bool) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" || strings.EqualFold(raw, "never") || strings.EqualFold(raw, "n/a") {
		return models.UnknownTime
	}
	if t := reltime.Parse(raw); !t.IsZero() {
		if future {
			return reltime.Until(t, now)
		}
		return reltime.Ago(t, now)
	}
	return raw
}
