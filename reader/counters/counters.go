// Package counters reads the auxiliary usage and revenue counters that other
// tools in the workspace leave behind.
package counters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"clawdash/logger"
	"clawdash/models"
)

// Reader loads the quota file and an optional overrides document. Both are
// best-effort: unreadable or malformed input is logged and left at defaults.
type Reader struct {
	QuotaPath     string
	OverridesPath string
	log           *logger.Entry
}

func NewReader(quotaPath, overridesPath string) *Reader {
	return &Reader{
		QuotaPath:     quotaPath,
		OverridesPath: overridesPath,
		log:           logger.GetLogger().WithComponent("counters"),
	}
}

func (r *Reader) Read(ctx context.Context) (models.RawCounters, error) {
	var c models.RawCounters
	if err := ctx.Err(); err != nil {
		return c, err
	}

	if r.OverridesPath != "" {
		if err := loadOverrides(r.OverridesPath, &c); err != nil {
			r.log.WithError(err).WithFields(logger.Fields{"path": r.OverridesPath}).Warn("ignoring counters file")
			c = models.RawCounters{}
		}
	}

	if r.QuotaPath != "" {
		n, err := ReadQuota(r.QuotaPath)
		switch {
		case err == nil:
			c.YTQuotaUsed = n
		case errors.Is(err, os.ErrNotExist):
		default:
			r.log.WithError(err).WithFields(logger.Fields{"path": r.QuotaPath}).Warn("ignoring quota file")
		}
	}
	return c, nil
}

// ReadQuota parses a file holding a single non-negative integer.
func ReadQuota(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse quota: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("parse quota: negative value %d", n)
	}
	return n, nil
}

// loadOverrides decodes a YAML or JSON document keyed like the stats bundle.
func loadOverrides(path string, c *models.RawCounters) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read counters: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse counters: %w", err)
	}
	return nil
}
