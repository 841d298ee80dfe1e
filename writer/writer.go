// Package writer publishes the dashboard snapshot. The local file is the
// primary target; S3, Kafka and Redis are optional mirrors.
package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"clawdash/models"
)

// Meta describes one published document.
type Meta struct {
	RunID     string
	Timestamp string
	Version   string
}

// Publisher delivers an encoded snapshot to one destination.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, payload []byte, meta Meta) error
	Close() error
}

// Encode renders the snapshot as two-space indented JSON with a trailing newline.
func Encode(snapshot *models.DashboardSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snapshot); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
