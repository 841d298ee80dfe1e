// Package sessions collects active agent sessions from `openclaw sessions list --json`.
package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"clawdash/logger"
	"clawdash/models"
	"clawdash/reader/command"
	"clawdash/reader/reltime"
)

type sessionList struct {
	Sessions []entry `json:"sessions"`
}

type entry struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"displayName"`
	Channel     string   `json:"channel"`
	Kind        string   `json:"kind"`
	Model       string   `json:"model"`
	TotalTokens *float64 `json:"totalTokens"`
	UpdatedAt   stamp    `json:"updatedAt"`
}

// stamp is an update time given as epoch milliseconds or an RFC 3339 string.
type stamp struct {
	time.Time
}

func (s *stamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "null" {
		return nil
	}
	s.Time = reltime.Parse(raw)
	return nil
}

// Collector lists sessions through the process-control tool.
type Collector struct {
	runner command.Runner
	binary string
	args   []string
	now    func() time.Time
	log    *logger.Entry
}

func NewCollector(runner command.Runner, binary string, args []string) *Collector {
	if len(args) == 0 {
		args = []string{"sessions", "list", "--json"}
	}
	return &Collector{
		runner: runner,
		binary: binary,
		args:   args,
		now:    time.Now,
		log:    logger.GetLogger().WithComponent("session_collector"),
	}
}

func (c *Collector) Collect(ctx context.Context) ([]models.SessionInfo, error) {
	out, err := c.runner.Run(ctx, c.binary, c.args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions, err := Parse(out, c.now())
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logger.Fields{"sessions": len(sessions)}).Debug("sessions collected")
	return sessions, nil
}

// Parse decodes the session listing. Entries sharing a session key collapse
// to the most recently updated one, keeping first-seen order.
func Parse(out []byte, now time.Time) ([]models.SessionInfo, error) {
	trimmed := bytes.TrimSpace(out)
	var entries []entry
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode sessions: %w", err)
		}
	} else {
		var list sessionList
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode sessions: %w", err)
		}
		entries = list.Sessions
	}

	sessions := make([]models.SessionInfo, 0, len(entries))
	updated := make([]time.Time, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		e.Key = strings.TrimSpace(e.Key)
		e.DisplayName = strings.TrimSpace(e.DisplayName)
		if e.Key == "" && e.DisplayName == "" {
			continue
		}
		info := e.toSession(now)
		if e.Key != "" {
			if i, ok := seen[e.Key]; ok {
				if e.UpdatedAt.After(updated[i]) {
					sessions[i] = info
					updated[i] = e.UpdatedAt.Time
				}
				continue
			}
			seen[e.Key] = len(sessions)
		}
		sessions = append(sessions, info)
		updated = append(updated, e.UpdatedAt.Time)
	}
	return sessions, nil
}

func (e entry) toSession(now time.Time) models.SessionInfo {
	channel := InferChannel(e.Channel, e.Key)
	name := e.DisplayName
	if name == "" {
		name = DisplayName(channel, e.Key)
	}
	return models.SessionInfo{
		DisplayName:  name,
		Channel:      channel,
		Kind:         orUnknown(e.Kind),
		Model:        orUnknown(e.Model),
		TokenCount:   tokens(e.TotalTokens),
		LastActiveAt: reltime.Ago(e.UpdatedAt.Time, now),
		SessionKey:   e.Key,
	}
}

func tokens(v *float64) int64 {
	if v == nil || *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	if *v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(*v)
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}

// InferChannel prefers an explicit known channel and otherwise looks for the
// channel name as a segment of the session key.
func InferChannel(explicit, key string) models.Channel {
	if c := models.ParseChannel(strings.ToLower(strings.TrimSpace(explicit))); c != models.ChannelUnknown {
		return c
	}
	for _, part := range strings.Split(strings.ToLower(key), ":") {
		if c := models.ParseChannel(part); c != models.ChannelUnknown {
			return c
		}
	}
	return models.ChannelUnknown
}

// DisplayName builds a label for a session that has none from its key, e.g.
// "agent:main:discord:channel:1468193294906425430" becomes "Discord #…425430".
func DisplayName(channel models.Channel, key string) string {
	parts := strings.Split(key, ":")
	id := segmentAfter(parts, string(channel))

	switch channel {
	case models.ChannelDiscord:
		if id == "channel" || id == "dm" || id == "group" {
			id = segmentAfter(parts, id)
		}
		if id == "" {
			return "Discord"
		}
		return "Discord #" + tail(id, 6)
	case models.ChannelTelegram:
		if id == "" {
			return "Telegram"
		}
		return "Telegram " + tail(parts[len(parts)-1], 6)
	case models.ChannelSubagent:
		if id == "" {
			return "Subagent"
		}
		return "Subagent " + head(id, 8)
	}
	if len(parts) == 3 && parts[0] == "agent" && parts[2] == "main" {
		return "Main session"
	}
	return key
}

func segmentAfter(parts []string, name string) string {
	for i, p := range parts {
		if strings.EqualFold(p, name) && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n:])
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Fallback is the sample published when the session listing fails, so an
// outage reads differently from an idle agent.
func Fallback() []models.SessionInfo {
	return []models.SessionInfo{
		{
			DisplayName:  "Discord #general",
			Channel:      models.ChannelDiscord,
			Kind:         "group",
			Model:        "claude-sonnet-4-5",
			TokenCount:   89000,
			LastActiveAt: "2 min ago",
			SessionKey:   "agent:main:discord:channel:1468193294906425430",
		},
		{
			DisplayName:  "Telegram Retards v2",
			Channel:      models.ChannelTelegram,
			Kind:         "group",
			Model:        "claude-sonnet-4-5",
			TokenCount:   45000,
			LastActiveAt: "1 hour ago",
			SessionKey:   "agent:main:telegram:-1003146730450",
		},
	}
}
