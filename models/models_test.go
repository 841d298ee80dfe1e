package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotNeverNullCollections(t *testing.T) {
	snap := NewSnapshot(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), nil, nil, nil, MachineHealth{}, StatsBundle{})

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"timestamp", "bots", "positions", "sessions", "machine", "stats"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "[]", string(raw["bots"]))
	assert.Equal(t, "[]", string(raw["positions"]))
	assert.Equal(t, "[]", string(raw["sessions"]))
	assert.Equal(t, "{}", string(raw["machine"]))
	assert.Equal(t, `"2026-01-02T03:04:05Z"`, string(raw["timestamp"]))
}

func TestPositionJSONKeys(t *testing.T) {
	p := NewPosition("BTC", Long)
	data, err := json.Marshal(p)
	require.NoError(t, err)

	for _, key := range []string{`"coin"`, `"direction":"LONG"`, `"entry":0`, `"sl":0`, `"tp":0`, `"strategy":"Unknown"`, `"pnlPercent":0`} {
		assert.True(t, strings.Contains(string(data), key), "missing %s in %s", key, data)
	}
}

func TestParseChannel(t *testing.T) {
	assert.Equal(t, ChannelDiscord, ParseChannel("discord"))
	assert.Equal(t, ChannelUnknown, ParseChannel("webchat"))
	assert.Equal(t, ChannelUnknown, ParseChannel(""))
}

func TestDirectionValid(t *testing.T) {
	assert.True(t, Long.Valid())
	assert.True(t, Short.Valid())
	assert.False(t, Direction("FLAT").Valid())
}
