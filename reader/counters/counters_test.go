package counters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadQuotaAndOverrides(t *testing.T) {
	dir := t.TempDir()
	quota := write(t, dir, "youtube_quota.txt", " 4200\n")
	overrides := write(t, dir, "counters.json", `{"openaiUsage": 22.5, "hyperliquidRate": "Limited", "arcViews": 1200, "tradingRevenue": 900}`)

	c, err := NewReader(quota, overrides).Read(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4200, c.YTQuotaUsed)
	require.NotNil(t, c.OpenAIUsage)
	assert.Equal(t, 22.5, *c.OpenAIUsage)
	assert.Equal(t, "Limited", c.HyperliquidRate)
	assert.Equal(t, 1200, c.ArcViews)
	require.NotNil(t, c.TradingRevenue)
	assert.Equal(t, 900.0, *c.TradingRevenue)
	assert.Nil(t, c.TotalRevenue)
}

func TestReadYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	overrides := write(t, dir, "counters.yml", "rageClipsToday: 3\ntwitchUsage: Low\n")

	c, err := NewReader("", overrides).Read(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, c.RageClipsToday)
	assert.Equal(t, "Low", c.TwitchUsage)
}

func TestReadMissingAndMalformed(t *testing.T) {
	dir := t.TempDir()

	c, err := NewReader(filepath.Join(dir, "none.txt"), filepath.Join(dir, "none.yml")).Read(context.Background())
	require.NoError(t, err)
	assert.Zero(t, c.YTQuotaUsed)

	quota := write(t, dir, "bad.txt", "lots")
	overrides := write(t, dir, "bad.yml", "arcViews: [")
	c, err = NewReader(quota, overrides).Read(context.Background())
	require.NoError(t, err)
	assert.Zero(t, c.YTQuotaUsed)
	assert.Zero(t, c.ArcViews)
}

func TestReadQuotaNegative(t *testing.T) {
	_, err := ReadQuota(write(t, t.TempDir(), "q.txt", "-5"))
	assert.Error(t, err)
}
