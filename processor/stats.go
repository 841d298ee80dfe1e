// Package processor derives the dashboard's summary figures from collected data.
// Everything here is pure: the same inputs always give the same bundle.
package processor

import (
	"math"

	"clawdash/models"
)

const bytesPerMB = 1024 * 1024

// Defaults for counters no source provides.
const (
	DefaultTokenCeiling    = 200000
	DefaultOpenAIUsage     = 15
	DefaultHyperliquidRate = "Good"
	DefaultTwitchUsage     = "Unknown"
	DefaultTotalRevenue    = 850
	DefaultTradingRevenue  = 850
	DefaultMonthlyTarget   = 10000
)

// Options tune the calculation. Zero values fall back to the defaults above.
type Options struct {
	TokenCeiling  int64
	TotalRevenue  float64
	MonthlyTarget float64
}

// Calculate builds the stats bundle.
func Calculate(positions []models.PositionRecord, sessions []models.SessionInfo, counters models.RawCounters, opts Options) models.StatsBundle {
	if opts.TokenCeiling == 0 {
		opts.TokenCeiling = DefaultTokenCeiling
	}
	if opts.TotalRevenue == 0 {
		opts.TotalRevenue = DefaultTotalRevenue
	}
	if opts.MonthlyTarget == 0 {
		opts.MonthlyTarget = DefaultMonthlyTarget
	}

	var pnl float64
	wins := 0
	for _, p := range positions {
		pnl += finite(p.PnL)
		if p.PnL > 0 {
			wins++
		}
	}
	var winRate float64
	if n := len(positions); n > 0 {
		winRate = math.Round(float64(wins) / float64(n) * 100)
	}

	var tokens int64
	for _, s := range sessions {
		if s.TokenCount > 0 {
			tokens = addTokens(tokens, s.TokenCount)
		}
	}

	stats := models.StatsBundle{
		DailyPnL:         Round2(pnl),
		WinRate:          clampPercent(winRate),
		PositionCount:    len(positions),
		TotalRevenue:     Round2(pick(counters.TotalRevenue, opts.TotalRevenue)),
		ArcClipsToday:    nonNegative(counters.ArcClipsToday),
		ArcViews:         nonNegative(counters.ArcViews),
		ArcSubs:          nonNegative(counters.ArcSubs),
		RageClipsToday:   nonNegative(counters.RageClipsToday),
		RageViews:        nonNegative(counters.RageViews),
		RageSubs:         nonNegative(counters.RageSubs),
		YTQuotaUsed:      nonNegative(counters.YTQuotaUsed),
		OpenAIUsage:      clampPercent(pick(counters.OpenAIUsage, DefaultOpenAIUsage)),
		HyperliquidRate:  orDefault(counters.HyperliquidRate, DefaultHyperliquidRate),
		TwitchUsage:      orDefault(counters.TwitchUsage, DefaultTwitchUsage),
		AnthropicTokens:  tokens,
		AnthropicPercent: TokenPercent(tokens, opts.TokenCeiling),
		OpenclawRevenue:  Round2(counters.OpenclawRevenue),
		OpenclawClients:  nonNegative(counters.OpenclawClients),
		TradingRevenue:   Round2(pick(counters.TradingRevenue, DefaultTradingRevenue)),
		ContentRevenue:   Round2(counters.ContentRevenue),
		MonthlyTarget:    Round2(pick(counters.MonthlyTarget, opts.MonthlyTarget)),
		WorkspaceSizeMB:  BytesToMB(counters.WorkspaceBytes),
		DataSizeMB:       BytesToMB(counters.DataBytes),
	}
	return stats
}

// addTokens adds two non-negative counts, saturating at MaxInt64.
func addTokens(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// TokenPercent is tokens as a share of ceiling, capped at 100.
func TokenPercent(tokens, ceiling int64) float64 {
	if tokens <= 0 || ceiling <= 0 {
		return 0
	}
	return clampPercent(Round2(float64(tokens) / float64(ceiling) * 100))
}

// BytesToMB converts to megabytes with two decimals.
func BytesToMB(n int64) float64 {
	if n <= 0 {
		return 0
	}
	return Round2(float64(n) / bytesPerMB)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	v = finite(v)
	return math.Round(v*100) / 100
}

func clampPercent(v float64) float64 {
	v = finite(v)
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func pick(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
