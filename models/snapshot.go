package models

import "time"

// Direction of an open position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Valid reports whether d is LONG or SHORT.
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// DefaultStrategy is used when a ledger entry names none.
const DefaultStrategy = "Unknown"

// PositionRecord is one open position parsed from the trade ledger.
type PositionRecord struct {
	Coin       string    `json:"coin"`
	Direction  Direction `json:"direction"`
	Size       float64   `json:"size"`
	EntryPrice float64   `json:"entry"`
	StopLoss   float64   `json:"sl"`
	TakeProfit float64   `json:"tp"`
	Strategy   string    `json:"strategy"`
	PnL        float64   `json:"pnl"`
	PnLPercent float64   `json:"pnlPercent"`
}

// NewPosition returns a record with every numeric field zeroed and the default strategy.
func NewPosition(coin string, dir Direction) PositionRecord {
	return PositionRecord{Coin: coin, Direction: dir, Strategy: DefaultStrategy}
}

// BotState classifies a scheduled job.
type BotState string

const (
	BotRunning BotState = "running"
	BotOK      BotState = "ok"
	BotIdle    BotState = "idle"
	BotError   BotState = "error"
	BotUnknown BotState = "unknown"
)

// UnknownTime is the sentinel for relative times that could not be determined.
const UnknownTime = "Unknown"

// BotStatus is the observed state of one scheduled job.
type BotStatus struct {
	Name       string   `json:"name"`
	Status     BotState `json:"status"`
	Interval   string   `json:"interval"`
	LastRun    string   `json:"lastRun"`
	NextRun    string   `json:"nextRun"`
	ErrorCount int      `json:"errors"`
}

// Channel a session is attached to.
type Channel string

const (
	ChannelDiscord  Channel = "discord"
	ChannelTelegram Channel = "telegram"
	ChannelSubagent Channel = "subagent"
	ChannelUnknown  Channel = "unknown"
)

// ParseChannel maps s onto a known channel, or ChannelUnknown.
func ParseChannel(s string) Channel {
	switch Channel(s) {
	case ChannelDiscord, ChannelTelegram, ChannelSubagent:
		return Channel(s)
	}
	return ChannelUnknown
}

// SessionInfo is one active conversational session.
type SessionInfo struct {
	DisplayName  string  `json:"name"`
	Channel      Channel `json:"channel"`
	Kind         string  `json:"kind"`
	Model        string  `json:"model"`
	TokenCount   int64   `json:"tokens"`
	LastActiveAt string  `json:"lastActive"`
	SessionKey   string  `json:"sessionKey"`
}

// MachineHealth is a point-in-time host sample. A failed sample is the zero
// value and serializes as an empty object.
type MachineHealth struct {
	CPUPercent         float64 `json:"cpuPercent,omitempty"`
	MemUsedGB          float64 `json:"memUsedGB,omitempty"`
	MemTotalGB         float64 `json:"memTotalGB,omitempty"`
	MemPercent         float64 `json:"memPercent,omitempty"`
	DiskUsedGB         float64 `json:"diskUsedGB,omitempty"`
	DiskTotalGB        float64 `json:"diskTotalGB,omitempty"`
	DiskPercent        float64 `json:"diskPercent,omitempty"`
	NetSpeedKBs        float64 `json:"netSpeed,omitempty"`
	ActiveProcessCount int     `json:"pythonProcesses,omitempty"`
	SampledAt          string  `json:"timestamp,omitempty"`
}

// Empty reports whether the sample carries no data.
func (m MachineHealth) Empty() bool {
	return m == MachineHealth{}
}

// StatsBundle holds the derived and pass-through summary figures.
type StatsBundle struct {
	DailyPnL         float64 `json:"dailyPnl"`
	WinRate          float64 `json:"winRate"`
	PositionCount    int     `json:"positionCount"`
	TotalRevenue     float64 `json:"totalRevenue"`
	ArcClipsToday    int     `json:"arcClipsToday"`
	ArcViews         int     `json:"arcViews"`
	ArcSubs          int     `json:"arcSubs"`
	RageClipsToday   int     `json:"rageClipsToday"`
	RageViews        int     `json:"rageViews"`
	RageSubs         int     `json:"rageSubs"`
	YTQuotaUsed      int     `json:"ytQuotaUsed"`
	OpenAIUsage      float64 `json:"openaiUsage"`
	HyperliquidRate  string  `json:"hyperliquidRate"`
	TwitchUsage      string  `json:"twitchUsage"`
	AnthropicTokens  int64   `json:"anthropicTokens"`
	AnthropicPercent float64 `json:"anthropicPercent"`
	OpenclawRevenue  float64 `json:"openclawRevenue"`
	OpenclawClients  int     `json:"openclawClients"`
	TradingRevenue   float64 `json:"tradingRevenue"`
	ContentRevenue   float64 `json:"contentRevenue"`
	MonthlyTarget    float64 `json:"monthlyTarget"`
	WorkspaceSizeMB  float64 `json:"workspaceSize"`
	DataSizeMB       float64 `json:"dataSize"`
}

// RawCounters are the auxiliary inputs to the stats calculation. Pointer
// fields are unset when no source provided them.
type RawCounters struct {
	YTQuotaUsed     int      `json:"ytQuotaUsed" yaml:"ytQuotaUsed"`
	OpenAIUsage     *float64 `json:"openaiUsage" yaml:"openaiUsage"`
	HyperliquidRate string   `json:"hyperliquidRate" yaml:"hyperliquidRate"`
	TwitchUsage     string   `json:"twitchUsage" yaml:"twitchUsage"`
	ArcClipsToday   int      `json:"arcClipsToday" yaml:"arcClipsToday"`
	ArcViews        int      `json:"arcViews" yaml:"arcViews"`
	ArcSubs         int      `json:"arcSubs" yaml:"arcSubs"`
	RageClipsToday  int      `json:"rageClipsToday" yaml:"rageClipsToday"`
	RageViews       int      `json:"rageViews" yaml:"rageViews"`
	RageSubs        int      `json:"rageSubs" yaml:"rageSubs"`
	TotalRevenue    *float64 `json:"totalRevenue" yaml:"totalRevenue"`
	TradingRevenue  *float64 `json:"tradingRevenue" yaml:"tradingRevenue"`
	ContentRevenue  float64  `json:"contentRevenue" yaml:"contentRevenue"`
	OpenclawRevenue float64  `json:"openclawRevenue" yaml:"openclawRevenue"`
	OpenclawClients int      `json:"openclawClients" yaml:"openclawClients"`
	MonthlyTarget   *float64 `json:"monthlyTarget" yaml:"monthlyTarget"`
	WorkspaceBytes  int64    `json:"-" yaml:"-"`
	DataBytes       int64    `json:"-" yaml:"-"`
}

// DashboardSnapshot is the document published once per run.
type DashboardSnapshot struct {
	Timestamp string           `json:"timestamp"`
	Bots      []BotStatus      `json:"bots"`
	Positions []PositionRecord `json:"positions"`
	Sessions  []SessionInfo    `json:"sessions"`
	Machine   MachineHealth    `json:"machine"`
	Stats     StatsBundle      `json:"stats"`
}

// NewSnapshot assembles a snapshot stamped with at. Nil collections become
// empty so the document never carries null arrays.
func NewSnapshot(at time.Time, bots []BotStatus, positions []PositionRecord, sessions []SessionInfo, machine MachineHealth, stats StatsBundle) DashboardSnapshot {
	if bots == nil {
		bots = []BotStatus{}
	}
	if positions == nil {
		positions = []PositionRecord{}
	}
	if sessions == nil {
		sessions = []SessionInfo{}
	}
	return DashboardSnapshot{
		Timestamp: at.Format(time.RFC3339),
		Bots:      bots,
		Positions: positions,
		Sessions:  sessions,
		Machine:   machine,
		Stats:     stats,
	}
}
