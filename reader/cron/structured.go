package cron

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"clawdash/models"
	"clawdash/reader/reltime"
)

type jobList struct {
	Jobs []job `json:"jobs"`
}

type job struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Enabled  *bool     `json:"enabled"`
	Schedule schedule  `json:"schedule"`
	State    jobState  `json:"state"`
	Status   string    `json:"status"`
	Interval string    `json:"interval"`
	LastRun  flexValue `json:"lastRun"`
	NextRun  flexValue `json:"nextRun"`
	Errors   flexCount `json:"errors"`
}

type jobState struct {
	NextRunAtMs       int64     `json:"nextRunAtMs"`
	LastRunAtMs       int64     `json:"lastRunAtMs"`
	RunningAtMs       int64     `json:"runningAtMs"`
	LastStatus        string    `json:"lastStatus"`
	ConsecutiveErrors flexCount `json:"consecutiveErrors"`
}

// schedule accepts either a plain string or {kind, everyMs, expr, at}.
type schedule struct {
	Kind    string `json:"kind"`
	EveryMs int64  `json:"everyMs"`
	Expr    string `json:"expr"`
	At      string `json:"at"`
	text    string
}

func (s *schedule) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.text)
	}
	type plain schedule
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = schedule(p)
	return nil
}

func (s schedule) label() string {
	switch {
	case s.text != "":
		return s.text
	case s.Kind == "every" || s.EveryMs > 0:
		return Interval(time.Duration(s.EveryMs) * time.Millisecond)
	case s.Kind == "cron" && s.Expr != "":
		return s.Expr
	case s.Kind == "at":
		return "Once"
	}
	return models.UnknownTime
}

// flexValue holds a time field that may be a number or a string.
type flexValue string

func (f *flexValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexValue(s)
		return nil
	}
	*f = flexValue(strings.TrimSpace(string(data)))
	return nil
}

// flexCount is an error counter sent as a number or a numeric string. Any
// other value counts as zero so one odd field does not sink the listing.
type flexCount int

func (c *flexCount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(data)), `"`))
	f, err := strconv.ParseFloat(raw, 64)
	switch {
	case err != nil || math.IsNaN(f) || f < 0:
		*c = 0
	case f > math.MaxInt32:
		*c = math.MaxInt32
	default:
		*c = flexCount(f)
	}
	return nil
}

func parseStructured(data []byte, now time.Time) ([]models.BotStatus, error) {
	var jobs []job
	if data[0] == '[' {
		if err := json.Unmarshal(data, &jobs); err != nil {
			return nil, fmt.Errorf("decode cron list: %w", err)
		}
	} else {
		var list jobList
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode cron list: %w", err)
		}
		jobs = list.Jobs
	}

	bots := make([]models.BotStatus, 0, len(jobs))
	for _, j := range jobs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			name = strings.TrimSpace(j.ID)
		}
		if name == "" {
			continue
		}
		bots = append(bots, j.toBot(name, now))
	}
	return bots, nil
}

func (j job) toBot(name string, now time.Time) models.BotStatus {
	bot := models.BotStatus{
		Name:       name,
		Status:     j.status(),
		Interval:   j.Schedule.label(),
		LastRun:    relative(string(j.LastRun), now, false),
		NextRun:    relative(string(j.NextRun), now, true),
		ErrorCount: int(j.Errors),
	}
	if j.Interval != "" {
		bot.Interval = j.Interval
	}
	if j.State.LastRunAtMs > 0 {
		bot.LastRun = reltime.Ago(reltime.FromMillis(j.State.LastRunAtMs), now)
	}
	if j.State.NextRunAtMs > 0 {
		bot.NextRun = reltime.Until(reltime.FromMillis(j.State.NextRunAtMs), now)
	}
	if j.State.ConsecutiveErrors > 0 {
		bot.ErrorCount = int(j.State.ConsecutiveErrors)
	}
	if bot.ErrorCount < 0 {
		bot.ErrorCount = 0
	}
	return bot
}

func (j job) status() models.BotState {
	switch {
	case j.State.RunningAtMs > 0:
		return models.BotRunning
	case j.Status != "":
		return Classify(j.Status)
	case j.Enabled != nil && !*j.Enabled:
		return models.BotIdle
	case j.State.LastStatus != "":
		return Classify(j.State.LastStatus)
	case j.State.LastRunAtMs == 0 && j.LastRun == "":
		return models.BotIdle
	}
	return models.BotUnknown
}
