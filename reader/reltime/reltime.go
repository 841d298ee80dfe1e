// Package reltime renders timestamps as short relative phrases for the dashboard.
package reltime

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"clawdash/models"
)

// Ago renders a past instant relative to now. The zero time renders as the
// unknown sentinel.
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return models.UnknownTime
	}
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d days ago", int(d/(24*time.Hour)))
	}
}

// Until renders a future instant relative to now.
func Until(t, now time.Time) string {
	if t.IsZero() {
		return models.UnknownTime
	}
	d := t.Sub(now)
	switch {
	case d <= 0:
		return "Due"
	case d < time.Minute:
		return "in <1 min"
	case d < time.Hour:
		return fmt.Sprintf("in %d min", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %d hours", int(d/time.Hour))
	default:
		return fmt.Sprintf("in %d days", int(d/(24*time.Hour)))
	}
}

// FromMillis converts epoch milliseconds; non-positive values are the zero time.
func FromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Parse accepts epoch milliseconds, epoch seconds or an RFC 3339 string.
func Parse(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 1e11 {
			n *= 1000
		}
		return FromMillis(n)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
