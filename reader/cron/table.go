package cron

import (
	"regexp"
	"strings"
	"time"

	"clawdash/models"
)

type column int

const (
	colID column = iota
	colName
	colInterval
	colNext
	colLast
	colStatus
	colErrors
)

// defaultColumns is the layout assumed when the output carries no header.
var defaultColumns = []column{colID, colName, colInterval, colNext, colLast, colStatus}

var headerNames = map[string]column{
	"id":       colID,
	"name":     colName,
	"schedule": colInterval,
	"interval": colInterval,
	"next":     colNext,
	"next run": colNext,
	"last":     colLast,
	"last run": colLast,
	"status":   colStatus,
	"state":    colStatus,
	"errors":   colErrors,
}

var cellSep = regexp.MustCompile(`\t+|\s{2,}|\s*│\s*|\s+\|\s+`)

// tokenize splits a table row into trimmed, non-empty cells.
func tokenize(line string) []string {
	line = strings.Trim(strings.TrimSpace(line), "|│")
	var cells []string
	for _, c := range cellSep.Split(line, -1) {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}

func isSeparator(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	return strings.Trim(line, "-=─━┼┬┴├┤+| ") == ""
}

type layout struct {
	index   map[column]int
	minimum int
}

func newLayout(cols []column) layout {
	l := layout{index: make(map[column]int, len(cols))}
	for i, c := range cols {
		if _, dup := l.index[c]; !dup {
			l.index[c] = i
		}
	}
	for _, c := range []column{colID, colName, colStatus} {
		if i, ok := l.index[c]; ok && i+1 > l.minimum {
			l.minimum = i + 1
		}
	}
	return l
}

// headerLayout recognises a header row by its first cell.
func headerLayout(cells []string) (layout, bool) {
	first := strings.ToLower(cells[0])
	if first != "id" && first != "name" {
		return layout{}, false
	}
	cols := make([]column, len(cells))
	for i, cell := range cells {
		c, ok := headerNames[strings.ToLower(cell)]
		if !ok {
			c = -1
		}
		cols[i] = c
	}
	return newLayout(cols), true
}

func (l layout) cell(cells []string, c column) string {
	i, ok := l.index[c]
	if !ok || i >= len(cells) {
		return ""
	}
	return cells[i]
}

func parseTable(out string, now time.Time) []models.BotStatus {
	bots := []models.BotStatus{}
	lay := newLayout(defaultColumns)

	for _, line := range strings.Split(out, "\n") {
		if isSeparator(line) {
			continue
		}
		cells := tokenize(line)
		if len(cells) == 0 {
			continue
		}
		if l, ok := headerLayout(cells); ok {
			lay = l
			continue
		}
		if len(cells) < lay.minimum {
			continue
		}

		name := lay.cell(cells, colName)
		if name == "" {
			name = lay.cell(cells, colID)
		}
		if name == "" {
			continue
		}
		interval := lay.cell(cells, colInterval)
		if interval == "" {
			interval = models.UnknownTime
		}
		bots = append(bots, models.BotStatus{
			Name:       name,
			Status:     Classify(lay.cell(cells, colStatus)),
			Interval:   interval,
			LastRun:    relative(lay.cell(cells, colLast), now, false),
			NextRun:    relative(lay.cell(cells, colNext), now, true),
			ErrorCount: atoiOrZero(lay.cell(cells, colErrors)),
		})
	}
	return bots
}
