// Package ledger reads open positions out of the markdown trade journal.
//
// A position starts at a header line and collects the bold field markers that
// follow it:
//
//	## OPEN: BTC LONG
//	- **Strategy:** RSI
//	- **Size:** 0.5
//	- **Entry:** $50000
//	- **Stop Loss:** $48000
//	- **Take Profit:** $55000
package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"clawdash/models"
)

const headerPrefix = "## OPEN:"

var headerRe = regexp.MustCompile(`^## OPEN: ([\p{L}\p{N}_]+) (LONG|SHORT)`)

type field int

const (
	fieldStrategy field = iota
	fieldSize
	fieldEntry
	fieldStopLoss
	fieldTakeProfit
)

// markers are checked in order; the first one found on a line wins.
var markers = []struct {
	text   string
	field  field
	dollar bool
}{
	{"**Strategy:**", fieldStrategy, false},
	{"**Size:**", fieldSize, false},
	{"**Entry:**", fieldEntry, true},
	{"**Stop Loss:**", fieldStopLoss, true},
	{"**Take Profit:**", fieldTakeProfit, true},
}

// Parse scans r and returns every position in file order. Malformed lines are
// skipped and unparsable values leave the field at its previous value. Lines
// have no length limit.
func Parse(r io.Reader) []models.PositionRecord {
	positions, _ := parse(r)
	return positions
}

// parse stops at the first read error and returns what was collected so far.
func parse(r io.Reader) ([]models.PositionRecord, error) {
	positions := []models.PositionRecord{}
	var current *models.PositionRecord

	flush := func() {
		if current != nil {
			positions = append(positions, *current)
		}
	}

	br := bufio.NewReader(r)
	first := true
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			if first {
				line = strings.TrimPrefix(line, "\ufeff")
				first = false
			}
			if strings.HasPrefix(line, headerPrefix) {
				if m := headerRe.FindStringSubmatch(line); m != nil {
					flush()
					p := models.NewPosition(m[1], models.Direction(m[2]))
					current = &p
				}
			} else if current != nil {
				applyLine(current, line)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			flush()
			return positions, err
		}
	}
	flush()
	return positions, nil
}

// ParseFile parses the ledger at path. A missing file is an empty ledger.
func ParseFile(path string) ([]models.PositionRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.PositionRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	positions, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return positions, nil
}

// Reader parses the ledger file at Path on every Read.
type Reader struct {
	Path string
}

func NewReader(path string) *Reader {
	return &Reader{Path: path}
}

func (r *Reader) Read(ctx context.Context) ([]models.PositionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseFile(r.Path)
}

func applyLine(p *models.PositionRecord, line string) {
	for _, m := range markers {
		idx := strings.Index(line, m.text)
		if idx < 0 {
			continue
		}
		raw := line[idx+len(m.text):]
		if m.dollar {
			raw = afterDollar(line, raw)
		}
		raw = strings.TrimSpace(raw)

		switch m.field {
		case fieldStrategy:
			if raw != "" {
				p.Strategy = raw
			}
		case fieldSize:
			setNumber(&p.Size, raw)
		case fieldEntry:
			setNumber(&p.EntryPrice, raw)
		case fieldStopLoss:
			setNumber(&p.StopLoss, raw)
		case fieldTakeProfit:
			setNumber(&p.TakeProfit, raw)
		}
		return
	}
}

// afterDollar returns the text between the first and second '$' on the line,
// or fallback when the line has none.
func afterDollar(line, fallback string) string {
	i := strings.IndexByte(line, '$')
	if i < 0 {
		return fallback
	}
	rest := line[i+1:]
	if j := strings.IndexByte(rest, '$'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func setNumber(dst *float64, raw string) {
	if v, ok := parseNumber(raw); ok {
		*dst = v
	}
}

func parseNumber(raw string) (float64, bool) {
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
