// Package parser turns the reporting bot's free-text portfolio replies into
// typed snapshot and position records. It is a pure function over the text:
// no I/O, no errors. Unrecognized structure degrades to zeroed fields or a
// shorter position list, never to a failure.
package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"polyfolio/internal/models"
)

// Result is one parsed bot reply.
type Result struct {
	Snapshot  models.PortfolioSnapshot
	Positions []models.Position
}

type parseState int

const (
	stateSummary parseState = iota
	statePositions
	stateDone
)

// Parse converts a raw chat message into a snapshot and its positions.
// A zero `at` means "now"; backfill passes the message's delivery time.
func Parse(text string, at time.Time) Result {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	snap := models.PortfolioSnapshot{SnapshotAt: at.UTC()}
	if n, ok := positionsReported(text); ok {
		snap.TotalPositionsReported = &n
	}

	var positions []models.Position
	var cur *models.Position
	flush := func() {
		if cur != nil && cur.MarketQuestion != "" {
			positions = append(positions, *cur)
		}
		cur = nil
	}

	state := stateSummary
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lc := classify(line)

		switch state {
		case stateSummary:
			if lc.opensPosition() {
				state = statePositions
				cur = openPosition(lc)
				continue
			}
			applySummary(&snap, lc)
		case statePositions:
			if lc.control {
				// Everything from the first button on is keyboard chrome.
				state = stateDone
				continue
			}
			if lc.noise {
				continue
			}
			if lc.opensPosition() {
				flush()
				cur = openPosition(lc)
				continue
			}
			if cur != nil {
				applyDetail(cur, lc)
			}
		}
		if state == stateDone {
			break
		}
	}
	flush()

	return Result{Snapshot: snap, Positions: positions}
}

// positionsReported reads the "Positions(N)" header anywhere in the text.
// It is independent of line parsing and can succeed on an otherwise
// unparseable message.
func positionsReported(text string) (int, bool) {
	m := reportedRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func openPosition(lc lineClass) *models.Position {
	question := prefixRe.ReplaceAllString(lc.text, "")
	for _, glyph := range []string{"✅", "✔️", "✔"} {
		question = strings.TrimPrefix(question, glyph)
	}
	question = strings.TrimSpace(question)

	side := models.SideYes
	if noShortRe.MatchString(lc.lower) {
		side = models.SideNo
	}
	return &models.Position{MarketQuestion: question, Side: side}
}

// applySummary updates at most one snapshot field from the line. Balance,
// invested and value reject negative extractions: the zero default stands
// and nothing is logged, matching the observed behavior.
func applySummary(snap *models.PortfolioSnapshot, lc lineClass) {
	switch lc.summary {
	case summaryTotalBalance:
		if v := extractNumber(lc.text); v != nil && *v >= 0 {
			snap.TotalBalance = decimal.NewFromFloat(*v)
		}
	case summaryAvailableBalance:
		if v := extractNumber(lc.text); v != nil && *v >= 0 {
			snap.AvailableBalance = decimal.NewFromFloat(*v)
		}
	case summaryInvested:
		if v := extractNumber(lc.text); v != nil && *v >= 0 {
			snap.Invested = decimal.NewFromFloat(*v)
		}
	case summaryValue:
		if v := extractNumber(lc.text); v != nil && *v >= 0 {
			snap.Value = decimal.NewFromFloat(*v)
		}
	case summaryTotalPnL:
		if amount, pct, ok := extractAmountPct(lc.text); ok {
			snap.TotalPnLUSD = decimal.NewFromFloat(amount)
			snap.TotalPnLPct = decimal.NewFromFloat(pct)
		} else if v := extractNumber(lc.text); v != nil {
			snap.TotalPnLUSD = decimal.NewFromFloat(*v)
		}
	}
}

func applyDetail(pos *models.Position, lc lineClass) {
	switch lc.detail {
	case detailSide:
		if noShortRe.MatchString(lc.lower) {
			pos.Side = models.SideNo
		} else {
			pos.Side = models.SideYes
		}
	case detailEntry:
		if v := extractNumber(lc.text); v != nil {
			pos.EntryPrice = decimal.NewFromFloat(*v)
		}
	case detailInvested:
		if v := extractNumber(lc.text); v != nil {
			pos.Invested = decimal.NewFromFloat(*v)
		}
	case detailShares:
		if v := extractNumber(lc.text); v != nil {
			pos.Shares = decimal.NewFromFloat(*v)
		}
	case detailValue:
		if v := extractNumber(lc.text); v != nil {
			pos.Value = decimal.NewFromFloat(*v)
		}
	case detailPnL:
		if amount, pct, ok := extractAmountPct(lc.text); ok {
			pos.PnLUSD = decimal.NewFromFloat(amount)
			pos.PnLPct = decimal.NewFromFloat(pct)
		} else if v := extractNumber(lc.text); v != nil {
			pos.PnLUSD = decimal.NewFromFloat(*v)
		}
	case detailExpiry:
		if t := extractDate(lc.text); t != nil {
			pos.ExpiresAt = t
		}
	case detailCopiedFrom:
		if v := extractCopiedFrom(lc.text); v != "" {
			pos.CopiedFrom = v
		}
	}
}

// Populated reports whether parsing recovered anything beyond defaults. Used
// to flag raw messages that degraded completely.
func (r Result) Populated() bool {
	if len(r.Positions) > 0 || r.Snapshot.TotalPositionsReported != nil {
		return true
	}
	s := r.Snapshot
	for _, d := range []decimal.Decimal{s.TotalBalance, s.AvailableBalance, s.Invested, s.Value, s.TotalPnLUSD, s.TotalPnLPct} {
		if !d.IsZero() {
			return true
		}
	}
	return false
}
