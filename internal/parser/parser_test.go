package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func decEq(t *testing.T, name string, got decimal.Decimal, want float64) {
	t.Helper()
	if !got.Equal(decimal.NewFromFloat(want)) {
		t.Fatalf("%s = %s, want %v", name, got.String(), want)
	}
}

const fullReport = "Total Balance: $90.20\n" +
	"Available Balance: $12.50\n" +
	"Invested: $77.70\n" +
	"Value: $80.00\n" +
	"Total PNL: -$15.19 (-0.02%)\n" +
	"#1. Will X happen?\n" +
	"Side: Yes\n" +
	"Entry: 0.45\n" +
	"Invested: $50.00\n" +
	"Shares: 111\n" +
	"Value: $55.00\n" +
	"PNL: $5.00 (10.00%)\n" +
	"Copied from: trader_a"

func TestParseFullReport(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	res := Parse(fullReport, at)

	s := res.Snapshot
	if !s.SnapshotAt.Equal(at) {
		t.Fatalf("SnapshotAt = %v, want %v", s.SnapshotAt, at)
	}
	decEq(t, "TotalBalance", s.TotalBalance, 90.20)
	decEq(t, "AvailableBalance", s.AvailableBalance, 12.50)
	decEq(t, "Invested", s.Invested, 77.70)
	decEq(t, "Value", s.Value, 80.00)
	decEq(t, "TotalPnLUSD", s.TotalPnLUSD, -15.19)
	decEq(t, "TotalPnLPct", s.TotalPnLPct, -0.02)

	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	p := res.Positions[0]
	if p.MarketQuestion != "Will X happen?" {
		t.Fatalf("MarketQuestion = %q", p.MarketQuestion)
	}
	if p.Side != "Yes" {
		t.Fatalf("Side = %q, want Yes", p.Side)
	}
	decEq(t, "EntryPrice", p.EntryPrice, 0.45)
	decEq(t, "Invested", p.Invested, 50.00)
	decEq(t, "Shares", p.Shares, 111)
	decEq(t, "Value", p.Value, 55.00)
	decEq(t, "PnLUSD", p.PnLUSD, 5.00)
	decEq(t, "PnLPct", p.PnLPct, 10.00)
	if p.CopiedFrom != "trader_a" {
		t.Fatalf("CopiedFrom = %q, want trader_a", p.CopiedFrom)
	}
}

func TestParseIdempotent(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := Parse(fullReport, at)
	b := Parse(fullReport, at)
	if !a.Snapshot.SnapshotAt.Equal(b.Snapshot.SnapshotAt) ||
		!a.Snapshot.TotalBalance.Equal(b.Snapshot.TotalBalance) ||
		!a.Snapshot.TotalPnLUSD.Equal(b.Snapshot.TotalPnLUSD) {
		t.Fatalf("snapshots differ: %+v vs %+v", a.Snapshot, b.Snapshot)
	}
	if len(a.Positions) != len(b.Positions) {
		t.Fatalf("position counts differ: %d vs %d", len(a.Positions), len(b.Positions))
	}
	for i := range a.Positions {
		if a.Positions[i].MarketQuestion != b.Positions[i].MarketQuestion ||
			!a.Positions[i].Value.Equal(b.Positions[i].Value) {
			t.Fatalf("position %d differs", i)
		}
	}
}

func TestParseNoPositions(t *testing.T) {
	res := Parse("Total Balance: $10.00\nAvailable Balance: $10.00", time.Time{})
	if len(res.Positions) != 0 {
		t.Fatalf("positions = %d, want 0", len(res.Positions))
	}
	decEq(t, "TotalBalance", res.Snapshot.TotalBalance, 10.00)
}

func TestParseGarbage(t *testing.T) {
	for _, text := range []string{
		"",
		"   \n\n  ",
		"complete nonsense with no structure at all",
		strings.Repeat("???\n", 50),
	} {
		res := Parse(text, time.Time{})
		if !res.Snapshot.TotalBalance.IsZero() {
			t.Fatalf("TotalBalance = %s for %q, want 0", res.Snapshot.TotalBalance, text)
		}
	}
}

func TestNegativeBalanceLeavesDefault(t *testing.T) {
	res := Parse("Total Balance: -$50.00\nInvested: -$5.00\nValue: -$1.00", time.Time{})
	decEq(t, "TotalBalance", res.Snapshot.TotalBalance, 0)
	decEq(t, "Invested", res.Snapshot.Invested, 0)
	decEq(t, "Value", res.Snapshot.Value, 0)
}

func TestNegativePnLPreserved(t *testing.T) {
	res := Parse("Total PNL: -$3.50 (-1.20%)", time.Time{})
	decEq(t, "TotalPnLUSD", res.Snapshot.TotalPnLUSD, -3.50)
	decEq(t, "TotalPnLPct", res.Snapshot.TotalPnLPct, -1.20)
}

func TestTotalPnLFallbackWithoutPercent(t *testing.T) {
	res := Parse("Total PNL: -$15.19", time.Time{})
	decEq(t, "TotalPnLUSD", res.Snapshot.TotalPnLUSD, -15.19)
	decEq(t, "TotalPnLPct", res.Snapshot.TotalPnLPct, 0)
}

func TestThousandsSeparators(t *testing.T) {
	res := Parse("Total Balance: $1,234.56", time.Time{})
	decEq(t, "TotalBalance", res.Snapshot.TotalBalance, 1234.56)
}

func TestPositionsReportedHeader(t *testing.T) {
	res := Parse("Positions(12)\n#1. Will only one page be shown?\nValue: $5.00", time.Time{})
	if res.Snapshot.TotalPositionsReported == nil {
		t.Fatalf("TotalPositionsReported is nil")
	}
	if *res.Snapshot.TotalPositionsReported != 12 {
		t.Fatalf("TotalPositionsReported = %d, want 12", *res.Snapshot.TotalPositionsReported)
	}
	// Informational only: the claimed count may exceed what was parsed.
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
}

func TestControlLineStopsParsing(t *testing.T) {
	text := "#1. Will A win the cup final?\n" +
		"Value: $5.00\n" +
		"🔄 Refresh\n" +
		"#2. Will B be elected president?\n" +
		"Value: $9.00"
	res := Parse(text, time.Time{})
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1 (parsing must stop at the button)", len(res.Positions))
	}
	decEq(t, "Value", res.Positions[0].Value, 5.00)
}

func TestPaginationButtonStopsParsing(t *testing.T) {
	text := "#1. Will A win the cup final?\nValue: $5.00\n#2\nValue: $9.00"
	res := Parse(text, time.Time{})
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	decEq(t, "Value", res.Positions[0].Value, 5.00)
}

func TestNoiseLinesSkippedInsidePosition(t *testing.T) {
	text := "#1. Will A win the cup final?\n" +
		"Total Balance: $90.00\n" + // restatement, not a detail
		"• Invested: $3.00\n" + // bulleted restatement
		"View profile\n" +
		"Data may be delayed by a few minutes\n" +
		"ok\n" + // short fragment
		"Value: $5.00"
	res := Parse(text, time.Time{})
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	p := res.Positions[0]
	decEq(t, "Invested", p.Invested, 0)
	decEq(t, "Value", p.Value, 5.00)
}

func TestShortDetailLinesAreNotFragments(t *testing.T) {
	// Detail lines under 10 runes still route on their keyword; the
	// short-fragment rule only drops lines with no recognized field.
	text := "#1. Will X happen?\n" +
		"Side: No\n" + // 8 runes
		"PNL: $5\n" + // 7 runes
		"ok" // genuine fragment
	res := Parse(text, time.Time{})
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	p := res.Positions[0]
	if p.Side != "No" {
		t.Fatalf("Side = %q, want No", p.Side)
	}
	decEq(t, "PnLUSD", p.PnLUSD, 5)
}

func TestMultiplePositionsAndDuplicates(t *testing.T) {
	text := "#1. Will X happen?\nSide: Yes\nValue: $5.00\n" +
		"#2. Will X happen?\nSide: No\nValue: $3.00\n" +
		"#3. Will Y happen?\nCopy Trade by trader_b"
	res := Parse(text, time.Time{})
	if len(res.Positions) != 3 {
		t.Fatalf("positions = %d, want 3", len(res.Positions))
	}
	if res.Positions[0].MarketQuestion != res.Positions[1].MarketQuestion {
		t.Fatalf("duplicate questions must both survive")
	}
	if res.Positions[0].Side != "Yes" || res.Positions[1].Side != "No" {
		t.Fatalf("sides = %q/%q, want Yes/No", res.Positions[0].Side, res.Positions[1].Side)
	}
	if res.Positions[2].CopiedFrom != "trader_b" {
		t.Fatalf("CopiedFrom = %q, want trader_b", res.Positions[2].CopiedFrom)
	}
}

func TestHeaderSideShortFlips(t *testing.T) {
	res := Parse("#1. Short squeeze over by Friday?", time.Time{})
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	if res.Positions[0].Side != "No" {
		t.Fatalf("Side = %q, want No", res.Positions[0].Side)
	}
}

func TestHeaderSideNovemberStaysYes(t *testing.T) {
	res := Parse("#1. Will Bitcoin hit $100k in November?", time.Time{})
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	if res.Positions[0].Side != "Yes" {
		t.Fatalf("Side = %q, want Yes", res.Positions[0].Side)
	}
}

func TestHeaderWithoutQuestionMarkButLong(t *testing.T) {
	res := Parse("#1. Fed cuts rates at the March meeting\nValue: $2.00", time.Time{})
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	if res.Positions[0].MarketQuestion != "Fed cuts rates at the March meeting" {
		t.Fatalf("MarketQuestion = %q", res.Positions[0].MarketQuestion)
	}
}

func TestCheckmarkStripped(t *testing.T) {
	res := Parse("#1. ✅ Will X happen?", time.Time{})
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	if res.Positions[0].MarketQuestion != "Will X happen?" {
		t.Fatalf("MarketQuestion = %q", res.Positions[0].MarketQuestion)
	}
}

func TestExpiryDates(t *testing.T) {
	tests := []struct {
		line string
		want time.Time
	}{
		{"Expires: 2025-03-15", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"Expiry: 3/15/2025", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		res := Parse("#1. Will X happen?\n"+tt.line, time.Time{})
		if len(res.Positions) != 1 {
			t.Fatalf("%q: positions = %d, want 1", tt.line, len(res.Positions))
		}
		got := res.Positions[0].ExpiresAt
		if got == nil || !got.Equal(tt.want) {
			t.Fatalf("%q: ExpiresAt = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestExpiryUnparseableIsNil(t *testing.T) {
	res := Parse("#1. Will X happen?\nExpires: someday soon maybe", time.Time{})
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	if res.Positions[0].ExpiresAt != nil {
		t.Fatalf("ExpiresAt = %v, want nil", res.Positions[0].ExpiresAt)
	}
}

func TestDefaultTimestampIsNow(t *testing.T) {
	before := time.Now().UTC()
	res := Parse("Total Balance: $1.00", time.Time{})
	after := time.Now().UTC()
	at := res.Snapshot.SnapshotAt
	if at.Before(before) || at.After(after) {
		t.Fatalf("SnapshotAt = %v, want within [%v, %v]", at, before, after)
	}
}

func TestPopulated(t *testing.T) {
	if Parse("nothing of interest here at all", time.Time{}).Populated() {
		t.Fatalf("garbage must not count as populated")
	}
	if !Parse("Total Balance: $1.00", time.Time{}).Populated() {
		t.Fatalf("balance line must count as populated")
	}
	if !Parse("Positions(4)", time.Time{}).Populated() {
		t.Fatalf("positions header must count as populated")
	}
}
