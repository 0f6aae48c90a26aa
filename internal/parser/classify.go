package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// The bot's reply is a chat UI rendering, not a versioned wire format.
// Classification is therefore layered: line shape first, then keywords, so a
// single drifted label degrades one field instead of the whole message.

type summaryField int

const (
	summaryNone summaryField = iota
	summaryTotalBalance
	summaryAvailableBalance
	summaryInvested
	summaryValue
	summaryTotalPnL
)

type detailField int

const (
	detailNone detailField = iota
	detailSide
	detailEntry
	detailInvested
	detailShares
	detailValue
	detailPnL
	detailExpiry
	detailCopiedFrom
)

var (
	reportedRe  = regexp.MustCompile(`(?i)positions\s*\(\s*(\d+)\s*\)`)
	headerRe    = regexp.MustCompile(`^#?\d+\.`)
	prefixRe    = regexp.MustCompile(`^#?\d+\.\s*`)
	paginateRe  = regexp.MustCompile(`^#\d+$`)
	numberRe    = regexp.MustCompile(`[-+]?\s*\$?\s*\d[\d,]*(?:\.\d+)?`)
	amountPctRe = regexp.MustCompile(`([-+])?\s*\$?\s*(\d[\d,]*(?:\.\d+)?)\s*\(\s*([-+])?\s*(\d[\d,]*(?:\.\d+)?)\s*%\s*\)`)
	isoDateRe   = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	slashDateRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	noShortRe   = regexp.MustCompile(`\b(no|short)\b`)
	refreshRe   = regexp.MustCompile(`\brefresh\b`)
	sellRe      = regexp.MustCompile(`\bsell\b`)
)

// lineClass is the one-shot classification of a trimmed non-empty line. The
// state machine in Parse decides which facet applies in the current state.
type lineClass struct {
	text  string
	lower string

	headerShape bool // "#12." / "12." numbered prefix
	question    bool
	bullet      bool
	paginate    bool // bare "#3" pagination button
	control     bool
	noise       bool

	summary summaryField
	detail  detailField
}

func classify(line string) lineClass {
	lc := lineClass{
		text:        line,
		lower:       strings.ToLower(line),
		headerShape: headerRe.MatchString(line),
		question:    strings.Contains(line, "?"),
		paginate:    paginateRe.MatchString(line),
	}
	lc.bullet = strings.HasPrefix(line, "•") || strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ")
	lc.control = isControl(lc)
	// Keyword routing feeds the noise facet: a short line that still carries a
	// detail keyword ("Side: No") is data, not a stray fragment.
	lc.summary = classifySummary(lc)
	lc.detail = classifyDetail(lc)
	lc.noise = isNoise(lc)
	return lc
}

// opensPosition reports whether the line should start a new position record:
// a numbered header that either poses a question or is long enough to be a
// truncated market title.
func (lc lineClass) opensPosition() bool {
	return lc.headerShape && (lc.question || utf8.RuneCountInString(lc.text) > 20)
}

// isControl recognizes the chat UI's navigation and action buttons. These end
// the positions section; everything after them is keyboard, not data. Tokens
// are matched as whole words or glyphs so a market question such as
// "Will X come back?" is not mistaken for a button.
func isControl(lc lineClass) bool {
	if lc.paginate {
		return true
	}
	l := lc.lower
	for _, glyph := range []string{"⬅", "➡", "🔄", "🔙", "↩"} {
		if strings.Contains(l, glyph) {
			return true
		}
	}
	switch l {
	case "back", "next", "refresh", "sell", "last page":
		return true
	}
	if strings.Contains(l, "« back") || strings.Contains(l, "back to") ||
		strings.Contains(l, "next »") || strings.Contains(l, "next page") ||
		strings.Contains(l, "last page") {
		return true
	}
	if refreshRe.MatchString(l) {
		return true
	}
	if strings.Contains(l, "auto-redeem") || strings.Contains(l, "auto redeem") {
		return true
	}
	if sellRe.MatchString(l) && !strings.Contains(l, "shares") {
		return true
	}
	if strings.Contains(l, "limit order") {
		return true
	}
	return false
}

// isNoise recognizes lines inside the positions section that carry no position
// data: balance restatements, profile/explorer links, disclaimer boilerplate,
// bulleted invested restatements, and stray short fragments.
func isNoise(lc lineClass) bool {
	l := lc.lower
	if strings.Contains(l, "total balance") {
		return true
	}
	if strings.Contains(l, "profile") || strings.Contains(l, "explorer") || strings.Contains(l, "polygonscan") {
		return true
	}
	if strings.Contains(l, "delayed") || strings.Contains(l, "disclaimer") || strings.Contains(l, "trades are copied") {
		return true
	}
	if lc.bullet && strings.Contains(l, "invested") {
		return true
	}
	if utf8.RuneCountInString(lc.text) < 10 && !lc.question && !lc.headerShape && lc.detail == detailNone {
		return true
	}
	return false
}

// classifySummary applies the summary keyword priority. First match wins and
// a line feeds at most one field.
func classifySummary(lc lineClass) summaryField {
	l := lc.lower
	switch {
	case strings.Contains(l, "total balance"):
		return summaryTotalBalance
	case strings.Contains(l, "available balance"),
		strings.Contains(l, "available") && strings.Contains(l, "balance"):
		return summaryAvailableBalance
	case strings.Contains(l, "invested") && !strings.Contains(l, "shares") &&
		!lc.headerShape && !lc.bullet && !lc.paginate:
		return summaryInvested
	case strings.Contains(l, "value") && !strings.Contains(l, "pnl") &&
		!lc.headerShape && !lc.bullet && !lc.paginate:
		return summaryValue
	case (strings.Contains(l, "total pnl") || strings.Contains(l, "total profit")) &&
		!lc.headerShape && !lc.paginate:
		return summaryTotalPnL
	}
	return summaryNone
}

// classifyDetail applies the position detail keyword priority.
func classifyDetail(lc lineClass) detailField {
	l := lc.lower
	switch {
	case strings.Contains(l, "side:") || strings.Contains(l, "position:"):
		return detailSide
	case strings.Contains(l, "entry"):
		return detailEntry
	case strings.Contains(l, "invested") && !strings.Contains(l, "shares"):
		return detailInvested
	case strings.Contains(l, "shares"):
		return detailShares
	case strings.Contains(l, "value") && !strings.Contains(l, "pnl"):
		return detailValue
	case strings.Contains(l, "pnl") || strings.Contains(l, "profit"):
		return detailPnL
	case strings.Contains(l, "expiry") || strings.Contains(l, "expires"):
		return detailExpiry
	case strings.Contains(l, "copied") || strings.Contains(l, "from") || strings.Contains(l, "copy trade by"):
		return detailCopiedFrom
	}
	return detailNone
}

// extractNumber finds the first number in the line, tolerating a currency
// symbol between sign and digits and comma thousands separators. A miss is
// "no value", never zero: the caller's pre-existing default stands.
func extractNumber(line string) *float64 {
	m := numberRe.FindString(line)
	if m == "" {
		return nil
	}
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(m)
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil
	}
	return &v
}

// extractAmountPct parses the combined "amount (percent%)" form, each part
// with its own optional sign.
func extractAmountPct(line string) (amount, pct float64, ok bool) {
	m := amountPctRe.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
	if err != nil {
		return 0, 0, false
	}
	pct, err = strconv.ParseFloat(strings.ReplaceAll(m[4], ",", ""), 64)
	if err != nil {
		return 0, 0, false
	}
	if m[1] == "-" {
		amount = -amount
	}
	if m[3] == "-" {
		pct = -pct
	}
	return amount, pct, true
}

// extractDate prefers ISO yyyy-mm-dd, falls back to m/d/yyyy, else nil.
func extractDate(line string) *time.Time {
	if m := isoDateRe.FindStringSubmatch(line); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if t := safeDate(year, month, day); t != nil {
			return t
		}
	}
	if m := slashDateRe.FindStringSubmatch(line); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t := safeDate(year, month, day); t != nil {
			return t
		}
	}
	return nil
}

func safeDate(year, month, day int) *time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

// extractCopiedFrom takes the trailing text after the copy-trade keyword and
// an optional colon.
func extractCopiedFrom(line string) string {
	l := strings.ToLower(line)
	for _, kw := range []string{"copy trade by", "copied from", "copied", "from"} {
		idx := strings.Index(l, kw)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(kw):]
		rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), ":"))
		return rest
	}
	return ""
}
