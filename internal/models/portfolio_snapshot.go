package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is one point-in-time observation of aggregate account
// state, parsed from a single bot reply. Snapshots are append-only; a later
// snapshot supersedes an earlier one, nothing is ever updated in place.
type PortfolioSnapshot struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SnapshotAt time.Time `gorm:"type:timestamptz;not null;index" json:"snapshotAt"`

	TotalBalance     decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"totalBalance"`
	AvailableBalance decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"availableBalance"`
	Invested         decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"invested"`
	Value            decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"value"`
	TotalPnLUSD      decimal.Decimal `gorm:"column:total_pnl_usd;type:numeric(30,10);not null" json:"totalPnlUsd"`
	TotalPnLPct      decimal.Decimal `gorm:"column:total_pnl_pct;type:numeric(20,10);not null" json:"totalPnlPct"`

	// The count the bot's "Positions(N)" header claims. May exceed the number
	// of positions actually parsed when the reply is paginated.
	TotalPositionsReported *int `gorm:"" json:"totalPositionsReported,omitempty"`

	Positions []Position `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE" json:"positions,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}

// CopiedTraders returns the distinct non-empty CopiedFrom values of the
// snapshot's positions.
func (s PortfolioSnapshot) CopiedTraders() []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range s.Positions {
		if p.CopiedFrom == "" {
			continue
		}
		if _, ok := seen[p.CopiedFrom]; ok {
			continue
		}
		seen[p.CopiedFrom] = struct{}{}
		out = append(out, p.CopiedFrom)
	}
	return out
}
