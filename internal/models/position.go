package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideYes = "Yes"
	SideNo  = "No"
)

// Position is one open market position belonging to exactly one snapshot.
// Duplicate market questions within a snapshot are legal (both legs of a
// market, or a re-entry).
type Position struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SnapshotID uint64 `gorm:"not null;index" json:"snapshotId"`

	MarketQuestion string `gorm:"type:text;not null" json:"marketQuestion"`
	Side           string `gorm:"type:varchar(5);not null;default:'Yes'" json:"side"`

	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0" json:"entryPrice"`
	Invested   decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"invested"`
	Shares     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"shares"`
	Value      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"value"`
	PnLUSD     decimal.Decimal `gorm:"column:pnl_usd;type:numeric(30,10);not null;default:0" json:"pnlUsd"`
	PnLPct     decimal.Decimal `gorm:"column:pnl_pct;type:numeric(20,10);not null;default:0" json:"pnlPct"`

	ExpiresAt *time.Time `gorm:"type:timestamptz" json:"expiresAt,omitempty"`

	// Trader this position was copied from. Empty means self-directed.
	CopiedFrom string `gorm:"type:varchar(150);index" json:"copiedFrom,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
}

func (Position) TableName() string {
	return "positions"
}
