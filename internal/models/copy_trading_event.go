package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventCopierAdded     = "copier_added"
	EventCopierRemoved   = "copier_removed"
	EventSettingsChanged = "settings_changed"
)

// CopyTradingEvent records a change in the set of copied traders between two
// consecutive reconciliation passes. Append-only.
type CopyTradingEvent struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OccurredAt time.Time `gorm:"type:timestamptz;not null;index" json:"occurredAt"`

	EventType   string `gorm:"type:varchar(30);not null;index" json:"eventType"`
	Description string `gorm:"type:text;not null" json:"description"`
	TraderName  string `gorm:"type:varchar(150)" json:"traderName,omitempty"`

	Details datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
}

func (CopyTradingEvent) TableName() string {
	return "copy_trading_events"
}
