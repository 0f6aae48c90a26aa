package models

import "time"

// RawMessage keeps the original chat text of every portfolio report we saw,
// so a message the parser degraded on can be re-parsed after a parser fix.
// (MessageID, ChatID) is unique, which also makes backfill re-runs idempotent
// at the transport level.
type RawMessage struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID    int64  `gorm:"not null;uniqueIndex:idx_raw_messages_chat_msg" json:"chatId"`
	MessageID int    `gorm:"not null;uniqueIndex:idx_raw_messages_chat_msg" json:"messageId"`

	Text   string    `gorm:"type:text;not null" json:"text"`
	SentAt time.Time `gorm:"type:timestamptz;not null;index" json:"sentAt"`

	// Whether parsing produced at least one populated summary field.
	ParsedOK bool `gorm:"column:parsed_ok;not null;default:false" json:"parsedOk"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
}

func (RawMessage) TableName() string {
	return "raw_messages"
}
