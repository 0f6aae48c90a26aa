package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"polyfolio/internal/models"
)

// Repository is the storage contract the reconciliation engine and the read
// API depend on. Snapshots and events are append-only; there is no update or
// delete surface.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// SaveSnapshotWithPositions persists the snapshot and its positions
	// atomically and returns the snapshot id.
	SaveSnapshotWithPositions(ctx context.Context, snap *models.PortfolioSnapshot, positions []models.Position) (uint64, error)

	// FindSnapshotNear reports whether a persisted snapshot exists within the
	// symmetric tolerance window around ts.
	FindSnapshotNear(ctx context.Context, ts time.Time, tolerance time.Duration) (bool, error)

	GetMostRecentSnapshot(ctx context.Context) (*models.PortfolioSnapshot, error)
	GetSnapshotByID(ctx context.Context, id uint64) (*models.PortfolioSnapshot, error)
	ListPortfolioSnapshots(ctx context.Context, params ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error)
	CountPortfolioSnapshots(ctx context.Context, params ListPortfolioSnapshotsParams) (int64, error)

	ListPositionsBySnapshotID(ctx context.Context, snapshotID uint64) ([]models.Position, error)

	// GetDistinctCopiedFrom returns the distinct non-empty copied-from trader
	// names among the snapshot's positions.
	GetDistinctCopiedFrom(ctx context.Context, snapshotID uint64) ([]string, error)

	AppendCopyTradingEvent(ctx context.Context, item *models.CopyTradingEvent) (uint64, error)
	ListCopyTradingEvents(ctx context.Context, params ListCopyTradingEventsParams) ([]models.CopyTradingEvent, error)
	CountCopyTradingEvents(ctx context.Context, params ListCopyTradingEventsParams) (int64, error)

	InsertRawMessage(ctx context.Context, item *models.RawMessage) error
	HasRawMessage(ctx context.Context, chatID int64, messageID int) (bool, error)
}

type ListPortfolioSnapshotsParams struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	Asc    bool
}

type ListCopyTradingEventsParams struct {
	Limit      int
	Offset     int
	EventType  *string
	TraderName *string
	Since      *time.Time
	Asc        bool
}
