package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"polyfolio/internal/models"
	"polyfolio/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) SaveSnapshotWithPositions(ctx context.Context, snap *models.PortfolioSnapshot, positions []models.Position) (uint64, error) {
	if s == nil || s.db == nil || snap == nil {
		return 0, nil
	}
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Omit("Positions").Create(snap).Error; err != nil {
			return err
		}
		if len(positions) == 0 {
			return nil
		}
		for i := range positions {
			positions[i].SnapshotID = snap.ID
		}
		return tx.Create(&positions).Error
	})
	if err != nil {
		return 0, err
	}
	return snap.ID, nil
}

func (s *Store) FindSnapshotNear(ctx context.Context, ts time.Time, tolerance time.Duration) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	if tolerance < 0 {
		tolerance = -tolerance
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PortfolioSnapshot{}).
		Where("snapshot_at >= ?", ts.Add(-tolerance)).
		Where("snapshot_at <= ?", ts.Add(tolerance)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) GetMostRecentSnapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PortfolioSnapshot
	err := s.db.WithContext(ctx).
		Order("snapshot_at DESC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetSnapshotByID(ctx context.Context, id uint64) (*models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PortfolioSnapshot
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPortfolioSnapshots(ctx context.Context, params repository.ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PortfolioSnapshot{})
	query = applySnapshotFilters(query, params)
	order := "snapshot_at DESC"
	if params.Asc {
		order = "snapshot_at ASC"
	}
	var items []models.PortfolioSnapshot
	err := query.Order(order).
		Limit(normalizeLimit(params.Limit, 168)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPortfolioSnapshots(ctx context.Context, params repository.ListPortfolioSnapshotsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := s.db.WithContext(ctx).Model(&models.PortfolioSnapshot{})
	query = applySnapshotFilters(query, params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applySnapshotFilters(query *gorm.DB, params repository.ListPortfolioSnapshotsParams) *gorm.DB {
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("snapshot_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("snapshot_at <= ?", *params.Until)
	}
	return query
}

func (s *Store) ListPositionsBySnapshotID(ctx context.Context, snapshotID uint64) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Position
	err := s.db.WithContext(ctx).
		Where("snapshot_id = ?", snapshotID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetDistinctCopiedFrom(ctx context.Context, snapshotID uint64) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var names []string
	err := s.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("snapshot_id = ?", snapshotID).
		Where("copied_from <> ''").
		Distinct().
		Pluck("copied_from", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Store) AppendCopyTradingEvent(ctx context.Context, item *models.CopyTradingEvent) (uint64, error) {
	if s == nil || s.db == nil || item == nil {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return 0, err
	}
	return item.ID, nil
}

func (s *Store) ListCopyTradingEvents(ctx context.Context, params repository.ListCopyTradingEventsParams) ([]models.CopyTradingEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.CopyTradingEvent{})
	query = applyEventFilters(query, params)
	order := "occurred_at DESC"
	if params.Asc {
		order = "occurred_at ASC"
	}
	var items []models.CopyTradingEvent
	err := query.Order(order).
		Limit(normalizeLimit(params.Limit, 100)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountCopyTradingEvents(ctx context.Context, params repository.ListCopyTradingEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := s.db.WithContext(ctx).Model(&models.CopyTradingEvent{})
	query = applyEventFilters(query, params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyEventFilters(query *gorm.DB, params repository.ListCopyTradingEventsParams) *gorm.DB {
	if params.EventType != nil && *params.EventType != "" {
		query = query.Where("event_type = ?", *params.EventType)
	}
	if params.TraderName != nil && *params.TraderName != "" {
		query = query.Where("trader_name = ?", *params.TraderName)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("occurred_at >= ?", *params.Since)
	}
	return query
}

func (s *Store) InsertRawMessage(ctx context.Context, item *models.RawMessage) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(item).Error
}

func (s *Store) HasRawMessage(ctx context.Context, chatID int64, messageID int) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.RawMessage{}).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
