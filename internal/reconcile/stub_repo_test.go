package reconcile

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"polyfolio/internal/models"
	"polyfolio/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
type stubRepo struct {
	snapshots []models.PortfolioSnapshot
	positions map[uint64][]models.Position
	events    []models.CopyTradingEvent
	raw       []models.RawMessage
	nextID    uint64

	failSave   bool
	failAppend bool
	failRead   bool
}

var errStub = errors.New("stub storage failure")

func newStubRepo() *stubRepo {
	return &stubRepo{positions: map[uint64][]models.Position{}, nextID: 1}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) SaveSnapshotWithPositions(ctx context.Context, snap *models.PortfolioSnapshot, positions []models.Position) (uint64, error) {
	if s.failSave {
		return 0, errStub
	}
	snap.ID = s.nextID
	s.nextID++
	s.snapshots = append(s.snapshots, *snap)
	for i := range positions {
		positions[i].SnapshotID = snap.ID
	}
	s.positions[snap.ID] = append([]models.Position{}, positions...)
	return snap.ID, nil
}

func (s *stubRepo) FindSnapshotNear(ctx context.Context, ts time.Time, tolerance time.Duration) (bool, error) {
	if s.failRead {
		return false, errStub
	}
	for _, snap := range s.snapshots {
		d := snap.SnapshotAt.Sub(ts)
		if d < 0 {
			d = -d
		}
		if d <= tolerance {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) GetMostRecentSnapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	if s.failRead {
		return nil, errStub
	}
	if len(s.snapshots) == 0 {
		return nil, nil
	}
	latest := s.snapshots[0]
	for _, snap := range s.snapshots[1:] {
		if snap.SnapshotAt.After(latest.SnapshotAt) {
			latest = snap
		}
	}
	return &latest, nil
}

func (s *stubRepo) GetSnapshotByID(ctx context.Context, id uint64) (*models.PortfolioSnapshot, error) {
	for _, snap := range s.snapshots {
		if snap.ID == id {
			out := snap
			return &out, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListPortfolioSnapshots(ctx context.Context, params repository.ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	return s.snapshots, nil
}

func (s *stubRepo) CountPortfolioSnapshots(ctx context.Context, params repository.ListPortfolioSnapshotsParams) (int64, error) {
	return int64(len(s.snapshots)), nil
}

func (s *stubRepo) ListPositionsBySnapshotID(ctx context.Context, snapshotID uint64) ([]models.Position, error) {
	return s.positions[snapshotID], nil
}

func (s *stubRepo) GetDistinctCopiedFrom(ctx context.Context, snapshotID uint64) ([]string, error) {
	if s.failRead {
		return nil, errStub
	}
	seen := map[string]struct{}{}
	var out []string
	for _, p := range s.positions[snapshotID] {
		if p.CopiedFrom == "" {
			continue
		}
		if _, ok := seen[p.CopiedFrom]; ok {
			continue
		}
		seen[p.CopiedFrom] = struct{}{}
		out = append(out, p.CopiedFrom)
	}
	return out, nil
}

func (s *stubRepo) AppendCopyTradingEvent(ctx context.Context, item *models.CopyTradingEvent) (uint64, error) {
	if s.failAppend {
		return 0, errStub
	}
	item.ID = s.nextID
	s.nextID++
	s.events = append(s.events, *item)
	return item.ID, nil
}

func (s *stubRepo) ListCopyTradingEvents(ctx context.Context, params repository.ListCopyTradingEventsParams) ([]models.CopyTradingEvent, error) {
	return s.events, nil
}

func (s *stubRepo) CountCopyTradingEvents(ctx context.Context, params repository.ListCopyTradingEventsParams) (int64, error) {
	return int64(len(s.events)), nil
}

func (s *stubRepo) InsertRawMessage(ctx context.Context, item *models.RawMessage) error {
	s.raw = append(s.raw, *item)
	return nil
}

func (s *stubRepo) HasRawMessage(ctx context.Context, chatID int64, messageID int) (bool, error) {
	for _, m := range s.raw {
		if m.ChatID == chatID && m.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}
