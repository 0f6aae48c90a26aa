package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"polyfolio/internal/models"
	"polyfolio/internal/parser"
	"polyfolio/internal/reconcile"
	"polyfolio/internal/repository"
	"polyfolio/internal/stream"
	"polyfolio/internal/telegram"
)

// ErrRefreshInFlight is returned when a pass is already running. The engine's
// trader-set state is not safe under overlapping passes, so the service is
// the single driver that serializes them.
var ErrRefreshInFlight = errors.New("refresh already in flight")

// PortfolioSource is the transport contract: the bot's latest substantive
// reply to the portfolio command, and a bounded pre-filtered history.
type PortfolioSource interface {
	RequestPortfolio(ctx context.Context) (telegram.Message, error)
	History(ctx context.Context, limit int) ([]telegram.Message, error)
}

type RefreshService struct {
	Source PortfolioSource
	Engine *reconcile.Engine
	Repo   repository.Repository
	Hub    *stream.Hub
	Logger *zap.Logger

	// BackfillLimit caps how many historical messages one backfill consumes.
	BackfillLimit int

	mu sync.Mutex
}

// Refresh runs one command → reply → parse → reconcile pass. Only one pass
// (refresh or backfill) runs at a time; a concurrent trigger gets
// ErrRefreshInFlight instead of queueing.
func (s *RefreshService) Refresh(ctx context.Context) (reconcile.Result, error) {
	if !s.mu.TryLock() {
		return reconcile.Result{}, ErrRefreshInFlight
	}
	defer s.mu.Unlock()

	if err := s.Engine.Initialize(ctx); err != nil {
		return reconcile.Result{}, err
	}

	msg, err := s.Source.RequestPortfolio(ctx)
	if err != nil {
		return reconcile.Result{}, err
	}

	res := parser.Parse(msg.Text, time.Time{})
	s.storeRaw(ctx, msg, res)

	out, err := s.Engine.Reconcile(ctx, res.Snapshot, res.Positions)
	if err != nil {
		return reconcile.Result{}, err
	}
	s.publish(out.Events)
	s.log().Info("refresh complete",
		zap.Uint64("snapshot_id", out.SnapshotID),
		zap.Int("positions", len(res.Positions)),
		zap.Int("events", len(out.Events)),
	)
	return out, nil
}

// BackfillResult mirrors the copy-trader accounting style: how many messages
// became snapshots, were window-duplicates, or failed.
type BackfillResult struct {
	Fetched  int `json:"fetched"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Backfill ingests historical portfolio messages oldest-first so the trader
// set evolves in true chronological order and emitted events are temporally
// meaningful. Per-message reconcile failures are counted, not fatal.
func (s *RefreshService) Backfill(ctx context.Context) (BackfillResult, error) {
	if !s.mu.TryLock() {
		return BackfillResult{}, ErrRefreshInFlight
	}
	defer s.mu.Unlock()

	if err := s.Engine.Initialize(ctx); err != nil {
		return BackfillResult{}, err
	}

	limit := s.BackfillLimit
	if limit <= 0 {
		limit = 200
	}
	msgs, err := s.Source.History(ctx, limit)
	if err != nil {
		return BackfillResult{}, err
	}
	sortOldestFirst(msgs)

	out := BackfillResult{Fetched: len(msgs)}
	for _, msg := range msgs {
		if s.seenRaw(ctx, msg) {
			out.Skipped++
			continue
		}
		res := parser.Parse(msg.Text, msg.SentAt)
		s.storeRaw(ctx, msg, res)

		r, err := s.Engine.ReconcileHistorical(ctx, res.Snapshot, res.Positions)
		if err != nil {
			out.Failed++
			s.log().Warn("backfill reconcile failed",
				zap.Int("message_id", msg.ID),
				zap.Time("sent_at", msg.SentAt),
				zap.Error(err),
			)
			continue
		}
		if r.Skipped {
			out.Skipped++
			continue
		}
		out.Imported++
		s.publish(r.Events)
	}
	s.log().Info("backfill complete",
		zap.Int("fetched", out.Fetched),
		zap.Int("imported", out.Imported),
		zap.Int("skipped", out.Skipped),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

// seenRaw reports whether this exact chat message was already ingested,
// making backfill re-runs idempotent before the snapshot-window check. A
// lookup error just means no fast path; the window dedup still holds.
func (s *RefreshService) seenRaw(ctx context.Context, msg telegram.Message) bool {
	if s.Repo == nil {
		return false
	}
	seen, err := s.Repo.HasRawMessage(ctx, msg.ChatID, msg.ID)
	if err != nil {
		s.log().Warn("raw message lookup failed", zap.Int("message_id", msg.ID), zap.Error(err))
		return false
	}
	return seen
}

// storeRaw keeps the original text for later re-parsing. Failures here are
// logged only; raw retention never blocks ingestion.
func (s *RefreshService) storeRaw(ctx context.Context, msg telegram.Message, res parser.Result) {
	if s.Repo == nil {
		return
	}
	err := s.Repo.InsertRawMessage(ctx, &models.RawMessage{
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		Text:      msg.Text,
		SentAt:    msg.SentAt,
		ParsedOK:  res.Populated(),
	})
	if err != nil {
		s.log().Warn("raw message insert failed", zap.Int("message_id", msg.ID), zap.Error(err))
	}
}

func (s *RefreshService) publish(events []models.CopyTradingEvent) {
	if s.Hub == nil {
		return
	}
	for _, ev := range events {
		s.Hub.Publish(ev)
	}
}

func (s *RefreshService) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func sortOldestFirst(msgs []telegram.Message) {
	// History usually arrives in update order already, but the contract is
	// chronological, so enforce it.
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
}
