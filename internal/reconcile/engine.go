// Package reconcile turns parsed snapshots into a deduplicated persisted
// history and an append-only log of copy-trader membership changes.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"polyfolio/internal/models"
	"polyfolio/internal/repository"
)

// DefaultTolerance is the symmetric window within which two snapshots are
// considered the same logical observation during backfill.
const DefaultTolerance = 5 * time.Minute

// Engine holds the last known copied-trader set across passes. Its methods
// are not safe for concurrent use: the driver must keep at most one pass in
// flight at a time.
type Engine struct {
	repo      repository.Repository
	logger    *zap.Logger
	tolerance time.Duration

	seeded      bool
	lastTraders map[string]struct{}
}

// Result of one reconciliation pass.
type Result struct {
	SnapshotID uint64
	Events     []models.CopyTradingEvent
	// Skipped is set by ReconcileHistorical when the candidate fell inside
	// the tolerance window of an already persisted snapshot.
	Skipped bool
}

func NewEngine(repo repository.Repository, logger *zap.Logger, tolerance time.Duration) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Engine{
		repo:        repo,
		logger:      logger,
		tolerance:   tolerance,
		lastTraders: map[string]struct{}{},
	}
}

// Initialize seeds the trader set from the most recent persisted snapshot.
// Idempotent: once seeded, later calls are no-ops. A storage error leaves the
// engine unseeded so a retry starts clean.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.seeded {
		return nil
	}
	latest, err := e.repo.GetMostRecentSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("seed trader state: %w", err)
	}
	if latest != nil {
		names, err := e.repo.GetDistinctCopiedFrom(ctx, latest.ID)
		if err != nil {
			return fmt.Errorf("seed trader state: %w", err)
		}
		for _, n := range names {
			e.lastTraders[n] = struct{}{}
		}
	}
	e.seeded = true
	return nil
}

// Reconcile persists the snapshot with its positions, then diffs the copied
// trader set against the last pass and appends add/remove events. Storage
// errors on the snapshot write propagate with the trader set untouched; a
// failed event append is logged per trader and does not block the others.
func (e *Engine) Reconcile(ctx context.Context, snap models.PortfolioSnapshot, positions []models.Position) (Result, error) {
	id, err := e.repo.SaveSnapshotWithPositions(ctx, &snap, positions)
	if err != nil {
		return Result{}, err
	}

	current := traderSet(snap, positions)
	events := e.emitTraderChanges(ctx, snap.SnapshotAt, id, current)
	e.lastTraders = current

	return Result{SnapshotID: id, Events: events}, nil
}

// ReconcileHistorical is Reconcile with duplicate suppression, for bulk
// backfill of past messages. The window check is wall-clock distance against
// the store, not ordering against the previous message, because backfill
// order is not guaranteed monotonic with respect to existing rows.
func (e *Engine) ReconcileHistorical(ctx context.Context, snap models.PortfolioSnapshot, positions []models.Position) (Result, error) {
	dup, err := e.repo.FindSnapshotNear(ctx, snap.SnapshotAt, e.tolerance)
	if err != nil {
		return Result{}, err
	}
	if dup {
		return Result{Skipped: true}, nil
	}
	return e.Reconcile(ctx, snap, positions)
}

// emitTraderChanges appends events for the set difference. An empty previous
// set establishes baseline silently: a fresh process must not flood the log
// with "added" events for traders it simply had not seen yet.
func (e *Engine) emitTraderChanges(ctx context.Context, at time.Time, snapshotID uint64, current map[string]struct{}) []models.CopyTradingEvent {
	if len(e.lastTraders) == 0 {
		return nil
	}

	var emitted []models.CopyTradingEvent
	for trader := range current {
		if _, ok := e.lastTraders[trader]; !ok {
			emitted = e.appendEvent(ctx, emitted, models.CopyTradingEvent{
				OccurredAt:  at,
				EventType:   models.EventCopierAdded,
				Description: fmt.Sprintf("Started copying %s", trader),
				TraderName:  trader,
				Details:     eventDetails(snapshotID),
			})
		}
	}
	for trader := range e.lastTraders {
		if _, ok := current[trader]; !ok {
			emitted = e.appendEvent(ctx, emitted, models.CopyTradingEvent{
				OccurredAt:  at,
				EventType:   models.EventCopierRemoved,
				Description: fmt.Sprintf("Stopped copying %s", trader),
				TraderName:  trader,
				Details:     eventDetails(snapshotID),
			})
		}
	}
	return emitted
}

func (e *Engine) appendEvent(ctx context.Context, emitted []models.CopyTradingEvent, ev models.CopyTradingEvent) []models.CopyTradingEvent {
	if _, err := e.repo.AppendCopyTradingEvent(ctx, &ev); err != nil {
		e.logger.Warn("copy trading event append failed",
			zap.String("event_type", ev.EventType),
			zap.String("trader", ev.TraderName),
			zap.Error(err),
		)
		return emitted
	}
	return append(emitted, ev)
}

func eventDetails(snapshotID uint64) datatypes.JSON {
	b, err := json.Marshal(map[string]any{"snapshotId": snapshotID})
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// traderSet builds the diffable set from the snapshot's distinct copied
// traders. snap is a copy; attaching the positions stays local.
func traderSet(snap models.PortfolioSnapshot, positions []models.Position) map[string]struct{} {
	snap.Positions = positions
	set := map[string]struct{}{}
	for _, name := range snap.CopiedTraders() {
		set[name] = struct{}{}
	}
	return set
}
