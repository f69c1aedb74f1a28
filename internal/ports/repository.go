package ports

import (
	"context"

	"multiStratBot/internal/domain"
)

// TradeRepository stores closed trade records for reporting. The engine never
// blocks a cycle on its availability: storage failures are logged and skipped.
type TradeRepository interface {
	// SaveTrade persists a closed trade. Saving the same trade key twice is a
	// no-op, so the engine can export every cycle's window without
	// deduplicating first.
	SaveTrade(ctx context.Context, trade domain.TradeRecord) error
	// RecentTrades returns the most recent trades up to limit.
	RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)
}

// PositionRepository stores point-in-time open position snapshots.
type PositionRepository interface {
	// SnapshotPositions replaces the stored snapshot for the given cycle.
	SnapshotPositions(ctx context.Context, cycleID string, positions []domain.Position) error
}
