package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeRepository and ports.PositionRepository
// using SQLite. It is an export sink for reporting; the trading loop treats
// its failures as non-fatal.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository: %w", ports.ErrConfigurationError)
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/multistratbot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the engine and ad-hoc readers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at %q: %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at %q: %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// The Go driver benefits from a single connection; SQLite serializes
	// writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "SQLite export database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trade_history (
		trade_key   TEXT PRIMARY KEY,
		symbol      TEXT NOT NULL,
		strategy    TEXT NOT NULL,
		entry_time  TIMESTAMP NOT NULL,
		exit_time   TIMESTAMP NOT NULL,
		entry_price REAL NOT NULL,
		exit_price  REAL NOT NULL,
		size        REAL NOT NULL,
		pnl         REAL NOT NULL,
		stop_loss   REAL DEFAULT NULL,
		take_profit REAL DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trade_history_exit_time ON trade_history (exit_time);
	CREATE INDEX IF NOT EXISTS idx_trade_history_strategy ON trade_history (strategy);

	CREATE TABLE IF NOT EXISTS position_snapshots (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id    TEXT NOT NULL,
		taken_at    TIMESTAMP NOT NULL,
		symbol      TEXT NOT NULL,
		direction   TEXT NOT NULL,
		volume      REAL NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss   REAL DEFAULT NULL,
		take_profit REAL DEFAULT NULL,
		strategy    TEXT NOT NULL,
		open_time   TIMESTAMP NOT NULL,
		magic       INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_position_snapshots_cycle ON position_snapshots (cycle_id);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveTrade persists one closed trade. The trade key is the primary key, so
// re-exporting the same trailing window every cycle inserts each trade once.
func (r *Repository) SaveTrade(ctx context.Context, trade domain.TradeRecord) error {
	const query = `
	INSERT OR IGNORE INTO trade_history
		(trade_key, symbol, strategy, entry_time, exit_time, entry_price, exit_price, size, pnl, stop_loss, take_profit)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		trade.Key(), trade.Symbol, trade.StrategyName,
		trade.EntryTime, trade.ExitTime,
		trade.EntryPrice, trade.ExitPrice, trade.Size, trade.PnL,
		nullablePrice(trade.StopLoss), nullablePrice(trade.TakeProfit),
	)
	if err != nil {
		return fmt.Errorf("failed to save trade %q: %w: %w", trade.Key(), ports.ErrQueryFailed, err)
	}
	return nil
}

// RecentTrades returns the most recently closed trades, newest first.
func (r *Repository) RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	const query = `
	SELECT symbol, strategy, entry_time, exit_time, entry_price, exit_price, size, pnl, stop_loss, take_profit
	FROM trade_history
	ORDER BY exit_time DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent trades: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var stopLoss, takeProfit sql.NullFloat64
		if err := rows.Scan(
			&t.Symbol, &t.StrategyName, &t.EntryTime, &t.ExitTime,
			&t.EntryPrice, &t.ExitPrice, &t.Size, &t.PnL,
			&stopLoss, &takeProfit,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w: %w", ports.ErrQueryFailed, err)
		}
		if stopLoss.Valid {
			v := stopLoss.Float64
			t.StopLoss = &v
		}
		if takeProfit.Valid {
			v := takeProfit.Float64
			t.TakeProfit = &v
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

// SnapshotPositions replaces the stored open-position snapshot for a cycle.
func (r *Repository) SnapshotPositions(ctx context.Context, cycleID string, positions []domain.Position) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w: %w", ports.ErrDBConnection, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM position_snapshots WHERE cycle_id = ?`, cycleID); err != nil {
		return fmt.Errorf("failed to clear snapshot for cycle %q: %w: %w", cycleID, ports.ErrQueryFailed, err)
	}

	const insert = `
	INSERT INTO position_snapshots
		(cycle_id, taken_at, symbol, direction, volume, entry_price, stop_loss, take_profit, strategy, open_time, magic)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	for _, p := range positions {
		if _, err := tx.ExecContext(ctx, insert,
			cycleID, now, p.Symbol, string(p.Direction), p.Volume, p.EntryPrice,
			nullablePrice(p.StopLoss), nullablePrice(p.TakeProfit),
			p.StrategyName, p.OpenTime, p.Magic,
		); err != nil {
			return fmt.Errorf("failed to insert position snapshot: %w: %w", ports.ErrQueryFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot for cycle %q: %w: %w", cycleID, ports.ErrQueryFailed, err)
	}
	return nil
}

func nullablePrice(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
