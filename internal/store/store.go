// Package store persists completed backtest run results in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
	"github.com/bikeshrana/pi5-trading-system-go/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            UUID PRIMARY KEY,
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ,
	stats         JSONB,
	equity_curve  JSONB,
	error         TEXT
);
`

// Status values a run can occupy across its lifecycle.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store wraps a PostgreSQL connection pool holding run results.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New creates a connection pool per cfg, applies the results schema, and
// verifies connectivity.
func New(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLife

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connecting to results store")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping results store: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply results schema: %w", err)
	}

	return &Store{pool: pool, logger: logger.With().Str("component", "store").Logger()}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Health reports whether the store is reachable.
func (s *Store) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateRun inserts a new run row in the running state.
func (s *Store) CreateRun(ctx context.Context, runID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status) VALUES ($1, $2)`,
		runID, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun marks a run completed and stores its results.
func (s *Store) CompleteRun(ctx context.Context, runID string, result backtest.Result) error {
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	curveJSON, err := json.Marshal(result.EquityCurve)
	if err != nil {
		return fmt.Errorf("failed to marshal equity curve: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE runs SET status = $2, completed_at = $3, stats = $4, equity_curve = $5 WHERE id = $1`,
		runID, StatusCompleted, time.Now(), statsJSON, curveJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// FailRun marks a run failed and records the error that caused it.
func (s *Store) FailRun(ctx context.Context, runID string, runErr error) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $2, completed_at = $3, error = $4 WHERE id = $1`,
		runID, StatusFailed, time.Now(), runErr.Error(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run failure: %w", err)
	}
	return nil
}

// RunRecord is a run's persisted state as returned to API callers.
type RunRecord struct {
	ID          string               `json:"id"`
	Status      string               `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Stats       *backtest.PerformanceStats `json:"stats,omitempty"`
	EquityCurve []backtest.EquityPoint    `json:"equity_curve,omitempty"`
	Error       *string              `json:"error,omitempty"`
}

// GetRun fetches a run's current record by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, created_at, completed_at, stats, equity_curve, error FROM runs WHERE id = $1`,
		runID,
	)

	var (
		rec       RunRecord
		statsRaw  []byte
		curveRaw  []byte
	)
	if err := row.Scan(&rec.ID, &rec.Status, &rec.CreatedAt, &rec.CompletedAt, &statsRaw, &curveRaw, &rec.Error); err != nil {
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}

	if len(statsRaw) > 0 {
		var stats backtest.PerformanceStats
		if err := json.Unmarshal(statsRaw, &stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
		rec.Stats = &stats
	}
	if len(curveRaw) > 0 {
		if err := json.Unmarshal(curveRaw, &rec.EquityCurve); err != nil {
			return nil, fmt.Errorf("failed to unmarshal equity curve: %w", err)
		}
	}

	return &rec, nil
}
