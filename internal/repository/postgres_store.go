package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"TickWatch/internal/domain/models"
	"TickWatch/internal/domain/repository"
)

// PostgresStore implements TickStore and SignalStore on PostgreSQL.
// The primary key on (symbol, ts) backs ErrDuplicateTick directly.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a Postgres connection pool from a DSN.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			symbol TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (symbol, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			symbol TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			metric DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_ts ON signals (symbol, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) InsertTick(ctx context.Context, t *models.Tick) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ticks (symbol, ts, open, high, low, close, volume) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.Symbol, t.Timestamp.UTC(), t.Open, t.High, t.Low, t.Close, t.Volume,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return repository.ErrDuplicateTick
		}
		return fmt.Errorf("insert tick: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecent(ctx context.Context, symbol string, n int) ([]models.Tick, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, ts, open, high, low, close, volume FROM
		   (SELECT * FROM ticks WHERE symbol = $1 ORDER BY ts DESC LIMIT $2) t
		 ORDER BY ts ASC`,
		symbol, n,
	)
	if err != nil {
		return nil, fmt.Errorf("get recent: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

func (s *PostgresStore) GetRange(ctx context.Context, symbol string, start, end time.Time) ([]models.Tick, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, ts, open, high, low, close, volume FROM ticks
		 WHERE symbol = $1 AND ts >= $2 AND ts <= $3 ORDER BY ts ASC`,
		symbol, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("get range: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

func (s *PostgresStore) GetSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM ticks ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("get symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertSignal(ctx context.Context, sig *models.Signal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (kind, symbol, ts, close, volume, metric, message) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(sig.Kind), sig.Symbol, sig.Timestamp.UTC(), sig.Tick.Close, sig.Tick.Volume, sig.Metric, sig.Message,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSignals(ctx context.Context, symbol string, kind models.SignalKind, n int) ([]models.Signal, error) {
	q := `SELECT kind, symbol, ts, close, volume, metric, message FROM signals WHERE TRUE`
	args := make([]interface{}, 0, 3)
	if symbol != "" {
		args = append(args, symbol)
		q += fmt.Sprintf(" AND symbol = $%d", len(args))
	}
	if kind != "" {
		args = append(args, string(kind))
		q += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	args = append(args, n)
	q += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		var sig models.Signal
		var kindStr string
		if err := rows.Scan(&kindStr, &sig.Symbol, &sig.Timestamp, &sig.Tick.Close, &sig.Tick.Volume, &sig.Metric, &sig.Message); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Kind = models.SignalKind(kindStr)
		sig.Tick.Symbol = sig.Symbol
		sig.Tick.Timestamp = sig.Timestamp
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var (
	_ repository.TickStore   = (*PostgresStore)(nil)
	_ repository.SignalStore = (*PostgresStore)(nil)
)
