package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TickWatch/internal/domain/models"
	"TickWatch/internal/domain/repository"
	applogger "TickWatch/pkg/logger"
)

// ClickHouseStore implements TickStore and SignalStore on ClickHouse.
// MergeTree has no unique constraints, so duplicate detection is an
// existence check before insert; the pipeline is the only writer, which
// makes check-then-insert safe.
type ClickHouseStore struct {
	db        *sql.DB
	tickTable string
	sigTable  string
	l         *applogger.Logger
}

// NewClickHouseStore creates ClickHouse-backed storage.
func NewClickHouseStore(db *sql.DB, tickTable, sigTable string) *ClickHouseStore {
	return &ClickHouseStore{db: db, tickTable: tickTable, sigTable: sigTable}
}

// SetLogger injects a structured logger.
func (s *ClickHouseStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg/clickhouse
}

func (s *ClickHouseStore) InsertTick(ctx context.Context, t *models.Tick) error {
	var exists uint8
	q := fmt.Sprintf("SELECT 1 FROM %s WHERE symbol = ? AND ts = ? LIMIT 1", s.tickTable)
	err := s.db.QueryRowContext(ctx, q, t.Symbol, t.Timestamp.UTC()).Scan(&exists)
	switch {
	case err == nil:
		return repository.ErrDuplicateTick
	case err != sql.ErrNoRows:
		return fmt.Errorf("tick exists check: %w", err)
	}

	q = fmt.Sprintf("INSERT INTO %s (symbol, ts, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)", s.tickTable)
	if _, err := s.db.ExecContext(ctx, q,
		t.Symbol, t.Timestamp.UTC(), t.Open, t.High, t.Low, t.Close, t.Volume,
	); err != nil {
		return fmt.Errorf("insert tick: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) GetRecent(ctx context.Context, symbol string, n int) ([]models.Tick, error) {
	start := time.Now()
	q := fmt.Sprintf("SELECT symbol, ts, open, high, low, close, volume FROM %s WHERE symbol = ? ORDER BY ts DESC LIMIT ?", s.tickTable)
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_recent query error",
				applogger.String("symbol", symbol),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get recent: %w", err)
	}
	defer rows.Close()

	ticks, err := scanTicks(rows)
	if err != nil {
		return nil, err
	}
	// query is newest-first; callers expect oldest-first
	for i, j := 0, len(ticks)-1; i < j; i, j = i+1, j-1 {
		ticks[i], ticks[j] = ticks[j], ticks[i]
	}
	if s.l != nil {
		s.l.Debug("clickhouse get_recent ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(ticks)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return ticks, nil
}

func (s *ClickHouseStore) GetRange(ctx context.Context, symbol string, start, end time.Time) ([]models.Tick, error) {
	q := fmt.Sprintf("SELECT symbol, ts, open, high, low, close, volume FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts ASC", s.tickTable)
	rows, err := s.db.QueryContext(ctx, q, symbol, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get range: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

func (s *ClickHouseStore) GetSymbols(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT symbol FROM %s ORDER BY symbol", s.tickTable)
	rows, err := s.db.QueryContext(ctx, q)
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

func (s *ClickHouseStore) InsertSignal(ctx context.Context, sig *models.Signal) error {
	q := fmt.Sprintf("INSERT INTO %s (kind, symbol, ts, close, volume, metric, message) VALUES (?, ?, ?, ?, ?, ?, ?)", s.sigTable)
	if _, err := s.db.ExecContext(ctx, q,
		string(sig.Kind), sig.Symbol, sig.Timestamp.UTC(), sig.Tick.Close, sig.Tick.Volume, sig.Metric, sig.Message,
	); err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) GetSignals(ctx context.Context, symbol string, kind models.SignalKind, n int) ([]models.Signal, error) {
	q := fmt.Sprintf("SELECT kind, symbol, ts, close, volume, metric, message FROM %s WHERE 1=1", s.sigTable)
	args := make([]interface{}, 0, 3)
	if symbol != "" {
		q += " AND symbol = ?"
		args = append(args, symbol)
	}
	if kind != "" {
		q += " AND kind = ?"
		args = append(args, string(kind))
	}
	q += " ORDER BY ts DESC LIMIT ?"
	args = append(args, n)

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

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStore) Close() error {
	return s.db.Close()
}

func scanTicks(rows *sql.Rows) ([]models.Tick, error) {
	out := make([]models.Tick, 0, 128)
	for rows.Next() {
		var t models.Tick
		if err := rows.Scan(&t.Symbol, &t.Timestamp, &t.Open, &t.High, &t.Low, &t.Close, &t.Volume); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var (
	_ repository.TickStore   = (*ClickHouseStore)(nil)
	_ repository.SignalStore = (*ClickHouseStore)(nil)
)
