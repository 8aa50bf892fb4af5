package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"patterndraw/pkg/model"
)

// SeriesInfo describes one cached candle series
type SeriesInfo struct {
	Symbol    string
	Interval  string
	Period    string
	Candles   int
	FetchedAt time.Time
}

// CandleStore persists candle series to a SQLite database.
type CandleStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(dbPath string) (*CandleStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so the server can read while the warmer writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &CandleStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[STORE] sqlite candle store opened: %s", dbPath)
	return s, nil
}

func (s *CandleStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS series (
			symbol     TEXT NOT NULL,
			interval   TEXT NOT NULL,
			period     TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, interval, period)
		)`,
		`CREATE TABLE IF NOT EXISTS candles (
			symbol   TEXT NOT NULL,
			interval TEXT NOT NULL,
			period   TEXT NOT NULL,
			time     INTEGER NOT NULL,
			open     REAL,
			high     REAL,
			low      REAL,
			close    REAL,
			volume   INTEGER,
			PRIMARY KEY (symbol, interval, period, time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_series_fetched ON series(fetched_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec %q: %w", q[:40], err)
		}
	}
	return nil
}

// SaveCandles replaces the stored series and stamps it with the current time
func (s *CandleStore) SaveCandles(ctx context.Context, symbol, interval, period string, candles []model.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM candles WHERE symbol = ? AND interval = ? AND period = ?`,
		symbol, interval, period); err != nil {
		return fmt.Errorf("clear candles: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO candles (symbol, interval, period, time, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, interval, period, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("insert candle %d: %w", c.Time, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO series (symbol, interval, period, fetched_at) VALUES (?, ?, ?, ?)`,
		symbol, interval, period, time.Now().Unix()); err != nil {
		return fmt.Errorf("stamp series: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadCandles returns the stored series oldest first and when it was fetched.
// A missing series yields no candles and a zero time.
func (s *CandleStore) LoadCandles(ctx context.Context, symbol, interval, period string) ([]model.Candle, time.Time, error) {
	var fetched int64
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM series WHERE symbol = ? AND interval = ? AND period = ?`,
		symbol, interval, period).Scan(&fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query series: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT time, open, high, low, close, volume FROM candles
		 WHERE symbol = ? AND interval = ? AND period = ? ORDER BY time`,
		symbol, interval, period)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	return candles, time.Unix(fetched, 0), nil
}

// Series lists every cached series, most recently fetched first
func (s *CandleStore) Series(ctx context.Context) ([]SeriesInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.symbol, s.interval, s.period, s.fetched_at, COUNT(c.time)
		 FROM series s LEFT JOIN candles c
		   ON c.symbol = s.symbol AND c.interval = s.interval AND c.period = s.period
		 GROUP BY s.symbol, s.interval, s.period, s.fetched_at
		 ORDER BY s.fetched_at DESC, s.symbol`)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	var out []SeriesInfo
	for rows.Next() {
		var info SeriesInfo
		var fetched int64
		if err := rows.Scan(&info.Symbol, &info.Interval, &info.Period, &fetched, &info.Candles); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		info.FetchedAt = time.Unix(fetched, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Prune deletes series fetched before cutoff and returns how many were removed
func (s *CandleStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM candles WHERE (symbol, interval, period) IN
		 (SELECT symbol, interval, period FROM series WHERE fetched_at < ?)`, cutoff.Unix()); err != nil {
		return 0, fmt.Errorf("prune candles: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM series WHERE fetched_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune series: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	if n > 0 {
		log.Printf("[STORE] pruned %d stale series", n)
	}
	return int(n), nil
}

// Close closes the database
func (s *CandleStore) Close() error {
	return s.db.Close()
}
