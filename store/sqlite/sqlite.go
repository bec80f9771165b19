/*
Package sqlite provides a SQLite-backed implementation of the pool
storage interfaces.

INTERFACES IMPLEMENTED:
  pool.Store:    Pool and challenger persistence
  pool.TxStore:  Atomic enrollment/recalculation transactions
  pool.Settings: Key/value configuration with static fallback

KEY TABLES:
  monthly_pools: One row per calendar period; financial record, never
                 deleted. The unique (year, month) index is what makes
                 concurrent pool creation safe: the losing writer gets
                 pool.ErrDuplicatePeriod and re-reads.
  challengers:   Enrollment and activity records, retained after the
                 pool closes for award auditing.
  settings:      Configuration values (pool_fee).

CONCURRENCY:
  Uses sync.RWMutex around the handle; WithTx holds the write lock for
  the whole transaction, so enrollment's multi-field pool mutation plus
  challenger inserts apply as a single unit with no lost updates.
  Readers take snapshots and never observe a torn record.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers
  don't block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/quitpool.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - pool/store.go: Interface definitions
  - pool/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/quitpool/challenge-engine/pool"
)

// Store implements the pool storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Monthly pools (one per calendar period, never deleted)
	CREATE TABLE IF NOT EXISTS monthly_pools (
		id TEXT PRIMARY KEY,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		pool_fee TEXT NOT NULL,
		next_challenger_num INTEGER NOT NULL,
		amount TEXT NOT NULL,
		award TEXT NOT NULL,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one pool per calendar period. Concurrent
	-- creation races resolve here; the loser re-reads the winner.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_pools_period
		ON monthly_pools(year, month);

	CREATE INDEX IF NOT EXISTS idx_pools_from_date
		ON monthly_pools(from_date);
	CREATE INDEX IF NOT EXISTS idx_pools_open
		ON monthly_pools(is_closed, to_date);

	-- Challengers (enrollment + activity records)
	CREATE TABLE IF NOT EXISTS challengers (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL REFERENCES monthly_pools(id),
		num INTEGER NOT NULL DEFAULT 0,
		appointment TEXT NOT NULL,
		fee TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		strict_ok BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_challengers_pool
		ON challengers(pool_id);
	-- Hot path: active-challenger counts for award recalculation
	CREATE INDEX IF NOT EXISTS idx_challengers_pool_active
		ON challengers(pool_id, active, strict_ok);

	-- Settings (configuration store)
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// conn abstracts *sql.DB and *sql.Tx so the same statements serve both
// direct calls and WithTx transactions.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// POOL STORE (pool.Store interface)
// =============================================================================

const poolColumns = `id, from_date, to_date, year, month, pool_fee,
	next_challenger_num, amount, award, is_closed, created_at, updated_at`

// CreatePool inserts a new pool row. The unique period index converts
// concurrent duplicate creation into pool.ErrDuplicatePeriod.
func (s *Store) CreatePool(ctx context.Context, p *pool.MonthlyPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPool(ctx, s.db, p)
}

func createPool(ctx context.Context, c conn, p *pool.MonthlyPool) error {
	query := `
		INSERT INTO monthly_pools
		(id, from_date, to_date, year, month, pool_fee, next_challenger_num,
		 amount, award, is_closed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.ExecContext(ctx, query,
		p.ID,
		p.FromDate.Format(time.RFC3339Nano),
		p.ToDate.Format(time.RFC3339Nano),
		p.Year,
		int(p.Month),
		p.PoolFee.String(),
		p.NextChallengerNum,
		p.Amount.String(),
		p.Award.String(),
		p.Closed,
		p.CreatedAt.Format(time.RFC3339Nano),
		p.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return pool.ErrDuplicatePeriod
		}
		return fmt.Errorf("failed to create pool: %w", err)
	}
	return nil
}

func (s *Store) GetPool(ctx context.Context, id pool.PoolID) (*pool.MonthlyPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPool(ctx, s.db, id)
}

func getPool(ctx context.Context, c conn, id pool.PoolID) (*pool.MonthlyPool, error) {
	row := c.QueryRowContext(ctx,
		"SELECT "+poolColumns+" FROM monthly_pools WHERE id = ?", id)
	return scanPool(row)
}

func (s *Store) GetPoolByPeriod(ctx context.Context, year int, month time.Month) (*pool.MonthlyPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPoolByPeriod(ctx, s.db, year, month)
}

func getPoolByPeriod(ctx context.Context, c conn, year int, month time.Month) (*pool.MonthlyPool, error) {
	row := c.QueryRowContext(ctx,
		"SELECT "+poolColumns+" FROM monthly_pools WHERE year = ? AND month = ?",
		year, int(month))
	return scanPool(row)
}

func (s *Store) FirstPoolFrom(ctx context.Context, after time.Time) (*pool.MonthlyPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return firstPoolFrom(ctx, s.db, after)
}

func firstPoolFrom(ctx context.Context, c conn, after time.Time) (*pool.MonthlyPool, error) {
	row := c.QueryRowContext(ctx, `
		SELECT `+poolColumns+` FROM monthly_pools
		WHERE is_closed = FALSE AND from_date > ?
		ORDER BY from_date ASC
		LIMIT 1`,
		after.Format(time.RFC3339Nano))
	return scanPool(row)
}

func (s *Store) OpenPoolsStartedBefore(ctx context.Context, before time.Time) ([]*pool.MonthlyPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPools(ctx, s.db, `
		SELECT `+poolColumns+` FROM monthly_pools
		WHERE is_closed = FALSE AND from_date < ?
		ORDER BY from_date DESC`,
		before.Format(time.RFC3339Nano))
}

func (s *Store) OpenPools(ctx context.Context) ([]*pool.MonthlyPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPools(ctx, s.db, `
		SELECT `+poolColumns+` FROM monthly_pools
		WHERE is_closed = FALSE
		ORDER BY to_date ASC`)
}

func (s *Store) UpdatePool(ctx context.Context, p *pool.MonthlyPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePool(ctx, s.db, p)
}

func updatePool(ctx context.Context, c conn, p *pool.MonthlyPool) error {
	res, err := c.ExecContext(ctx, `
		UPDATE monthly_pools
		SET next_challenger_num = ?, amount = ?, award = ?, updated_at = ?
		WHERE id = ?`,
		p.NextChallengerNum,
		p.Amount.String(),
		p.Award.String(),
		p.UpdatedAt.Format(time.RFC3339Nano),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pool.ErrPoolNotFound
	}
	return nil
}

func (s *Store) ClosePool(ctx context.Context, id pool.PoolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closePool(ctx, s.db, id)
}

func closePool(ctx context.Context, c conn, id pool.PoolID) error {
	res, err := c.ExecContext(ctx,
		"UPDATE monthly_pools SET is_closed = TRUE, updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to close pool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pool.ErrPoolNotFound
	}
	return nil
}

func queryPools(ctx context.Context, c conn, query string, args ...any) ([]*pool.MonthlyPool, error) {
	rows, err := c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	var pools []*pool.MonthlyPool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(row rowScanner) (*pool.MonthlyPool, error) {
	var (
		p         pool.MonthlyPool
		fromDate  string
		toDate    string
		month     int
		fee       string
		amount    string
		award     string
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&p.ID, &fromDate, &toDate, &p.Year, &month, &fee,
		&p.NextChallengerNum, &amount, &award, &p.Closed,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, pool.ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pool: %w", err)
	}

	p.Month = time.Month(month)
	p.FromDate, _ = time.Parse(time.RFC3339Nano, fromDate)
	p.ToDate, _ = time.Parse(time.RFC3339Nano, toDate)
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	p.PoolFee = mustDecimal(fee)
	p.Amount = mustDecimal(amount)
	p.Award = mustDecimal(award)
	return &p, nil
}

// =============================================================================
// CHALLENGER STORE
// =============================================================================

const challengerColumns = `id, pool_id, num, appointment, fee, active, strict_ok, created_at`

func (s *Store) AddChallengers(ctx context.Context, chs []*pool.Challenger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addChallengers(ctx, s.db, chs)
}

func addChallengers(ctx context.Context, c conn, chs []*pool.Challenger) error {
	query := `
		INSERT INTO challengers
		(id, pool_id, num, appointment, fee, active, strict_ok, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, ch := range chs {
		_, err := c.ExecContext(ctx, query,
			ch.ID, ch.PoolID, ch.Num, string(ch.Appointment),
			ch.Fee.String(), ch.Active, ch.StrictOK,
			ch.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert challenger: %w", err)
		}
	}
	return nil
}

func (s *Store) GetChallenger(ctx context.Context, id pool.ChallengerID) (*pool.Challenger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getChallenger(ctx, s.db, id)
}

func getChallenger(ctx context.Context, c conn, id pool.ChallengerID) (*pool.Challenger, error) {
	row := c.QueryRowContext(ctx,
		"SELECT "+challengerColumns+" FROM challengers WHERE id = ?", id)
	return scanChallenger(row)
}

func (s *Store) Challengers(ctx context.Context, poolID pool.PoolID) ([]*pool.Challenger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return challengersByPool(ctx, s.db, poolID)
}

func challengersByPool(ctx context.Context, c conn, poolID pool.PoolID) ([]*pool.Challenger, error) {
	rows, err := c.QueryContext(ctx,
		"SELECT "+challengerColumns+" FROM challengers WHERE pool_id = ? ORDER BY num ASC",
		poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query challengers: %w", err)
	}
	defer rows.Close()

	var chs []*pool.Challenger
	for rows.Next() {
		ch, err := scanChallenger(rows)
		if err != nil {
			return nil, err
		}
		chs = append(chs, ch)
	}
	return chs, rows.Err()
}

func (s *Store) ActiveChallengers(ctx context.Context, poolID pool.PoolID, strict bool) ([]*pool.Challenger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeChallengers(ctx, s.db, poolID, strict)
}

func activeChallengers(ctx context.Context, c conn, poolID pool.PoolID, strict bool) ([]*pool.Challenger, error) {
	query := "SELECT " + challengerColumns + " FROM challengers WHERE pool_id = ? AND active = TRUE"
	if strict {
		query += " AND strict_ok = TRUE"
	}
	query += " ORDER BY num ASC"

	rows, err := c.QueryContext(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query challengers: %w", err)
	}
	defer rows.Close()

	var chs []*pool.Challenger
	for rows.Next() {
		ch, err := scanChallenger(rows)
		if err != nil {
			return nil, err
		}
		chs = append(chs, ch)
	}
	return chs, rows.Err()
}

func (s *Store) ActiveChallengersCount(ctx context.Context, poolID pool.PoolID, strict bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeChallengersCount(ctx, s.db, poolID, strict)
}

func activeChallengersCount(ctx context.Context, c conn, poolID pool.PoolID, strict bool) (int, error) {
	query := "SELECT COUNT(*) FROM challengers WHERE pool_id = ? AND active = TRUE"
	if strict {
		query += " AND strict_ok = TRUE"
	}

	var count int
	if err := c.QueryRowContext(ctx, query, poolID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count challengers: %w", err)
	}
	return count, nil
}

func (s *Store) SetActivity(ctx context.Context, id pool.ChallengerID, active, strictOK bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setActivity(ctx, s.db, id, active, strictOK)
}

func setActivity(ctx context.Context, c conn, id pool.ChallengerID, active, strictOK bool) error {
	res, err := c.ExecContext(ctx,
		"UPDATE challengers SET active = ?, strict_ok = ? WHERE id = ?",
		active, strictOK, id)
	if err != nil {
		return fmt.Errorf("failed to set activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pool.ErrChallengerNotFound
	}
	return nil
}

func scanChallenger(row rowScanner) (*pool.Challenger, error) {
	var (
		ch          pool.Challenger
		appointment string
		fee         string
		createdAt   string
	)

	err := row.Scan(&ch.ID, &ch.PoolID, &ch.Num, &appointment, &fee,
		&ch.Active, &ch.StrictOK, &createdAt)
	if err == sql.ErrNoRows {
		return nil, pool.ErrChallengerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan challenger: %w", err)
	}

	ch.Appointment = pool.Appointment(appointment)
	ch.Fee = mustDecimal(fee)
	ch.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &ch, nil
}

// =============================================================================
// TRANSACTIONAL STORE (pool.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The write
// lock is held for the duration, so concurrent enrollments against the
// same pool serialize instead of losing increments.
func (s *Store) WithTx(ctx context.Context, fn func(pool.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreatePool(ctx context.Context, p *pool.MonthlyPool) error {
	return createPool(ctx, ts.tx, p)
}

func (ts *txStore) GetPool(ctx context.Context, id pool.PoolID) (*pool.MonthlyPool, error) {
	return getPool(ctx, ts.tx, id)
}

func (ts *txStore) GetPoolByPeriod(ctx context.Context, year int, month time.Month) (*pool.MonthlyPool, error) {
	return getPoolByPeriod(ctx, ts.tx, year, month)
}

func (ts *txStore) FirstPoolFrom(ctx context.Context, after time.Time) (*pool.MonthlyPool, error) {
	return firstPoolFrom(ctx, ts.tx, after)
}

func (ts *txStore) OpenPoolsStartedBefore(ctx context.Context, before time.Time) ([]*pool.MonthlyPool, error) {
	return queryPools(ctx, ts.tx, `
		SELECT `+poolColumns+` FROM monthly_pools
		WHERE is_closed = FALSE AND from_date < ?
		ORDER BY from_date DESC`,
		before.Format(time.RFC3339Nano))
}

func (ts *txStore) OpenPools(ctx context.Context) ([]*pool.MonthlyPool, error) {
	return queryPools(ctx, ts.tx, `
		SELECT `+poolColumns+` FROM monthly_pools
		WHERE is_closed = FALSE
		ORDER BY to_date ASC`)
}

func (ts *txStore) UpdatePool(ctx context.Context, p *pool.MonthlyPool) error {
	return updatePool(ctx, ts.tx, p)
}

func (ts *txStore) ClosePool(ctx context.Context, id pool.PoolID) error {
	return closePool(ctx, ts.tx, id)
}

func (ts *txStore) AddChallengers(ctx context.Context, chs []*pool.Challenger) error {
	return addChallengers(ctx, ts.tx, chs)
}

func (ts *txStore) GetChallenger(ctx context.Context, id pool.ChallengerID) (*pool.Challenger, error) {
	return getChallenger(ctx, ts.tx, id)
}

func (ts *txStore) Challengers(ctx context.Context, poolID pool.PoolID) ([]*pool.Challenger, error) {
	return challengersByPool(ctx, ts.tx, poolID)
}

func (ts *txStore) ActiveChallengers(ctx context.Context, poolID pool.PoolID, strict bool) ([]*pool.Challenger, error) {
	return activeChallengers(ctx, ts.tx, poolID, strict)
}

func (ts *txStore) ActiveChallengersCount(ctx context.Context, poolID pool.PoolID, strict bool) (int, error) {
	return activeChallengersCount(ctx, ts.tx, poolID, strict)
}

func (ts *txStore) SetActivity(ctx context.Context, id pool.ChallengerID, active, strictOK bool) error {
	return setActivity(ctx, ts.tx, id, active, strictOK)
}

// =============================================================================
// SETTINGS STORE (pool.Settings interface)
// =============================================================================

// Setting reads a configuration value. A missing key yields the
// fallback, never an error; enrollment must not block on cold config.
func (s *Store) Setting(ctx context.Context, key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("failed to read setting %q: %w", key, err)
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return fallback, nil
	}
	return d, nil
}

// SetSetting writes a configuration value (admin path).
func (s *Store) SetSetting(ctx context.Context, key string, value decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value.String(), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
