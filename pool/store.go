/*
store.go - Persistence interface for pools and challengers

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Pool and challenger persistence plus the lookup queries the
           repository and tracker are built on.
  TxStore: Transactional wrapper for atomic multi-write operations.

UNIQUENESS CONTRACT:
  CreatePool must enforce at most one pool per (year, month) and return
  ErrDuplicatePeriod when the constraint fires. This is what makes the
  repository's check-then-act creation safe under concurrency.

ATOMIC MUTATIONS:
  Enrollment updates four pool fields and inserts challenger rows as a
  single unit. Callers wrap these writes in WithTx; implementations must
  guarantee all-or-nothing semantics and must serialize concurrent
  transactions against the same pool (no lost increments).

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - pool/store/memory.go:   In-memory for testing

SEE ALSO:
  - repository.go: Current-pool resolution built on these queries
  - tracker.go: Enrollment built on WithTx
*/
package pool

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Pool and challenger persistence
// =============================================================================

// Store handles persistence of pools and challengers. Records are never
// deleted; pools only transition open -> closed.
type Store interface {
	// CreatePool inserts a new pool. Returns ErrDuplicatePeriod if a
	// pool already exists for the same (year, month).
	CreatePool(ctx context.Context, p *MonthlyPool) error

	// GetPool returns a pool by ID, or ErrPoolNotFound.
	GetPool(ctx context.Context, id PoolID) (*MonthlyPool, error)

	// GetPoolByPeriod returns the pool for (year, month), or ErrPoolNotFound.
	GetPoolByPeriod(ctx context.Context, year int, month time.Month) (*MonthlyPool, error)

	// FirstPoolFrom returns the non-closed pool with the earliest
	// FromDate strictly after the given instant, or ErrPoolNotFound.
	// Closed pools never resolve as current.
	FirstPoolFrom(ctx context.Context, after time.Time) (*MonthlyPool, error)

	// OpenPoolsStartedBefore returns non-closed pools whose FromDate is
	// strictly before the given instant, ordered by FromDate descending.
	OpenPoolsStartedBefore(ctx context.Context, before time.Time) ([]*MonthlyPool, error)

	// OpenPools returns all non-closed pools ordered by ToDate ascending.
	OpenPools(ctx context.Context) ([]*MonthlyPool, error)

	// UpdatePool persists the pool's mutable fields (amount, award,
	// next challenger number) as one atomic write.
	UpdatePool(ctx context.Context, p *MonthlyPool) error

	// ClosePool marks a pool closed. One-way; closing a closed pool is a no-op.
	ClosePool(ctx context.Context, id PoolID) error

	// AddChallengers inserts enrollment records.
	AddChallengers(ctx context.Context, chs []*Challenger) error

	// GetChallenger returns a challenger by ID, or ErrChallengerNotFound.
	GetChallenger(ctx context.Context, id ChallengerID) (*Challenger, error)

	// Challengers returns all of a pool's challengers, ordered by
	// sequential number. Used for enrollment auditing after close.
	Challengers(ctx context.Context, poolID PoolID) ([]*Challenger, error)

	// ActiveChallengers returns the pool's challengers in active state.
	// With strict set, the stricter compliance flag is also required.
	ActiveChallengers(ctx context.Context, poolID PoolID, strict bool) ([]*Challenger, error)

	// ActiveChallengersCount counts instead of loading.
	ActiveChallengersCount(ctx context.Context, poolID PoolID, strict bool) (int, error)

	// SetActivity records the activity evaluator's verdict for a
	// challenger. The engine never computes these booleans itself.
	SetActivity(ctx context.Context, id ChallengerID, active, strictOK bool) error
}

// TxStore wraps Store with transaction support. Use it when a mutation
// spans multiple writes (enrollment, recalculation).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error
	// the transaction is rolled back and the error surfaced unchanged;
	// the ledger is left in its pre-mutation state.
	WithTx(ctx context.Context, fn func(Store) error) error
}
