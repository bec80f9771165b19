/*
errors.go - Centralized error types for the pool engine

ERROR CATEGORIES:
  1. Absent-value results - ErrPoolNotFound / ErrChallengerNotFound are
     normal outcomes, not faults; callers branch with errors.Is.
  2. Invariant violations - ErrDuplicatePeriod signals the (year, month)
     uniqueness constraint fired; the repository converts it into a
     re-read of the winning pool.
  3. Lifecycle violations - ErrPoolClosed rejects enrollment into
     closed pools. Award recalculation stays allowed; finalization runs
     long after the pool closes.

USAGE:
  p, err := repo.CurrentPool(ctx)
  if errors.Is(err, pool.ErrPoolNotFound) {
      // normal: no pool exists yet for this period
  }
*/
package pool

import "errors"

var (
	// ErrPoolNotFound is returned when no pool matches a lookup.
	// This is a normal outcome for period-offset queries.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrChallengerNotFound is returned when a challenger ID does not exist.
	ErrChallengerNotFound = errors.New("challenger not found")

	// ErrDuplicatePeriod is returned when creating a pool for a
	// (year, month) that already has one. Expected under concurrent
	// creation; the loser re-reads the surviving pool.
	ErrDuplicatePeriod = errors.New("pool already exists for period")

	// ErrPoolClosed is returned when enrolling into a closed pool.
	// Closed pools stay readable and recalculable for award auditing.
	ErrPoolClosed = errors.New("pool is closed")
)

// IsNotFound reports whether the error is an absent-value result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPoolNotFound) || errors.Is(err, ErrChallengerNotFound)
}
