/*
repository.go - Current-pool resolution and lazy creation

PURPOSE:
  Finds the pool for "now", creates it lazily on first enrollment
  lookup, and resolves pools at fixed month offsets for the lifecycle
  job and reporting views.

CREATION RACE:
  CurrentOrCreatePool is a check-then-act sequence. Two concurrent
  callers for the same period with no existing pool must not both
  create one. The store's unique (year, month) constraint serializes
  creation: the losing writer gets ErrDuplicatePeriod and re-reads the
  surviving pool, so both callers observe the same ledger.

BUSINESS OFFSETS:
  A challenge period needs 14 months for activity testing to complete
  and 15 months for all test results to be finalized. Callers use
  LastEndedPool/LastFinishedPool instead of hardcoding those numbers.
*/
package pool

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Month offsets encoding the external testing timeline.
const (
	endedPoolOffset    = 14
	finishedPoolOffset = 15
)

// Repository resolves pools against a Store using an injected Clock.
type Repository struct {
	Store    Store
	Clock    Clock
	Settings Settings
}

func NewRepository(store Store, clock Clock, settings Settings) *Repository {
	return &Repository{Store: store, Clock: clock, Settings: settings}
}

// CurrentPool returns the pool whose period start is the most recent
// one strictly after now minus one month. ErrPoolNotFound is a normal
// outcome, not a fault.
func (r *Repository) CurrentPool(ctx context.Context) (*MonthlyPool, error) {
	return r.Store.FirstPoolFrom(ctx, r.Clock.Now().AddDate(0, -1, 0))
}

// CurrentOrCreatePool returns the current pool, creating it if none
// exists. At most one pool is created per calendar period even under
// concurrent callers.
func (r *Repository) CurrentOrCreatePool(ctx context.Context) (*MonthlyPool, error) {
	p, err := r.CurrentPool(ctx)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPoolNotFound) {
		return nil, err
	}

	fee, err := r.Settings.Setting(ctx, SettingPoolFee, DefaultPoolFee)
	if err != nil {
		// Configuration store failures must not block enrollment.
		fee = DefaultPoolFee
	}

	now := r.Clock.Now()
	created := NewMonthlyPool(CurrentPeriod(now), fee, now)
	if err := r.Store.CreatePool(ctx, created); err != nil {
		if errors.Is(err, ErrDuplicatePeriod) {
			// Lost the creation race; the winner's pool exists now.
			return r.CurrentPool(ctx)
		}
		return nil, err
	}
	return created, nil
}

// PoolFee returns the fee that applies to enrollments right now: the
// current pool's fee when one exists, otherwise the configured default.
func (r *Repository) PoolFee(ctx context.Context) (decimal.Decimal, error) {
	if p, err := r.CurrentPool(ctx); err == nil {
		return p.PoolFee, nil
	} else if !errors.Is(err, ErrPoolNotFound) {
		return decimal.Zero, err
	}
	return r.Settings.Setting(ctx, SettingPoolFee, DefaultPoolFee)
}

// PoolAtOffset returns the pool for the month offsetMonths before now,
// or ErrPoolNotFound. No implicit creation.
func (r *Repository) PoolAtOffset(ctx context.Context, offsetMonths int) (*MonthlyPool, error) {
	period := PeriodAt(r.Clock.Now(), offsetMonths)
	return r.Store.GetPoolByPeriod(ctx, period.Year(), period.Month())
}

// LastEndedPool returns the pool whose challenge has completed and
// whose activity testing should begin.
func (r *Repository) LastEndedPool(ctx context.Context) (*MonthlyPool, error) {
	return r.PoolAtOffset(ctx, endedPoolOffset)
}

// LastFinishedPool returns the pool for which all test results should
// already be known.
func (r *Repository) LastFinishedPool(ctx context.Context) (*MonthlyPool, error) {
	return r.PoolAtOffset(ctx, finishedPoolOffset)
}

// AvailablePools returns all outstanding (non-closed) pools up to the
// current date, most recent first.
func (r *Repository) AvailablePools(ctx context.Context) ([]*MonthlyPool, error) {
	return r.Store.OpenPoolsStartedBefore(ctx, r.Clock.Now())
}

// OpenPools returns all non-closed pools, soonest-ending first.
func (r *Repository) OpenPools(ctx context.Context) ([]*MonthlyPool, error) {
	return r.Store.OpenPools(ctx)
}
