/*
tracker.go - Challenger enrollment and award recalculation

PURPOSE:
  Registers challengers into a pool and keeps the pool's accumulated
  amount and per-challenger award estimate consistent as they do.

ATOMICITY:
  AddChallenger mutates four pool fields (amount, award, next
  challenger number) and inserts challenger rows. The whole mutation
  runs inside a store transaction: concurrent enrollments serialize,
  so N enrollments of count=1 accumulate exactly N x fee.

ZERO-ACTIVE ASYMMETRY:
  AddChallenger with zero active challengers sets award = amount so
  enrollment always yields a current estimate. RecalculateAward with
  zero active challengers leaves the award untouched, preserving the
  last known value instead of dividing by an undetermined state. The
  asymmetry is deliberate and load-bearing for callers.
*/
package pool

import (
	"context"

	"github.com/shopspring/decimal"
)

// Tracker owns enrollment and activity queries for a pool's challengers.
type Tracker struct {
	Store TxStore
	Clock Clock
}

func NewTracker(store TxStore, clock Clock) *Tracker {
	return &Tracker{Store: store, Clock: clock}
}

// AddChallenger enrolls count challengers into the pool and updates the
// accumulated amount and award estimate. A count below 1 is normalized
// to 1 (defensive default, not an error). Only participant appointments
// consume sequential challenger numbers.
//
// Newly enrolled challengers start inactive: they do not enter the
// award denominator until the external activity evaluator marks them.
func (t *Tracker) AddChallenger(ctx context.Context, poolID PoolID, count int, appointment Appointment) (*MonthlyPool, error) {
	if count < 1 {
		count = 1
	}

	var updated *MonthlyPool
	err := t.Store.WithTx(ctx, func(s Store) error {
		p, err := s.GetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if p.Closed {
			return ErrPoolClosed
		}

		active, err := s.ActiveChallengersCount(ctx, poolID, false)
		if err != nil {
			return err
		}

		now := t.Clock.Now()
		chs := make([]*Challenger, 0, count)
		for i := 0; i < count; i++ {
			ch := &Challenger{
				ID:          NewChallengerID(),
				PoolID:      p.ID,
				Appointment: appointment,
				Fee:         p.PoolFee,
				CreatedAt:   now,
			}
			if appointment == AppointmentParticipant {
				ch.Num = p.NextChallengerNum
				p.NextChallengerNum++
			}
			chs = append(chs, ch)
		}

		p.Amount = p.Amount.Add(p.PoolFee.Mul(decimal.NewFromInt(int64(count))))
		if active > 0 {
			p.Award = p.Amount.Div(decimal.NewFromInt(int64(active)))
		} else {
			p.Award = p.Amount
		}
		p.UpdatedAt = now

		if err := s.AddChallengers(ctx, chs); err != nil {
			return err
		}
		if err := s.UpdatePool(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecalculateAward recomputes award = amount / active count. When the
// active count is zero it is a no-op: the last known award is kept.
func (t *Tracker) RecalculateAward(ctx context.Context, poolID PoolID, strict bool) error {
	return t.Store.WithTx(ctx, func(s Store) error {
		p, err := s.GetPool(ctx, poolID)
		if err != nil {
			return err
		}

		active, err := s.ActiveChallengersCount(ctx, poolID, strict)
		if err != nil {
			return err
		}
		if active == 0 {
			return nil
		}

		p.Award = p.Amount.Div(decimal.NewFromInt(int64(active)))
		p.UpdatedAt = t.Clock.Now()
		return s.UpdatePool(ctx, p)
	})
}

// ActiveChallengers returns the pool's challengers in active state.
// With strict set, the external stricter compliance verdict is also
// required; the tracker holds no opinion on what "active" means.
func (t *Tracker) ActiveChallengers(ctx context.Context, poolID PoolID, strict bool) ([]*Challenger, error) {
	return t.Store.ActiveChallengers(ctx, poolID, strict)
}

// ActiveChallengersCount counts without loading records.
func (t *Tracker) ActiveChallengersCount(ctx context.Context, poolID PoolID, strict bool) (int, error) {
	return t.Store.ActiveChallengersCount(ctx, poolID, strict)
}

// SetActivity records the activity evaluator's verdict. This is the
// only write path for the Active/StrictOK flags.
func (t *Tracker) SetActivity(ctx context.Context, id ChallengerID, active, strictOK bool) error {
	return t.Store.SetActivity(ctx, id, active, strictOK)
}
