/*
Package pool implements the monthly pool accrual and award-distribution
engine for the quit-smoking challenge platform.

PURPOSE:
  Participants ("challengers") pay a recurring fee into a shared monthly
  pool. The pool accumulates fees as challengers enroll and keeps a
  running per-challenger award estimate. At evaluation time the award is
  recomputed from the active-challenger count and turned into a final,
  tax-adjusted prize.

KEY CONCEPTS IN THIS FILE (types.go):
  - MonthlyPool: Per-calendar-month aggregate of fees and award estimate
  - Challenger: Enrollment/activity record owned by exactly one pool
  - Appointment: Enrollment role (participant vs. supporting role)
  - Pool/Challenger IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: All money uses decimal.Decimal, never float64
  2. Determinism: "Now" is injected via Clock, never read ambiently
  3. Type Safety: Strong typing for IDs prevents mixing pool/challenger IDs
  4. Retention: Pools and challengers are never deleted (financial records)

SEE ALSO:
  - clock.go: Period resolution (month boundaries, relative offsets)
  - repository.go: Current-pool lookup and lazy creation
  - tracker.go: Enrollment and award recalculation
  - award.go: Prize math and pool labeling
*/
package pool

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PoolID string
type ChallengerID string

func NewPoolID() PoolID             { return PoolID(uuid.NewString()) }
func NewChallengerID() ChallengerID { return ChallengerID(uuid.NewString()) }

// =============================================================================
// MONTHLY POOL - The per-period ledger
// =============================================================================

// MonthlyPool is the aggregate ledger for one calendar month.
//
// INVARIANTS:
//   - FromDate <= ToDate; (Year, Month) match ToDate.
//   - Amount is the sum of fees charged to enrolled challengers.
//   - Award = Amount / active-challenger count, or Amount when the
//     active count is zero (see tracker.go for the exact rules).
//   - NextChallengerNum is monotonically increasing, never reused, and
//     advances only for participant-appointment enrollments.
//   - At most one pool exists per (Year, Month); the storage layer
//     enforces this with a unique constraint.
type MonthlyPool struct {
	ID       PoolID
	FromDate time.Time
	ToDate   time.Time
	Year     int
	Month    time.Month

	PoolFee            decimal.Decimal
	NextChallengerNum  int
	Amount             decimal.Decimal
	Award              decimal.Decimal
	Closed             bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMonthlyPool creates an open pool stamped with the given period.
// The accumulated amount starts at zero and challenger numbering at 1.
func NewMonthlyPool(period Period, fee decimal.Decimal, now time.Time) *MonthlyPool {
	return &MonthlyPool{
		ID:                NewPoolID(),
		FromDate:          period.Start,
		ToDate:            period.End,
		Year:              period.End.Year(),
		Month:             period.End.Month(),
		PoolFee:           fee,
		NextChallengerNum: 1,
		Amount:            decimal.Zero,
		Award:             decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Ended reports whether the pool's period is entirely in the past.
// A pool can be ended but still open; closing is a separate, one-way
// transition owned by the lifecycle job.
func (p *MonthlyPool) Ended(now time.Time) bool {
	return p.ToDate.Before(now)
}

// =============================================================================
// CHALLENGER - Enrollment and activity record
// =============================================================================

// Appointment is the enrollment role of a challenger. Only participant
// enrollments consume sequential challenger numbers.
type Appointment string

const (
	AppointmentParticipant Appointment = "participant"
	AppointmentOther       Appointment = "other"
)

// Challenger belongs to exactly one pool for its enrollment period.
//
// Active and StrictOK are written exclusively by the external activity
// evaluator; the engine only counts them. Both start false: newly
// enrolled challengers do not feed award denominators until the first
// activity check marks them.
type Challenger struct {
	ID          ChallengerID
	PoolID      PoolID
	Num         int // sequential within the pool; 0 for non-participants
	Appointment Appointment
	Fee         decimal.Decimal
	Active      bool
	StrictOK    bool
	CreatedAt   time.Time
}
