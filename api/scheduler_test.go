package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quitpool/challenge-engine/pool"
	"github.com/quitpool/challenge-engine/pool/store"
)

func newScheduler(now time.Time) (*LifecycleScheduler, *store.TxMemory) {
	mem := store.NewTxMemory()
	clock := pool.ClockFunc(func() time.Time { return now })
	repo := pool.NewRepository(mem, clock, pool.StaticSettings{})
	tracker := pool.NewTracker(mem, clock)
	return NewLifecycleScheduler(repo, tracker, zap.NewNop()), mem
}

func TestRunNow_ClosesEndedPools(t *testing.T) {
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	ls, mem := newScheduler(now)
	ctx := context.Background()

	ended := pool.NewMonthlyPool(pool.PeriodAt(now, 1), pool.DefaultPoolFee, now)
	current := pool.NewMonthlyPool(pool.CurrentPeriod(now), pool.DefaultPoolFee, now)
	require.NoError(t, mem.CreatePool(ctx, ended))
	require.NoError(t, mem.CreatePool(ctx, current))

	ls.RunNow()

	got, err := mem.GetPool(ctx, ended.ID)
	require.NoError(t, err)
	assert.True(t, got.Closed)

	got, err = mem.GetPool(ctx, current.ID)
	require.NoError(t, err)
	assert.False(t, got.Closed, "in-period pool must stay open")
}

func TestRunNow_FinalizesLastEndedAward(t *testing.T) {
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	ls, mem := newScheduler(now)
	ctx := context.Background()

	// The pool 14 months back is the one entering finalization.
	p := pool.NewMonthlyPool(pool.PeriodAt(now, 14), pool.DefaultPoolFee, now)
	p.Amount = decimal.RequireFromString("300")
	p.Award = decimal.RequireFromString("300")
	require.NoError(t, mem.CreatePool(ctx, p))

	chs := []*pool.Challenger{
		{ID: pool.NewChallengerID(), PoolID: p.ID, Num: 1, Appointment: pool.AppointmentParticipant, Fee: p.PoolFee, Active: true, StrictOK: true},
		{ID: pool.NewChallengerID(), PoolID: p.ID, Num: 2, Appointment: pool.AppointmentParticipant, Fee: p.PoolFee, Active: true, StrictOK: true},
		{ID: pool.NewChallengerID(), PoolID: p.ID, Num: 3, Appointment: pool.AppointmentParticipant, Fee: p.PoolFee, Active: true, StrictOK: false},
	}
	require.NoError(t, mem.AddChallengers(ctx, chs))

	ls.RunNow()

	got, err := mem.GetPool(ctx, p.ID)
	require.NoError(t, err)

	// Closed by step 1, then strictly recalculated by step 2: only the
	// two strict-passing challengers divide the pot.
	assert.True(t, got.Closed)
	assert.True(t, got.Award.Equal(decimal.RequireFromString("150")),
		"award %s, want 150", got.Award)
	assert.Equal(t, "$132", got.FormattedPrize())
}

func TestRunNow_NothingToDo(t *testing.T) {
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	ls, _ := newScheduler(now)

	// Empty store: both steps are quiet no-ops.
	ls.RunNow()
}
