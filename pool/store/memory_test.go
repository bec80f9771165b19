package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quitpool/challenge-engine/pool"
)

func seedPool(t *testing.T, m *TxMemory) *pool.MonthlyPool {
	t.Helper()
	now := time.Date(2024, time.July, 10, 0, 0, 0, 0, time.UTC)
	p := pool.NewMonthlyPool(pool.CurrentPeriod(now), pool.DefaultPoolFee, now)
	require.NoError(t, m.CreatePool(context.Background(), p))
	return p
}

func TestTxMemory_RollbackRestoresState(t *testing.T) {
	m := NewTxMemory()
	ctx := context.Background()
	p := seedPool(t, m)

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s pool.Store) error {
		inner, err := s.GetPool(ctx, p.ID)
		if err != nil {
			return err
		}
		inner.Amount = decimal.RequireFromString("500")
		if err := s.UpdatePool(ctx, inner); err != nil {
			return err
		}
		ch := &pool.Challenger{
			ID: pool.NewChallengerID(), PoolID: p.ID, Num: 1,
			Appointment: pool.AppointmentParticipant, Fee: p.PoolFee,
		}
		return errors.Join(s.AddChallengers(ctx, []*pool.Challenger{ch}), boom)
	})
	assert.True(t, errors.Is(err, boom))

	got, err := m.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.IsZero())

	chs, err := m.Challengers(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, chs)
}

func TestTxMemory_CommitKeepsState(t *testing.T) {
	m := NewTxMemory()
	ctx := context.Background()
	p := seedPool(t, m)

	err := m.WithTx(ctx, func(s pool.Store) error {
		inner, err := s.GetPool(ctx, p.ID)
		if err != nil {
			return err
		}
		inner.Amount = inner.Amount.Add(p.PoolFee)
		return s.UpdatePool(ctx, inner)
	})
	require.NoError(t, err)

	got, err := m.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(p.PoolFee))
}

func TestMemory_CloneOnReadAndWrite(t *testing.T) {
	m := NewTxMemory()
	ctx := context.Background()
	p := seedPool(t, m)

	// Mutating a read result must not leak into the store.
	got, err := m.GetPool(ctx, p.ID)
	require.NoError(t, err)
	got.Amount = decimal.RequireFromString("999")

	again, err := m.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, again.Amount.IsZero())

	// Mutating the original after CreatePool must not either.
	p.Amount = decimal.RequireFromString("999")
	again, err = m.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, again.Amount.IsZero())
}

func TestMemory_ImplementsInterfaces(t *testing.T) {
	var _ pool.Store = (*Memory)(nil)
	var _ pool.TxStore = (*TxMemory)(nil)
}
