// Package store provides an in-memory pool.Store for testing and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quitpool/challenge-engine/pool"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	pools       map[pool.PoolID]*pool.MonthlyPool
	periods     map[periodKey]pool.PoolID
	challengers map[pool.ChallengerID]*pool.Challenger
}

type periodKey struct {
	Year  int
	Month time.Month
}

func NewMemory() *Memory {
	return &Memory{
		pools:       make(map[pool.PoolID]*pool.MonthlyPool),
		periods:     make(map[periodKey]pool.PoolID),
		challengers: make(map[pool.ChallengerID]*pool.Challenger),
	}
}

// Records are cloned on the way in and out so callers can never mutate
// stored state outside a transaction (no torn reads).
func clonePool(p *pool.MonthlyPool) *pool.MonthlyPool {
	cp := *p
	return &cp
}

func cloneChallenger(c *pool.Challenger) *pool.Challenger {
	cc := *c
	return &cc
}

func (m *Memory) CreatePool(_ context.Context, p *pool.MonthlyPool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPoolLocked(p)
}

func (m *Memory) createPoolLocked(p *pool.MonthlyPool) error {
	k := periodKey{Year: p.Year, Month: p.Month}
	if _, exists := m.periods[k]; exists {
		return pool.ErrDuplicatePeriod
	}
	m.periods[k] = p.ID
	m.pools[p.ID] = clonePool(p)
	return nil
}

func (m *Memory) GetPool(_ context.Context, id pool.PoolID) (*pool.MonthlyPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPoolLocked(id)
}

func (m *Memory) getPoolLocked(id pool.PoolID) (*pool.MonthlyPool, error) {
	p, ok := m.pools[id]
	if !ok {
		return nil, pool.ErrPoolNotFound
	}
	return clonePool(p), nil
}

func (m *Memory) GetPoolByPeriod(_ context.Context, year int, month time.Month) (*pool.MonthlyPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.periods[periodKey{Year: year, Month: month}]
	if !ok {
		return nil, pool.ErrPoolNotFound
	}
	return m.getPoolLocked(id)
}

func (m *Memory) FirstPoolFrom(_ context.Context, after time.Time) (*pool.MonthlyPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.firstPoolFromLocked(after)
}

func (m *Memory) firstPoolFromLocked(after time.Time) (*pool.MonthlyPool, error) {
	var found *pool.MonthlyPool
	for _, p := range m.pools {
		if p.Closed || !p.FromDate.After(after) {
			continue
		}
		if found == nil || p.FromDate.Before(found.FromDate) {
			found = p
		}
	}
	if found == nil {
		return nil, pool.ErrPoolNotFound
	}
	return clonePool(found), nil
}

func (m *Memory) OpenPoolsStartedBefore(_ context.Context, before time.Time) ([]*pool.MonthlyPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*pool.MonthlyPool
	for _, p := range m.pools {
		if !p.Closed && p.FromDate.Before(before) {
			result = append(result, clonePool(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FromDate.After(result[j].FromDate)
	})
	return result, nil
}

func (m *Memory) OpenPools(_ context.Context) ([]*pool.MonthlyPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*pool.MonthlyPool
	for _, p := range m.pools {
		if !p.Closed {
			result = append(result, clonePool(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ToDate.Before(result[j].ToDate)
	})
	return result, nil
}

func (m *Memory) UpdatePool(_ context.Context, p *pool.MonthlyPool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePoolLocked(p)
}

func (m *Memory) updatePoolLocked(p *pool.MonthlyPool) error {
	if _, ok := m.pools[p.ID]; !ok {
		return pool.ErrPoolNotFound
	}
	m.pools[p.ID] = clonePool(p)
	return nil
}

func (m *Memory) ClosePool(_ context.Context, id pool.PoolID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return pool.ErrPoolNotFound
	}
	p.Closed = true
	return nil
}

func (m *Memory) AddChallengers(_ context.Context, chs []*pool.Challenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addChallengersLocked(chs)
}

func (m *Memory) addChallengersLocked(chs []*pool.Challenger) error {
	for _, ch := range chs {
		m.challengers[ch.ID] = cloneChallenger(ch)
	}
	return nil
}

func (m *Memory) GetChallenger(_ context.Context, id pool.ChallengerID) (*pool.Challenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.challengers[id]
	if !ok {
		return nil, pool.ErrChallengerNotFound
	}
	return cloneChallenger(ch), nil
}

func (m *Memory) Challengers(_ context.Context, poolID pool.PoolID) ([]*pool.Challenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.challengersLocked(poolID), nil
}

func (m *Memory) challengersLocked(poolID pool.PoolID) []*pool.Challenger {
	var result []*pool.Challenger
	for _, ch := range m.challengers {
		if ch.PoolID == poolID {
			result = append(result, cloneChallenger(ch))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Num < result[j].Num })
	return result
}

func (m *Memory) ActiveChallengers(_ context.Context, poolID pool.PoolID, strict bool) ([]*pool.Challenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*pool.Challenger
	for _, ch := range m.challengers {
		if isActive(ch, poolID, strict) {
			result = append(result, cloneChallenger(ch))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Num < result[j].Num })
	return result, nil
}

func (m *Memory) ActiveChallengersCount(_ context.Context, poolID pool.PoolID, strict bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeCountLocked(poolID, strict), nil
}

func (m *Memory) activeCountLocked(poolID pool.PoolID, strict bool) int {
	count := 0
	for _, ch := range m.challengers {
		if isActive(ch, poolID, strict) {
			count++
		}
	}
	return count
}

func isActive(ch *pool.Challenger, poolID pool.PoolID, strict bool) bool {
	if ch.PoolID != poolID || !ch.Active {
		return false
	}
	return !strict || ch.StrictOK
}

func (m *Memory) SetActivity(_ context.Context, id pool.ChallengerID, active, strictOK bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challengers[id]
	if !ok {
		return pool.ErrChallengerNotFound
	}
	ch.Active = active
	ch.StrictOK = strictOK
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support. WithTx holds the
// write lock for the whole function, serializing concurrent mutations;
// rollback is simulated with a snapshot.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(_ context.Context, fn func(pool.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	pools       map[pool.PoolID]*pool.MonthlyPool
	periods     map[periodKey]pool.PoolID
	challengers map[pool.ChallengerID]*pool.Challenger
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		pools:       make(map[pool.PoolID]*pool.MonthlyPool, len(tm.pools)),
		periods:     make(map[periodKey]pool.PoolID, len(tm.periods)),
		challengers: make(map[pool.ChallengerID]*pool.Challenger, len(tm.challengers)),
	}
	for id, p := range tm.pools {
		s.pools[id] = clonePool(p)
	}
	for k, id := range tm.periods {
		s.periods[k] = id
	}
	for id, ch := range tm.challengers {
		s.challengers[id] = cloneChallenger(ch)
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.pools = s.pools
	tm.periods = s.periods
	tm.challengers = s.challengers
}

// txMemoryView runs against the parent's maps without re-locking; the
// lock is already held for the transaction's lifetime.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) CreatePool(_ context.Context, p *pool.MonthlyPool) error {
	return tv.parent.createPoolLocked(p)
}

func (tv *txMemoryView) GetPool(_ context.Context, id pool.PoolID) (*pool.MonthlyPool, error) {
	return tv.parent.getPoolLocked(id)
}

func (tv *txMemoryView) GetPoolByPeriod(_ context.Context, year int, month time.Month) (*pool.MonthlyPool, error) {
	id, ok := tv.parent.periods[periodKey{Year: year, Month: month}]
	if !ok {
		return nil, pool.ErrPoolNotFound
	}
	return tv.parent.getPoolLocked(id)
}

func (tv *txMemoryView) FirstPoolFrom(_ context.Context, after time.Time) (*pool.MonthlyPool, error) {
	return tv.parent.firstPoolFromLocked(after)
}

func (tv *txMemoryView) OpenPoolsStartedBefore(_ context.Context, before time.Time) ([]*pool.MonthlyPool, error) {
	var result []*pool.MonthlyPool
	for _, p := range tv.parent.pools {
		if !p.Closed && p.FromDate.Before(before) {
			result = append(result, clonePool(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FromDate.After(result[j].FromDate)
	})
	return result, nil
}

func (tv *txMemoryView) OpenPools(_ context.Context) ([]*pool.MonthlyPool, error) {
	var result []*pool.MonthlyPool
	for _, p := range tv.parent.pools {
		if !p.Closed {
			result = append(result, clonePool(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ToDate.Before(result[j].ToDate)
	})
	return result, nil
}

func (tv *txMemoryView) UpdatePool(_ context.Context, p *pool.MonthlyPool) error {
	return tv.parent.updatePoolLocked(p)
}

func (tv *txMemoryView) ClosePool(_ context.Context, id pool.PoolID) error {
	p, ok := tv.parent.pools[id]
	if !ok {
		return pool.ErrPoolNotFound
	}
	p.Closed = true
	return nil
}

func (tv *txMemoryView) AddChallengers(_ context.Context, chs []*pool.Challenger) error {
	return tv.parent.addChallengersLocked(chs)
}

func (tv *txMemoryView) GetChallenger(_ context.Context, id pool.ChallengerID) (*pool.Challenger, error) {
	ch, ok := tv.parent.challengers[id]
	if !ok {
		return nil, pool.ErrChallengerNotFound
	}
	return cloneChallenger(ch), nil
}

func (tv *txMemoryView) Challengers(_ context.Context, poolID pool.PoolID) ([]*pool.Challenger, error) {
	return tv.parent.challengersLocked(poolID), nil
}

func (tv *txMemoryView) ActiveChallengers(_ context.Context, poolID pool.PoolID, strict bool) ([]*pool.Challenger, error) {
	var result []*pool.Challenger
	for _, ch := range tv.parent.challengers {
		if isActive(ch, poolID, strict) {
			result = append(result, cloneChallenger(ch))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Num < result[j].Num })
	return result, nil
}

func (tv *txMemoryView) ActiveChallengersCount(_ context.Context, poolID pool.PoolID, strict bool) (int, error) {
	return tv.parent.activeCountLocked(poolID, strict), nil
}

func (tv *txMemoryView) SetActivity(_ context.Context, id pool.ChallengerID, active, strictOK bool) error {
	ch, ok := tv.parent.challengers[id]
	if !ok {
		return pool.ErrChallengerNotFound
	}
	ch.Active = active
	ch.StrictOK = strictOK
	return nil
}
