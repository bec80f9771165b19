/*
scheduler.go - Pool lifecycle and award evaluation job

PURPOSE:
  The engine determines pool lifecycle purely from elapsed time but
  never closes pools itself; that transition belongs to this job. On
  each tick the job:
    1. Closes open pools whose period has fully elapsed.
    2. Recalculates the award of the last-ended pool under the strict
       activity predicate, feeding the final prize figure.

DESIGN:
  - robfig/cron drives the schedule (default hourly); RunNow exists for
    tests and manual triggering.
  - Both steps are idempotent: closing a closed pool is a no-op, and
    recalculation is stable under repetition for an unchanged pool.
*/
package api

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/quitpool/challenge-engine/pool"
)

// LifecycleScheduler closes ended pools and finalizes their awards.
type LifecycleScheduler struct {
	Repo    *pool.Repository
	Tracker *pool.Tracker
	Logger  *zap.Logger

	cron *cron.Cron
	mu   sync.Mutex
}

func NewLifecycleScheduler(repo *pool.Repository, tracker *pool.Tracker, logger *zap.Logger) *LifecycleScheduler {
	return &LifecycleScheduler{Repo: repo, Tracker: tracker, Logger: logger}
}

// Start schedules the job with the given cron spec (e.g. "@hourly").
func (ls *LifecycleScheduler) Start(spec string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	c := cron.New()
	if _, err := c.AddFunc(spec, ls.RunNow); err != nil {
		return err
	}
	c.Start()
	ls.cron = c

	ls.Logger.Info("lifecycle scheduler started", zap.String("schedule", spec))
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (ls *LifecycleScheduler) Stop() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.cron != nil {
		<-ls.cron.Stop().Done()
		ls.Logger.Info("lifecycle scheduler stopped")
	}
}

// RunNow executes one tick immediately.
func (ls *LifecycleScheduler) RunNow() {
	ctx := context.Background()

	ls.closeEndedPools(ctx)
	ls.finalizeLastEnded(ctx)
}

func (ls *LifecycleScheduler) closeEndedPools(ctx context.Context) {
	open, err := ls.Repo.OpenPools(ctx)
	if err != nil {
		ls.Logger.Error("failed to list open pools", zap.Error(err))
		return
	}

	now := ls.Repo.Clock.Now()
	for _, p := range open {
		if !p.Ended(now) {
			continue
		}
		if err := ls.Repo.Store.ClosePool(ctx, p.ID); err != nil {
			ls.Logger.Error("failed to close pool",
				zap.String("pool", string(p.ID)), zap.Error(err))
			continue
		}
		ls.Logger.Info("pool closed",
			zap.String("pool", string(p.ID)),
			zap.String("title", p.Title()),
			zap.String("amount", p.Amount.String()))
	}
}

func (ls *LifecycleScheduler) finalizeLastEnded(ctx context.Context) {
	p, err := ls.Repo.LastEndedPool(ctx)
	if err != nil {
		if errors.Is(err, pool.ErrPoolNotFound) {
			return // nothing to finalize yet
		}
		ls.Logger.Error("failed to resolve last ended pool", zap.Error(err))
		return
	}

	if err := ls.Tracker.RecalculateAward(ctx, p.ID, true); err != nil {
		ls.Logger.Error("failed to recalculate award",
			zap.String("pool", string(p.ID)), zap.Error(err))
		return
	}

	finalized, err := ls.Repo.Store.GetPool(ctx, p.ID)
	if err != nil {
		ls.Logger.Error("failed to reload pool", zap.Error(err))
		return
	}
	ls.Logger.Info("award finalized",
		zap.String("pool", string(finalized.ID)),
		zap.String("title", finalized.Title()),
		zap.String("award", finalized.Award.String()),
		zap.String("prize", finalized.FormattedPrize()))
}
