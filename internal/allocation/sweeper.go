package allocation

import (
	"context"
	"errors"
	"log"
	"time"

	"hostel-allocation-backend/internal/store"
)

// Sweeper periodically releases holds whose payment deadline has passed, so
// abandoned payment flows cannot lock capacity, and re-drives refund credits
// that failed at release time. No caller ever blocks on expiry; the sweep is
// the only place holds age out.
type Sweeper struct {
	store    store.Store
	manager  *Manager
	interval time.Duration
}

// NewSweeper creates an expiry sweeper.
func NewSweeper(s store.Store, m *Manager, interval time.Duration) *Sweeper {
	return &Sweeper{store: s, manager: m, interval: interval}
}

// Run drives the sweep loop until the context is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	log.Println("Starting hold expiry sweeper...")

	timer := time.NewTimer(sw.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Hold expiry sweeper shutting down.")
			return
		case <-timer.C:
			sw.SweepOnce(ctx)
			timer.Reset(sw.interval)
		}
	}
}

// SweepOnce releases every overdue hold and flushes parked refund credits.
// Safe to run concurrently with confirm/release: a hold confirmed or
// released since the listing read is skipped, because the release
// transaction re-checks the allocation state.
func (sw *Sweeper) SweepOnce(ctx context.Context) {
	sw.releaseExpired(ctx)
	sw.flushPendingCredits(ctx)
}

func (sw *Sweeper) releaseExpired(ctx context.Context) {
	now := time.Now().UTC()
	holds, err := sw.store.ExpiredHolds(ctx, now)
	if err != nil {
		log.Printf("Error listing expired holds: %v", err)
		return
	}
	if len(holds) == 0 {
		return
	}

	log.Printf("Releasing %d expired holds", len(holds))
	for _, hold := range holds {
		if _, err := sw.manager.Release(ctx, hold.ID, "expired"); err != nil {
			// A hold that got confirmed between the listing and now is
			// not ours to release.
			if errors.Is(err, store.ErrInvalidAllocationState) {
				continue
			}
			log.Printf("Error releasing expired hold %s: %v", hold.ID, err)
		}
	}
}

// flushPendingCredits re-drives refund credits that could not be written
// when their seat release happened. The operation key makes a replay of an
// already-applied credit a no-op, so crashing between the wallet write and
// the resolve cannot double-pay.
func (sw *Sweeper) flushPendingCredits(ctx context.Context) {
	pending, err := sw.store.ListPendingCredits(ctx, 100)
	if err != nil {
		log.Printf("Error listing pending credits: %v", err)
		return
	}
	for _, pc := range pending {
		if _, err := sw.store.Credit(ctx, pc.StudentID, pc.Amount, pc.Reason, pc.Description, pc.OperationKey); err != nil {
			log.Printf("Error re-driving pending credit %s: %v", pc.OperationKey, err)
			continue
		}
		if err := sw.store.ResolvePendingCredit(ctx, pc.ID); err != nil {
			log.Printf("Error clearing pending credit %s: %v", pc.OperationKey, err)
		}
	}
}
