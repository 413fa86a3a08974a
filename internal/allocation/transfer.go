package allocation

import (
	"context"
	"fmt"
	"log"
	"time"

	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

// The transfer and deallocation workflow adds no mutable state of its own:
// everything here composes the room registry and wallet ledger primitives,
// contributing only ordering and compensation. If a refund credit fails
// after the seat release succeeded, the release stays (occupancy
// correctness takes priority over refund timing) and the credit is retried
// under its idempotency key.

// RequestTransfer places a hold on the target room for a student with a
// confirmed allocation. The original seat is kept until the new hold is
// confirmed by payment; only then does completeTransfer release it and
// credit the prorated difference.
func (m *Manager) RequestTransfer(ctx context.Context, studentID, targetRoomID int64) (*model.Allocation, error) {
	current, err := m.store.ConfirmedAllocationForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("student %d has no confirmed allocation to transfer from: %w", studentID, store.ErrInvalidAllocationState)
	}
	if current.RoomID == targetRoomID {
		return nil, fmt.Errorf("student %d is already in room %d: %w", studentID, targetRoomID, store.ErrInvalidAllocationState)
	}

	return m.PlaceHold(ctx, HoldRequest{
		RoomID:               targetRoomID,
		StudentIDs:           []int64{studentID},
		PreviousAllocationID: &current.ID,
	})
}

// CancelTransfer drops a pending transfer hold. The student's original
// allocation was never touched, so this is just a hold release.
func (m *Manager) CancelTransfer(ctx context.Context, allocationID string) error {
	alloc, err := m.store.GetAllocation(ctx, allocationID)
	if err != nil {
		return err
	}
	if alloc.PreviousAllocationID == nil {
		return fmt.Errorf("allocation %s is not a transfer hold: %w", allocationID, store.ErrInvalidAllocationState)
	}
	_, err = m.Release(ctx, allocationID, "transfer_cancelled")
	return err
}

// Deallocate releases a student's confirmed seat, credits the refund the
// configured policy grants, and clears the student's room reference.
func (m *Manager) Deallocate(ctx context.Context, studentID int64, reason string) error {
	alloc, err := m.store.ConfirmedAllocationForStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if alloc == nil {
		return store.ErrAllocationNotFound
	}

	room, err := m.store.GetRoom(ctx, alloc.RoomID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := m.withConflictRetry(ctx, func() error {
		return m.store.ReleaseMember(ctx, alloc.ID, studentID, reason, now)
	}); err != nil {
		return err
	}

	occupiedFrom := alloc.CreatedAt
	if alloc.ConfirmedAt != nil {
		occupiedFrom = *alloc.ConfirmedAt
	}
	amount := m.refund(room.PricePerStudent, occupiedFrom, now)
	opKey := fmt.Sprintf("dealloc:%s:%d", alloc.ID, studentID)
	m.creditWithRetry(ctx, studentID, amount, model.ReasonRefund,
		fmt.Sprintf("deallocation refund for room %s", room.RoomNumber), opKey)

	m.events.Dispatch(Event{
		Kind:         EventDeallocated,
		AllocationID: alloc.ID,
		RoomID:       alloc.RoomID,
		StudentIDs:   []int64{studentID},
		At:           now,
	})
	return nil
}

// completeTransfer finishes a confirmed transfer hold: release the vacated
// seat, then credit the prorated price difference when the student moved to
// a cheaper room.
func (m *Manager) completeTransfer(ctx context.Context, transferred *model.Allocation) {
	now := time.Now().UTC()
	studentID := transferred.Members[0].StudentID
	oldAllocID := *transferred.PreviousAllocationID

	oldAlloc, err := m.store.GetAllocation(ctx, oldAllocID)
	if err != nil {
		log.Printf("Error loading source allocation %s for transfer %s: %v", oldAllocID, transferred.ID, err)
		return
	}

	if oldAlloc.State == model.AllocationConfirmed {
		if err := m.withConflictRetry(ctx, func() error {
			return m.store.ReleaseMember(ctx, oldAllocID, studentID, "transfer", now)
		}); err != nil {
			log.Printf("Error releasing source seat for transfer %s: %v", transferred.ID, err)
		}
	}

	// ReleaseMember cleared the student's room reference; point it back at
	// the room the transfer just confirmed.
	if err := m.store.DB().WithContext(ctx).Model(&model.Student{}).
		Where("id = ?", studentID).
		Update("room_id", transferred.RoomID).Error; err != nil {
		log.Printf("Error restoring room reference for student %d: %v", studentID, err)
	}

	oldRoom, err := m.store.GetRoom(ctx, oldAlloc.RoomID)
	if err != nil {
		log.Printf("Error loading source room for transfer %s: %v", transferred.ID, err)
		return
	}
	newRoom, err := m.store.GetRoom(ctx, transferred.RoomID)
	if err != nil {
		log.Printf("Error loading target room for transfer %s: %v", transferred.ID, err)
		return
	}

	if diff := oldRoom.PricePerStudent - newRoom.PricePerStudent; diff > 0 {
		occupiedFrom := oldAlloc.CreatedAt
		if oldAlloc.ConfirmedAt != nil {
			occupiedFrom = *oldAlloc.ConfirmedAt
		}
		amount := m.refund(diff, occupiedFrom, now)
		opKey := fmt.Sprintf("transfer:%s", transferred.ID)
		m.creditWithRetry(ctx, studentID, amount, model.ReasonRoomDowngrade,
			fmt.Sprintf("transfer from room %s to %s", oldRoom.RoomNumber, newRoom.RoomNumber), opKey)
	}

	m.events.Dispatch(Event{
		Kind:         EventTransferCompleted,
		AllocationID: transferred.ID,
		RoomID:       transferred.RoomID,
		StudentIDs:   []int64{studentID},
		At:           now,
	})
}

// creditWithRetry applies a wallet credit, retrying transient failures under
// the same operation key. A credit that still fails after the in-process
// retries is parked as a pending credit for the sweeper to re-drive; once
// the seat release has happened the refund must eventually land. A zero
// amount writes nothing.
func (m *Manager) creditWithRetry(ctx context.Context, studentID, amount int64, reason model.WalletReason, description, opKey string) {
	if amount <= 0 {
		return
	}
	var err error
	for attempt := 0; attempt <= m.cfg.ConflictRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				m.parkCredit(studentID, amount, reason, description, opKey, ctx.Err())
				return
			case <-time.After(time.Duration(attempt) * m.cfg.RetryBackoff):
			}
		}
		if _, err = m.store.Credit(ctx, studentID, amount, reason, description, opKey); err == nil {
			return
		}
	}
	m.parkCredit(studentID, amount, reason, description, opKey, err)
}

// parkCredit persists a credit that could not be applied. The write uses a
// fresh context because the caller's may already be cancelled.
func (m *Manager) parkCredit(studentID, amount int64, reason model.WalletReason, description, opKey string, cause error) {
	log.Printf("Error crediting wallet for student %d (%s): %v; parking for sweep retry", studentID, opKey, cause)
	pending := &model.PendingCredit{
		StudentID:    studentID,
		Amount:       amount,
		Reason:       reason,
		Description:  description,
		OperationKey: opKey,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.EnqueuePendingCredit(context.Background(), pending); err != nil {
		log.Printf("Error parking credit %s: %v", opKey, err)
	}
}
