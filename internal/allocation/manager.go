package allocation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"hostel-allocation-backend/config"
	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

// Manager is the serialization point for every allocation-changing flow:
// manual placement, group placement, payment callbacks, transfers and the
// expiry sweep all go through it. It owns no state of its own; room
// occupancy is guarded by the store's version-stamped compare-and-swap, and
// the manager's job is validation, bounded conflict retries and event
// emission.
type Manager struct {
	store  store.Store
	cfg    config.AllocationConfig
	events EventSink
	refund RefundPolicy
}

// NewManager creates an allocation manager. A nil sink discards events.
func NewManager(s store.Store, cfg config.AllocationConfig, events EventSink) *Manager {
	if events == nil {
		events = DiscardSink()
	}
	return &Manager{
		store:  s,
		cfg:    cfg,
		events: events,
		refund: NewRefundPolicy(cfg.Refund),
	}
}

// HoldRequest describes a hold to place. GroupID ties the hold to a
// roommate group; PreviousAllocationID marks it as a transfer hold replacing
// an existing confirmed allocation.
type HoldRequest struct {
	RoomID               int64
	StudentIDs           []int64
	GroupID              *string
	PreviousAllocationID *string
}

// PlaceHold reserves temporary seats for one or more students and records
// the allocation with a payment deadline. Validation happens up front; the
// seat reservation itself is a single compare-and-swap retried on conflict.
func (m *Manager) PlaceHold(ctx context.Context, req HoldRequest) (*model.Allocation, error) {
	if len(req.StudentIDs) == 0 {
		return nil, fmt.Errorf("a hold needs at least one student")
	}
	seen := make(map[int64]bool, len(req.StudentIDs))
	for _, sid := range req.StudentIDs {
		if seen[sid] {
			return nil, fmt.Errorf("duplicate student %d in hold request", sid)
		}
		seen[sid] = true
	}

	students, err := m.store.GetStudents(ctx, req.StudentIDs)
	if err != nil {
		return nil, err
	}

	gender := students[0].Gender
	for _, st := range students {
		if st.Status != model.StudentActive {
			return nil, fmt.Errorf("student %d is not active: %w", st.ID, store.ErrInvalidAllocationState)
		}
		if st.Gender != gender {
			return nil, store.ErrGenderMismatch
		}
	}

	// One seat per student: an existing hold or confirmed allocation blocks
	// a new hold. A transfer hold is the one exception; the student keeps
	// the confirmed seat it replaces until the new one is paid for.
	for _, sid := range req.StudentIDs {
		active, err := m.store.ActiveAllocationsForStudent(ctx, sid)
		if err != nil {
			return nil, err
		}
		for _, existing := range active {
			if req.PreviousAllocationID != nil && existing.ID == *req.PreviousAllocationID {
				continue
			}
			return nil, store.ErrAlreadyAllocated
		}
	}

	// A hold placed for a group must name exactly that group's members, and
	// the group must still be in proposed state.
	if req.GroupID != nil {
		group, err := m.store.GetGroup(ctx, *req.GroupID)
		if err != nil {
			return nil, err
		}
		if group.Status != model.GroupProposed {
			return nil, fmt.Errorf("group %s is %s: %w", group.ID, group.Status, store.ErrInvalidGroupState)
		}
		if len(group.Members) != len(req.StudentIDs) {
			return nil, fmt.Errorf("group %s has %d members, hold names %d: %w",
				group.ID, len(group.Members), len(req.StudentIDs), store.ErrInvalidGroupState)
		}
		for _, gm := range group.Members {
			if !seen[gm.StudentID] {
				return nil, fmt.Errorf("student %d is not in group %s: %w", gm.StudentID, group.ID, store.ErrInvalidGroupState)
			}
		}
	}

	var room *model.Room
	err = m.withConflictRetry(ctx, func() error {
		var reserveErr error
		room, reserveErr = m.store.TryReserve(ctx, req.RoomID, len(req.StudentIDs), store.SeatTemporary, gender)
		return reserveErr
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiry := now.Add(m.cfg.HoldTTL)
	members := make([]model.AllocationMember, len(req.StudentIDs))
	alloc := &model.Allocation{
		ID:                   uuid.NewString(),
		RoomID:               room.ID,
		GroupID:              req.GroupID,
		State:                model.AllocationHold,
		PreviousAllocationID: req.PreviousAllocationID,
		HoldExpiresAt:        &expiry,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	for i, sid := range req.StudentIDs {
		members[i] = model.AllocationMember{AllocationID: alloc.ID, StudentID: sid}
	}
	alloc.Members = members

	if err := m.store.CreateAllocation(ctx, alloc); err != nil {
		// The seats were taken but the allocation record failed; give the
		// seats back so capacity is not leaked.
		if _, relErr := m.store.ReleaseSeats(ctx, room.ID, len(req.StudentIDs), store.SeatTemporary); relErr != nil {
			log.Printf("Error compensating seat reservation on room %d: %v", room.ID, relErr)
		}
		return nil, err
	}

	if req.GroupID != nil {
		if err := m.store.SetGroupStatus(ctx, *req.GroupID, model.GroupConfirmed); err != nil {
			log.Printf("Warning: failed to mark group %s confirmed: %v", *req.GroupID, err)
		}
	}

	m.events.Dispatch(Event{
		Kind:         EventHoldCreated,
		AllocationID: alloc.ID,
		RoomID:       room.ID,
		StudentIDs:   req.StudentIDs,
		At:           now,
	})
	return alloc, nil
}

// Confirm converts a paid hold into confirmed occupancy. For a transfer
// hold it then releases the seat being vacated and credits the refund.
func (m *Manager) Confirm(ctx context.Context, allocationID string) (*model.Allocation, error) {
	var confirmed *model.Allocation
	err := m.withConflictRetry(ctx, func() error {
		var confirmErr error
		confirmed, confirmErr = m.store.ConfirmAllocation(ctx, allocationID, time.Now().UTC())
		return confirmErr
	})
	if err != nil {
		return nil, err
	}

	studentIDs := memberIDs(confirmed)
	if confirmed.PreviousAllocationID != nil {
		m.completeTransfer(ctx, confirmed)
	} else {
		m.events.Dispatch(Event{
			Kind:         EventHoldConfirmed,
			AllocationID: confirmed.ID,
			RoomID:       confirmed.RoomID,
			StudentIDs:   studentIDs,
			At:           time.Now().UTC(),
		})
	}
	return confirmed, nil
}

// Release frees a temporary hold, returning its members to the candidate
// pool when they still have entries there. Releasing an already-released
// hold is a no-op.
func (m *Manager) Release(ctx context.Context, allocationID, reason string) (*model.Allocation, error) {
	var released *model.Allocation
	err := m.withConflictRetry(ctx, func() error {
		var relErr error
		released, relErr = m.store.ReleaseAllocation(ctx, allocationID, reason, time.Now().UTC())
		return relErr
	})
	if err != nil {
		return nil, err
	}

	kind := EventHoldReleased
	if reason == "expired" {
		kind = EventHoldExpired
	}
	m.events.Dispatch(Event{
		Kind:         kind,
		AllocationID: released.ID,
		RoomID:       released.RoomID,
		StudentIDs:   memberIDs(released),
		At:           time.Now().UTC(),
	})
	return released, nil
}

// HandlePaymentEvent consumes a payment-subsystem callback for a hold.
func (m *Manager) HandlePaymentEvent(ctx context.Context, allocationID string, paymentConfirmed bool) error {
	if paymentConfirmed {
		_, err := m.Confirm(ctx, allocationID)
		return err
	}
	_, err := m.Release(ctx, allocationID, "payment_failed")
	return err
}

// withConflictRetry runs fn, retrying optimistic-concurrency conflicts with
// a linear backoff. Conflicts never surface past the manager.
func (m *Manager) withConflictRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= m.cfg.ConflictRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * m.cfg.RetryBackoff):
			}
		}
		err = fn()
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("giving up after %d conflict retries: %w", m.cfg.ConflictRetries, err)
}

func memberIDs(alloc *model.Allocation) []int64 {
	ids := make([]int64, len(alloc.Members))
	for i, member := range alloc.Members {
		ids[i] = member.StudentID
	}
	return ids
}
