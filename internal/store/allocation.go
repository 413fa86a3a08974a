package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hostel-allocation-backend/internal/model"
)

// CreateProposedGroups persists the groups accepted by a formation pass and
// removes their members from the active pool, in one transaction. A pass
// that fails here leaves the pool untouched.
func (s *gormStore) CreateProposedGroups(ctx context.Context, groups []model.RoommateGroup) error {
	if len(groups) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range groups {
			if err := tx.Create(&groups[i]).Error; err != nil {
				return fmt.Errorf("failed to create roommate group %s: %w", groups[i].ID, err)
			}
			memberIDs := make([]int64, len(groups[i].Members))
			for j, m := range groups[i].Members {
				memberIDs[j] = m.StudentID
			}
			if err := deactivatePoolEntries(tx, memberIDs); err != nil {
				return fmt.Errorf("failed to deactivate pool entries for group %s: %w", groups[i].ID, err)
			}
		}
		return nil
	})
}

// GetGroup fetches a roommate group with its members.
func (s *gormStore) GetGroup(ctx context.Context, id string) (*model.RoommateGroup, error) {
	var group model.RoommateGroup
	if err := s.db.WithContext(ctx).Preload("Members").First(&group, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to fetch group %s: %w", id, err)
	}
	return &group, nil
}

// SetGroupStatus updates a group's lifecycle status.
func (s *gormStore) SetGroupStatus(ctx context.Context, id string, status model.GroupStatus) error {
	res := s.db.WithContext(ctx).Model(&model.RoommateGroup{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("failed to set status on group %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// CreateAllocation inserts an allocation and its member rows. Seat
// reservation happens separately through TryReserve; the allocation manager
// compensates with ReleaseSeats if this insert fails.
func (s *gormStore) CreateAllocation(ctx context.Context, alloc *model.Allocation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(alloc).Error; err != nil {
			return fmt.Errorf("failed to create allocation: %w", err)
		}
		return nil
	})
}

// GetAllocation fetches an allocation with its members.
func (s *gormStore) GetAllocation(ctx context.Context, id string) (*model.Allocation, error) {
	var alloc model.Allocation
	if err := s.db.WithContext(ctx).Preload("Members").First(&alloc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAllocationNotFound
		}
		return nil, fmt.Errorf("failed to fetch allocation %s: %w", id, err)
	}
	return &alloc, nil
}

// ConfirmedAllocationForStudent returns the student's confirmed allocation,
// or nil when the student has none.
func (s *gormStore) ConfirmedAllocationForStudent(ctx context.Context, studentID int64) (*model.Allocation, error) {
	var alloc model.Allocation
	err := s.db.WithContext(ctx).Preload("Members").
		Joins("JOIN allocation_members am ON am.allocation_id = allocations.id").
		Where("am.student_id = ? AND allocations.state = ?", studentID, model.AllocationConfirmed).
		First(&alloc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up allocation for student %d: %w", studentID, err)
	}
	return &alloc, nil
}

// ActiveAllocationsForStudent lists every hold or confirmed allocation the
// student is a member of, for the one-seat-per-student rule.
func (s *gormStore) ActiveAllocationsForStudent(ctx context.Context, studentID int64) ([]model.Allocation, error) {
	var allocs []model.Allocation
	err := s.db.WithContext(ctx).Preload("Members").
		Joins("JOIN allocation_members am ON am.allocation_id = allocations.id").
		Where("am.student_id = ? AND allocations.state IN ?", studentID,
			[]model.AllocationState{model.AllocationHold, model.AllocationConfirmed}).
		Find(&allocs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active allocations for student %d: %w", studentID, err)
	}
	return allocs, nil
}

// ExpiredHolds lists temporary holds whose expiry has passed.
func (s *gormStore) ExpiredHolds(ctx context.Context, now time.Time) ([]model.Allocation, error) {
	var holds []model.Allocation
	if err := s.db.WithContext(ctx).Preload("Members").
		Where("state = ? AND hold_expires_at < ?", model.AllocationHold, now).
		Find(&holds).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired holds: %w", err)
	}
	return holds, nil
}

// ConfirmAllocation converts a temporary hold into confirmed occupancy:
// confirmed seats go up, held seats go down, net capacity usage unchanged,
// all guarded by the room's version stamp. Student room references are set
// in the same transaction. Returns ErrConflict for the manager to retry.
func (s *gormStore) ConfirmAllocation(ctx context.Context, id string, now time.Time) (*model.Allocation, error) {
	var confirmed model.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alloc, err := getAllocationTx(tx, id)
		if err != nil {
			return err
		}
		if alloc.State != model.AllocationHold {
			return ErrInvalidAllocationState
		}
		if alloc.HoldExpired(now) {
			return ErrHoldExpired
		}

		memberIDs := make([]int64, len(alloc.Members))
		for i, m := range alloc.Members {
			memberIDs[i] = m.StudentID
		}

		// One confirmed seat per student. Two holds can race past the
		// placement-time check, so confirm is the backstop. A transfer hold
		// confirms while the seat it replaces is still occupied; that one
		// allocation is exempt.
		occupied := tx.Model(&model.Allocation{}).
			Joins("JOIN allocation_members am ON am.allocation_id = allocations.id").
			Where("am.student_id IN ? AND allocations.state = ?", memberIDs, model.AllocationConfirmed)
		if alloc.PreviousAllocationID != nil {
			occupied = occupied.Where("allocations.id <> ?", *alloc.PreviousAllocationID)
		}
		var taken int64
		if err := occupied.Count(&taken).Error; err != nil {
			return fmt.Errorf("failed to check existing occupancy: %w", err)
		}
		if taken > 0 {
			return ErrAlreadyAllocated
		}

		room, err := getRoomTx(tx, alloc.RoomID)
		if err != nil {
			return err
		}

		seats := len(alloc.Members)
		updated := *room
		updated.ConfirmedCount += seats
		updated.HeldCount -= seats
		if updated.HeldCount < 0 {
			updated.HeldCount = 0
		}
		if err := s.casUpdateRoom(ctx, tx, room, &updated); err != nil {
			return err
		}

		if err := tx.Model(&model.Student{}).
			Where("id IN ?", memberIDs).
			Update("room_id", alloc.RoomID).Error; err != nil {
			return fmt.Errorf("failed to set room references: %w", err)
		}

		if err := tx.Model(&model.Allocation{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"state":        model.AllocationConfirmed,
				"confirmed_at": now,
				"updated_at":   now,
			}).Error; err != nil {
			return fmt.Errorf("failed to confirm allocation %s: %w", id, err)
		}

		alloc.State = model.AllocationConfirmed
		alloc.ConfirmedAt = &now
		confirmed = *alloc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &confirmed, nil
}

// ReleaseAllocation releases a temporary hold. Releasing an already-released
// allocation is a no-op, which makes the expiry sweep safe to run
// concurrently with payment-driven transitions: a stale sweep action simply
// finds the hold gone. Confirmed seats are never released here (that goes
// through ReleaseMember), so a sweep racing a successful confirm gets
// ErrInvalidAllocationState instead of tearing down a paid-for seat.
// Released members return to the candidate pool if they still have an entry.
func (s *gormStore) ReleaseAllocation(ctx context.Context, id, reason string, now time.Time) (*model.Allocation, error) {
	var released model.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alloc, err := getAllocationTx(tx, id)
		if err != nil {
			return err
		}
		if alloc.State == model.AllocationReleased {
			released = *alloc
			return nil
		}
		if alloc.State != model.AllocationHold {
			return ErrInvalidAllocationState
		}

		room, err := getRoomTx(tx, alloc.RoomID)
		if err != nil {
			return err
		}

		seats := len(alloc.Members)
		memberIDs := make([]int64, len(alloc.Members))
		for i, m := range alloc.Members {
			memberIDs[i] = m.StudentID
		}

		updated := *room
		updated.HeldCount -= seats
		if updated.HeldCount < 0 {
			updated.HeldCount = 0
		}
		if err := s.casUpdateRoom(ctx, tx, room, &updated); err != nil {
			return err
		}

		if err := reactivatePoolEntries(tx, memberIDs); err != nil {
			return fmt.Errorf("failed to return members to pool: %w", err)
		}
		if alloc.GroupID != nil {
			if err := tx.Model(&model.RoommateGroup{}).
				Where("id = ?", *alloc.GroupID).
				Updates(map[string]any{"status": model.GroupDisbanded, "updated_at": now}).Error; err != nil {
				return fmt.Errorf("failed to disband group %s: %w", *alloc.GroupID, err)
			}
		}

		if err := tx.Model(&model.Allocation{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"state":          model.AllocationReleased,
				"released_at":    now,
				"release_reason": reason,
				"updated_at":     now,
			}).Error; err != nil {
			return fmt.Errorf("failed to release allocation %s: %w", id, err)
		}

		alloc.State = model.AllocationReleased
		alloc.ReleasedAt = &now
		alloc.ReleaseReason = reason
		released = *alloc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &released, nil
}

// ReleaseMember frees one student's confirmed seat without touching the rest
// of the allocation, for transfers and per-student deallocation. The
// allocation itself is released once its last member leaves.
func (s *gormStore) ReleaseMember(ctx context.Context, allocationID string, studentID int64, reason string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alloc, err := getAllocationTx(tx, allocationID)
		if err != nil {
			return err
		}
		if alloc.State != model.AllocationConfirmed {
			return ErrInvalidAllocationState
		}

		isMember := false
		for _, m := range alloc.Members {
			if m.StudentID == studentID {
				isMember = true
				break
			}
		}
		if !isMember {
			return fmt.Errorf("student %d is not part of allocation %s: %w", studentID, allocationID, ErrInvalidAllocationState)
		}

		room, err := getRoomTx(tx, alloc.RoomID)
		if err != nil {
			return err
		}

		updated := *room
		updated.ConfirmedCount--
		if updated.ConfirmedCount < 0 {
			updated.ConfirmedCount = 0
		}
		if err := s.casUpdateRoom(ctx, tx, room, &updated); err != nil {
			return err
		}

		if err := tx.Delete(&model.AllocationMember{}, "allocation_id = ? AND student_id = ?", allocationID, studentID).Error; err != nil {
			return fmt.Errorf("failed to remove member %d from allocation %s: %w", studentID, allocationID, err)
		}
		if err := tx.Model(&model.Student{}).
			Where("id = ?", studentID).
			Update("room_id", nil).Error; err != nil {
			return fmt.Errorf("failed to clear room reference for student %d: %w", studentID, err)
		}

		if len(alloc.Members) == 1 {
			if err := tx.Model(&model.Allocation{}).
				Where("id = ?", allocationID).
				Updates(map[string]any{
					"state":          model.AllocationReleased,
					"released_at":    now,
					"release_reason": reason,
					"updated_at":     now,
				}).Error; err != nil {
				return fmt.Errorf("failed to release emptied allocation %s: %w", allocationID, err)
			}
		}
		return nil
	})
}

func getAllocationTx(tx *gorm.DB, id string) (*model.Allocation, error) {
	var alloc model.Allocation
	if err := tx.Preload("Members").First(&alloc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAllocationNotFound
		}
		return nil, fmt.Errorf("failed to fetch allocation %s: %w", id, err)
	}
	return &alloc, nil
}

func getRoomTx(tx *gorm.DB, id int64) (*model.Room, error) {
	var room model.Room
	if err := tx.First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to fetch room %d: %w", id, err)
	}
	return &room, nil
}
