package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hostel-allocation-backend/internal/model"
)

// JoinPool opts a student into automated matching. Rejected with
// ErrAlreadyAllocated when the student already has a confirmed allocation.
// Re-joining after an opt-out gets a fresh join timestamp; adjusting the
// desired capacity while active keeps the original one.
func (s *gormStore) JoinPool(ctx context.Context, studentID int64, desiredCapacity int) error {
	if desiredCapacity < 1 {
		return fmt.Errorf("desired capacity must be at least 1, got %d", desiredCapacity)
	}

	if _, err := s.GetStudent(ctx, studentID); err != nil {
		return err
	}

	alloc, err := s.ConfirmedAllocationForStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if alloc != nil {
		return ErrAlreadyAllocated
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry model.MatchingPoolEntry
		err := tx.First(&entry, "student_id = ?", studentID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = model.MatchingPoolEntry{
				StudentID:       studentID,
				DesiredCapacity: desiredCapacity,
				Active:          true,
				JoinedAt:        time.Now().UTC(),
			}
			return tx.Create(&entry).Error
		case err != nil:
			return fmt.Errorf("failed to look up pool entry for student %d: %w", studentID, err)
		}

		updates := map[string]any{"desired_capacity": desiredCapacity, "active": true}
		if !entry.Active {
			updates["joined_at"] = time.Now().UTC()
		}
		return tx.Model(&model.MatchingPoolEntry{}).
			Where("student_id = ?", studentID).
			Updates(updates).Error
	})
}

// LeavePool opts a student out. Idempotent: leaving when not in the pool is
// a no-op.
func (s *gormStore) LeavePool(ctx context.Context, studentID int64) error {
	if err := s.db.WithContext(ctx).
		Delete(&model.MatchingPoolEntry{}, "student_id = ?", studentID).Error; err != nil {
		return fmt.Errorf("failed to remove pool entry for student %d: %w", studentID, err)
	}
	return nil
}

// ListActivePool returns the active entries for one desired capacity,
// oldest join first, so the earliest opt-ins are matched first.
func (s *gormStore) ListActivePool(ctx context.Context, desiredCapacity int) ([]model.MatchingPoolEntry, error) {
	var entries []model.MatchingPoolEntry
	if err := s.db.WithContext(ctx).
		Where("active = ? AND desired_capacity = ?", true, desiredCapacity).
		Order("joined_at ASC, student_id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list pool entries: %w", err)
	}
	return entries, nil
}

// deactivatePoolEntries marks entries consumed by group formation. They keep
// their join timestamps so a released hold can restore them fairly.
func deactivatePoolEntries(tx *gorm.DB, studentIDs []int64) error {
	if len(studentIDs) == 0 {
		return nil
	}
	return tx.Model(&model.MatchingPoolEntry{}).
		Where("student_id IN ?", studentIDs).
		Update("active", false).Error
}

// reactivatePoolEntries returns released members to the pool. Only students
// who still have a (deactivated) entry come back; students who opted out in
// the meantime stay out.
func reactivatePoolEntries(tx *gorm.DB, studentIDs []int64) error {
	if len(studentIDs) == 0 {
		return nil
	}
	return tx.Model(&model.MatchingPoolEntry{}).
		Where("student_id IN ? AND active = ?", studentIDs, false).
		Update("active", true).Error
}
