package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hostel-allocation-backend/internal/model"
)

// CreateRoom inserts a new room record.
func (s *gormStore) CreateRoom(ctx context.Context, room *model.Room) error {
	if room.Capacity < 1 {
		return fmt.Errorf("room capacity must be at least 1")
	}
	return s.db.WithContext(ctx).Create(room).Error
}

// GetRoom fetches a room by id.
func (s *gormStore) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to fetch room %d: %w", id, err)
	}
	return &room, nil
}

// ListRooms fetches rooms matching the filter, ordered by block and number.
func (s *gormStore) ListRooms(ctx context.Context, filter RoomFilter) ([]model.Room, error) {
	q := s.db.WithContext(ctx).Model(&model.Room{})
	if filter.Gender != "" {
		q = q.Where("gender = ?", filter.Gender)
	}
	if filter.RoomType != "" {
		q = q.Where("room_type = ?", filter.RoomType)
	}
	if filter.OnlyAvailable {
		q = q.Where("maintenance_status = ?", model.MaintenanceNone).
			Where("confirmed_count + held_count < capacity")
	}

	var rooms []model.Room
	if err := q.Order("block, room_number").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// TryReserve attempts to take seats on a room: read the room, verify the
// capacity/gender/maintenance invariants, then write back incremented
// counters guarded by the version stamp. A concurrent writer winning the
// race yields ErrConflict and the caller retries against a fresh read.
func (s *gormStore) TryReserve(ctx context.Context, roomID int64, seats int, kind SeatKind, gender model.Gender) (*model.Room, error) {
	if seats < 1 {
		return nil, fmt.Errorf("seat count must be positive, got %d", seats)
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if !room.AcceptsHolds() {
		return nil, ErrRoomUnavailable
	}
	if gender != "" && room.Gender != gender {
		return nil, ErrGenderMismatch
	}
	if room.ConfirmedCount+room.HeldCount+seats > room.Capacity {
		return nil, ErrCapacityExceeded
	}

	updated := *room
	switch kind {
	case SeatTemporary:
		updated.HeldCount += seats
	case SeatConfirmed:
		updated.ConfirmedCount += seats
	default:
		return nil, fmt.Errorf("unknown seat kind %q", kind)
	}

	if err := s.casUpdateRoom(ctx, s.db, room, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ReleaseSeats returns seats of the given kind to a room.
func (s *gormStore) ReleaseSeats(ctx context.Context, roomID int64, seats int, kind SeatKind) (*model.Room, error) {
	if seats < 1 {
		return nil, fmt.Errorf("seat count must be positive, got %d", seats)
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	updated := *room
	switch kind {
	case SeatTemporary:
		updated.HeldCount -= seats
		if updated.HeldCount < 0 {
			updated.HeldCount = 0
		}
	case SeatConfirmed:
		updated.ConfirmedCount -= seats
		if updated.ConfirmedCount < 0 {
			updated.ConfirmedCount = 0
		}
	default:
		return nil, fmt.Errorf("unknown seat kind %q", kind)
	}

	if err := s.casUpdateRoom(ctx, s.db, room, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetMaintenanceStatus updates a room's maintenance status. Existing
// occupancy is untouched; only new holds are gated by it.
func (s *gormStore) SetMaintenanceStatus(ctx context.Context, roomID int64, status model.MaintenanceStatus) error {
	res := s.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ?", roomID).
		Updates(map[string]any{
			"maintenance_status": status,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to set maintenance status on room %d: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// casUpdateRoom writes the new occupancy counters guarded by the version the
// room carried when it was read. Zero affected rows means a concurrent
// writer bumped the version first.
func (s *gormStore) casUpdateRoom(ctx context.Context, tx *gorm.DB, old, updated *model.Room) error {
	updated.Version = old.Version + 1
	updated.UpdatedAt = time.Now().UTC()

	res := tx.WithContext(ctx).Model(&model.Room{}).
		Where("id = ? AND version = ?", old.ID, old.Version).
		Updates(map[string]any{
			"confirmed_count": updated.ConfirmedCount,
			"held_count":      updated.HeldCount,
			"version":         updated.Version,
			"updated_at":      updated.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update room %d: %w", old.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
