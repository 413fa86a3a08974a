package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"hostel-allocation-backend/internal/model"
)

// SeatKind distinguishes the two occupancy counters on a room.
type SeatKind string

const (
	SeatTemporary SeatKind = "temporary"
	SeatConfirmed SeatKind = "confirmed"
)

// RoomFilter narrows ListRooms results.
type RoomFilter struct {
	Gender        model.Gender
	RoomType      model.RoomType
	OnlyAvailable bool
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Room Registry. TryReserve and ReleaseSeats are the only primitives
	// that mutate occupancy counters; both are compare-and-swap on the
	// room's version stamp.
	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]model.Room, error)
	TryReserve(ctx context.Context, roomID int64, seats int, kind SeatKind, gender model.Gender) (*model.Room, error)
	ReleaseSeats(ctx context.Context, roomID int64, seats int, kind SeatKind) (*model.Room, error)
	SetMaintenanceStatus(ctx context.Context, roomID int64, status model.MaintenanceStatus) error

	// Wallet Ledger. Credit and Debit are idempotent per operation key.
	Credit(ctx context.Context, studentID int64, amount int64, reason model.WalletReason, description, opKey string) (*model.WalletEntry, error)
	Debit(ctx context.Context, studentID int64, amount int64, reason model.WalletReason, description, opKey string) (*model.WalletEntry, error)
	WalletBalance(ctx context.Context, studentID int64) (int64, error)
	WalletEntries(ctx context.Context, studentID int64) ([]model.WalletEntry, error)

	// Pending credits park refund credits that failed to apply so the
	// sweeper can re-drive them under the same operation key.
	EnqueuePendingCredit(ctx context.Context, pending *model.PendingCredit) error
	ListPendingCredits(ctx context.Context, limit int) ([]model.PendingCredit, error)
	ResolvePendingCredit(ctx context.Context, id int64) error

	// Candidate pool.
	JoinPool(ctx context.Context, studentID int64, desiredCapacity int) error
	LeavePool(ctx context.Context, studentID int64) error
	ListActivePool(ctx context.Context, desiredCapacity int) ([]model.MatchingPoolEntry, error)

	// Students and compatibility profiles.
	GetStudent(ctx context.Context, id int64) (*model.Student, error)
	GetStudents(ctx context.Context, ids []int64) ([]model.Student, error)
	UpsertProfile(ctx context.Context, profile *model.CompatibilityProfile) error
	GetProfiles(ctx context.Context, studentIDs []int64) ([]model.CompatibilityProfile, error)

	// Roommate groups.
	CreateProposedGroups(ctx context.Context, groups []model.RoommateGroup) error
	GetGroup(ctx context.Context, id string) (*model.RoommateGroup, error)
	SetGroupStatus(ctx context.Context, id string, status model.GroupStatus) error

	// Allocations.
	CreateAllocation(ctx context.Context, alloc *model.Allocation) error
	GetAllocation(ctx context.Context, id string) (*model.Allocation, error)
	ConfirmedAllocationForStudent(ctx context.Context, studentID int64) (*model.Allocation, error)
	ActiveAllocationsForStudent(ctx context.Context, studentID int64) ([]model.Allocation, error)
	ExpiredHolds(ctx context.Context, now time.Time) ([]model.Allocation, error)
	ConfirmAllocation(ctx context.Context, id string, now time.Time) (*model.Allocation, error)
	ReleaseAllocation(ctx context.Context, id, reason string, now time.Time) (*model.Allocation, error)
	ReleaseMember(ctx context.Context, allocationID string, studentID int64, reason string, now time.Time) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying gorm handle for read-model handlers.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}
