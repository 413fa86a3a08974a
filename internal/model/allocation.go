package model

import "time"

// AllocationState is the lifecycle of a room assignment.
type AllocationState string

const (
	AllocationHold      AllocationState = "temporary_hold"
	AllocationConfirmed AllocationState = "confirmed"
	AllocationReleased  AllocationState = "released"
)

// Allocation is the authoritative join between a room and its occupants.
// Room occupancy counters are derived from the sum of active allocations;
// the store keeps the two in step inside a single transaction.
type Allocation struct {
	ID      string          `gorm:"primaryKey;size:36" json:"id"`
	RoomID  int64           `gorm:"not null;index" json:"room_id"`
	GroupID *string         `gorm:"size:36;index" json:"group_id"`
	State   AllocationState `gorm:"size:16;not null;index" json:"state"`
	// PreviousAllocationID links a transfer hold to the confirmed
	// allocation it replaces.
	PreviousAllocationID *string    `gorm:"size:36" json:"previous_allocation_id"`
	HoldExpiresAt        *time.Time `gorm:"index" json:"hold_expires_at"`
	ConfirmedAt          *time.Time `json:"confirmed_at"`
	ReleasedAt           *time.Time `json:"released_at"`
	ReleaseReason        string     `gorm:"size:64" json:"release_reason"`
	CreatedAt            time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"not null" json:"updated_at"`

	// Associations
	Members []AllocationMember `gorm:"foreignKey:AllocationID" json:"members"`
}

// AllocationMember is one student's seat within an allocation.
type AllocationMember struct {
	AllocationID string `gorm:"primaryKey;size:36" json:"allocation_id"`
	StudentID    int64  `gorm:"primaryKey;index" json:"student_id"`
}

// HoldExpired reports whether a temporary hold has passed its expiry.
func (a *Allocation) HoldExpired(now time.Time) bool {
	return a.State == AllocationHold && a.HoldExpiresAt != nil && now.After(*a.HoldExpiresAt)
}
