package model

import "time"

// Gender is the gender restriction applied to a room and carried by students.
type Gender string

const (
	GenderBoys  Gender = "Boys"
	GenderGirls Gender = "Girls"
)

// RoomType classifies a room by its intended capacity.
type RoomType string

const (
	RoomTypeSingle RoomType = "Single"
	RoomTypeDouble RoomType = "Double"
	RoomTypeTriple RoomType = "Triple"
	RoomTypeQuad   RoomType = "Quad"
)

// MaintenanceStatus gates whether a room accepts new holds.
type MaintenanceStatus string

const (
	MaintenanceNone     MaintenanceStatus = "none"
	MaintenanceUnderway MaintenanceStatus = "under_maintenance"
	MaintenanceBlocked  MaintenanceStatus = "blocked"
)

// Room is the single source of truth for seat availability. The occupancy
// counters are mutated only through the store's compare-and-swap primitives,
// keyed by Version.
type Room struct {
	ID                int64             `gorm:"primaryKey" json:"id"`
	RoomNumber        string            `gorm:"size:32;not null;uniqueIndex:idx_room_identity" json:"room_number"`
	Block             string            `gorm:"size:64;uniqueIndex:idx_room_identity" json:"block"`
	Floor             int               `json:"floor"`
	RoomType          RoomType          `gorm:"size:16;not null" json:"room_type"`
	Gender            Gender            `gorm:"size:16;not null;uniqueIndex:idx_room_identity" json:"gender"`
	Capacity          int               `gorm:"not null" json:"capacity"`
	ConfirmedCount    int               `gorm:"not null;default:0" json:"confirmed_count"`
	HeldCount         int               `gorm:"not null;default:0" json:"held_count"`
	MaintenanceStatus MaintenanceStatus `gorm:"size:32;not null;default:none" json:"maintenance_status"`
	// PricePerStudent is the full per-student price for the term, not a
	// share of it. Stored in whole rupees.
	PricePerStudent int64     `gorm:"not null;default:0" json:"price_per_student"`
	Version         int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

// FreeSeats returns the number of seats not covered by a hold or a
// confirmed occupancy.
func (r *Room) FreeSeats() int {
	free := r.Capacity - r.ConfirmedCount - r.HeldCount
	if free < 0 {
		return 0
	}
	return free
}

// AcceptsHolds reports whether the maintenance status allows new holds.
func (r *Room) AcceptsHolds() bool {
	return r.MaintenanceStatus == MaintenanceNone
}
