package model

import "time"

// GroupStatus is the lifecycle of a roommate group.
type GroupStatus string

const (
	GroupProposed  GroupStatus = "proposed"
	GroupConfirmed GroupStatus = "confirmed"
	GroupDisbanded GroupStatus = "disbanded"
)

// RoommateGroup is a set of students proposed by the formation engine to
// share a room. A group holds no room by itself; room binding happens only
// through an Allocation.
type RoommateGroup struct {
	ID             string      `gorm:"primaryKey;size:36" json:"id"`
	TargetCapacity int         `gorm:"not null" json:"target_capacity"`
	AggregateScore float64     `gorm:"not null" json:"aggregate_score"`
	Status         GroupStatus `gorm:"size:16;not null;default:proposed" json:"status"`
	FormedAt       time.Time   `gorm:"not null" json:"formed_at"`
	UpdatedAt      time.Time   `gorm:"not null" json:"updated_at"`

	// Associations
	Members []RoommateGroupMember `gorm:"foreignKey:GroupID" json:"members"`
}

// RoommateGroupMember is one student's membership in a group, with the
// member's position in the scorer's proposed ordering.
type RoommateGroupMember struct {
	GroupID   string `gorm:"primaryKey;size:36" json:"group_id"`
	StudentID int64  `gorm:"primaryKey;index" json:"student_id"`
	Position  int    `gorm:"not null" json:"position"`
}
