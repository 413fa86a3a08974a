package model

import "time"

// MatchingPoolEntry records a student's opt-in to automated roommate
// matching. Entries are deactivated (not deleted) when a group is formed so
// a released hold can return its members to the pool with their original
// join time, preserving fairness ordering.
type MatchingPoolEntry struct {
	StudentID       int64     `gorm:"primaryKey" json:"student_id"`
	DesiredCapacity int       `gorm:"not null;index" json:"desired_capacity"`
	Active          bool      `gorm:"not null;default:true;index" json:"active"`
	JoinedAt        time.Time `gorm:"not null;index" json:"joined_at"`
}
