package model

import "time"

// PushSubscription holds a browser push subscription tied to a student.
// The notification worker looks subscriptions up by student when an
// allocation-state-change event involves them.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	StudentID int64     `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}
