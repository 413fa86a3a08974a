package model

import "time"

// StudentStatus is the enrolment status mastered by the broader system.
type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentGraduated StudentStatus = "graduated"
	StudentSuspended StudentStatus = "suspended"
)

// Student is the participant view of a student. The engine reads gender and
// status and writes only RoomID; everything else is mastered elsewhere.
type Student struct {
	ID        int64         `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"size:128;not null" json:"name"`
	Gender    Gender        `gorm:"size:16;not null" json:"gender"`
	Status    StudentStatus `gorm:"size:16;not null;default:active" json:"status"`
	RoomID    *int64        `gorm:"index" json:"room_id"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null" json:"updated_at"`
}

// CompatibilityProfile holds the categorical lifestyle preferences sent to
// the external scorer. Written by the student, read-only for the engine.
type CompatibilityProfile struct {
	StudentID      int64     `gorm:"primaryKey" json:"student_id"`
	SleepSchedule  string    `gorm:"size:32" json:"sleep_schedule"`
	Cleanliness    string    `gorm:"size:32" json:"cleanliness"`
	StudyHabits    string    `gorm:"size:32" json:"study_habits"`
	NoiseTolerance string    `gorm:"size:32" json:"noise_tolerance"`
	Lifestyle      string    `gorm:"size:32" json:"lifestyle"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}
