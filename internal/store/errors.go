package store

import "errors"

// Sentinel errors for the allocation engine. Callers branch with errors.Is;
// handlers map them onto HTTP status codes.
var (
	// ErrRoomNotFound is returned when a room id does not exist. It is an
	// explicit error, never treated as "no capacity".
	ErrRoomNotFound = errors.New("room not found")

	// ErrCapacityExceeded means the requested seats do not fit within
	// capacity minus current confirmed and held occupancy.
	ErrCapacityExceeded = errors.New("room capacity exceeded")

	// ErrGenderMismatch means the room's gender restriction does not match
	// the students being placed.
	ErrGenderMismatch = errors.New("room gender mismatch")

	// ErrRoomUnavailable means the room is under maintenance or blocked.
	ErrRoomUnavailable = errors.New("room unavailable")

	// ErrConflict signals an optimistic-concurrency collision on the room's
	// version stamp. Retryable; the allocation manager retries it and it
	// never surfaces past that layer.
	ErrConflict = errors.New("concurrent room update conflict")

	// ErrInsufficientBalance means a debit would take a wallet negative.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrAlreadyAllocated rejects placing or confirming a seat for a
	// student who already holds or occupies one, and rejects a pool join
	// by a student with a confirmed allocation.
	ErrAlreadyAllocated = errors.New("student already has an active allocation")

	// ErrAllocationNotFound is returned for an unknown allocation id.
	ErrAllocationNotFound = errors.New("allocation not found")

	// ErrInvalidAllocationState means the requested transition is not legal
	// from the allocation's current state.
	ErrInvalidAllocationState = errors.New("invalid allocation state")

	// ErrHoldExpired rejects confirming a hold past its expiry.
	ErrHoldExpired = errors.New("hold expired")

	// ErrStudentNotFound is returned for an unknown student id.
	ErrStudentNotFound = errors.New("student not found")

	// ErrGroupNotFound is returned for an unknown roommate group id.
	ErrGroupNotFound = errors.New("roommate group not found")

	// ErrInvalidGroupState rejects placing a hold against a group that is
	// not in proposed state or whose members differ from the hold's.
	ErrInvalidGroupState = errors.New("roommate group not placeable")
)
