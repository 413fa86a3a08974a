package allocation

import "time"

// EventKind names an allocation-state change.
type EventKind string

const (
	EventHoldCreated       EventKind = "hold_created"
	EventHoldConfirmed     EventKind = "hold_confirmed"
	EventHoldReleased      EventKind = "hold_released"
	EventHoldExpired       EventKind = "hold_expired"
	EventTransferCompleted EventKind = "transfer_completed"
	EventDeallocated       EventKind = "deallocated"
)

// Event is emitted on every allocation-state change. The engine does not
// format or deliver user-facing messages; a delivery worker consumes these.
type Event struct {
	Kind         EventKind `json:"kind"`
	AllocationID string    `json:"allocation_id"`
	RoomID       int64     `json:"room_id"`
	StudentIDs   []int64   `json:"student_ids"`
	At           time.Time `json:"at"`
}

// EventSink receives allocation events. Dispatch must not block the caller
// for long; delivery happens on the sink's own workers.
type EventSink interface {
	Dispatch(event Event)
}

// discardSink drops events, for tests and for running without push delivery.
type discardSink struct{}

func (discardSink) Dispatch(Event) {}

// DiscardSink returns a sink that drops every event.
func DiscardSink() EventSink { return discardSink{} }
