package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"hostel-allocation-backend/internal/allocation"
	"hostel-allocation-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool turns allocation-state-change events into push notifications
// for the students involved. It is the delivery collaborator: the allocation
// engine only emits events and never formats messages itself.
type WorkerPool struct {
	size    int
	jobs    chan allocation.Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan allocation.Event, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case event := <-wp.jobs:
			wp.deliver(ctx, event)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an event for delivery. Drops the event rather than block
// an allocation flow when the queue is full.
func (wp *WorkerPool) Dispatch(event allocation.Event) {
	select {
	case wp.jobs <- event:
	default:
		log.Printf("Notification queue full; dropping %s event for allocation %s", event.Kind, event.AllocationID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan allocation.Event {
	return wp.jobs
}

// pushPayload is what subscribed browsers receive.
type pushPayload struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	Kind         string `json:"kind"`
	AllocationID string `json:"allocation_id"`
	RoomID       int64  `json:"room_id"`
}

func (wp *WorkerPool) deliver(ctx context.Context, event allocation.Event) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("student_id IN ?", event.StudentIDs).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for allocation %s: %v", event.AllocationID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	roomLabel := fmt.Sprintf("room %d", event.RoomID)
	var room model.Room
	if err := wp.db.WithContext(ctx).
		Select("room_number", "block").
		First(&room, event.RoomID).Error; err == nil && room.RoomNumber != "" {
		roomLabel = "room " + room.RoomNumber
		if room.Block != "" {
			roomLabel = fmt.Sprintf("room %s (%s)", room.RoomNumber, room.Block)
		}
	}

	payload, err := json.Marshal(pushPayload{
		Title:        "Hostel allocation update",
		Body:         messageFor(event.Kind, roomLabel),
		Kind:         string(event.Kind),
		AllocationID: event.AllocationID,
		RoomID:       event.RoomID,
	})
	if err != nil {
		log.Printf("Error marshalling push payload: %v", err)
		return
	}

	log.Printf("Sending %d notifications for allocation %s", len(subscriptions), event.AllocationID)
	for _, sub := range subscriptions {
		wp.send(ctx, sub, payload)
	}
}

func messageFor(kind allocation.EventKind, roomLabel string) string {
	switch kind {
	case allocation.EventHoldCreated:
		return fmt.Sprintf("A seat in %s is held for you. Complete payment to confirm it.", roomLabel)
	case allocation.EventHoldConfirmed:
		return fmt.Sprintf("Your seat in %s is confirmed.", roomLabel)
	case allocation.EventHoldExpired:
		return fmt.Sprintf("Your hold on %s expired before payment.", roomLabel)
	case allocation.EventHoldReleased:
		return fmt.Sprintf("Your hold on %s was released.", roomLabel)
	case allocation.EventTransferCompleted:
		return fmt.Sprintf("Your transfer to %s is complete.", roomLabel)
	case allocation.EventDeallocated:
		return fmt.Sprintf("You have been deallocated from %s.", roomLabel)
	default:
		return fmt.Sprintf("Allocation update for %s.", roomLabel)
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
