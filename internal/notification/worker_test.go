package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"hostel-allocation-backend/internal/allocation"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	event := allocation.Event{
		Kind:         allocation.EventHoldConfirmed,
		AllocationID: "alloc-1",
		RoomID:       7,
		StudentIDs:   []int64{1},
	}
	wp.Dispatch(event)

	select {
	case job := <-wp.jobs:
		assert.Equal(t, event, job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends a confirmation notification with the room label", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)

				var msg pushPayload
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "Hostel allocation update", msg.Title)
				assert.Equal(t, "Your seat in room A-101 (A Block) is confirmed.", msg.Body)
				assert.Equal(t, "alloc-1", msg.AllocationID)

				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_subscriptions" WHERE student_id IN`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "student_id", "created_at"}).
				AddRow("https://example.com/push", "test_p256dh", "test_auth", 1, time.Now()))

		mock.ExpectQuery(`SELECT "room_number","block" FROM "rooms" WHERE "rooms"."id" = \$1`).
			WithArgs(int64(7), 1).
			WillReturnRows(sqlmock.NewRows([]string{"room_number", "block"}).AddRow("A-101", "A Block"))

		wp.Dispatch(allocation.Event{
			Kind:         allocation.EventHoldConfirmed,
			AllocationID: "alloc-1",
			RoomID:       7,
			StudentIDs:   []int64{1},
		})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes an expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_subscriptions" WHERE student_id IN`).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "student_id", "created_at"}).
				AddRow("https://example.com/expired", "test_p256dh", "test_auth", 2, time.Now()))

		mock.ExpectQuery(`SELECT "room_number","block" FROM "rooms" WHERE "rooms"."id" = \$1`).
			WithArgs(int64(8), 1).
			WillReturnRows(sqlmock.NewRows([]string{"room_number", "block"}).AddRow("B-201", "B Block"))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(allocation.Event{
			Kind:         allocation.EventHoldExpired,
			AllocationID: "alloc-2",
			RoomID:       8,
			StudentIDs:   []int64{2},
		})

		// A short sleep to allow the worker to process the job
		time.Sleep(100 * time.Millisecond)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no subscriptions means no sends", func(t *testing.T) {
		sent := false
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				sent = true
				return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_subscriptions" WHERE student_id IN`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "student_id", "created_at"}))

		wp.Dispatch(allocation.Event{
			Kind:       allocation.EventDeallocated,
			RoomID:     9,
			StudentIDs: []int64{3},
		})

		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.False(t, sent)
	})
}

func TestMessageFor(t *testing.T) {
	testCases := []struct {
		kind allocation.EventKind
		want string
	}{
		{allocation.EventHoldCreated, "A seat in room A-101 is held for you. Complete payment to confirm it."},
		{allocation.EventHoldConfirmed, "Your seat in room A-101 is confirmed."},
		{allocation.EventHoldExpired, "Your hold on room A-101 expired before payment."},
		{allocation.EventHoldReleased, "Your hold on room A-101 was released."},
		{allocation.EventTransferCompleted, "Your transfer to room A-101 is complete."},
		{allocation.EventDeallocated, "You have been deallocated from room A-101."},
		{allocation.EventKind("other"), "Allocation update for room A-101."},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, messageFor(tc.kind, "room A-101"))
	}
}
