package allocation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hostel-allocation-backend/config"
	dbpkg "hostel-allocation-backend/internal/db"
	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

// recordSink collects dispatched events for assertions.
type recordSink struct {
	events []Event
}

func (r *recordSink) Dispatch(event Event) {
	r.events = append(r.events, event)
}

func (r *recordSink) kinds() []EventKind {
	kinds := make([]EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func newTestStore(t *testing.T) (store.Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbpkg.Migrate(gdb))
	return store.NewGormStore(gdb), gdb
}

func testAllocationConfig() config.AllocationConfig {
	return config.AllocationConfig{
		HoldTTL:         time.Hour,
		ConflictRetries: 3,
		RetryBackoff:    time.Millisecond,
		Refund:          config.RefundConfig{Kind: "full"},
	}
}

func seedRoom(t *testing.T, s store.Store, room model.Room) *model.Room {
	t.Helper()
	if room.RoomType == "" {
		room.RoomType = model.RoomTypeDouble
	}
	if room.MaintenanceStatus == "" {
		room.MaintenanceStatus = model.MaintenanceNone
	}
	require.NoError(t, s.CreateRoom(context.Background(), &room))
	return &room
}

func seedStudent(t *testing.T, gdb *gorm.DB, id int64, gender model.Gender, status model.StudentStatus) {
	t.Helper()
	student := model.Student{
		ID:     id,
		Name:   fmt.Sprintf("Student %d", id),
		Gender: gender,
		Status: status,
	}
	require.NoError(t, gdb.Create(&student).Error)
}

func TestPlaceHoldAndConfirm(t *testing.T) {
	s, gdb := newTestStore(t)
	sink := &recordSink{}
	m := NewManager(s, testAllocationConfig(), sink)
	ctx := context.Background()

	room := seedRoom(t, s, model.Room{RoomNumber: "A-101", Block: "A Block", Gender: model.GenderGirls, Capacity: 2})
	seedStudent(t, gdb, 1, model.GenderGirls, model.StudentActive)
	seedStudent(t, gdb, 2, model.GenderGirls, model.StudentActive)

	alloc, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, model.AllocationHold, alloc.State)
	require.NotNil(t, alloc.HoldExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), *alloc.HoldExpiresAt, 5*time.Second)

	fresh, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.HeldCount)
	assert.Equal(t, 0, fresh.ConfirmedCount)

	confirmed, err := m.Confirm(ctx, alloc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AllocationConfirmed, confirmed.State)

	fresh, err = s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.HeldCount)
	assert.Equal(t, 2, fresh.ConfirmedCount)

	assert.Equal(t, []EventKind{EventHoldCreated, EventHoldConfirmed}, sink.kinds())
}

func TestPlaceHoldValidation(t *testing.T) {
	s, gdb := newTestStore(t)
	m := NewManager(s, testAllocationConfig(), nil)
	ctx := context.Background()

	room := seedRoom(t, s, model.Room{RoomNumber: "A-101", Block: "A Block", Gender: model.GenderGirls, Capacity: 4})
	seedStudent(t, gdb, 1, model.GenderGirls, model.StudentActive)
	seedStudent(t, gdb, 2, model.GenderBoys, model.StudentActive)
	seedStudent(t, gdb, 3, model.GenderGirls, model.StudentGraduated)
	seedStudent(t, gdb, 4, model.GenderGirls, model.StudentActive)

	t.Run("empty request", func(t *testing.T) {
		_, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID})
		assert.Error(t, err)
	})

	t.Run("duplicate students", func(t *testing.T) {
		_, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1, 1}})
		assert.Error(t, err)
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1, 999}})
		assert.ErrorIs(t, err, store.ErrStudentNotFound)
	})

	t.Run("mixed genders", func(t *testing.T) {
		_, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1, 2}})
		assert.ErrorIs(t, err, store.ErrGenderMismatch)
	})

	t.Run("inactive student", func(t *testing.T) {
		_, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{3}})
		assert.ErrorIs(t, err, store.ErrInvalidAllocationState)
	})

	t.Run("already allocated", func(t *testing.T) {
		alloc, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1}})
		require.NoError(t, err)
		_, err = m.Confirm(ctx, alloc.ID)
		require.NoError(t, err)

		_, err = m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1, 4}})
		assert.ErrorIs(t, err, store.ErrAlreadyAllocated)
	})

	t.Run("no writes survive a failed validation", func(t *testing.T) {
		fresh, err := s.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, fresh.HeldCount)
		assert.Equal(t, 1, fresh.ConfirmedCount)
	})
}

func TestOneSeatPerStudent(t *testing.T) {
	s, gdb := newTestStore(t)
	m := NewManager(s, testAllocationConfig(), nil)
	ctx := context.Background()

	first := seedRoom(t, s, model.Room{RoomNumber: "A-101", Block: "A Block", Gender: model.GenderGirls, Capacity: 1})
	second := seedRoom(t, s, model.Room{RoomNumber: "A-102", Block: "A Block", Gender: model.GenderGirls, Capacity: 1})
	seedStudent(t, gdb, 1, model.GenderGirls, model.StudentActive)

	hold, err := m.PlaceHold(ctx, HoldRequest{RoomID: first.ID, StudentIDs: []int64{1}})
	require.NoError(t, err)

	t.Run("a pending hold blocks a second hold", func(t *testing.T) {
		_, err := m.PlaceHold(ctx, HoldRequest{RoomID: second.ID, StudentIDs: []int64{1}})
		assert.ErrorIs(t, err, store.ErrAlreadyAllocated)

		fresh, err := s.GetRoom(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, fresh.HeldCount)
	})

	t.Run("confirming racing holds seats the student once", func(t *testing.T) {
		// Two requests can each pass the placement-time check before
		// either hold exists; write the rival hold directly to simulate
		// losing that race.
		_, err := s.TryReserve(ctx, second.ID, 1, store.SeatTemporary, model.GenderGirls)
		require.NoError(t, err)
		expiry := time.Now().UTC().Add(time.Hour)
		rival := &model.Allocation{
			ID:            "rival-hold",
			RoomID:        second.ID,
			State:         model.AllocationHold,
			HoldExpiresAt: &expiry,
			CreatedAt:     time.Now().UTC(),
			UpdatedAt:     time.Now().UTC(),
			Members:       []model.AllocationMember{{AllocationID: "rival-hold", StudentID: 1}},
		}
		require.NoError(t, s.CreateAllocation(ctx, rival))

		_, err = m.Confirm(ctx, hold.ID)
		require.NoError(t, err)

		_, err = m.Confirm(ctx, rival.ID)
		assert.ErrorIs(t, err, store.ErrAlreadyAllocated)

		active, err := s.ActiveAllocationsForStudent(ctx, 1)
		require.NoError(t, err)
		confirmed := 0
		for _, a := range active {
			if a.State == model.AllocationConfirmed {
				confirmed++
			}
		}
		assert.Equal(t, 1, confirmed)
	})
}

func TestPlaceHoldGroupValidation(t *testing.T) {
	s, gdb := newTestStore(t)
	m := NewManager(s, testAllocationConfig(), nil)
	ctx := context.Background()

	room := seedRoom(t, s, model.Room{RoomNumber: "A-101", Block: "A Block", Gender: model.GenderGirls, Capacity: 4})
	for id := int64(1); id <= 3; id++ {
		seedStudent(t, gdb, id, model.GenderGirls, model.StudentActive)
	}

	group := model.RoommateGroup{
		ID:             "pair",
		TargetCapacity: 2,
		AggregateScore: 70,
		Status:         model.GroupProposed,
		FormedAt:       time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
		Members: []model.RoommateGroupMember{
			{GroupID: "pair", StudentID: 1, Position: 0},
			{GroupID: "pair", StudentID: 2, Position: 1},
		},
	}
	require.NoError(t, s.CreateProposedGroups(ctx, []model.RoommateGroup{group}))
	groupID := group.ID

	t.Run("membership must match the hold", func(t *testing.T) {
		_, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1, 3}, GroupID: &groupID})
		assert.ErrorIs(t, err, store.ErrInvalidGroupState)
	})

	t.Run("unknown group", func(t *testing.T) {
		unknown := "missing"
		_, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1, 2}, GroupID: &unknown})
		assert.ErrorIs(t, err, store.ErrGroupNotFound)
	})

	t.Run("a disbanded group cannot be resurrected", func(t *testing.T) {
		require.NoError(t, s.SetGroupStatus(ctx, groupID, model.GroupDisbanded))

		_, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1, 2}, GroupID: &groupID})
		assert.ErrorIs(t, err, store.ErrInvalidGroupState)

		got, err := s.GetGroup(ctx, groupID)
		require.NoError(t, err)
		assert.Equal(t, model.GroupDisbanded, got.Status)

		fresh, err := s.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, fresh.HeldCount)
	})
}

// flakyStore injects optimistic-concurrency conflicts into TryReserve before
// delegating to the real store.
type flakyStore struct {
	store.Store
	failures int
	calls    int
}

func (f *flakyStore) TryReserve(ctx context.Context, roomID int64, seats int, kind store.SeatKind, gender model.Gender) (*model.Room, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, store.ErrConflict
	}
	return f.Store.TryReserve(ctx, roomID, seats, kind, gender)
}

func TestPlaceHoldConflictRetry(t *testing.T) {
	t.Run("transient conflicts are retried away", func(t *testing.T) {
		s, gdb := newTestStore(t)
		flaky := &flakyStore{Store: s, failures: 2}
		m := NewManager(flaky, testAllocationConfig(), nil)

		room := seedRoom(t, s, model.Room{RoomNumber: "A-101", Block: "A Block", Gender: model.GenderBoys, Capacity: 2})
		seedStudent(t, gdb, 1, model.GenderBoys, model.StudentActive)

		alloc, err := m.PlaceHold(context.Background(), HoldRequest{RoomID: room.ID, StudentIDs: []int64{1}})
		require.NoError(t, err)
		assert.Equal(t, model.AllocationHold, alloc.State)
		assert.Equal(t, 3, flaky.calls)
	})

	t.Run("persistent conflicts surface once retries run out", func(t *testing.T) {
		s, gdb := newTestStore(t)
		flaky := &flakyStore{Store: s, failures: 100}
		m := NewManager(flaky, testAllocationConfig(), nil)

		room := seedRoom(t, s, model.Room{RoomNumber: "B-201", Block: "B Block", Gender: model.GenderBoys, Capacity: 2})
		seedStudent(t, gdb, 1, model.GenderBoys, model.StudentActive)

		_, err := m.PlaceHold(context.Background(), HoldRequest{RoomID: room.ID, StudentIDs: []int64{1}})
		assert.ErrorIs(t, err, store.ErrConflict)
		assert.Equal(t, 4, flaky.calls, "initial attempt plus the configured retries")
	})
}

func TestHandlePaymentEvent(t *testing.T) {
	s, gdb := newTestStore(t)
	sink := &recordSink{}
	m := NewManager(s, testAllocationConfig(), sink)
	ctx := context.Background()

	room := seedRoom(t, s, model.Room{RoomNumber: "A-101", Block: "A Block", Gender: model.GenderGirls, Capacity: 2})
	seedStudent(t, gdb, 1, model.GenderGirls, model.StudentActive)
	seedStudent(t, gdb, 2, model.GenderGirls, model.StudentActive)

	t.Run("confirmed payment confirms the hold", func(t *testing.T) {
		alloc, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1}})
		require.NoError(t, err)

		require.NoError(t, m.HandlePaymentEvent(ctx, alloc.ID, true))

		got, err := s.GetAllocation(ctx, alloc.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AllocationConfirmed, got.State)
	})

	t.Run("failed payment releases the hold", func(t *testing.T) {
		alloc, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{2}})
		require.NoError(t, err)

		require.NoError(t, m.HandlePaymentEvent(ctx, alloc.ID, false))

		got, err := s.GetAllocation(ctx, alloc.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AllocationReleased, got.State)
		assert.Equal(t, "payment_failed", got.ReleaseReason)

		fresh, err := s.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, fresh.HeldCount)
	})
}

func TestSweeper(t *testing.T) {
	s, gdb := newTestStore(t)
	sink := &recordSink{}
	m := NewManager(s, testAllocationConfig(), sink)
	ctx := context.Background()

	room := seedRoom(t, s, model.Room{RoomNumber: "A-101", Block: "A Block", Gender: model.GenderBoys, Capacity: 3})
	seedStudent(t, gdb, 1, model.GenderBoys, model.StudentActive)
	seedStudent(t, gdb, 2, model.GenderBoys, model.StudentActive)

	overdue, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{1}})
	require.NoError(t, err)
	fresh, err := m.PlaceHold(ctx, HoldRequest{RoomID: room.ID, StudentIDs: []int64{2}})
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, gdb.Model(&model.Allocation{}).
		Where("id = ?", overdue.ID).
		Update("hold_expires_at", past).Error)

	sweeper := NewSweeper(s, m, time.Minute)
	sweeper.SweepOnce(ctx)

	got, err := s.GetAllocation(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AllocationReleased, got.State)
	assert.Equal(t, "expired", got.ReleaseReason)

	untouched, err := s.GetAllocation(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AllocationHold, untouched.State)

	freshRoom, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, freshRoom.HeldCount)

	assert.Contains(t, sink.kinds(), EventHoldExpired)
}
