package chathub_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/chathub"
	"supportchat/backend/internal/models"
	"supportchat/backend/internal/moderation"
	"supportchat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const waitTimeout = time.Second

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	hub   *chathub.ManagerService
	store *memStorage
	clock *fakeClock
	room  *models.Room
}

// newFixture builds a hub over an in-memory store with one active room
// between user_A and user_B. A nil classifier yields neutral labels.
func newFixture(t *testing.T, c moderation.Classifier) *fixture {
	t.Helper()
	store := newMemStorage()
	return newFixtureWithStorage(t, store, store, c)
}

func newFixtureWithStorage(t *testing.T, s storage.Storage, mem *memStorage, c moderation.Classifier) *fixture {
	t.Helper()
	clock := newFakeClock()
	guard := moderation.NewGuard(c, 100*time.Millisecond, nil)
	hub := chathub.NewManagerService(s, guard, chathub.Options{
		TypingTTL: time.Minute,
		Now:       clock.Now,
	})

	room := models.NewRoom("user_A", "user_B", clock.Now())
	require.NoError(t, mem.CreateRoom(context.Background(), room))

	return &fixture{hub: hub, store: mem, clock: clock, room: room}
}

func (f *fixture) connect(t *testing.T, userID string) *MockClient {
	t.Helper()
	c := newMockClient(userID)
	require.NoError(t, f.hub.Register(context.Background(), c))
	return c
}

func TestManager_RegisterAutoJoinsActiveRooms(t *testing.T) {
	f := newFixture(t, nil)

	clientA := f.connect(t, "user_A")

	joined := clientA.eventsOf(models.EvtRoomJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, f.room.RoomID, joined[0].Payload.(models.RoomPayload).RoomID)
	assert.True(t, f.hub.IsSubscribed(clientA.GetConnID(), f.room.RoomID))
	assert.True(t, f.hub.Presence.IsOnline("user_A"))
}

func TestManager_RegisterRollsBackOnStorageError(t *testing.T) {
	storageMock := new(MockStorage)
	storageMock.On("ActiveRoomIDsForUser", mock.Anything, "user_A").
		Return(nil, errors.New("connection refused"))
	hub := chathub.NewManagerService(storageMock, nil, chathub.Options{})

	clientA := newMockClient("user_A")
	err := hub.Register(context.Background(), clientA)

	require.Error(t, err)
	assert.False(t, hub.Presence.IsOnline("user_A"))
	assert.Equal(t, 1, clientA.Closed())
	assert.Zero(t, hub.SendToUser("user_A", models.NewEvent("ping", nil)))
}

func TestManager_RegisterRejectsDuplicateConnection(t *testing.T) {
	f := newFixture(t, nil)
	clientA := f.connect(t, "user_A")

	err := f.hub.Register(context.Background(), clientA)

	assert.Error(t, err)
}

func TestManager_UnregisterIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	clientA := f.connect(t, "user_A")

	f.hub.Unregister(clientA)
	f.hub.Unregister(clientA)

	assert.Equal(t, 1, clientA.Closed())
	assert.False(t, f.hub.IsSubscribed(clientA.GetConnID(), f.room.RoomID))
	assert.False(t, f.hub.Presence.IsOnline("user_A"))
}

func TestManager_PresenceChangesReachOtherUsers(t *testing.T) {
	f := newFixture(t, nil)
	clientA := f.connect(t, "user_A")
	clientA.drain()

	clientB := f.connect(t, "user_B")
	online := clientA.eventsOf(models.EvtUserStatusChanged)
	require.Len(t, online, 1)
	p := online[0].Payload.(models.StatusChangedPayload)
	assert.Equal(t, "user_B", p.UserID)
	assert.True(t, p.IsOnline)

	f.hub.Unregister(clientB)
	offline := clientA.eventsOf(models.EvtUserStatusChanged)
	require.Len(t, offline, 1)
	q := offline[0].Payload.(models.StatusChangedPayload)
	assert.False(t, q.IsOnline)
	assert.Greater(t, q.Version, p.Version)
}

func TestManager_SecondDeviceKeepsUserOnline(t *testing.T) {
	f := newFixture(t, nil)
	phone := f.connect(t, "user_A")
	laptop := f.connect(t, "user_A")

	f.hub.Unregister(phone)

	assert.True(t, f.hub.Presence.IsOnline("user_A"))
	f.hub.Unregister(laptop)
	assert.False(t, f.hub.Presence.IsOnline("user_A"))
}

func TestManager_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t, nil)
	clientA := f.connect(t, "user_A")
	slow := newMockClientWithBuffer("user_B", 1)
	require.NoError(t, f.hub.Register(context.Background(), slow))
	slow.drain()
	clientA.drain()

	for i := 0; i < 5; i++ {
		_, err := f.hub.Submit(context.Background(), "user_A", "alias_user_A", f.room.RoomID, "hello", "")
		require.NoError(t, err)
	}

	assert.Len(t, clientA.eventsOf(models.EvtNewMessage), 5)
	assert.Len(t, slow.drain(), 1)
	assert.Equal(t, 5, f.store.messageCount(f.room.RoomID))
}

func TestManager_OpenRoomSubscribesLiveConnections(t *testing.T) {
	f := newFixture(t, nil)
	clientC := f.connect(t, "user_C")
	clientD := f.connect(t, "user_D")
	clientC.drain()
	clientD.drain()

	room, err := f.hub.OpenRoom(context.Background(), "user_C", "user_D")
	require.NoError(t, err)

	for _, c := range []*MockClient{clientC, clientD} {
		joined := c.eventsOf(models.EvtRoomJoined)
		require.Len(t, joined, 1)
		assert.Equal(t, room.RoomID, joined[0].Payload.(models.RoomPayload).RoomID)
		assert.True(t, f.hub.IsSubscribed(c.GetConnID(), room.RoomID))
	}
}

func TestManager_OpenRoomConflict(t *testing.T) {
	f := newFixture(t, nil)

	room, err := f.hub.OpenRoom(context.Background(), "user_B", "user_A")

	assert.ErrorIs(t, err, chaterr.ErrConflict)
	require.NotNil(t, room)
	assert.Equal(t, f.room.RoomID, room.RoomID)
}

func TestManager_OpenRoomValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.hub.OpenRoom(context.Background(), "user_A", "user_A")
	assert.ErrorIs(t, err, chaterr.ErrValidation)

	_, err = f.hub.OpenRoom(context.Background(), "", "user_A")
	assert.ErrorIs(t, err, chaterr.ErrValidation)
}

func TestManager_ArchiveNotifiesAndBlocksSends(t *testing.T) {
	f := newFixture(t, nil)
	clientA := f.connect(t, "user_A")
	clientB := f.connect(t, "user_B")
	clientB.drain()

	require.NoError(t, f.hub.Archive(context.Background(), f.room.RoomID, "manual"))
	require.NoError(t, f.hub.Archive(context.Background(), f.room.RoomID, "manual"))

	assert.Len(t, clientB.eventsOf(models.EvtRoomArchived), 1, "archiving twice notifies once")

	_, err := f.hub.Submit(context.Background(), "user_A", "alias_user_A", f.room.RoomID, "still there?", "")
	assert.ErrorIs(t, err, chaterr.ErrAuthorizationDenied)
	assert.Zero(t, f.store.messageCount(f.room.RoomID))
	assert.Empty(t, clientA.eventsOf(models.EvtNewMessage))
}

func TestManager_DeclineRequiresParticipant(t *testing.T) {
	f := newFixture(t, nil)

	err := f.hub.Decline(context.Background(), "user_C", f.room.RoomID)
	assert.ErrorIs(t, err, chaterr.ErrAuthorizationDenied)

	require.NoError(t, f.hub.Decline(context.Background(), "user_B", f.room.RoomID))
	room, err := f.store.GetRoom(context.Background(), f.room.RoomID)
	require.NoError(t, err)
	assert.False(t, room.IsActive)
}

func TestManager_SweepStaleRooms(t *testing.T) {
	f := newFixture(t, nil)
	clientB := f.connect(t, "user_B")
	clientB.drain()

	n, err := f.hub.SweepStaleRooms(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(25 * time.Hour)
	n, err = f.hub.SweepStaleRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, clientB.eventsOf(models.EvtRoomArchived), 1)
}

func TestManager_DisconnectWhileTypingClearsIndicator(t *testing.T) {
	f := newFixture(t, nil)
	clientA := f.connect(t, "user_A")
	clientB := f.connect(t, "user_B")
	clientB.drain()

	f.hub.Dispatch(context.Background(), clientA, models.Command{Type: models.CmdTypingStart, RoomID: f.room.RoomID})
	typing := clientB.eventsOf(models.EvtUserTyping)
	require.Len(t, typing, 1)
	assert.Equal(t, "user_A", typing[0].Payload.(models.TypingPayload).UserID)

	f.hub.Unregister(clientA)

	stopped := clientB.eventsOf(models.EvtUserStoppedTyping)
	require.Len(t, stopped, 1)
	assert.Equal(t, "user_A", stopped[0].Payload.(models.TypingPayload).UserID)
	assert.Empty(t, f.hub.Typing.Typing(f.room.RoomID))
}

func TestManager_RunStopsWithContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after cancel")
	}
}

func TestManager_SessionsPrunedWhenEmpty(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.submit(t, "user_A", "nobody is listening")
	assert.Zero(t, f.hub.SessionCount(), "a send with no subscribers leaves nothing behind")

	clientA := f.connect(t, "user_A")
	assert.Equal(t, 1, f.hub.SessionCount())

	f.hub.Leave(clientA, f.room.RoomID)
	assert.Zero(t, f.hub.SessionCount())

	require.NoError(t, f.hub.Join(ctx, clientA, f.room.RoomID))
	require.NoError(t, f.hub.Archive(ctx, f.room.RoomID, "manual"))
	assert.Equal(t, 1, f.hub.SessionCount(), "archived rooms keep their group while someone listens")

	f.hub.Unregister(clientA)
	assert.Zero(t, f.hub.SessionCount())
}

func TestManager_ConcurrentJoinLeaveKeepsDelivering(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	listener := f.connect(t, "user_B")
	listener.drain()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := newMockClient("user_A")
			if err := f.hub.Register(ctx, c); err != nil {
				return
			}
			f.hub.Leave(c, f.room.RoomID)
			f.hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			_, err := f.hub.Submit(ctx, "user_A", "alias_user_A", f.room.RoomID, "hello", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, listener.eventsOf(models.EvtNewMessage), 20, "the steady subscriber saw every message")
	assert.Equal(t, 1, f.hub.SessionCount())

	f.hub.Unregister(listener)
	assert.Zero(t, f.hub.SessionCount())
}
