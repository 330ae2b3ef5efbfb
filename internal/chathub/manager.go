package chathub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"supportchat/backend/internal/config"
	"supportchat/backend/internal/crisis"
	"supportchat/backend/internal/metrics"
	"supportchat/backend/internal/models"
	"supportchat/backend/internal/moderation"
	"supportchat/backend/internal/presence"
	"supportchat/backend/internal/storage"
	"supportchat/backend/internal/typing"

	"go.uber.org/zap"
)

// roomSession is the in-memory broadcast group of one room. Its mutex orders
// persistence and fan-out for the room; nothing else shares it. A session
// with no subscribers is removed from the map and marked dead; holders of a
// dead session must look the room up again.
type roomSession struct {
	mu          sync.Mutex
	subscribers map[string]Client // connID -> client
	dead        bool
}

// connState tracks which rooms a connection is subscribed to. Once closed it
// accepts no new subscriptions.
type connState struct {
	client Client
	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool
}

// close marks the connection closed and returns the rooms it was in.
func (c *connState) close() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

type userConns struct {
	mu    sync.Mutex
	conns map[string]Client
}

// Options tune a ManagerService. Zero values fall back to the defaults in
// the config package.
type Options struct {
	EditWindow      time.Duration
	ArchiveInterval time.Duration
	TypingTTL       time.Duration
	Mirror          presence.Mirror
	MirrorTTL       time.Duration
	Logger          *zap.Logger
	Now             func() time.Time
}

// ManagerService is the chat hub: it owns live connections, room broadcast
// groups and the message pipeline. State is kept in per-key structures so
// that work on different users and rooms never contends.
type ManagerService struct {
	Storage   storage.Storage
	Presence  *presence.Registry
	Typing    *typing.Coordinator
	guard     *moderation.Guard
	escalator *crisis.Escalator

	conns    sync.Map // connID -> *connState
	users    sync.Map // userID -> *userConns
	sessions sync.Map // roomID -> *roomSession
	msgLocks stripedMutex

	editWindow      time.Duration
	archiveInterval time.Duration
	log             *zap.Logger
	now             func() time.Time
}

func NewManagerService(s storage.Storage, guard *moderation.Guard, opts Options) *ManagerService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.EditWindow <= 0 {
		opts.EditWindow = config.DefaultEditWindow
	}
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = config.DefaultTypingTTL
	}
	if opts.ArchiveInterval <= 0 {
		opts.ArchiveInterval = 10 * time.Minute
	}
	if guard == nil {
		guard = moderation.NewGuard(nil, config.DefaultClassifierTTL, opts.Logger)
	}

	m := &ManagerService{
		Storage:         s,
		guard:           guard,
		editWindow:      opts.EditWindow,
		archiveInterval: opts.ArchiveInterval,
		log:             opts.Logger.Named("chathub"),
		now:             opts.Now,
	}

	presenceOpts := []presence.Option{presence.WithClock(opts.Now)}
	if opts.Mirror != nil {
		presenceOpts = append(presenceOpts, presence.WithMirror(opts.Mirror, opts.MirrorTTL))
	}
	m.Presence = presence.NewRegistry(m, opts.Logger, presenceOpts...)
	m.Typing = typing.NewCoordinator(m, opts.TypingTTL)
	m.escalator = crisis.NewEscalator(m, opts.Logger)
	return m
}

// Run blocks until ctx is done, archiving stale rooms on every tick.
func (m *ManagerService) Run(ctx context.Context) {
	m.log.Info("chat hub started", zap.Duration("archive_interval", m.archiveInterval))
	m.RunArchiver(ctx)
	m.log.Info("chat hub stopped")
}

// Register makes a new connection ready: presence is updated and the
// connection is subscribed to every active room of its user before Register
// returns. On error the connection is fully rolled back.
func (m *ManagerService) Register(ctx context.Context, c Client) error {
	state := &connState{client: c, rooms: make(map[string]struct{})}
	if _, loaded := m.conns.LoadOrStore(c.GetConnID(), state); loaded {
		return fmt.Errorf("connection %s already registered", c.GetConnID())
	}

	uc := m.userConns(c.GetUserID())
	uc.mu.Lock()
	uc.conns[c.GetConnID()] = c
	uc.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	m.Presence.Register(c.GetUserID(), c.GetAlias(), c.GetConnID())

	if err := m.AutoJoinActiveRooms(ctx, c); err != nil {
		m.log.Error("auto-join failed", zap.String("user_id", c.GetUserID()), zap.Error(err))
		m.Unregister(c)
		return err
	}

	m.log.Info("client registered",
		zap.String("user_id", c.GetUserID()),
		zap.String("conn_id", c.GetConnID()),
	)
	return nil
}

// Unregister removes a connection everywhere. In-flight submits from it are
// not cancelled. Calling it twice is harmless.
func (m *ManagerService) Unregister(c Client) {
	v, ok := m.conns.LoadAndDelete(c.GetConnID())
	if !ok {
		return
	}
	state := v.(*connState)

	for _, roomID := range state.close() {
		m.unsubscribe(roomID, c)
	}

	if v, ok := m.users.Load(c.GetUserID()); ok {
		uc := v.(*userConns)
		uc.mu.Lock()
		delete(uc.conns, c.GetConnID())
		uc.mu.Unlock()
	}

	m.Typing.ClearUser(c.GetUserID())
	m.Presence.Unregister(c.GetUserID(), c.GetConnID())
	metrics.ConnectionsActive.Dec()
	c.Close()

	m.log.Info("client unregistered",
		zap.String("user_id", c.GetUserID()),
		zap.String("conn_id", c.GetConnID()),
	)
}

// SendToUser delivers ev to every live connection of userID and returns how
// many accepted it.
func (m *ManagerService) SendToUser(userID string, ev models.Event) int {
	delivered := 0
	for _, c := range m.userClients(userID) {
		if m.deliver(c, ev) {
			delivered++
		}
	}
	return delivered
}

// BroadcastAll delivers ev to every connection in the process.
func (m *ManagerService) BroadcastAll(ev models.Event) {
	m.conns.Range(func(_, value any) bool {
		m.deliver(value.(*connState).client, ev)
		return true
	})
}

// BroadcastRoom delivers ev to the room's subscribers, skipping connections
// that belong to exceptUserID.
func (m *ManagerService) BroadcastRoom(roomID string, ev models.Event, exceptUserID string) {
	v, ok := m.sessions.Load(roomID)
	if !ok {
		return
	}
	s := v.(*roomSession)
	s.mu.Lock()
	if !s.dead {
		m.fanoutLocked(s, ev, exceptUserID)
	}
	s.mu.Unlock()
}

// fanoutLocked must be called with s.mu held. Sends never block: a full
// buffer drops the event for that connection only.
func (m *ManagerService) fanoutLocked(s *roomSession, ev models.Event, exceptUserID string) {
	for _, c := range s.subscribers {
		if exceptUserID != "" && c.GetUserID() == exceptUserID {
			continue
		}
		m.deliver(c, ev)
	}
}

func (m *ManagerService) deliver(c Client, ev models.Event) bool {
	select {
	case c.GetSendChannel() <- ev:
		return true
	default:
		metrics.BroadcastDrops.Inc()
		m.log.Warn("client send buffer full, dropping event",
			zap.String("conn_id", c.GetConnID()),
			zap.String("event", ev.Type),
		)
		return false
	}
}

// lockSession returns roomID's live session with its mutex held, creating
// the session if needed. Release it with unlockSession.
func (m *ManagerService) lockSession(roomID string) *roomSession {
	for {
		v, ok := m.sessions.Load(roomID)
		if !ok {
			v, _ = m.sessions.LoadOrStore(roomID, &roomSession{subscribers: make(map[string]Client)})
		}
		s := v.(*roomSession)
		s.mu.Lock()
		if !s.dead {
			return s
		}
		s.mu.Unlock()
	}
}

// unlockSession releases s, dropping it first when nobody is subscribed.
func (m *ManagerService) unlockSession(roomID string, s *roomSession) {
	if len(s.subscribers) == 0 && !s.dead {
		s.dead = true
		m.sessions.CompareAndDelete(roomID, s)
	}
	s.mu.Unlock()
}

func (m *ManagerService) userConns(userID string) *userConns {
	if v, ok := m.users.Load(userID); ok {
		return v.(*userConns)
	}
	v, _ := m.users.LoadOrStore(userID, &userConns{conns: make(map[string]Client)})
	return v.(*userConns)
}

// subscribeLocked must be called with s.mu held.
func (m *ManagerService) subscribeLocked(s *roomSession, roomID string, c Client) bool {
	v, ok := m.conns.Load(c.GetConnID())
	if !ok {
		return false
	}
	state := v.(*connState)
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.closed {
		return false
	}
	state.rooms[roomID] = struct{}{}
	s.subscribers[c.GetConnID()] = c
	return true
}

func (m *ManagerService) unsubscribe(roomID string, c Client) bool {
	removed := false
	if v, ok := m.sessions.Load(roomID); ok {
		s := v.(*roomSession)
		s.mu.Lock()
		_, removed = s.subscribers[c.GetConnID()]
		delete(s.subscribers, c.GetConnID())
		m.unlockSession(roomID, s)
	}
	if v, ok := m.conns.Load(c.GetConnID()); ok {
		state := v.(*connState)
		state.mu.Lock()
		delete(state.rooms, roomID)
		state.mu.Unlock()
	}
	return removed
}

// IsSubscribed reports whether connID is in roomID's broadcast group.
func (m *ManagerService) IsSubscribed(connID, roomID string) bool {
	v, ok := m.conns.Load(connID)
	if !ok {
		return false
	}
	state := v.(*connState)
	state.mu.Lock()
	defer state.mu.Unlock()
	_, ok = state.rooms[roomID]
	return ok
}
