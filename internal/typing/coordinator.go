// Package typing keeps the advisory "is typing" state per room. Nothing here
// is persisted.
package typing

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"supportchat/backend/internal/models"
)

// Notifier delivers an event to a room's subscribers, skipping the
// connections of exceptUserID.
type Notifier interface {
	BroadcastRoom(roomID string, ev models.Event, exceptUserID string)
}

type entry struct {
	alias string
	gen   uint64
	timer *time.Timer
}

// room is dropped from the map as soon as nobody types in it. A dead room
// must not be written to; callers look the room up again.
type room struct {
	mu     sync.Mutex
	typing map[string]*entry
	dead   bool
}

// Coordinator serializes calls per room; events for a room are emitted in
// call order. Entries expire after ttl without a fresh Start.
type Coordinator struct {
	rooms    sync.Map // roomID -> *room
	notifier Notifier
	ttl      time.Duration
	gen      atomic.Uint64
}

func NewCoordinator(n Notifier, ttl time.Duration) *Coordinator {
	return &Coordinator{notifier: n, ttl: ttl}
}

// lockRoom returns roomID's live state with its mutex held, creating it if
// needed.
func (c *Coordinator) lockRoom(roomID string) *room {
	for {
		v, ok := c.rooms.Load(roomID)
		if !ok {
			v, _ = c.rooms.LoadOrStore(roomID, &room{typing: make(map[string]*entry)})
		}
		r := v.(*room)
		r.mu.Lock()
		if !r.dead {
			return r
		}
		r.mu.Unlock()
	}
}

// lockExisting is lockRoom without creation. It returns nil when roomID has
// no typing state.
func (c *Coordinator) lockExisting(roomID string) *room {
	for {
		v, ok := c.rooms.Load(roomID)
		if !ok {
			return nil
		}
		r := v.(*room)
		r.mu.Lock()
		if !r.dead {
			return r
		}
		r.mu.Unlock()
	}
}

// unlockRoom releases r, dropping it when nobody is typing.
func (c *Coordinator) unlockRoom(roomID string, r *room) {
	if len(r.typing) == 0 && !r.dead {
		r.dead = true
		c.rooms.CompareAndDelete(roomID, r)
	}
	r.mu.Unlock()
}

// Start marks userID as typing in roomID. Only the transition into typing is
// broadcast; repeated starts just push the expiry back.
func (c *Coordinator) Start(roomID, userID, alias string) {
	gen := c.gen.Add(1)
	r := c.lockRoom(roomID)
	defer r.mu.Unlock()

	e, ok := r.typing[userID]
	if ok {
		e.timer.Stop()
		e.gen = gen
		e.alias = alias
	} else {
		e = &entry{alias: alias, gen: gen}
		r.typing[userID] = e
		c.emit(roomID, models.EvtUserTyping, userID, alias)
	}
	e.timer = time.AfterFunc(c.ttl, func() { c.expire(roomID, userID, gen) })
}

// Stop clears userID's typing state in roomID.
func (c *Coordinator) Stop(roomID, userID string) {
	r := c.lockExisting(roomID)
	if r == nil {
		return
	}
	c.clearLocked(roomID, r, userID)
	c.unlockRoom(roomID, r)
}

// ClearUser removes userID from every room it is typing in.
func (c *Coordinator) ClearUser(userID string) {
	c.rooms.Range(func(key, value any) bool {
		r := value.(*room)
		r.mu.Lock()
		if r.dead {
			r.mu.Unlock()
			return true
		}
		c.clearLocked(key.(string), r, userID)
		c.unlockRoom(key.(string), r)
		return true
	})
}

// ClearRoom drops all typing state for roomID.
func (c *Coordinator) ClearRoom(roomID string) {
	v, ok := c.rooms.LoadAndDelete(roomID)
	if !ok {
		return
	}
	r := v.(*room)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dead = true
	for userID := range r.typing {
		c.clearLocked(roomID, r, userID)
	}
}

// Typing returns the users currently typing in roomID, sorted.
func (c *Coordinator) Typing(roomID string) []string {
	r := c.lockExisting(roomID)
	if r == nil {
		return nil
	}
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.typing))
	for userID := range r.typing {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// expire fires from a timer. A newer Start has a different gen and wins.
func (c *Coordinator) expire(roomID, userID string, gen uint64) {
	r := c.lockExisting(roomID)
	if r == nil {
		return
	}
	if e, ok := r.typing[userID]; ok && e.gen == gen {
		c.clearLocked(roomID, r, userID)
	}
	c.unlockRoom(roomID, r)
}

func (c *Coordinator) clearLocked(roomID string, r *room, userID string) {
	e, ok := r.typing[userID]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(r.typing, userID)
	c.emit(roomID, models.EvtUserStoppedTyping, userID, e.alias)
}

func (c *Coordinator) emit(roomID, eventType, userID, alias string) {
	if c.notifier == nil {
		return
	}
	c.notifier.BroadcastRoom(roomID, models.NewEvent(eventType, models.TypingPayload{
		RoomID: roomID,
		UserID: userID,
		Alias:  alias,
	}), userID)
}
