// Package presence tracks which users hold live connections.
//
// Each user has an independent record guarded by its own mutex; there is no
// registry-wide lock. Every change to a record bumps its version, and the
// resulting user_status_changed event is handed to the Broadcaster while the
// record is still locked, so observers receive one user's changes in version
// order.
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/models"

	"go.uber.org/zap"
)

// Broadcaster fans a presence event out to every connection in the process.
type Broadcaster interface {
	BroadcastAll(ev models.Event)
}

// Mirror copies presence to a shared store. Writes may arrive out of order;
// implementations must keep the highest version.
type Mirror interface {
	MirrorPresence(ctx context.Context, snap models.PresenceSnapshot, ttl time.Duration) error
}

type record struct {
	mu       sync.Mutex
	alias    string
	conns    map[string]struct{}
	status   models.PresenceStatus
	lastSeen time.Time
	version  uint64
}

type Registry struct {
	records     sync.Map // userID -> *record
	broadcaster Broadcaster
	mirror      Mirror
	mirrorTTL   time.Duration
	log         *zap.Logger
	now         func() time.Time
}

type Option func(*Registry)

func WithMirror(m Mirror, ttl time.Duration) Option {
	return func(r *Registry) {
		r.mirror = m
		r.mirrorTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(b Broadcaster, log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		broadcaster: b,
		log:         log.Named("presence"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) record(userID string) *record {
	if v, ok := r.records.Load(userID); ok {
		return v.(*record)
	}
	v, _ := r.records.LoadOrStore(userID, &record{
		conns:  make(map[string]struct{}),
		status: models.StatusOffline,
	})
	return v.(*record)
}

// Register adds connID to userID's connection set. The first connection
// brings the user online.
func (r *Registry) Register(userID, alias, connID string) models.PresenceSnapshot {
	rec := r.record(userID)

	rec.mu.Lock()
	if alias != "" {
		rec.alias = alias
	}
	_, known := rec.conns[connID]
	rec.conns[connID] = struct{}{}
	changed := !known && len(rec.conns) == 1
	if changed {
		rec.status = models.StatusOnline
		rec.lastSeen = r.now().UTC()
	}
	snap := r.commit(userID, rec, changed)
	rec.mu.Unlock()

	if changed {
		r.mirrorAsync(snap)
	}
	return snap
}

// Unregister removes connID. Removing the last connection takes the user
// offline and stamps lastSeen.
func (r *Registry) Unregister(userID, connID string) models.PresenceSnapshot {
	rec := r.record(userID)

	rec.mu.Lock()
	_, known := rec.conns[connID]
	delete(rec.conns, connID)
	changed := known && len(rec.conns) == 0
	if changed {
		rec.status = models.StatusOffline
		rec.lastSeen = r.now().UTC()
	}
	snap := r.commit(userID, rec, changed)
	rec.mu.Unlock()

	if changed {
		r.mirrorAsync(snap)
	}
	return snap
}

// SetStatus changes the advertised status without touching the connection
// set, so a connected user can show as away.
func (r *Registry) SetStatus(userID string, status models.PresenceStatus) (models.PresenceSnapshot, error) {
	if _, ok := models.ParsePresenceStatus(string(status)); !ok {
		return models.PresenceSnapshot{}, fmt.Errorf("%w: unknown status %q", chaterr.ErrValidation, status)
	}
	rec := r.record(userID)

	rec.mu.Lock()
	changed := rec.status != status
	if changed {
		rec.status = status
		rec.lastSeen = r.now().UTC()
	}
	snap := r.commit(userID, rec, changed)
	rec.mu.Unlock()

	if changed {
		r.mirrorAsync(snap)
	}
	return snap, nil
}

// IsOnline reports whether userID has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	v, ok := r.records.Load(userID)
	if !ok {
		return false
	}
	rec := v.(*record)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.conns) > 0
}

// Snapshot returns the current presence of userID.
func (r *Registry) Snapshot(userID string) (models.PresenceSnapshot, bool) {
	v, ok := r.records.Load(userID)
	if !ok {
		return models.PresenceSnapshot{}, false
	}
	rec := v.(*record)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return snapshotOf(userID, rec), true
}

// commit must be called with rec.mu held. When changed it bumps the version
// and broadcasts before the lock is released.
func (r *Registry) commit(userID string, rec *record, changed bool) models.PresenceSnapshot {
	if changed {
		rec.version = nextVersion(rec.version, r.now())
	}
	snap := snapshotOf(userID, rec)
	if changed && r.broadcaster != nil {
		r.broadcaster.BroadcastAll(models.StatusChanged(snap))
	}
	return snap
}

func (r *Registry) mirrorAsync(snap models.PresenceSnapshot) {
	if r.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.mirror.MirrorPresence(ctx, snap, r.mirrorTTL); err != nil {
			r.log.Warn("presence mirror write failed", zap.String("user_id", snap.UserID), zap.Error(err))
		}
	}()
}

// nextVersion is strictly greater than prev and tracks wall-clock time, so
// versions stay ordered across restarts.
func nextVersion(prev uint64, now time.Time) uint64 {
	v := uint64(now.UnixNano())
	if v <= prev {
		v = prev + 1
	}
	return v
}

func snapshotOf(userID string, rec *record) models.PresenceSnapshot {
	return models.PresenceSnapshot{
		UserID:      userID,
		Alias:       rec.alias,
		Status:      rec.status,
		IsOnline:    len(rec.conns) > 0,
		Connections: len(rec.conns),
		LastSeen:    rec.lastSeen,
		Version:     rec.version,
	}
}
