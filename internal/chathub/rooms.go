package chathub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/config"
	"supportchat/backend/internal/metrics"
	"supportchat/backend/internal/models"

	"go.uber.org/zap"
)

// Authorize returns the room when it is active and userID is a participant.
// A denial is final for this request.
func (m *ManagerService) Authorize(ctx context.Context, userID, roomID string) (*models.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: room id is required", chaterr.ErrValidation)
	}
	room, err := m.Storage.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, chaterr.ErrNotFound) {
			return nil, fmt.Errorf("%w: room %s", chaterr.ErrNotFound, roomID)
		}
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of room %s", chaterr.ErrAuthorizationDenied, roomID)
	}
	if !room.IsActive {
		return nil, fmt.Errorf("%w: room %s is archived", chaterr.ErrAuthorizationDenied, roomID)
	}
	return room, nil
}

// Join subscribes c to roomID and sends it room_joined followed by the latest
// page of history. History is read under the room lock, so a message is
// either in that page or delivered live, never both.
func (m *ManagerService) Join(ctx context.Context, c Client, roomID string) error {
	if _, err := m.Authorize(ctx, c.GetUserID(), roomID); err != nil {
		return err
	}

	s := m.lockSession(roomID)
	defer m.unlockSession(roomID, s)

	msgs, total, err := m.Storage.ListMessages(ctx, roomID, 1, config.DefaultHistoryLimit)
	if err != nil {
		return err
	}
	if !m.subscribeLocked(s, roomID, c) {
		return fmt.Errorf("%w: connection closed", chaterr.ErrNotFound)
	}

	m.deliver(c, models.NewEvent(models.EvtRoomJoined, models.RoomPayload{RoomID: roomID}))
	m.deliver(c, models.NewEvent(models.EvtRoomMessages, models.RoomMessagesPayload{
		RoomID:     roomID,
		Messages:   models.Views(msgs),
		Pagination: pagination(1, config.DefaultHistoryLimit, total),
	}))

	m.log.Debug("client joined room", zap.String("conn_id", c.GetConnID()), zap.String("room_id", roomID))
	return nil
}

// AutoJoinActiveRooms subscribes a new connection to every active room of its
// user. It runs once, inside Register.
func (m *ManagerService) AutoJoinActiveRooms(ctx context.Context, c Client) error {
	roomIDs, err := m.Storage.ActiveRoomIDsForUser(ctx, c.GetUserID())
	if err != nil {
		return err
	}
	for _, roomID := range roomIDs {
		s := m.lockSession(roomID)
		ok := m.subscribeLocked(s, roomID, c)
		m.unlockSession(roomID, s)
		if !ok {
			return fmt.Errorf("%w: connection closed during auto-join", chaterr.ErrNotFound)
		}
		m.deliver(c, models.NewEvent(models.EvtRoomJoined, models.RoomPayload{RoomID: roomID}))
	}
	return nil
}

// Leave unsubscribes c from roomID. Nothing persisted changes.
func (m *ManagerService) Leave(c Client, roomID string) {
	m.unsubscribe(roomID, c)
	m.Typing.Stop(roomID, c.GetUserID())
	m.deliver(c, models.NewEvent(models.EvtRoomLeft, models.RoomPayload{RoomID: roomID}))
}

// Archive deactivates roomID. Subscribed connections stay subscribed and are
// told the room is archived; further sends are rejected by Authorize. The
// broadcast group goes away with its last subscriber.
func (m *ManagerService) Archive(ctx context.Context, roomID, reason string) error {
	changed, err := m.Storage.ArchiveRoom(ctx, roomID, m.now().UTC())
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	metrics.RoomsArchived.WithLabelValues(reason).Inc()
	m.Typing.ClearRoom(roomID)
	m.BroadcastRoom(roomID, models.NewEvent(models.EvtRoomArchived, models.RoomPayload{RoomID: roomID}), "")

	m.log.Info("room archived", zap.String("room_id", roomID), zap.String("reason", reason))
	return nil
}

// Decline archives roomID on behalf of one of its participants.
func (m *ManagerService) Decline(ctx context.Context, userID, roomID string) error {
	room, err := m.Storage.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(userID) {
		return fmt.Errorf("%w: not a participant of room %s", chaterr.ErrAuthorizationDenied, roomID)
	}
	return m.Archive(ctx, roomID, "declined")
}

// OpenRoom creates the room for a matched pair and subscribes both users'
// live connections to it. If the pair already has an active room, that room
// is returned together with ErrConflict.
func (m *ManagerService) OpenRoom(ctx context.Context, userA, userB string) (*models.Room, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, fmt.Errorf("%w: a room needs two distinct participants", chaterr.ErrValidation)
	}

	if existing, err := m.Storage.ActiveRoomForPair(ctx, userA, userB); err == nil {
		return existing, fmt.Errorf("%w: active room %s already exists", chaterr.ErrConflict, existing.RoomID)
	} else if !errors.Is(err, chaterr.ErrNotFound) {
		return nil, err
	}

	room := models.NewRoom(userA, userB, m.now().UTC())
	if err := m.Storage.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, chaterr.ErrConflict) {
			if existing, getErr := m.Storage.ActiveRoomForPair(ctx, userA, userB); getErr == nil {
				return existing, err
			}
		}
		return nil, err
	}

	for _, userID := range room.Participants() {
		for _, c := range m.userClients(userID) {
			s := m.lockSession(room.RoomID)
			ok := m.subscribeLocked(s, room.RoomID, c)
			m.unlockSession(room.RoomID, s)
			if ok {
				m.deliver(c, models.NewEvent(models.EvtRoomJoined, models.RoomPayload{RoomID: room.RoomID}))
			}
		}
	}

	m.log.Info("room opened", zap.String("room_id", room.RoomID))
	return room, nil
}

// SweepStaleRooms archives every room past its staleness threshold and
// returns how many were archived.
func (m *ManagerService) SweepStaleRooms(ctx context.Context) (int, error) {
	roomIDs, err := m.Storage.StaleRoomIDs(ctx, m.now().UTC())
	if err != nil {
		return 0, err
	}
	archived := 0
	for _, roomID := range roomIDs {
		if err := m.Archive(ctx, roomID, "stale"); err != nil {
			m.log.Error("failed to archive stale room", zap.String("room_id", roomID), zap.Error(err))
			continue
		}
		archived++
	}
	return archived, nil
}

// RunArchiver sweeps stale rooms every archive interval until ctx is done.
func (m *ManagerService) RunArchiver(ctx context.Context) {
	ticker := time.NewTicker(m.archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.SweepStaleRooms(ctx)
			if err != nil {
				m.log.Error("stale room sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				m.log.Info("archived stale rooms", zap.Int("count", n))
			}
		}
	}
}

func (m *ManagerService) userClients(userID string) []Client {
	v, ok := m.users.Load(userID)
	if !ok {
		return nil
	}
	uc := v.(*userConns)
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]Client, 0, len(uc.conns))
	for _, c := range uc.conns {
		out = append(out, c)
	}
	return out
}

func pagination(page, limit int, total int64) models.Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return models.Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
