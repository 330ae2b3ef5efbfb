package chathub_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/models"
	"supportchat/backend/internal/storage"
)

// memStorage is an in-memory storage.Storage with the same sequencing and
// idempotency rules as the Postgres implementation.
type memStorage struct {
	mu        sync.Mutex
	rooms     map[string]*models.Room
	messages  map[string]*models.Message
	reactions map[string]map[string]models.MessageReaction // messageID -> userID
	reads     map[string]map[string]models.MessageRead
}

var _ storage.Storage = (*memStorage)(nil)

func newMemStorage() *memStorage {
	return &memStorage{
		rooms:     make(map[string]*models.Room),
		messages:  make(map[string]*models.Message),
		reactions: make(map[string]map[string]models.MessageReaction),
		reads:     make(map[string]map[string]models.MessageRead),
	}
}

func (s *memStorage) CreateRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := room.BeforeCreate(nil); err != nil {
		return err
	}
	for _, r := range s.rooms {
		if r.IsActive && r.PairKey == room.PairKey {
			return fmt.Errorf("%w: active room for pair", chaterr.ErrConflict)
		}
	}
	cp := *room
	s.rooms[room.RoomID] = &cp
	return nil
}

func (s *memStorage) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: get room", chaterr.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *memStorage) ActiveRoomForPair(_ context.Context, userA, userB string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.PairKey(userA, userB)
	for _, r := range s.rooms {
		if r.IsActive && r.PairKey == key {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: active room for pair", chaterr.ErrNotFound)
}

func (s *memStorage) ActiveRoomIDsForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.rooms {
		if r.IsActive && r.HasParticipant(userID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStorage) ActiveRoomsForUser(_ context.Context, userID string) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rooms []models.Room
	for _, r := range s.rooms {
		if r.IsActive && r.HasParticipant(userID) {
			rooms = append(rooms, *r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastMessageAt.After(rooms[j].LastMessageAt)
	})
	return rooms, nil
}

func (s *memStorage) ArchiveRoom(_ context.Context, roomID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return false, fmt.Errorf("%w: archive room", chaterr.ErrNotFound)
	}
	if !r.IsActive {
		return false, nil
	}
	r.IsActive = false
	r.EndedAt = &at
	return true, nil
}

func (s *memStorage) StaleRoomIDs(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.rooms {
		if r.ShouldArchive(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStorage) AppendMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[msg.RoomID]
	if !ok {
		return fmt.Errorf("%w: room %s", chaterr.ErrNotFound, msg.RoomID)
	}
	if !r.IsActive {
		return fmt.Errorf("%w: room %s is archived", chaterr.ErrAuthorizationDenied, msg.RoomID)
	}
	if err := msg.BeforeCreate(nil); err != nil {
		return err
	}
	r.MessageCount++
	if msg.CreatedAt.After(r.LastMessageAt) {
		r.LastMessageAt = msg.CreatedAt
	}
	msg.Seq = r.MessageCount
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

// loadLocked returns a copy of the message with its reactions and reads.
func (s *memStorage) loadLocked(id string) models.Message {
	m := *s.messages[id]
	m.Reactions = nil
	m.ReadBy = nil
	for _, r := range s.reactions[id] {
		m.Reactions = append(m.Reactions, r)
	}
	for _, r := range s.reads[id] {
		m.ReadBy = append(m.ReadBy, r)
	}
	return m
}

func (s *memStorage) GetMessage(_ context.Context, messageID string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[messageID]; !ok {
		return nil, fmt.Errorf("%w: get message", chaterr.ErrNotFound)
	}
	m := s.loadLocked(messageID)
	return &m, nil
}

func (s *memStorage) ListMessages(_ context.Context, roomID string, page, limit int) ([]models.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Message
	for id, m := range s.messages {
		if m.RoomID == roomID {
			all = append(all, s.loadLocked(id))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq > all[j].Seq })

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []models.Message{}, total, nil
	}
	end := min(start+limit, len(all))
	out := append([]models.Message(nil), all[start:end]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, total, nil
}

func (s *memStorage) UpdateMessageContent(_ context.Context, messageID, content string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok || m.IsDeleted {
		return fmt.Errorf("%w: update message", chaterr.ErrNotFound)
	}
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &at
	return nil
}

func (s *memStorage) SoftDeleteMessage(_ context.Context, messageID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return false, fmt.Errorf("%w: delete message", chaterr.ErrNotFound)
	}
	if m.IsDeleted {
		return false, nil
	}
	m.IsDeleted = true
	m.DeletedAt = &at
	return true, nil
}

func (s *memStorage) UpsertReaction(_ context.Context, r *models.MessageReaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.reactions[r.MessageID]
	if !ok {
		byUser = make(map[string]models.MessageReaction)
		s.reactions[r.MessageID] = byUser
	}
	if cur, ok := byUser[r.UserID]; ok && cur.Reaction == r.Reaction {
		return false, nil
	}
	byUser[r.UserID] = *r
	return true, nil
}

func (s *memStorage) RemoveReaction(_ context.Context, messageID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reactions[messageID][userID]; !ok {
		return false, nil
	}
	delete(s.reactions[messageID], userID)
	return true, nil
}

func (s *memStorage) AddRead(_ context.Context, r *models.MessageRead) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.reads[r.MessageID]
	if !ok {
		byUser = make(map[string]models.MessageRead)
		s.reads[r.MessageID] = byUser
	}
	if _, ok := byUser[r.UserID]; ok {
		return false, nil
	}
	byUser[r.UserID] = *r
	return true, nil
}

func (s *memStorage) messageCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.RoomID == roomID {
			n++
		}
	}
	return n
}

// failingStorage refuses every append.
type failingStorage struct {
	*memStorage
}

func (failingStorage) AppendMessage(context.Context, *models.Message) error {
	return fmt.Errorf("%w: append message: connection refused", chaterr.ErrPersistence)
}
