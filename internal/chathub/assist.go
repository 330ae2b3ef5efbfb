package chathub

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/config"
	"supportchat/backend/internal/models"
)

// ListRooms returns userID's active rooms, most recently used first, with
// the other participant's live presence.
func (m *ManagerService) ListRooms(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	rooms, err := m.Storage.ActiveRoomsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.RoomSummary, 0, len(rooms))
	for i := range rooms {
		sum := rooms[i].Summary(userID)
		other := &sum.OtherParticipant
		if snap, ok := m.Presence.Snapshot(other.UserID); ok {
			other.Alias = snap.Alias
			other.Status = snap.Status
			other.IsOnline = snap.IsOnline
			if !snap.LastSeen.IsZero() {
				seen := snap.LastSeen
				other.LastSeen = &seen
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// Summarize condenses the latest page of a room's conversation for one of
// its participants. Deleted messages are left out.
func (m *ManagerService) Summarize(ctx context.Context, userID, roomID string) (models.ConversationSummary, error) {
	if _, err := m.Authorize(ctx, userID, roomID); err != nil {
		return models.ConversationSummary{}, err
	}

	msgs, _, err := m.Storage.ListMessages(ctx, roomID, 1, config.MaxHistoryLimit)
	if err != nil {
		return models.ConversationSummary{}, err
	}

	var transcript strings.Builder
	count := 0
	for _, msg := range msgs {
		if msg.IsDeleted {
			continue
		}
		fmt.Fprintf(&transcript, "%s: %s\n", msg.SenderAlias, msg.Content)
		count++
	}
	if count == 0 {
		return models.ConversationSummary{RoomID: roomID, Summary: config.EmptySummary}, nil
	}

	return models.ConversationSummary{
		RoomID:       roomID,
		Summary:      m.guard.Summarize(ctx, transcript.String()),
		MessageCount: count,
	}, nil
}

// Suggest drafts replies a participant could send in roomID. Unknown emotion
// and support type values fall back to neutral and general.
func (m *ManagerService) Suggest(ctx context.Context, userID, roomID, text, emotion, supportType string) ([]string, error) {
	if _, err := m.Authorize(ctx, userID, roomID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > config.MaxContentLength {
		return nil, fmt.Errorf("%w: context exceeds %d characters", chaterr.ErrValidation, config.MaxContentLength)
	}

	e, _ := models.ParseEmotion(emotion)
	st, _ := models.ParseSupportType(supportType)
	return m.guard.Suggest(ctx, text, e, st), nil
}
