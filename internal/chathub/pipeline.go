package chathub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/config"
	"supportchat/backend/internal/metrics"
	"supportchat/backend/internal/models"

	"go.uber.org/zap"
)

// Submit runs a new message through the pipeline: authorize, classify,
// persist, fan out. The crisis check runs on the classification whatever
// happens after it.
func (m *ManagerService) Submit(ctx context.Context, userID, alias, roomID, content, messageType string) (*models.Message, error) {
	content, err := validateContent(content)
	if err != nil {
		metrics.MessagesRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}
	mt, ok := models.ParseMessageType(messageType)
	if !ok {
		metrics.MessagesRejected.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: unknown message type %q", chaterr.ErrValidation, messageType)
	}

	// No lock is held across authorization or classification.
	if _, err := m.Authorize(ctx, userID, roomID); err != nil {
		metrics.MessagesRejected.WithLabelValues("denied").Inc()
		return nil, err
	}

	cls := m.guard.Classify(ctx, content)
	defer m.escalator.Escalate(userID, roomID, cls)

	msg := &models.Message{
		RoomID:      roomID,
		SenderID:    userID,
		SenderAlias: alias,
		Content:     content,
		MessageType: mt,
		Moderation:  cls.Meta(),
		Analysis:    cls.AnalysisMeta(),
	}

	s := m.lockSession(roomID)
	msg.CreatedAt = m.now().UTC()
	if err := m.Storage.AppendMessage(ctx, msg); err != nil {
		m.unlockSession(roomID, s)
		if errors.Is(err, chaterr.ErrAuthorizationDenied) {
			metrics.MessagesRejected.WithLabelValues("denied").Inc()
		} else {
			metrics.MessagesRejected.WithLabelValues("persistence").Inc()
		}
		return nil, err
	}
	m.fanoutLocked(s, models.NewEvent(models.EvtNewMessage, models.MessagePayload{
		RoomID:  roomID,
		Message: msg.View(),
	}), "")
	m.unlockSession(roomID, s)

	metrics.MessagesPersisted.WithLabelValues(string(mt)).Inc()
	m.suggest(msg)
	return msg, nil
}

// suggest offers canned replies to the other participants when the message
// asks for a specific kind of support.
func (m *ManagerService) suggest(msg *models.Message) {
	st := msg.Moderation.SupportType
	if st == "" || st == models.SupportGeneral {
		return
	}
	suggestions, ok := config.SuggestionsBySupportType[string(st)]
	if !ok {
		return
	}
	m.BroadcastRoom(msg.RoomID, models.NewEvent(models.EvtResponseSuggestions, models.SuggestionsPayload{
		RoomID:      msg.RoomID,
		MessageID:   msg.ID,
		SupportType: st,
		Suggestions: suggestions,
	}), msg.SenderID)
}

// Edit replaces the content of the author's own message within the edit
// window.
func (m *ManagerService) Edit(ctx context.Context, userID, messageID, content string) (*models.Message, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	unlock := m.msgLocks.Lock(messageID)
	defer unlock()

	msg, err := m.Storage.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, fmt.Errorf("%w: only the author can edit a message", chaterr.ErrAuthorizationDenied)
	}
	if msg.IsDeleted {
		return nil, chaterr.ErrMessageDeleted
	}
	now := m.now().UTC()
	if now.Sub(msg.CreatedAt) > m.editWindow {
		return nil, fmt.Errorf("%w: sent %s ago", chaterr.ErrEditWindowExpired, now.Sub(msg.CreatedAt).Round(time.Second))
	}

	if err := m.Storage.UpdateMessageContent(ctx, messageID, content, now); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &now

	m.BroadcastRoom(msg.RoomID, models.NewEvent(models.EvtMessageUpdated, models.MessagePayload{
		RoomID:  msg.RoomID,
		Message: msg.View(),
	}), "")
	return msg, nil
}

// Delete soft-deletes the author's own message. Deleting an already deleted
// message does nothing and reports false.
func (m *ManagerService) Delete(ctx context.Context, userID, messageID string) (bool, error) {
	unlock := m.msgLocks.Lock(messageID)
	defer unlock()

	msg, err := m.Storage.GetMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	if msg.SenderID != userID {
		return false, fmt.Errorf("%w: only the author can delete a message", chaterr.ErrAuthorizationDenied)
	}
	if msg.IsDeleted {
		return false, nil
	}

	deleted, err := m.Storage.SoftDeleteMessage(ctx, messageID, m.now().UTC())
	if err != nil || !deleted {
		return false, err
	}

	m.BroadcastRoom(msg.RoomID, models.NewEvent(models.EvtMessageDeleted, models.MessageDeletedPayload{
		RoomID:    msg.RoomID,
		MessageID: messageID,
	}), "")
	return true, nil
}

// React sets userID's single reaction on a message, replacing any previous
// one. It reports false when nothing changed.
func (m *ManagerService) React(ctx context.Context, userID, roomID, messageID, reaction string) (bool, error) {
	r, ok := models.ParseReaction(reaction)
	if !ok {
		return false, fmt.Errorf("%w: unknown reaction %q", chaterr.ErrValidation, reaction)
	}

	unlock := m.msgLocks.Lock(messageID)
	defer unlock()

	msg, err := m.participantMessage(ctx, userID, roomID, messageID)
	if err != nil {
		return false, err
	}
	if msg.IsDeleted {
		return false, chaterr.ErrMessageDeleted
	}

	changed, err := m.Storage.UpsertReaction(ctx, &models.MessageReaction{
		MessageID: messageID,
		UserID:    userID,
		Reaction:  r,
		CreatedAt: m.now().UTC(),
	})
	if err != nil || !changed {
		return false, err
	}

	m.BroadcastRoom(msg.RoomID, models.NewEvent(models.EvtMessageReaction, models.ReactionPayload{
		RoomID:    msg.RoomID,
		MessageID: messageID,
		UserID:    userID,
		Reaction:  r,
	}), "")
	return true, nil
}

// Unreact removes userID's reaction from a message.
func (m *ManagerService) Unreact(ctx context.Context, userID, roomID, messageID string) (bool, error) {
	unlock := m.msgLocks.Lock(messageID)
	defer unlock()

	msg, err := m.participantMessage(ctx, userID, roomID, messageID)
	if err != nil {
		return false, err
	}
	if msg.IsDeleted {
		return false, chaterr.ErrMessageDeleted
	}

	removed, err := m.Storage.RemoveReaction(ctx, messageID, userID)
	if err != nil || !removed {
		return false, err
	}

	m.BroadcastRoom(msg.RoomID, models.NewEvent(models.EvtMessageReaction, models.ReactionPayload{
		RoomID:    msg.RoomID,
		MessageID: messageID,
		UserID:    userID,
	}), "")
	return true, nil
}

// MarkRead records a read receipt. Only the first read by a user is
// broadcast.
func (m *ManagerService) MarkRead(ctx context.Context, userID, roomID, messageID string) (bool, error) {
	unlock := m.msgLocks.Lock(messageID)
	defer unlock()

	msg, err := m.participantMessage(ctx, userID, roomID, messageID)
	if err != nil {
		return false, err
	}

	read := &models.MessageRead{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    m.now().UTC(),
	}
	added, err := m.Storage.AddRead(ctx, read)
	if err != nil || !added {
		return false, err
	}

	m.BroadcastRoom(msg.RoomID, models.NewEvent(models.EvtMessageRead, models.ReadPayload{
		RoomID:    msg.RoomID,
		MessageID: messageID,
		ReadBy:    *read,
	}), "")
	return true, nil
}

// History returns one page of a room's messages in chronological order. Page
// 1 holds the newest messages.
func (m *ManagerService) History(ctx context.Context, userID, roomID string, page, limit int) (models.RoomMessagesPayload, error) {
	if _, err := m.Authorize(ctx, userID, roomID); err != nil {
		return models.RoomMessagesPayload{}, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = config.DefaultHistoryLimit
	}
	if limit > config.MaxHistoryLimit {
		limit = config.MaxHistoryLimit
	}

	msgs, total, err := m.Storage.ListMessages(ctx, roomID, page, limit)
	if err != nil {
		m.log.Error("failed to load history", zap.String("room_id", roomID), zap.Error(err))
		return models.RoomMessagesPayload{}, err
	}
	return models.RoomMessagesPayload{
		RoomID:     roomID,
		Messages:   models.Views(msgs),
		Pagination: pagination(page, limit, total),
	}, nil
}

// participantMessage loads a message and checks that userID takes part in
// its room. A non-empty roomID must match the message's room.
func (m *ManagerService) participantMessage(ctx context.Context, userID, roomID, messageID string) (*models.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("%w: message id is required", chaterr.ErrValidation)
	}
	msg, err := m.Storage.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if roomID != "" && msg.RoomID != roomID {
		return nil, fmt.Errorf("%w: message %s", chaterr.ErrNotFound, messageID)
	}
	room, err := m.Storage.GetRoom(ctx, msg.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of room %s", chaterr.ErrAuthorizationDenied, msg.RoomID)
	}
	return msg, nil
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: message content is required", chaterr.ErrValidation)
	}
	if utf8.RuneCountInString(content) > config.MaxContentLength {
		return "", fmt.Errorf("%w: message content exceeds %d characters", chaterr.ErrValidation, config.MaxContentLength)
	}
	return content, nil
}
