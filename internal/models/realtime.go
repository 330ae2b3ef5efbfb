package models

import "time"

// Commands accepted from clients.
const (
	CmdJoinRoom       = "join_room"
	CmdLeaveRoom      = "leave_room"
	CmdSendMessage    = "send_message"
	CmdTypingStart    = "typing_start"
	CmdTypingStop     = "typing_stop"
	CmdReactToMessage = "react_to_message"
	CmdRemoveReaction = "remove_reaction"
	CmdMarkRead       = "mark_read"
	CmdUpdateStatus   = "update_status"
	CmdEditMessage    = "edit_message"
	CmdDeleteMessage  = "delete_message"
	CmdGetMessages    = "get_messages"
)

// Events pushed to clients.
const (
	EvtRoomJoined          = "room_joined"
	EvtRoomLeft            = "room_left"
	EvtRoomMessages        = "room_messages"
	EvtRoomArchived        = "room_archived"
	EvtNewMessage          = "new_message"
	EvtMessageUpdated      = "message_updated"
	EvtMessageDeleted      = "message_deleted"
	EvtUserTyping          = "user_typing"
	EvtUserStoppedTyping   = "user_stopped_typing"
	EvtMessageReaction     = "message_reaction"
	EvtMessageRead         = "message_read"
	EvtUserStatusChanged   = "user_status_changed"
	EvtCrisisDetected      = "crisis_detected"
	EvtResponseSuggestions = "response_suggestions"
	EvtError               = "error"
)

// Command is the client-to-server envelope. Fields not used by a command are
// left empty.
type Command struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
	Content     string `json:"content,omitempty"`
	MessageType string `json:"messageType,omitempty"`
	Reaction    string `json:"reaction,omitempty"`
	Status      string `json:"status,omitempty"`
	Page        int    `json:"page,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// Event is the server-to-client envelope.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func NewEvent(eventType string, payload any) Event {
	return Event{Type: eventType, Payload: payload}
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type RoomMessagesPayload struct {
	RoomID     string        `json:"roomId"`
	Messages   []MessageView `json:"messages"`
	Pagination Pagination    `json:"pagination"`
}

type MessagePayload struct {
	RoomID  string      `json:"roomId"`
	Message MessageView `json:"message"`
}

type MessageDeletedPayload struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
}

type TypingPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Alias  string `json:"alias"`
}

// ReactionPayload carries the acting user's current reaction; an empty
// Reaction means it was removed.
type ReactionPayload struct {
	RoomID    string   `json:"roomId"`
	MessageID string   `json:"messageId"`
	UserID    string   `json:"userId"`
	Reaction  Reaction `json:"reaction"`
}

type ReadPayload struct {
	RoomID    string      `json:"roomId"`
	MessageID string      `json:"messageId"`
	ReadBy    MessageRead `json:"readBy"`
}

type StatusChangedPayload struct {
	UserID   string         `json:"userId"`
	Alias    string         `json:"alias"`
	Status   PresenceStatus `json:"status"`
	IsOnline bool           `json:"isOnline"`
	LastSeen time.Time      `json:"lastSeen"`
	Version  uint64         `json:"version"`
}

type SuggestionsPayload struct {
	RoomID      string      `json:"roomId"`
	MessageID   string      `json:"messageId"`
	SupportType SupportType `json:"supportType"`
	Suggestions []string    `json:"suggestions"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Command string `json:"command,omitempty"`
}

// StatusChanged renders a presence snapshot as a user_status_changed event.
func StatusChanged(s PresenceSnapshot) Event {
	return NewEvent(EvtUserStatusChanged, StatusChangedPayload{
		UserID:   s.UserID,
		Alias:    s.Alias,
		Status:   s.Status,
		IsOnline: s.IsOnline,
		LastSeen: s.LastSeen,
		Version:  s.Version,
	})
}

func ErrorEvent(command, message string) Event {
	return NewEvent(EvtError, ErrorPayload{Message: message, Command: command})
}
