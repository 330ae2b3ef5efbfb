package models

import (
	"time"

	"supportchat/backend/internal/config"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Room is a conversation between a fixed pair of participants. Participants
// never change after creation; once IsActive is false the room stays archived.
type Room struct {
	// RoomID is the unique identifier for the room (UUID).
	RoomID  string `gorm:"primaryKey;type:uuid" json:"roomId"`
	User1ID string `gorm:"type:text;not null;index" json:"-"`
	User2ID string `gorm:"type:text;not null;index" json:"-"`
	// PairKey is the order-independent participant key. The partial unique
	// index allows a single active room per pair.
	PairKey string `gorm:"type:text;not null;uniqueIndex:idx_rooms_active_pair,where:is_active = true" json:"-"`

	IsActive          bool `gorm:"not null;index" json:"isActive"`
	AutoArchive       bool `gorm:"not null" json:"autoArchive"`
	ArchiveAfterHours int  `gorm:"not null" json:"archiveAfterHours"`

	MessageCount  int64          `gorm:"not null" json:"messageCount"`
	LastMessageAt time.Time      `gorm:"not null;index" json:"lastMessageAt"`
	EmotionTags   pq.StringArray `gorm:"type:text[]" json:"emotionTags"`

	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// NewRoom builds an active room with the default archive policy.
func NewRoom(userA, userB string, now time.Time) *Room {
	return &Room{
		User1ID:           userA,
		User2ID:           userB,
		PairKey:           PairKey(userA, userB),
		IsActive:          true,
		AutoArchive:       true,
		ArchiveAfterHours: config.DefaultArchiveAfterHours,
		LastMessageAt:     now,
		StartedAt:         now,
	}
}

// BeforeCreate assigns a UUID when RoomID is empty.
func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if r.RoomID == "" {
		r.RoomID = uuid.New().String()
	}
	if r.PairKey == "" {
		r.PairKey = PairKey(r.User1ID, r.User2ID)
	}
	return
}

// PairKey is the same for (a, b) and (b, a).
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

func (r *Room) Participants() []string {
	return []string{r.User1ID, r.User2ID}
}

func (r *Room) HasParticipant(userID string) bool {
	return userID != "" && (r.User1ID == userID || r.User2ID == userID)
}

// ShouldArchive reports whether the room is past its staleness threshold.
func (r *Room) ShouldArchive(now time.Time) bool {
	if !r.IsActive || !r.AutoArchive || r.ArchiveAfterHours <= 0 {
		return false
	}
	return now.Sub(r.LastMessageAt) >= time.Duration(r.ArchiveAfterHours)*time.Hour
}

// Other returns the participant that is not userID.
func (r *Room) Other(userID string) string {
	if r.User1ID == userID {
		return r.User2ID
	}
	return r.User1ID
}

// Participant is the other side of a room as shown in room listings.
type Participant struct {
	UserID   string         `json:"userId"`
	Alias    string         `json:"alias"`
	Status   PresenceStatus `json:"status"`
	IsOnline bool           `json:"isOnline"`
	LastSeen *time.Time     `json:"lastSeen,omitempty"`
}

type RoomMetadata struct {
	EmotionTags       []string `json:"emotionTags"`
	AutoArchive       bool     `json:"autoArchive"`
	ArchiveAfterHours int      `json:"archiveAfterHours"`
}

// RoomSummary is a room as listed for one of its participants.
type RoomSummary struct {
	RoomID           string       `json:"roomId"`
	OtherParticipant Participant  `json:"otherParticipant"`
	IsActive         bool         `json:"isActive"`
	MessageCount     int64        `json:"messageCount"`
	LastMessageAt    time.Time    `json:"lastMessageAt"`
	CreatedAt        time.Time    `json:"createdAt"`
	Metadata         RoomMetadata `json:"metadata"`
}

// Summary describes the room from viewerID's side. Presence of the other
// participant is left offline; the caller fills it in.
func (r *Room) Summary(viewerID string) RoomSummary {
	tags := append([]string{}, r.EmotionTags...)
	return RoomSummary{
		RoomID: r.RoomID,
		OtherParticipant: Participant{
			UserID: r.Other(viewerID),
			Status: StatusOffline,
		},
		IsActive:      r.IsActive,
		MessageCount:  r.MessageCount,
		LastMessageAt: r.LastMessageAt,
		CreatedAt:     r.StartedAt,
		Metadata: RoomMetadata{
			EmotionTags:       tags,
			AutoArchive:       r.AutoArchive,
			ArchiveAfterHours: r.ArchiveAfterHours,
		},
	}
}

// ConversationSummary is a drafted recap of a room's recent messages.
type ConversationSummary struct {
	RoomID       string `json:"roomId"`
	Summary      string `json:"summary"`
	MessageCount int    `json:"messageCount"`
}
