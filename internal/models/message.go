package models

import (
	"time"

	"supportchat/backend/internal/config"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// ModerationMeta is the label set attached to every persisted message.
type ModerationMeta struct {
	Emotion     Emotion     `gorm:"type:text;not null" json:"emotion"`
	Sentiment   Sentiment   `gorm:"type:text;not null" json:"sentiment"`
	Urgency     Urgency     `gorm:"type:text;not null" json:"urgency"`
	SupportType SupportType `gorm:"type:text;not null" json:"supportType"`
}

// AnalysisMeta records what the classifier reported and when.
type AnalysisMeta struct {
	DetectedEmotion Emotion     `gorm:"type:text" json:"detectedEmotion"`
	SentimentScore  float64     `json:"sentimentScore"`
	UrgencyLevel    Urgency     `gorm:"type:text" json:"urgencyLevel"`
	CrisisLevel     CrisisLevel `gorm:"type:text" json:"crisisLevel"`
	AnalyzedAt      time.Time   `json:"analyzedAt"`
}

// Message is a persisted chat message. Seq is assigned by the room counter
// and orders messages within a room.
type Message struct {
	ID          string      `gorm:"primaryKey;type:varchar(26)" json:"id"`
	RoomID      string      `gorm:"type:uuid;not null;index:idx_messages_room_seq,priority:1" json:"roomId"`
	Seq         int64       `gorm:"not null;index:idx_messages_room_seq,priority:2" json:"seq"`
	SenderID    string      `gorm:"type:text;not null;index" json:"senderId"`
	SenderAlias string      `gorm:"type:text" json:"senderAlias"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	MessageType MessageType `gorm:"type:text;not null" json:"messageType"`

	Moderation ModerationMeta `gorm:"embedded;embeddedPrefix:mod_" json:"metadata"`
	Analysis   AnalysisMeta   `gorm:"embedded;embeddedPrefix:ai_" json:"aiAnalysis"`

	IsEdited  bool       `gorm:"not null" json:"isEdited"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	IsDeleted bool       `gorm:"not null" json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Reactions []MessageReaction `gorm:"foreignKey:MessageID" json:"-"`
	ReadBy    []MessageRead     `gorm:"foreignKey:MessageID" json:"-"`
}

// BeforeCreate assigns a ULID so ids sort by creation time.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	return
}

// MessageReaction holds one user's reaction to a message. The unique index
// keeps at most one row per (message, user).
type MessageReaction struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MessageID string    `gorm:"type:varchar(26);not null;uniqueIndex:idx_reactions_message_user,priority:1" json:"-"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex:idx_reactions_message_user,priority:2" json:"userId"`
	Reaction  Reaction  `gorm:"type:text;not null" json:"reaction"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageRead is a read receipt, inserted once per (message, user).
type MessageRead struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MessageID string    `gorm:"type:varchar(26);not null;uniqueIndex:idx_reads_message_user,priority:1" json:"-"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex:idx_reads_message_user,priority:2" json:"userId"`
	ReadAt    time.Time `gorm:"not null" json:"readAt"`
}

// MessageView is what readers see. Deleted messages keep their row but not
// their content.
type MessageView struct {
	ID          string            `json:"id"`
	RoomID      string            `json:"roomId"`
	Seq         int64             `json:"seq"`
	SenderID    string            `json:"senderId"`
	SenderAlias string            `json:"senderAlias"`
	Content     string            `json:"content"`
	MessageType MessageType       `json:"messageType"`
	Metadata    ModerationMeta    `json:"metadata"`
	AIAnalysis  AnalysisMeta      `json:"aiAnalysis"`
	Reactions   []MessageReaction `json:"reactions"`
	ReadBy      []MessageRead     `json:"readBy"`
	IsEdited    bool              `json:"isEdited"`
	EditedAt    *time.Time        `json:"editedAt,omitempty"`
	IsDeleted   bool              `json:"isDeleted"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// View renders the message for clients.
func (m *Message) View() MessageView {
	v := MessageView{
		ID:          m.ID,
		RoomID:      m.RoomID,
		Seq:         m.Seq,
		SenderID:    m.SenderID,
		SenderAlias: m.SenderAlias,
		Content:     m.Content,
		MessageType: m.MessageType,
		Metadata:    m.Moderation,
		AIAnalysis:  m.Analysis,
		Reactions:   m.Reactions,
		ReadBy:      m.ReadBy,
		IsEdited:    m.IsEdited,
		EditedAt:    m.EditedAt,
		IsDeleted:   m.IsDeleted,
		CreatedAt:   m.CreatedAt,
	}
	if v.Reactions == nil {
		v.Reactions = []MessageReaction{}
	}
	if v.ReadBy == nil {
		v.ReadBy = []MessageRead{}
	}
	if m.IsDeleted {
		v.Content = config.DeletedPlaceholder
		v.Reactions = []MessageReaction{}
	}
	return v
}

// Views renders a slice of messages in order.
func Views(msgs []Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, msgs[i].View())
	}
	return out
}
