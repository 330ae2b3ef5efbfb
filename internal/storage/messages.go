package storage

import (
	"context"
	"fmt"
	"time"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppendMessage persists msg and bumps the room counters in one transaction.
// msg.Seq is set from the room's new message count. If the room was archived
// after authorization nothing is written and ErrAuthorizationDenied is returned.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := bumpRoom(tx, msg.RoomID, msg.CreatedAt)
		if err != nil {
			return err
		}
		msg.Seq = seq

		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tagEmotion(tx, msg.RoomID, msg.Moderation.Emotion)
	})
	if err != nil {
		msg.Seq = 0
		if isDomainErr(err) {
			return err
		}
		s.log.Error("failed to save message", zap.String("room_id", msg.RoomID), zap.Error(err))
		return persistenceErr("append message", err)
	}
	return nil
}

func (s *Service) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	err := s.DB.WithContext(ctx).
		Preload("Reactions").
		Preload("ReadBy").
		Where("id = ?", messageID).
		First(&msg).Error
	if err != nil {
		return nil, persistenceErr("get message", err)
	}
	return &msg, nil
}

// ListMessages returns one page of a room's history in chronological order,
// plus the total message count. Pages are counted from the newest message.
func (s *Service) ListMessages(ctx context.Context, roomID string, page, limit int) ([]models.Message, int64, error) {
	db := s.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Message{}).Where("room_id = ?", roomID).Count(&total).Error; err != nil {
		return nil, 0, persistenceErr("count messages", err)
	}

	var msgs []models.Message
	err := db.Preload("Reactions").
		Preload("ReadBy").
		Where("room_id = ?", roomID).
		Order("seq DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		s.log.Error("failed to get chat history", zap.String("room_id", roomID), zap.Error(err))
		return nil, 0, persistenceErr("list messages", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, total, nil
}

// UpdateMessageContent rewrites content and marks the message edited. Deleted
// messages are left untouched.
func (s *Service) UpdateMessageContent(ctx context.Context, messageID, content string, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND is_deleted = ?", messageID, false).
		Updates(map[string]any{
			"content":   content,
			"is_edited": true,
			"edited_at": at,
		})
	if res.Error != nil {
		return persistenceErr("update message", res.Error)
	}
	if res.RowsAffected == 0 {
		return chaterr.ErrMessageDeleted
	}
	return nil
}

// SoftDeleteMessage flags the message deleted. It reports false when it
// already was.
func (s *Service) SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND is_deleted = ?", messageID, false).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": at,
		})
	if res.Error != nil {
		return false, persistenceErr("delete message", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UpsertReaction sets the user's single reaction on a message. It reports
// false when the stored reaction already matched.
func (s *Service) UpsertReaction(ctx context.Context, reaction *models.MessageReaction) (bool, error) {
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = time.Now().UTC()
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"reaction":   reaction.Reaction,
			"created_at": reaction.CreatedAt,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "message_reactions.reaction <> excluded.reaction"},
		}},
	}).Create(reaction)
	if res.Error != nil {
		return false, persistenceErr("upsert reaction", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) RemoveReaction(ctx context.Context, messageID, userID string) (bool, error) {
	res := s.DB.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&models.MessageReaction{})
	if res.Error != nil {
		return false, persistenceErr("remove reaction", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// AddRead records a read receipt once per user. It reports false when the
// user had already read the message.
func (s *Service) AddRead(ctx context.Context, read *models.MessageRead) (bool, error) {
	if read.ReadAt.IsZero() {
		read.ReadAt = time.Now().UTC()
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(read)
	if res.Error != nil {
		return false, persistenceErr(fmt.Sprintf("add read %s", read.MessageID), res.Error)
	}
	return res.RowsAffected > 0, nil
}
