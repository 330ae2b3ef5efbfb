package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateRoom inserts an active room. A second active room for the same pair
// violates the partial unique index and returns ErrConflict.
func (s *Service) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := s.DB.WithContext(ctx).Create(room).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: active room already exists for pair", chaterr.ErrConflict)
		}
		s.log.Error("failed to create room", zap.Error(err))
		return persistenceErr("create room", err)
	}
	return nil
}

func (s *Service) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if err != nil {
		return nil, persistenceErr("get room", err)
	}
	return &room, nil
}

func (s *Service) ActiveRoomForPair(ctx context.Context, userA, userB string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).
		Where("pair_key = ? AND is_active = ?", models.PairKey(userA, userB), true).
		First(&room).Error
	if err != nil {
		return nil, persistenceErr("get active room for pair", err)
	}
	return &room, nil
}

// ActiveRoomIDsForUser lists the active rooms userID participates in.
func (s *Service) ActiveRoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var roomIDs []string
	err := s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("is_active = ?", true).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("last_message_at DESC").
		Pluck("room_id", &roomIDs).Error
	if err != nil {
		s.log.Error("failed to list active rooms", zap.String("user_id", userID), zap.Error(err))
		return nil, persistenceErr("list active rooms", err)
	}
	return roomIDs, nil
}

// ActiveRoomsForUser loads userID's active rooms, most recent activity first.
func (s *Service) ActiveRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&rooms).Error
	if err != nil {
		s.log.Error("failed to load active rooms", zap.String("user_id", userID), zap.Error(err))
		return nil, persistenceErr("load active rooms", err)
	}
	return rooms, nil
}

// ArchiveRoom deactivates the room. It reports false when the room was
// already archived.
func (s *Service) ArchiveRoom(ctx context.Context, roomID string, at time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Updates(map[string]any{
			"is_active": false,
			"ended_at":  at,
		})
	if res.Error != nil {
		return false, persistenceErr("archive room", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return false, err
	}
	return false, nil
}

// StaleRoomIDs returns active auto-archiving rooms whose last message is at
// least archive_after_hours old.
func (s *Service) StaleRoomIDs(ctx context.Context, now time.Time) ([]string, error) {
	var roomIDs []string
	err := s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("is_active = ? AND auto_archive = ?", true, true).
		Where("last_message_at + (archive_after_hours * interval '1 hour') <= ?", now).
		Pluck("room_id", &roomIDs).Error
	if err != nil {
		return nil, persistenceErr("list stale rooms", err)
	}
	return roomIDs, nil
}

// bumpRoom increments the room counters inside tx and returns the new
// message count, which is the sequence number of the message being appended.
func bumpRoom(tx *gorm.DB, roomID string, at time.Time) (int64, error) {
	var seqs []int64
	err := tx.Raw(`
        UPDATE rooms
        SET message_count = message_count + 1,
            last_message_at = GREATEST(last_message_at, ?)
        WHERE room_id = ? AND is_active = TRUE
        RETURNING message_count`, at, roomID).Scan(&seqs).Error
	if err != nil {
		return 0, err
	}
	if len(seqs) == 0 {
		var count int64
		if err := tx.Model(&models.Room{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, fmt.Errorf("%w: room %s", chaterr.ErrNotFound, roomID)
		}
		return 0, fmt.Errorf("%w: room %s is archived", chaterr.ErrAuthorizationDenied, roomID)
	}
	return seqs[0], nil
}

// tagEmotion appends emotion to the room's tag list once.
func tagEmotion(tx *gorm.DB, roomID string, emotion models.Emotion) error {
	if emotion == "" || emotion == models.EmotionNeutral {
		return nil
	}
	return tx.Exec(`
        UPDATE rooms
        SET emotion_tags = array_append(COALESCE(emotion_tags, '{}'), ?)
        WHERE room_id = ? AND NOT (COALESCE(emotion_tags, '{}') @> ARRAY[?]::text[])`,
		string(emotion), roomID, string(emotion)).Error
}

func isDomainErr(err error) bool {
	return errors.Is(err, chaterr.ErrNotFound) || errors.Is(err, chaterr.ErrAuthorizationDenied)
}
