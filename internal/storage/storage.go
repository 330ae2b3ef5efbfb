package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Storage is the durable store used by the chat hub.
type Storage interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	ActiveRoomForPair(ctx context.Context, userA, userB string) (*models.Room, error)
	ActiveRoomIDsForUser(ctx context.Context, userID string) ([]string, error)
	ActiveRoomsForUser(ctx context.Context, userID string) ([]models.Room, error)
	ArchiveRoom(ctx context.Context, roomID string, at time.Time) (bool, error)
	StaleRoomIDs(ctx context.Context, now time.Time) ([]string, error)

	AppendMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	ListMessages(ctx context.Context, roomID string, page, limit int) ([]models.Message, int64, error)
	UpdateMessageContent(ctx context.Context, messageID, content string, at time.Time) error
	SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) (bool, error)

	UpsertReaction(ctx context.Context, reaction *models.MessageReaction) (bool, error)
	RemoveReaction(ctx context.Context, messageID, userID string) (bool, error)
	AddRead(ctx context.Context, read *models.MessageRead) (bool, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	log   *zap.Logger
}

// NewStorageService wires the Postgres and Redis clients. rdb may be nil when
// presence mirroring is not needed (admin CLI).
func NewStorageService(db *gorm.DB, rdb *redis.Client, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		DB:    db,
		Redis: rdb,
		log:   log.Named("storage"),
	}
}

// Migrate creates or updates the tables used by the service.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.Room{},
		&models.Message{},
		&models.MessageReaction{},
		&models.MessageRead{},
	)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// persistenceErr tags a driver error so callers can match ErrPersistence.
func persistenceErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", chaterr.ErrNotFound, op)
	}
	return fmt.Errorf("%w: %s: %v", chaterr.ErrPersistence, op, err)
}
