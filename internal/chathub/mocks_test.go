package chathub_test

import (
	"context"
	"time"

	"supportchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) CreateRoom(ctx context.Context, room *models.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStorage) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *MockStorage) ActiveRoomForPair(ctx context.Context, userA, userB string) (*models.Room, error) {
	args := m.Called(ctx, userA, userB)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *MockStorage) ActiveRoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockStorage) ActiveRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	args := m.Called(ctx, userID)
	rooms, _ := args.Get(0).([]models.Room)
	return rooms, args.Error(1)
}

func (m *MockStorage) ArchiveRoom(ctx context.Context, roomID string, at time.Time) (bool, error) {
	args := m.Called(ctx, roomID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) StaleRoomIDs(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	args := m.Called(ctx, messageID)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockStorage) ListMessages(ctx context.Context, roomID string, page, limit int) ([]models.Message, int64, error) {
	args := m.Called(ctx, roomID, page, limit)
	msgs, _ := args.Get(0).([]models.Message)
	return msgs, args.Get(1).(int64), args.Error(2)
}

func (m *MockStorage) UpdateMessageContent(ctx context.Context, messageID, content string, at time.Time) error {
	args := m.Called(ctx, messageID, content, at)
	return args.Error(0)
}

func (m *MockStorage) SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) (bool, error) {
	args := m.Called(ctx, messageID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) UpsertReaction(ctx context.Context, reaction *models.MessageReaction) (bool, error) {
	args := m.Called(ctx, reaction)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) RemoveReaction(ctx context.Context, messageID, userID string) (bool, error) {
	args := m.Called(ctx, messageID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) AddRead(ctx context.Context, read *models.MessageRead) (bool, error) {
	args := m.Called(ctx, read)
	return args.Bool(0), args.Error(1)
}

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, text string) (models.Analysis, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(models.Analysis), args.Error(1)
}

func (m *MockClassifier) DetectCrisis(ctx context.Context, text string) (models.CrisisAssessment, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(models.CrisisAssessment), args.Error(1)
}

func (m *MockClassifier) Summarize(ctx context.Context, transcript string) (string, error) {
	args := m.Called(ctx, transcript)
	return args.String(0), args.Error(1)
}

func (m *MockClassifier) Suggest(ctx context.Context, text string, emotion models.Emotion, supportType models.SupportType) ([]string, error) {
	args := m.Called(ctx, text, emotion, supportType)
	suggestions, _ := args.Get(0).([]string)
	return suggestions, args.Error(1)
}

// blockingClassifier ignores its context and never answers until released.
type blockingClassifier struct {
	release chan struct{}
}

func (b *blockingClassifier) Classify(context.Context, string) (models.Analysis, error) {
	<-b.release
	return models.Analysis{Emotion: models.EmotionJoy}, nil
}

func (b *blockingClassifier) DetectCrisis(context.Context, string) (models.CrisisAssessment, error) {
	<-b.release
	return models.NoCrisis(), nil
}
