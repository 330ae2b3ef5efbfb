package chathub_test

import (
	"sync"

	"supportchat/backend/internal/models"

	"github.com/google/uuid"
)

type MockClient struct {
	connID      string
	userID      string
	alias       string
	RecvChannel chan models.Event

	mu     sync.Mutex
	closed int
}

func newMockClient(userID string) *MockClient {
	return newMockClientWithBuffer(userID, 256)
}

func newMockClientWithBuffer(userID string, size int) *MockClient {
	return &MockClient{
		connID:      uuid.NewString(),
		userID:      userID,
		alias:       "alias_" + userID,
		RecvChannel: make(chan models.Event, size),
	}
}

func (c *MockClient) GetConnID() string                   { return c.connID }
func (c *MockClient) GetUserID() string                   { return c.userID }
func (c *MockClient) GetAlias() string                    { return c.alias }
func (c *MockClient) GetSendChannel() chan<- models.Event { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
}

func (c *MockClient) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain empties the receive buffer and returns what was in it.
func (c *MockClient) drain() []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-c.RecvChannel:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// eventsOf drains the buffer and keeps only events of the given type.
func (c *MockClient) eventsOf(eventType string) []models.Event {
	var out []models.Event
	for _, ev := range c.drain() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
