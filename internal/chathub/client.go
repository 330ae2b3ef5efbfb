package chathub

import "supportchat/backend/internal/models"

// Client is one live connection of a user. A user may hold several at once
// (multiple devices or tabs).
type Client interface {
	// GetConnID returns the identifier of this connection.
	GetConnID() string
	// GetUserID returns the authenticated user behind the connection.
	GetUserID() string
	// GetAlias returns the display alias supplied at connect time.
	GetAlias() string

	// GetSendChannel returns the channel the hub writes events to. The hub only
	// ever sends without blocking, and the channel is never closed.
	GetSendChannel() chan<- models.Event

	// Run starts the connection's read and write pumps.
	Run()
	// Close shuts the connection down. It is safe to call more than once.
	Close()
}
