package models

import "time"

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusBusy    PresenceStatus = "busy"
	StatusOffline PresenceStatus = "offline"
)

var presenceStatuses = setOf(StatusOnline, StatusAway, StatusBusy, StatusOffline)

func ParsePresenceStatus(s string) (PresenceStatus, bool) {
	return parse(s, presenceStatuses, StatusOffline)
}

// PresenceSnapshot is one user's presence at a given Version. Versions grow
// by one with every change to that user's record.
type PresenceSnapshot struct {
	UserID      string         `json:"userId"`
	Alias       string         `json:"alias"`
	Status      PresenceStatus `json:"status"`
	IsOnline    bool           `json:"isOnline"`
	Connections int            `json:"connections"`
	LastSeen    time.Time      `json:"lastSeen"`
	Version     uint64         `json:"version"`
}
