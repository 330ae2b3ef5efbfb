package presence

import (
	"sync"

	"supportchat/backend/internal/models"
)

// StatusView is one observer's picture of other users' presence. Apply
// ignores any update older than what the observer already has.
type StatusView struct {
	mu     sync.Mutex
	latest map[string]uint64
}

func NewStatusView() *StatusView {
	return &StatusView{latest: make(map[string]uint64)}
}

// Apply records p and reports whether it is newer than the last applied
// update for the same user.
func (v *StatusView) Apply(p models.StatusChangedPayload) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if cur, ok := v.latest[p.UserID]; ok && cur >= p.Version {
		return false
	}
	v.latest[p.UserID] = p.Version
	return true
}
