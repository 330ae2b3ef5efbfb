package chathub

// SessionCount reports how many rooms have a live broadcast group.
func (m *ManagerService) SessionCount() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
