package typing

// RoomCount reports how many rooms hold typing state.
func (c *Coordinator) RoomCount() int {
	n := 0
	c.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
