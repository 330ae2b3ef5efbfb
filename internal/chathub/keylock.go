package chathub

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// stripedMutex serializes work per key using a fixed set of mutexes. Two
// keys may share a stripe; a key always maps to the same one.
type stripedMutex struct {
	stripes [lockStripes]sync.Mutex
}

func (s *stripedMutex) Lock(key string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &s.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
