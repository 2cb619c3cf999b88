package sequence

import (
	"context"
	"sync"
	"time"
)

type MemorySequencer struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{values: map[string]int64{}}
}

func (s *MemorySequencer) Next(_ context.Context, name string, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := name + ":" + dayKey(day)
	s.values[key]++
	return s.values[key], nil
}
