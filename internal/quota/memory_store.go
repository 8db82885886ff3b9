package quota

import (
	"context"
	"sync"
)

// MemoryStore keeps counters in process. Reset is left to an external scheduler.
type MemoryStore struct {
	mu     sync.Mutex
	models map[string]int
	total  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{models: map[string]int{}}
}

func (s *MemoryStore) Reserve(_ context.Context, model string, modelLimit, totalLimit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.models[model] >= modelLimit || s.total >= totalLimit {
		return false, nil
	}
	s.models[model]++
	s.total++
	return true, nil
}

func (s *MemoryStore) Usage(context.Context) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := Usage{Models: make(map[string]int, len(s.models)), Total: s.total}
	for k, v := range s.models {
		u.Models[k] = v
	}
	return u, nil
}

func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = map[string]int{}
	s.total = 0
}
