package services

import (
	"context"
	"sync"
	"time"

	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/utils"
)

// AssignmentStore selects and increments in one atomic step. pick receives
// the current counters in doctorIDs order and returns the chosen index.
type AssignmentStore interface {
	Assign(ctx context.Context, doctorIDs []string, pick func(counts []int64) int) (string, int64, error)
}

type AssignmentBalancer interface {
	// Assign returns the chosen entry and its counter after the increment.
	Assign(ctx context.Context, candidates []models.SpecialistEntry) (models.SpecialistEntry, int64, error)
}

type assignmentBalancer struct {
	store   AssignmentStore
	metrics *metrics.Metrics
}

func NewAssignmentBalancer(store AssignmentStore, m *metrics.Metrics) AssignmentBalancer {
	return &assignmentBalancer{store: store, metrics: metricsOrDefault(m)}
}

// LeastLoaded returns the index of the smallest counter, first one on ties.
func LeastLoaded(counts []int64) int {
	best := -1
	for i, c := range counts {
		if best < 0 || c < counts[best] {
			best = i
		}
	}
	return best
}

func (b *assignmentBalancer) Assign(ctx context.Context, candidates []models.SpecialistEntry) (models.SpecialistEntry, int64, error) {
	const op = "AssignmentBalancer.Assign"

	seen := make(map[string]struct{}, len(candidates))
	byID := make(map[string]models.SpecialistEntry, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.DoctorID == "" {
			continue
		}
		if _, dup := seen[c.DoctorID]; dup {
			continue
		}
		seen[c.DoctorID] = struct{}{}
		byID[c.DoctorID] = c
		ids = append(ids, c.DoctorID)
	}
	if len(ids) == 0 {
		return models.SpecialistEntry{}, 0, utils.E(utils.CodeNotFound, op, "no doctor available for specialist", nil)
	}

	id, count, err := b.store.Assign(ctx, ids, LeastLoaded)
	if err != nil {
		return models.SpecialistEntry{}, 0, utils.E(utils.CodeUnavailable, op, "assignment store unavailable", err)
	}
	chosen := byID[id]
	b.metrics.RecordAssignment(chosen.Specialist)
	return chosen, count, nil
}

// MemoryAssignmentStore keeps counters in process behind a mutex.
type MemoryAssignmentStore struct {
	mu       sync.Mutex
	counters map[string]models.DoctorAssignment
	now      func() time.Time
}

func NewMemoryAssignmentStore(seed map[string]int64) *MemoryAssignmentStore {
	s := &MemoryAssignmentStore{counters: map[string]models.DoctorAssignment{}, now: time.Now}
	for id, n := range seed {
		s.counters[id] = models.DoctorAssignment{DoctorID: id, Count: n}
	}
	return s
}

func (s *MemoryAssignmentStore) Assign(_ context.Context, doctorIDs []string, pick func([]int64) int) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make([]int64, len(doctorIDs))
	for i, id := range doctorIDs {
		counts[i] = s.counters[id].Count
	}
	i := pick(counts)
	if i < 0 || i >= len(doctorIDs) {
		return "", 0, utils.E(utils.CodeInternal, "MemoryAssignmentStore.Assign", "pick out of range", nil)
	}

	now := s.now()
	a := s.counters[doctorIDs[i]]
	a.DoctorID = doctorIDs[i]
	a.Count++
	a.LastAssigned = &now
	s.counters[a.DoctorID] = a
	return a.DoctorID, a.Count, nil
}

func (s *MemoryAssignmentStore) Count(doctorID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[doctorID].Count
}
