package conflict

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds detected conflicts and the append-only resolution
// history. MarkResolved and MarkDismissed are atomic claims: exactly
// one caller wins a transition on a given conflict id.
type Store interface {
	Save(c SchedulingConflict)
	Get(id uuid.UUID) (SchedulingConflict, bool)
	Active() []SchedulingConflict
	MarkResolved(id uuid.UUID, strategy ResolutionStrategy, at time.Time) (SchedulingConflict, error)
	MarkDismissed(id uuid.UUID, at time.Time) (SchedulingConflict, error)
	AppendResult(r ResolutionResult)
	History() []ResolutionResult
}

type memoryStore struct {
	mu        sync.RWMutex
	conflicts map[uuid.UUID]SchedulingConflict
	history   []ResolutionResult
}

// NewMemoryStore returns a process-lifetime in-memory store.
func NewMemoryStore() Store {
	return &memoryStore{conflicts: make(map[uuid.UUID]SchedulingConflict)}
}

func (s *memoryStore) Save(c SchedulingConflict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts[c.ID] = c
}

func (s *memoryStore) Get(id uuid.UUID) (SchedulingConflict, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conflicts[id]
	return c, ok
}

// Active returns conflicts that are neither resolved nor dismissed,
// ordered by detection time then id for stable listings.
func (s *memoryStore) Active() []SchedulingConflict {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []SchedulingConflict
	for _, c := range s.conflicts {
		if c.ResolvedAt == nil && c.DismissedAt == nil {
			active = append(active, c)
		}
	}
	sortConflicts(active)
	return active
}

func (s *memoryStore) MarkResolved(id uuid.UUID, strategy ResolutionStrategy, at time.Time) (SchedulingConflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conflicts[id]
	if !ok {
		return SchedulingConflict{}, ErrConflictNotFound
	}
	if c.ResolvedAt != nil {
		return SchedulingConflict{}, ErrConflictResolved
	}
	if c.DismissedAt != nil {
		return SchedulingConflict{}, ErrConflictDismissed
	}

	c.ResolvedAt = &at
	c.ResolutionStrategy = &strategy
	s.conflicts[id] = c
	return c, nil
}

func (s *memoryStore) MarkDismissed(id uuid.UUID, at time.Time) (SchedulingConflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conflicts[id]
	if !ok {
		return SchedulingConflict{}, ErrConflictNotFound
	}
	if c.ResolvedAt != nil {
		return SchedulingConflict{}, ErrConflictResolved
	}
	if c.DismissedAt != nil {
		return SchedulingConflict{}, ErrConflictDismissed
	}

	c.DismissedAt = &at
	s.conflicts[id] = c
	return c, nil
}

func (s *memoryStore) AppendResult(r ResolutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, r)
}

func (s *memoryStore) History() []ResolutionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ResolutionResult, len(s.history))
	copy(out, s.history)
	return out
}

func sortConflicts(conflicts []SchedulingConflict) {
	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if !a.DetectedAt.Equal(b.DetectedAt) {
			return a.DetectedAt.Before(b.DetectedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
