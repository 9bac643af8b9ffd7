package hospital

import (
	"context"
	"sort"
	"sync"
)

// TrustedHospital is a contact the user registered as a preferred emergency
// destination. Priority determines contact order; lower means first choice.
type TrustedHospital struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"hospital_name"`
	Address  string `json:"hospital_address,omitempty"`
	Phone    string `json:"hospital_phone"`
	Priority int    `json:"priority"`
}

// Store exposes the priority-ordered hospital list for a user. The list is
// owned and edited by an external service; the backend only reads it.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]TrustedHospital, error)
}

// MemoryStore keeps hospital lists in memory, sorted on insertion.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string][]TrustedHospital
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: make(map[string][]TrustedHospital)}
}

func (s *MemoryStore) Put(h TrustedHospital) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.byUser[h.UserID], h)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Priority < list[j].Priority
	})
	s.byUser[h.UserID] = list
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]TrustedHospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byUser[userID]
	copied := make([]TrustedHospital, len(list))
	copy(copied, list)
	return copied, nil
}
