package profile

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound indicates no profile has been registered for the user.
var ErrNotFound = errors.New("profile not found")

// Profile holds the health record a user registered with the app. Zero
// values mean the field was left blank.
type Profile struct {
	UserID                 string  `json:"user_id"`
	FullName               string  `json:"full_name"`
	Age                    int     `json:"age,omitempty"`
	HeightCM               float64 `json:"height_cm,omitempty"`
	WeightKG               float64 `json:"weight_kg,omitempty"`
	HealthConditions       string  `json:"health_conditions,omitempty"`
	Allergies              string  `json:"allergies,omitempty"`
	CheckupData            string  `json:"checkup_data,omitempty"`
	Location               string  `json:"location,omitempty"`
	ContactNumber          string  `json:"contact_number,omitempty"`
	EmergencyContactNumber string  `json:"emergency_contact_number,omitempty"`
}

// BMI derives the body mass index from height and weight, or 0 when either
// is missing.
func (p Profile) BMI() float64 {
	if p.HeightCM <= 0 || p.WeightKG <= 0 {
		return 0
	}
	meters := p.HeightCM / 100
	return p.WeightKG / (meters * meters)
}

// Store is the read interface the chat and emergency services consume.
// Profile ownership lives in an external identity service; this interface is
// what the backend sees of it.
type Store interface {
	Get(ctx context.Context, userID string) (*Profile, error)
}

// MemoryStore keeps profiles in memory, for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

func (s *MemoryStore) Put(p Profile) {
	s.mu.Lock()
	s.profiles[p.UserID] = p
	s.mu.Unlock()
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := p
	return &copied, nil
}
