package camera

import (
	"sync"
	"sync/atomic"

	"theta-panel/pkg/models"
)

// Store holds the live camera connection profile. Readers load the current
// value lock-free; writers are serialised and publish a fresh copy, so a
// reader never sees a half-applied update.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[models.CameraConfig]
}

func NewStore(initial models.CameraConfig) *Store {
	s := &Store{}
	s.current.Store(&initial)
	return s
}

func (s *Store) Get() models.CameraConfig {
	return *s.current.Load()
}

// Update applies the fields present in u and returns the resulting profile.
// Empty ip/mode and a zero port count as absent; empty credentials overwrite.
func (s *Store) Update(u models.ConfigUpdate) models.CameraConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.current.Load()
	if u.IP != nil && *u.IP != "" {
		next.IP = *u.IP
	}
	if u.Port != nil && *u.Port != 0 {
		next.Port = *u.Port
	}
	if u.Mode != nil && *u.Mode != "" {
		next.Mode = *u.Mode
	}
	if u.Username != nil {
		next.Username = *u.Username
	}
	if u.Password != nil {
		next.Password = *u.Password
	}
	s.current.Store(&next)
	return next
}
