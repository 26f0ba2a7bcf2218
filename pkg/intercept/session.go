package intercept

import (
	"sync"

	"github.com/google/uuid"
)

// PlaybackSession carries the state shared by the requests of one media
// load: the base directory of the first playlist, per provider. Build a
// new session (or Reset the old one) for every media load; sessions are
// never shared between concurrent loads.
type PlaybackSession struct {
	id string

	mu    sync.Mutex
	bases map[string]string
}

// NewSession returns an idle session.
func NewSession() *PlaybackSession {
	return &PlaybackSession{
		id:    uuid.NewString(),
		bases: make(map[string]string),
	}
}

// ID identifies the session in logs.
func (s *PlaybackSession) ID() string {
	return s.id
}

// Base returns the cached base directory for provider.
func (s *PlaybackSession) Base(provider string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base, ok := s.bases[provider]
	return base, ok
}

// SetBase records the base directory for provider. The last writer wins.
func (s *PlaybackSession) SetBase(provider, base string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bases[provider] = base
}

// Reset returns the session to idle for the next media load.
func (s *PlaybackSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.bases)
}
