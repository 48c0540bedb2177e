package matcher

import (
	"sort"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Session accumulates the identities recognized during one capture run.
// Adding the same identity from multiple frames or multiple faces is
// idempotent, so a session yields at most one attendance row per person.
type Session struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewSession creates an empty recognized-identity set.
func NewSession() *Session {
	return &Session{names: make(map[string]struct{})}
}

// Add records a recognized identity. Names are NFKC-normalized so
// width variants of the same name count once.
func (s *Session) Add(name string) {
	key := norm.NFKC.String(name)
	s.mu.Lock()
	s.names[key] = struct{}{}
	s.mu.Unlock()
}

// Len returns the number of distinct recognized identities.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

// Names returns the recognized identities, sorted for stable output.
func (s *Session) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
