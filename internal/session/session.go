// Package session holds the currently selected profile and its resolved
// credentials for the lifetime of the process.
//
// The state is an explicit handle passed into each tool handler rather than
// a package-level global. Selection replaces the record wholesale, so a
// reader never observes a profile name paired with another profile's
// credentials. Nothing here is ever persisted.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/awsgate/awsgate/internal/resolver"
)

// DefaultRegion applies when neither the profile nor the caller names one.
const DefaultRegion = "us-east-1"

// ErrNoProfileSelected is returned by Current before any selection.
var ErrNoProfileSelected = errors.New("no profile selected")

// Snapshot is one consistent view of the session.
type Snapshot struct {
	Profile     string
	Credentials *resolver.Credentials
	Region      string
	SelectedAt  time.Time
}

// State is the process-wide session record. The zero value is ready to use.
type State struct {
	mu      sync.Mutex
	current *Snapshot
}

// New returns an empty session state.
func New() *State {
	return &State{}
}

// Select replaces the session with the given profile, credentials, and
// region. An empty region falls back to DefaultRegion.
func (s *State) Select(profile string, creds *resolver.Credentials, region string) {
	if region == "" {
		region = DefaultRegion
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &Snapshot{
		Profile:     profile,
		Credentials: creds,
		Region:      region,
		SelectedAt:  time.Now(),
	}
}

// Current returns the selected session or ErrNoProfileSelected.
func (s *State) Current() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Snapshot{}, ErrNoProfileSelected
	}
	return *s.current, nil
}

// Selected reports whether any profile has been selected.
func (s *State) Selected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Clear drops the current selection and its credentials.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
