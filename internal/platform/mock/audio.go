// Package mock is a deterministic in-memory platform for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"stereoguard/internal/domain"
	"stereoguard/internal/ports"
)

var errNotFound = errors.New("not found")

// AudioSystem holds endpoints, sessions, formats and meter counts in memory.
type AudioSystem struct {
	mu        sync.Mutex
	endpoints map[domain.EndpointKind][]ports.Endpoint
	sessions  map[string][]*Session
	formats   map[string]ports.Format
	meters    map[string]uint32

	endpointErr map[domain.EndpointKind]error
	sessionErr  map[string]error
	formatErr   map[string]error
	meterErr    map[string]error
	initErr     error
	initCalls   int
	released    int
}

func NewAudioSystem() *AudioSystem {
	return &AudioSystem{
		endpoints:   make(map[domain.EndpointKind][]ports.Endpoint),
		sessions:    make(map[string][]*Session),
		formats:     make(map[string]ports.Format),
		meters:      make(map[string]uint32),
		endpointErr: make(map[domain.EndpointKind]error),
		sessionErr:  make(map[string]error),
		formatErr:   make(map[string]error),
		meterErr:    make(map[string]error),
	}
}

// AddEndpoint registers an active endpoint.
func (a *AudioSystem) AddEndpoint(kind domain.EndpointKind, id string, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.endpoints[kind] = append(a.endpoints[kind], ports.Endpoint{ID: id, Name: name})
}

// RemoveEndpoint drops an endpoint and its sessions.
func (a *AudioSystem) RemoveEndpoint(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for kind, list := range a.endpoints {
		kept := list[:0]
		for _, ep := range list {
			if ep.ID != id {
				kept = append(kept, ep)
			}
		}
		a.endpoints[kind] = kept
	}
	delete(a.sessions, id)
}

// AddSession attaches a session to an endpoint and returns it.
func (a *AudioSystem) AddSession(endpointID string, pid uint32, displayName string, active bool) *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &Session{owner: a, pid: pid, displayName: displayName, active: active}
	a.sessions[endpointID] = append(a.sessions[endpointID], s)
	return s
}

// ClearSessions removes every session of pid on every endpoint.
func (a *AudioSystem) ClearSessions(pid uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, list := range a.sessions {
		kept := list[:0]
		for _, s := range list {
			if s.pid != pid {
				kept = append(kept, s)
			}
		}
		a.sessions[id] = kept
	}
}

func (a *AudioSystem) SetFormat(endpointID string, sampleRate uint32, channels uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.formats[endpointID] = ports.Format{SampleRate: sampleRate, Channels: channels}
}

func (a *AudioSystem) SetMeter(endpointID string, channels uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.meters[endpointID] = channels
	delete(a.meterErr, endpointID)
}

func (a *AudioSystem) FailEndpoints(kind domain.EndpointKind, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		delete(a.endpointErr, kind)
		return
	}
	a.endpointErr[kind] = err
}

func (a *AudioSystem) FailSessions(endpointID string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionErr[endpointID] = err
}

func (a *AudioSystem) FailFormat(endpointID string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.formatErr[endpointID] = err
}

func (a *AudioSystem) FailMeter(endpointID string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.meterErr[endpointID] = err
}

// FailInit makes InitThread fail.
func (a *AudioSystem) FailInit(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initErr = err
}

// ThreadStats reports InitThread calls and releases.
func (a *AudioSystem) ThreadStats() (inits int, releases int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initCalls, a.released
}

func (a *AudioSystem) InitThread() (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initCalls++
	if a.initErr != nil {
		return nil, a.initErr
	}
	return func() {
		a.mu.Lock()
		a.released++
		a.mu.Unlock()
	}, nil
}

func (a *AudioSystem) Endpoints(_ context.Context, kind domain.EndpointKind) ([]ports.Endpoint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.endpointErr[kind]; err != nil {
		return nil, err
	}
	return append([]ports.Endpoint(nil), a.endpoints[kind]...), nil
}

func (a *AudioSystem) Sessions(_ context.Context, endpointID string) ([]ports.AudioSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.sessionErr[endpointID]; err != nil {
		return nil, err
	}
	list := a.sessions[endpointID]
	out := make([]ports.AudioSession, 0, len(list))
	for _, s := range list {
		out = append(out, s)
	}
	return out, nil
}

func (a *AudioSystem) MixFormat(_ context.Context, endpointID string) (ports.Format, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.formatErr[endpointID]; err != nil {
		return ports.Format{}, err
	}
	format, ok := a.formats[endpointID]
	if !ok {
		return ports.Format{}, errNotFound
	}
	return format, nil
}

func (a *AudioSystem) MeterChannelCount(_ context.Context, endpointID string) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.meterErr[endpointID]; err != nil {
		return 0, err
	}
	count, ok := a.meters[endpointID]
	if !ok {
		return 0, errNotFound
	}
	return count, nil
}

// Session is an in-memory audio session.
type Session struct {
	owner       *AudioSystem
	pid         uint32
	displayName string
	iconPath    string
	active      bool
	muted       bool
	muteErr     error
}

func (s *Session) ProcessID() uint32   { return s.pid }
func (s *Session) DisplayName() string { return s.displayName }
func (s *Session) IconPath() string    { return s.iconPath }

func (s *Session) IsActive() bool {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return s.active
}

func (s *Session) IsMuted() bool {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return s.muted
}

func (s *Session) SetMuted(_ context.Context, muted bool) error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if s.muteErr != nil {
		return s.muteErr
	}
	s.muted = muted
	return nil
}

// SetActive flips the session state.
func (s *Session) SetActive(active bool) {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.active = active
}

// FailMute makes SetMuted fail.
func (s *Session) FailMute(err error) {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.muteErr = err
}

func (s *Session) WithIcon(path string) *Session {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.iconPath = path
	return s
}
