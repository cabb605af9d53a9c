package audio

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"stereoguard/internal/domain"
	"stereoguard/internal/ports"
)

// ProcessLister resolves process names for session owners.
type ProcessLister interface {
	ListProcesses(ctx context.Context) ([]domain.ProcessInfo, error)
}

// SessionScanner enumerates per-process audio sessions on every endpoint.
type SessionScanner struct {
	devices   *DeviceEnumerator
	system    ports.AudioSystem
	processes ProcessLister
	log       zerolog.Logger
}

func NewSessionScanner(devices *DeviceEnumerator, system ports.AudioSystem, processes ProcessLister, log zerolog.Logger) *SessionScanner {
	return &SessionScanner{devices: devices, system: system, processes: processes, log: log}
}

// MicUsingApps scans every capture endpoint. A process seen on several
// endpoints is reported once, flagged Bluetooth if any of them is.
func (s *SessionScanner) MicUsingApps(ctx context.Context) ([]domain.MicUsingApp, error) {
	endpoints, err := s.devices.ListEndpoints(ctx, domain.EndpointCapture)
	if err != nil {
		return nil, err
	}

	names := s.processNames(ctx)
	apps := make([]domain.MicUsingApp, 0)
	index := make(map[uint32]int)

	for _, ep := range endpoints {
		sessions, err := s.activeSessions(ctx, ep)
		if err != nil {
			s.log.Debug().Err(err).Str("endpoint", ep.Name).Msg("skipping capture endpoint")
			continue
		}
		for _, session := range sessions {
			pid := session.ProcessID()
			if i, ok := index[pid]; ok {
				if ep.IsBluetooth {
					apps[i].IsUsingBluetoothMic = true
				}
				continue
			}
			processName := nameFor(names, pid)
			index[pid] = len(apps)
			apps = append(apps, domain.MicUsingApp{
				ProcessID:           pid,
				ProcessName:         processName,
				DisplayName:         displayName(session.DisplayName(), processName),
				IconPath:            session.IconPath(),
				IsMuted:             session.IsMuted(),
				IsUsingBluetoothMic: ep.IsBluetooth,
			})
			s.log.Debug().
				Uint32("pid", pid).
				Str("process", processName).
				Str("endpoint", ep.Name).
				Bool("bluetooth", ep.IsBluetooth).
				Msg("mic app")
		}
	}
	return apps, nil
}

// BluetoothOutputApps returns apps with an active session on a Bluetooth render endpoint.
func (s *SessionScanner) BluetoothOutputApps(ctx context.Context) ([]domain.HfpUsingApp, error) {
	endpoints, err := s.devices.ListEndpoints(ctx, domain.EndpointRender)
	if err != nil {
		return nil, err
	}

	var names map[uint32]string
	apps := make([]domain.HfpUsingApp, 0)
	seen := make(map[uint32]struct{})

	for _, ep := range endpoints {
		if !ep.IsBluetooth {
			continue
		}
		sessions, err := s.activeSessions(ctx, ep)
		if err != nil {
			s.log.Debug().Err(err).Str("endpoint", ep.Name).Msg("skipping render endpoint")
			continue
		}
		for _, session := range sessions {
			pid := session.ProcessID()
			if _, ok := seen[pid]; ok {
				continue
			}
			seen[pid] = struct{}{}
			if names == nil {
				names = s.processNames(ctx)
			}
			processName := nameFor(names, pid)
			apps = append(apps, domain.HfpUsingApp{
				ProcessID:   pid,
				ProcessName: processName,
				DisplayName: displayName(session.DisplayName(), processName),
			})
		}
	}
	return apps, nil
}

// Mute mutes pid on every capture endpoint it has a session on.
func (s *SessionScanner) Mute(ctx context.Context, pid uint32) error {
	return s.setMuted(ctx, pid, true)
}

// Unmute reverses Mute.
func (s *SessionScanner) Unmute(ctx context.Context, pid uint32) error {
	return s.setMuted(ctx, pid, false)
}

// MuteAll mutes every active capture session. Individual failures are skipped.
func (s *SessionScanner) MuteAll(ctx context.Context) error {
	endpoints, err := s.devices.ListEndpoints(ctx, domain.EndpointCapture)
	if err != nil {
		return err
	}
	muted := 0
	for _, ep := range endpoints {
		sessions, err := s.activeSessions(ctx, ep)
		if err != nil {
			continue
		}
		for _, session := range sessions {
			if err := session.SetMuted(ctx, true); err != nil {
				s.log.Debug().Err(err).Uint32("pid", session.ProcessID()).Msg("mute failed")
				continue
			}
			muted++
		}
	}
	s.log.Info().Int("sessions", muted).Msg("muted all microphone sessions")
	return nil
}

func (s *SessionScanner) setMuted(ctx context.Context, pid uint32, muted bool) error {
	endpoints, err := s.devices.ListEndpoints(ctx, domain.EndpointCapture)
	if err != nil {
		return err
	}
	matched, applied := 0, 0
	var lastErr error
	for _, ep := range endpoints {
		sessions, err := s.activeSessions(ctx, ep)
		if err != nil {
			continue
		}
		for _, session := range sessions {
			if session.ProcessID() != pid {
				continue
			}
			matched++
			if err := session.SetMuted(ctx, muted); err != nil {
				s.log.Debug().Err(err).Uint32("pid", pid).Str("endpoint", ep.Name).Msg("set mute failed")
				lastErr = err
				continue
			}
			applied++
		}
	}
	if matched == 0 {
		return domain.NewError(domain.ErrorCodeSessionNotFound, "no active session found for process %d on any capture device", pid)
	}
	if applied == 0 {
		return domain.WrapError(domain.ErrorCodeAudioSubsystem, lastErr, "could not change mute for process %d on %d sessions", pid, matched)
	}
	s.log.Info().Uint32("pid", pid).Bool("muted", muted).Msg("updated mic mute")
	return nil
}

// activeSessions drops inactive sessions and the system session (pid 0).
func (s *SessionScanner) activeSessions(ctx context.Context, ep domain.AudioEndpoint) ([]ports.AudioSession, error) {
	sessions, err := s.system.Sessions(ctx, ep.ID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeAudioSubsystem, err, "enumerate sessions on %s", ep.Name)
	}
	active := sessions[:0:0]
	for _, session := range sessions {
		if !session.IsActive() || session.ProcessID() == 0 {
			continue
		}
		active = append(active, session)
	}
	return active, nil
}

func (s *SessionScanner) processNames(ctx context.Context) map[uint32]string {
	names := make(map[uint32]string)
	if s.processes == nil {
		return names
	}
	list, err := s.processes.ListProcesses(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("process listing unavailable")
		return names
	}
	for _, p := range list {
		names[p.PID] = p.Name
	}
	return names
}

func nameFor(names map[uint32]string, pid uint32) string {
	if name, ok := names[pid]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("PID %d", pid)
}

func displayName(sessionName string, processName string) string {
	if sessionName == "" {
		return processName
	}
	return sessionName
}
