package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"stereoguard/internal/domain"
	"stereoguard/internal/metrics"
	"stereoguard/internal/ports"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	commandQueueSize    = 16
	eventQueueSize      = 64
	pollErrorLogEvery   = 30 * time.Second
)

var errAlreadyStarted = errors.New("monitor already started")

// DeviceSource lists Bluetooth render endpoints with their formats.
type DeviceSource interface {
	BluetoothDevices(ctx context.Context) ([]domain.BluetoothAudioDevice, error)
}

// ModeSource decides the overall mode for one poll.
type ModeSource interface {
	Detect(ctx context.Context, devices []domain.BluetoothAudioDevice, micApps []domain.MicUsingApp) domain.AudioMode
}

// SessionControl scans and mutes capture sessions.
type SessionControl interface {
	MicUsingApps(ctx context.Context) ([]domain.MicUsingApp, error)
	Mute(ctx context.Context, pid uint32) error
	Unmute(ctx context.Context, pid uint32) error
	MuteAll(ctx context.Context) error
}

type MonitorDeps struct {
	Devices  DeviceSource
	Detector ModeSource
	Sessions SessionControl
	// Thread is initialized on the locked polling thread when set.
	Thread   ports.ThreadInitializer
	Clock    ports.Clock
	Interval time.Duration
	Metrics  *metrics.Recorder
	Log      zerolog.Logger
}

// Monitor runs the polling loop on a dedicated OS thread. It owns the
// latest MonitorState and talks to the outside only through its command
// inbox and event channel.
type Monitor struct {
	devices  DeviceSource
	detector ModeSource
	sessions SessionControl
	thread   ports.ThreadInitializer
	clock    ports.Clock
	interval time.Duration
	metrics  *metrics.Recorder
	log      zerolog.Logger

	commands chan Command
	events   chan Event
	done     chan struct{}

	startMu sync.Mutex
	started bool

	stateMu sync.Mutex
	state   domain.MonitorState
}

func NewMonitor(deps MonitorDeps) *Monitor {
	interval := deps.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	clock := deps.Clock
	if clock == nil {
		clock = ports.RealClock()
	}
	return &Monitor{
		devices:  deps.Devices,
		detector: deps.Detector,
		sessions: deps.Sessions,
		thread:   deps.Thread,
		clock:    clock,
		interval: interval,
		metrics:  deps.Metrics,
		log:      deps.Log,
		commands: make(chan Command, commandQueueSize),
		events:   make(chan Event, eventQueueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the loop. Cancelling ctx stops it the same way a Shutdown
// command does.
func (m *Monitor) Start(ctx context.Context) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	if m.started {
		return errAlreadyStarted
	}
	m.started = true
	go m.run(ctx)
	return nil
}

// Events is closed after the final Shutdown event. Consumers must drain it.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Done is closed once the loop has exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Send enqueues cmd. The loop takes at most one command per poll.
func (m *Monitor) Send(ctx context.Context, cmd Command) error {
	m.startMu.Lock()
	started := m.started
	m.startMu.Unlock()
	if !started {
		return domain.ErrNotReady
	}

	select {
	case <-m.done:
		return domain.ErrMonitorStopped
	default:
	}

	select {
	case m.commands <- cmd:
		return nil
	case <-m.done:
		return domain.ErrMonitorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown asks the loop to stop and waits for it to exit.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if err := m.Send(ctx, Command{Kind: CommandShutdown}); err != nil {
		if errors.Is(err, domain.ErrMonitorStopped) || errors.Is(err, domain.ErrNotReady) {
			return nil
		}
		return err
	}
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a copy of the latest snapshot.
func (m *Monitor) State() domain.MonitorState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state.Clone()
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer close(m.events)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	m.log.Info().Dur("interval", m.interval).Msg("audio monitor started")

	if m.thread != nil {
		release, err := m.thread.InitThread()
		if err != nil {
			m.log.Error().Err(err).Msg("audio subsystem init failed on monitor thread")
			m.emit(Event{Kind: EventError, Message: fmt.Sprintf("audio subsystem init failed: %v", err)})
			m.emit(Event{Kind: EventShutdown})
			return
		}
		defer release()
	}

	lastMode := domain.AudioModeUnknown
	errLog := &rate.Sometimes{First: 1, Interval: pollErrorLogEvery}

	for {
		select {
		case cmd := <-m.commands:
			if cmd.Kind == CommandShutdown {
				m.log.Info().Msg("monitor received shutdown command")
				m.emit(Event{Kind: EventShutdown})
				return
			}
			m.dispatch(ctx, cmd)
		case <-ctx.Done():
			m.log.Info().Msg("monitor context cancelled, shutting down")
			m.emit(Event{Kind: EventShutdown})
			return
		default:
		}

		started := m.clock.Now()
		state, err := m.poll(ctx)
		m.metrics.ObservePoll(m.clock.Now().Sub(started), err)
		if err != nil {
			errLog.Do(func() {
				m.log.Warn().Err(err).Msg("error polling audio state")
			})
			m.emit(Event{Kind: EventError, Message: err.Error()})
		} else {
			errLog = &rate.Sometimes{First: 1, Interval: pollErrorLogEvery}

			m.stateMu.Lock()
			m.state = state
			m.stateMu.Unlock()
			m.metrics.SetMode(state.CurrentMode, len(state.MicUsingApps))

			if state.CurrentMode != lastMode && lastMode != domain.AudioModeUnknown {
				m.log.Info().
					Str("from", lastMode.String()).
					Str("to", state.CurrentMode.String()).
					Msg("audio mode changed")
				m.metrics.ModeChanged(lastMode, state.CurrentMode)
				m.emit(Event{Kind: EventModeChanged, Previous: lastMode, Current: state.CurrentMode})
			}
			lastMode = state.CurrentMode

			m.emit(Event{Kind: EventStateUpdate, State: state.Clone()})
		}

		select {
		case <-m.clock.After(m.interval):
		case <-ctx.Done():
		}
	}
}

func (m *Monitor) poll(ctx context.Context) (domain.MonitorState, error) {
	devices, err := m.devices.BluetoothDevices(ctx)
	if err != nil {
		return domain.MonitorState{}, err
	}
	for _, d := range devices {
		m.log.Debug().
			Str("device", d.Name).
			Interface("sample_rate", d.SampleRate).
			Interface("channels", d.Channels).
			Msg("bluetooth device")
	}

	apps, err := m.sessions.MicUsingApps(ctx)
	if err != nil {
		return domain.MonitorState{}, err
	}

	current := m.detector.Detect(ctx, devices, apps)
	for i := range devices {
		devices[i].CurrentMode = current
	}

	return domain.MonitorState{
		CurrentMode:      current,
		MicUsingApps:     apps,
		BluetoothDevices: devices,
		LastUpdate:       m.clock.Now(),
	}, nil
}

func (m *Monitor) dispatch(ctx context.Context, cmd Command) {
	m.log.Debug().Str("command", cmd.Kind.String()).Uint32("pid", cmd.PID).Msg("monitor command")
	switch cmd.Kind {
	case CommandMuteApp:
		if err := m.sessions.Mute(ctx, cmd.PID); err != nil {
			m.emit(Event{Kind: EventError, Message: fmt.Sprintf("failed to mute app: %v", err)})
			return
		}
		m.log.Info().Uint32("pid", cmd.PID).Msg("muted app")
	case CommandUnmuteApp:
		if err := m.sessions.Unmute(ctx, cmd.PID); err != nil {
			m.emit(Event{Kind: EventError, Message: fmt.Sprintf("failed to unmute app: %v", err)})
			return
		}
		m.log.Info().Uint32("pid", cmd.PID).Msg("unmuted app")
	case CommandMuteAll:
		if err := m.sessions.MuteAll(ctx); err != nil {
			m.emit(Event{Kind: EventError, Message: fmt.Sprintf("failed to mute all apps: %v", err)})
			return
		}
		m.log.Info().Msg("muted all mic-using apps")
	case CommandGetState, CommandRefreshDevices:
		// the regular poll below answers these
	}
}

func (m *Monitor) emit(ev Event) {
	m.events <- ev
}
