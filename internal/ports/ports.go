package ports

//go:generate mockgen -destination=mock_ports.go -package=ports stereoguard/internal/ports Confirmer,Elevator,Clock

import (
	"context"
	"time"

	"stereoguard/internal/domain"
)

// Endpoint is a platform audio endpoint before Bluetooth classification.
type Endpoint struct {
	ID   string
	Name string
}

// Format is an endpoint's negotiated mix format.
type Format struct {
	SampleRate uint32
	Channels   uint16
}

// AudioSession is a per-process volume/mute control on one endpoint.
type AudioSession interface {
	ProcessID() uint32
	DisplayName() string
	IconPath() string
	IsActive() bool
	IsMuted() bool
	SetMuted(ctx context.Context, muted bool) error
}

// AudioSystem is the platform audio subsystem.
type AudioSystem interface {
	Endpoints(ctx context.Context, kind domain.EndpointKind) ([]Endpoint, error)
	Sessions(ctx context.Context, endpointID string) ([]AudioSession, error)
	MixFormat(ctx context.Context, endpointID string) (Format, error)
	MeterChannelCount(ctx context.Context, endpointID string) (uint32, error)
}

// ThreadInitializer is implemented by audio systems that must be set up on
// the thread that queries them. A failure is fatal to the monitor.
type ThreadInitializer interface {
	InitThread() (release func(), err error)
}

// ProcessSystem is the platform process subsystem.
type ProcessSystem interface {
	ListProcesses(ctx context.Context) ([]domain.ProcessInfo, error)
	// TokenIdentity returns the account identity the process runs as.
	TokenIdentity(ctx context.Context, pid uint32) (string, error)
	// SystemIdentity returns the well-known system account identity.
	SystemIdentity() (string, error)
	// RequiresElevation reports whether terminating pid needs more privilege
	// than this process holds. An error means the process could not be queried.
	RequiresElevation(ctx context.Context, pid uint32) (bool, error)
	Terminate(ctx context.Context, pid uint32) error
}

// BluetoothSystem is the platform Bluetooth subsystem.
type BluetoothSystem interface {
	PairedDevices(ctx context.Context) ([]domain.BluetoothDeviceInfo, error)
	InstalledServices(ctx context.Context, device domain.BluetoothDeviceInfo) ([]domain.ServiceID, error)
	SetServiceState(ctx context.Context, device domain.BluetoothDeviceInfo, service domain.ServiceID, enabled bool) error
}

// Confirmer asks the operator before a termination proceeds.
type Confirmer interface {
	ConfirmTermination(ctx context.Context, pid uint32, name string) (bool, error)
	ConfirmElevation(ctx context.Context, pid uint32, name string) (bool, error)
}

// Elevator launches the privileged helper for a pid.
type Elevator interface {
	LaunchElevated(ctx context.Context, pid uint32) error
}

// Clock abstracts time for the polling loop and reconnect delays.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// EventSink emits backend state/events to the UI.
type EventSink interface {
	StateUpdated(view domain.StateView)
	ModeChanged(previous domain.AudioMode, current domain.AudioMode)
	MonitorError(message string)
	MonitorStopped()
	ReconnectFinished(device string, err error)
}
