package domain

import (
	"time"

	"github.com/google/uuid"
)

// AudioMode is the profile a Bluetooth audio device is operating in.
type AudioMode int

const (
	AudioModeUnknown AudioMode = iota
	AudioModeStereo
	AudioModeHandsFree
)

func (m AudioMode) String() string {
	switch m {
	case AudioModeStereo:
		return "Stereo"
	case AudioModeHandsFree:
		return "Hands-Free"
	default:
		return "Unknown"
	}
}

// MarshalText renders the mode the same way String does, so events and
// JSON payloads carry readable names.
func (m AudioMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// EndpointKind selects capture (microphone) or render (output) endpoints.
type EndpointKind string

const (
	EndpointCapture EndpointKind = "capture"
	EndpointRender  EndpointKind = "render"
)

// AudioEndpoint is an active platform audio device.
type AudioEndpoint struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsBluetooth bool   `json:"isBluetooth"`
}

// BluetoothAudioDevice is a Bluetooth render endpoint with its negotiated format.
// SampleRate and Channels are nil when the format could not be read.
type BluetoothAudioDevice struct {
	AudioEndpoint
	CurrentMode AudioMode `json:"currentMode"`
	SampleRate  *uint32   `json:"sampleRate,omitempty"`
	Channels    *uint16   `json:"channels,omitempty"`
}

// MicUsingApp is a process holding an active capture session.
type MicUsingApp struct {
	ProcessID           uint32 `json:"processId"`
	ProcessName         string `json:"processName"`
	DisplayName         string `json:"displayName"`
	IconPath            string `json:"iconPath,omitempty"`
	IsMuted             bool   `json:"isMuted"`
	IsUsingBluetoothMic bool   `json:"isUsingBluetoothMic"`
}

// HfpUsingApp is a process with an active session on a Bluetooth render endpoint.
type HfpUsingApp struct {
	ProcessID   uint32 `json:"processId"`
	ProcessName string `json:"processName"`
	DisplayName string `json:"displayName"`
}

// MonitorState is the snapshot written once per poll.
type MonitorState struct {
	CurrentMode      AudioMode              `json:"currentMode"`
	MicUsingApps     []MicUsingApp          `json:"micUsingApps"`
	BluetoothDevices []BluetoothAudioDevice `json:"bluetoothDevices"`
	LastUpdate       time.Time              `json:"lastUpdate"`
}

// Clone returns a deep copy so readers never share slices with the writer.
func (s MonitorState) Clone() MonitorState {
	out := s
	out.MicUsingApps = append([]MicUsingApp(nil), s.MicUsingApps...)
	out.BluetoothDevices = make([]BluetoothAudioDevice, len(s.BluetoothDevices))
	for i, d := range s.BluetoothDevices {
		if d.SampleRate != nil {
			rate := *d.SampleRate
			d.SampleRate = &rate
		}
		if d.Channels != nil {
			ch := *d.Channels
			d.Channels = &ch
		}
		out.BluetoothDevices[i] = d
	}
	return out
}

// StateView is what the presentation layer renders after each poll.
type StateView struct {
	MonitorState
	HfpUsingApps []HfpUsingApp `json:"hfpUsingApps"`
	ForcedStereo []string      `json:"forcedStereo"`
}

// TerminationOutcome is the audited result of a termination request.
type TerminationOutcome int

const (
	OutcomeSuccess TerminationOutcome = iota
	OutcomeBlocked
	OutcomeFailed
	OutcomeUserCancelled
	OutcomeElevationRequired
)

func (o TerminationOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeBlocked:
		return "BLOCKED"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeUserCancelled:
		return "USER_CANCELLED"
	case OutcomeElevationRequired:
		return "ELEVATION_REQUIRED"
	default:
		return "UNKNOWN"
	}
}

func (o TerminationOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// TerminationAttempt is one audit log entry.
type TerminationAttempt struct {
	Timestamp   time.Time          `json:"timestamp"`
	ProcessID   uint32             `json:"processId"`
	ProcessName string             `json:"processName"`
	Outcome     TerminationOutcome `json:"outcome"`
	Reason      string             `json:"reason"`
}

// ProcessInfo is one row of a process listing.
type ProcessInfo struct {
	PID  uint32
	Name string
}

// ServiceID identifies a Bluetooth service class.
type ServiceID = uuid.UUID

// Well-known Bluetooth service classes.
var (
	ServiceHandsFree        = uuid.MustParse("0000111e-0000-1000-8000-00805f9b34fb")
	ServiceHandsFreeGateway = uuid.MustParse("0000111f-0000-1000-8000-00805f9b34fb")
	ServiceHeadset          = uuid.MustParse("00001108-0000-1000-8000-00805f9b34fb")
	ServiceHeadsetGateway   = uuid.MustParse("00001112-0000-1000-8000-00805f9b34fb")
	ServiceAudioSource      = uuid.MustParse("0000110a-0000-1000-8000-00805f9b34fb")
	ServiceAudioSink        = uuid.MustParse("0000110b-0000-1000-8000-00805f9b34fb")
	ServiceRemoteTarget     = uuid.MustParse("0000110c-0000-1000-8000-00805f9b34fb")
	ServiceRemoteControl    = uuid.MustParse("0000110e-0000-1000-8000-00805f9b34fb")
)

// BluetoothDeviceInfo is a paired Bluetooth device.
type BluetoothDeviceInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ServiceSet is a device plus its installed services, fetched per operation.
type ServiceSet struct {
	Device   BluetoothDeviceInfo
	Services []ServiceID
}

// MatchQuality scores a device name against a query. Higher is better.
type MatchQuality int

const (
	MatchNone MatchQuality = iota
	MatchContains
	MatchExact
)

func (q MatchQuality) String() string {
	switch q {
	case MatchExact:
		return "exact"
	case MatchContains:
		return "contains"
	default:
		return "none"
	}
}
