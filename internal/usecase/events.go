package usecase

import (
	"fmt"

	"stereoguard/internal/domain"
)

// CommandKind names a request sent to the monitor loop.
type CommandKind int

const (
	CommandGetState CommandKind = iota
	CommandRefreshDevices
	CommandMuteApp
	CommandUnmuteApp
	CommandMuteAll
	CommandShutdown
)

func (k CommandKind) String() string {
	switch k {
	case CommandGetState:
		return "get_state"
	case CommandRefreshDevices:
		return "refresh_devices"
	case CommandMuteApp:
		return "mute_app"
	case CommandUnmuteApp:
		return "unmute_app"
	case CommandMuteAll:
		return "mute_all"
	case CommandShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is a monitor request. PID is set for MuteApp and UnmuteApp.
type Command struct {
	Kind CommandKind
	PID  uint32
}

// EventKind names a notification emitted by the monitor loop.
type EventKind int

const (
	EventStateUpdate EventKind = iota
	EventModeChanged
	EventError
	EventShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventStateUpdate:
		return "state_update"
	case EventModeChanged:
		return "mode_changed"
	case EventError:
		return "error"
	case EventShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a monitor notification. Which fields are set depends on Kind:
// State for StateUpdate, Previous and Current for ModeChanged, Message for Error.
type Event struct {
	Kind     EventKind
	State    domain.MonitorState
	Previous domain.AudioMode
	Current  domain.AudioMode
	Message  string
}
