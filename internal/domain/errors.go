package domain

import "fmt"

// ErrorCode identifies the closed set of failures that cross the core boundary.
type ErrorCode string

const (
	ErrorCodeStartup            ErrorCode = "startup"
	ErrorCodeNotReady           ErrorCode = "not_ready"
	ErrorCodeAudioSubsystem     ErrorCode = "audio_subsystem"
	ErrorCodeSessionNotFound    ErrorCode = "session_not_found"
	ErrorCodeProcessNotFound    ErrorCode = "process_not_found"
	ErrorCodeProtectedProcess   ErrorCode = "protected_process"
	ErrorCodeSystemProcess      ErrorCode = "system_process"
	ErrorCodeNotUsingMicrophone ErrorCode = "not_using_microphone"
	ErrorCodeTerminateFailed    ErrorCode = "terminate_failed"
	ErrorCodeElevationFailed    ErrorCode = "elevation_failed"
	ErrorCodeDeviceNotFound     ErrorCode = "device_not_found"
	ErrorCodeNoServices         ErrorCode = "no_services"
	ErrorCodeNoHandsFree        ErrorCode = "no_hands_free_service"
	ErrorCodeServiceToggle      ErrorCode = "service_toggle"
	ErrorCodePartialReconnect   ErrorCode = "partial_reconnect"
	ErrorCodeBusy               ErrorCode = "already_reconnecting"
	ErrorCodeMonitorStopped     ErrorCode = "monitor_stopped"
)

// Error carries a closed-set code, a human-readable message and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError builds an *Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code and message to a platform failure.
func WrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

var (
	ErrNotReady            = &Error{Code: ErrorCodeNotReady, Message: "application is not initialized"}
	ErrAudioSubsystem      = &Error{Code: ErrorCodeAudioSubsystem, Message: "audio subsystem error"}
	ErrSessionNotFound     = &Error{Code: ErrorCodeSessionNotFound, Message: "no audio session for process"}
	ErrProcessNotFound     = &Error{Code: ErrorCodeProcessNotFound, Message: "process not found"}
	ErrProtectedProcess    = &Error{Code: ErrorCodeProtectedProcess, Message: "process is protected"}
	ErrSystemProcess       = &Error{Code: ErrorCodeSystemProcess, Message: "process runs as the system account"}
	ErrNotUsingMicrophone  = &Error{Code: ErrorCodeNotUsingMicrophone, Message: "process is not using the microphone"}
	ErrTerminateFailed     = &Error{Code: ErrorCodeTerminateFailed, Message: "failed to terminate process"}
	ErrElevationFailed     = &Error{Code: ErrorCodeElevationFailed, Message: "failed to launch elevated helper"}
	ErrDeviceNotFound      = &Error{Code: ErrorCodeDeviceNotFound, Message: "bluetooth device not found"}
	ErrNoServices          = &Error{Code: ErrorCodeNoServices, Message: "device has no installed services"}
	ErrNoHandsFreeService  = &Error{Code: ErrorCodeNoHandsFree, Message: "device has no hands-free service"}
	ErrServiceToggle       = &Error{Code: ErrorCodeServiceToggle, Message: "failed to toggle bluetooth service"}
	ErrPartialReconnect    = &Error{Code: ErrorCodePartialReconnect, Message: "reconnect incomplete"}
	ErrAlreadyReconnecting = &Error{Code: ErrorCodeBusy, Message: "device is already reconnecting"}
	ErrMonitorStopped      = &Error{Code: ErrorCodeMonitorStopped, Message: "monitor is not running"}
)
