package usecase

import (
	"stereoguard/internal/domain"
	"stereoguard/internal/ports"
)

// FanOut forwards every event to each sink in order.
type FanOut []ports.EventSink

func (f FanOut) StateUpdated(view domain.StateView) {
	for _, s := range f {
		s.StateUpdated(view)
	}
}

func (f FanOut) ModeChanged(previous domain.AudioMode, current domain.AudioMode) {
	for _, s := range f {
		s.ModeChanged(previous, current)
	}
}

func (f FanOut) MonitorError(message string) {
	for _, s := range f {
		s.MonitorError(message)
	}
}

func (f FanOut) MonitorStopped() {
	for _, s := range f {
		s.MonitorStopped()
	}
}

func (f FanOut) ReconnectFinished(device string, err error) {
	for _, s := range f {
		s.ReconnectFinished(device, err)
	}
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) StateUpdated(domain.StateView)                  {}
func (NopSink) ModeChanged(domain.AudioMode, domain.AudioMode) {}
func (NopSink) MonitorError(string)                            {}
func (NopSink) MonitorStopped()                                {}
func (NopSink) ReconnectFinished(string, error)                {}
