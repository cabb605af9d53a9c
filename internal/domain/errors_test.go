package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := WrapError(ErrorCodeDeviceNotFound, errors.New("dbus"), "no device matching %q", "sony")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected device-not-found match")
	}
	if errors.Is(err, ErrNoServices) {
		t.Fatalf("unexpected match on a different code")
	}

	wrapped := fmt.Errorf("reconnect: %w", err)
	if !errors.Is(wrapped, ErrDeviceNotFound) {
		t.Fatalf("expected match through fmt wrapping")
	}
	if got := CodeOf(wrapped); got != ErrorCodeDeviceNotFound {
		t.Fatalf("unexpected code: %q", got)
	}
	if got := err.Error(); got != `no device matching "sony": dbus` {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	t.Parallel()

	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty code, got %q", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Fatalf("expected empty code for nil, got %q", got)
	}
}

func TestModeAndOutcomeStrings(t *testing.T) {
	t.Parallel()

	modes := map[AudioMode]string{
		AudioModeStereo:    "Stereo",
		AudioModeHandsFree: "Hands-Free",
		AudioModeUnknown:   "Unknown",
	}
	for mode, want := range modes {
		if got := mode.String(); got != want {
			t.Fatalf("mode %d: got %q want %q", mode, got, want)
		}
	}

	outcomes := map[TerminationOutcome]string{
		OutcomeSuccess:           "SUCCESS",
		OutcomeBlocked:           "BLOCKED",
		OutcomeFailed:            "FAILED",
		OutcomeUserCancelled:     "USER_CANCELLED",
		OutcomeElevationRequired: "ELEVATION_REQUIRED",
	}
	for outcome, want := range outcomes {
		if got := outcome.String(); got != want {
			t.Fatalf("outcome %d: got %q want %q", outcome, got, want)
		}
	}
}

func TestMonitorStateCloneIsDeep(t *testing.T) {
	t.Parallel()

	rate := uint32(48000)
	state := MonitorState{
		MicUsingApps:     []MicUsingApp{{ProcessID: 7}},
		BluetoothDevices: []BluetoothAudioDevice{{SampleRate: &rate}},
	}
	clone := state.Clone()
	clone.MicUsingApps[0].ProcessID = 8
	*clone.BluetoothDevices[0].SampleRate = 16000

	if state.MicUsingApps[0].ProcessID != 7 {
		t.Fatalf("clone shares mic app slice")
	}
	if *state.BluetoothDevices[0].SampleRate != 48000 {
		t.Fatalf("clone shares sample rate pointer")
	}
}
