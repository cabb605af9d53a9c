package audio

import (
	"context"
	"errors"
	"testing"

	"stereoguard/internal/domain"
	"stereoguard/internal/logger"
	"stereoguard/internal/platform/mock"
)

func newScanner(system *mock.AudioSystem, procs *mock.ProcessSystem) *SessionScanner {
	log := logger.NewTestLogger()
	return NewSessionScanner(NewDeviceEnumerator(system, log), system, procs, log)
}

func TestIsBluetooth(t *testing.T) {
	t.Parallel()

	cases := []struct {
		id, name string
		want     bool
	}{
		{"bluez_output.AA_BB.1", "Output", true},
		{`{0.0.0.00000000}.{0000110b-0000}`, "Speakers", true},
		{"alsa_output.pci", "Sony WH-1000XM4 Headset", true},
		{"alsa_output.pci", "Galaxy Buds2", true},
		{"alsa_output.pci", "AirPods Pro", true},
		{"alsa_output.pci-0000_00_1f.3", "Built-in Audio", false},
		{"usb-mic", "Blue Yeti", false},
	}
	for _, tc := range cases {
		if got := IsBluetooth(tc.id, tc.name); got != tc.want {
			t.Fatalf("IsBluetooth(%q, %q) = %v, want %v", tc.id, tc.name, got, tc.want)
		}
	}
}

func TestMicUsingAppsScansAllCaptureEndpoints(t *testing.T) {
	t.Parallel()

	system := mock.NewAudioSystem()
	system.AddEndpoint(domain.EndpointCapture, "alsa_input.builtin", "Built-in Microphone")
	system.AddEndpoint(domain.EndpointCapture, "bluez_input.AA_BB", "WH-1000XM4")
	system.AddSession("alsa_input.builtin", 100, "Zoom Meeting", true)
	system.AddSession("alsa_input.builtin", 0, "System Sounds", true)
	system.AddSession("alsa_input.builtin", 200, "Recorder", false)
	system.AddSession("bluez_input.AA_BB", 100, "Zoom (BT)", true)
	system.AddSession("bluez_input.AA_BB", 300, "", true)

	procs := mock.NewProcessSystem()
	procs.AddProcess(mock.Process{PID: 100, Name: "zoom"})
	procs.AddProcess(mock.Process{PID: 300, Name: "discord"})

	apps, err := newScanner(system, procs).MicUsingApps(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("expected 2 apps, got %+v", apps)
	}
	if apps[0].ProcessID != 100 || apps[0].DisplayName != "Zoom Meeting" || !apps[0].IsUsingBluetoothMic {
		t.Fatalf("first occurrence should be kept with bluetooth flag or-combined: %+v", apps[0])
	}
	if apps[1].ProcessID != 300 || apps[1].DisplayName != "discord" || apps[1].ProcessName != "discord" {
		t.Fatalf("expected display name fallback to process name: %+v", apps[1])
	}
}

func TestMicUsingAppsSkipsFailingEndpointAndNamesUnknownPID(t *testing.T) {
	t.Parallel()

	system := mock.NewAudioSystem()
	system.AddEndpoint(domain.EndpointCapture, "broken", "Broken")
	system.AddEndpoint(domain.EndpointCapture, "ok", "Webcam Mic")
	system.FailSessions("broken", errors.New("device lost"))
	system.AddSession("ok", 42, "", true)

	apps, err := newScanner(system, mock.NewProcessSystem()).MicUsingApps(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(apps) != 1 || apps[0].ProcessName != "PID 42" || apps[0].IsUsingBluetoothMic {
		t.Fatalf("unexpected apps: %+v", apps)
	}
}

func TestMicUsingAppsEnumerationFailure(t *testing.T) {
	t.Parallel()

	system := mock.NewAudioSystem()
	system.FailEndpoints(domain.EndpointCapture, errors.New("no server"))

	_, err := newScanner(system, nil).MicUsingApps(context.Background())
	if !errors.Is(err, domain.ErrAudioSubsystem) {
		t.Fatalf("expected audio subsystem error, got %v", err)
	}
}

func TestBluetoothOutputApps(t *testing.T) {
	t.Parallel()

	system := mock.NewAudioSystem()
	system.AddEndpoint(domain.EndpointRender, "alsa_output.hdmi", "HDMI")
	system.AddEndpoint(domain.EndpointRender, "bluez_output.AA_BB.1", "WH-1000XM4")
	system.AddSession("alsa_output.hdmi", 10, "Firefox", true)
	system.AddSession("bluez_output.AA_BB.1", 20, "Teams", true)
	system.AddSession("bluez_output.AA_BB.1", 20, "Teams ringer", true)
	system.AddSession("bluez_output.AA_BB.1", 30, "Paused", false)

	procs := mock.NewProcessSystem()
	procs.AddProcess(mock.Process{PID: 20, Name: "teams"})

	apps, err := newScanner(system, procs).BluetoothOutputApps(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(apps) != 1 || apps[0].ProcessID != 20 || apps[0].ProcessName != "teams" || apps[0].DisplayName != "Teams" {
		t.Fatalf("unexpected apps: %+v", apps)
	}
}

func TestMuteAppliesAcrossEndpoints(t *testing.T) {
	t.Parallel()

	system := mock.NewAudioSystem()
	system.AddEndpoint(domain.EndpointCapture, "a", "Mic A")
	system.AddEndpoint(domain.EndpointCapture, "b", "Mic B")
	first := system.AddSession("a", 7, "App", true)
	second := system.AddSession("b", 7, "App", true)
	other := system.AddSession("b", 8, "Other", true)

	scanner := newScanner(system, nil)
	if err := scanner.Mute(context.Background(), 7); err != nil {
		t.Fatalf("mute failed: %v", err)
	}
	if !first.IsMuted() || !second.IsMuted() || other.IsMuted() {
		t.Fatalf("mute should hit every session of the pid only")
	}

	if err := scanner.Unmute(context.Background(), 7); err != nil {
		t.Fatalf("unmute failed: %v", err)
	}
	if first.IsMuted() || second.IsMuted() {
		t.Fatalf("unmute did not apply")
	}
}

func TestMuteUnknownPID(t *testing.T) {
	t.Parallel()

	system := mock.NewAudioSystem()
	system.AddEndpoint(domain.EndpointCapture, "a", "Mic A")
	system.AddSession("a", 7, "App", true)
	system.AddSession("a", 9, "Idle", false)

	scanner := newScanner(system, nil)
	if err := scanner.Mute(context.Background(), 99); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if err := scanner.Mute(context.Background(), 9); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("inactive session must not count, got %v", err)
	}
}

func TestMuteFailureIsNotMissingSession(t *testing.T) {
	t.Parallel()

	system := mock.NewAudioSystem()
	system.AddEndpoint(domain.EndpointCapture, "a", "Mic A")
	system.AddEndpoint(domain.EndpointCapture, "b", "Mic B")
	first := system.AddSession("a", 7, "App", true)
	second := system.AddSession("b", 7, "App", true)
	denied := errors.New("access denied")
	first.FailMute(denied)
	second.FailMute(denied)

	scanner := newScanner(system, nil)
	err := scanner.Mute(context.Background(), 7)
	if !errors.Is(err, domain.ErrAudioSubsystem) || !errors.Is(err, denied) {
		t.Fatalf("expected audio subsystem error wrapping the cause, got %v", err)
	}
	if errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("session exists, got %v", err)
	}

	// one working session is enough to report success
	second.FailMute(nil)
	if err := scanner.Mute(context.Background(), 7); err != nil {
		t.Fatalf("partial mute should succeed, got %v", err)
	}
	if !second.IsMuted() || first.IsMuted() {
		t.Fatalf("expected only the working session muted")
	}
}

func TestMuteAllIsBestEffort(t *testing.T) {
	t.Parallel()

	system := mock.NewAudioSystem()
	system.AddEndpoint(domain.EndpointCapture, "a", "Mic A")
	system.AddEndpoint(domain.EndpointCapture, "b", "Mic B")
	stuck := system.AddSession("a", 1, "Stuck", true)
	stuck.FailMute(errors.New("denied"))
	ok := system.AddSession("b", 2, "Fine", true)

	if err := newScanner(system, nil).MuteAll(context.Background()); err != nil {
		t.Fatalf("mute all failed: %v", err)
	}
	if !ok.IsMuted() {
		t.Fatalf("expected remaining session muted")
	}
}
