package main

import (
	"context"
	"errors"
	"testing"

	"stereoguard/internal/domain"
)

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:            "Startup failed",
		domain.ErrorCodeNotReady:           "Application is not initialized",
		domain.ErrorCodeAudioSubsystem:     "Audio system issue",
		domain.ErrorCodeSessionNotFound:    "No audio session found for this application",
		domain.ErrorCodeProcessNotFound:    "Application is no longer running",
		domain.ErrorCodeProtectedProcess:   "Protected system process",
		domain.ErrorCodeSystemProcess:      "Process runs as the system account",
		domain.ErrorCodeNotUsingMicrophone: "Application is not using the microphone",
		domain.ErrorCodeTerminateFailed:    "Could not terminate application",
		domain.ErrorCodeElevationFailed:    "Elevation failed",
		domain.ErrorCodeDeviceNotFound:     "Bluetooth device not found",
		domain.ErrorCodeNoServices:         "Device has no Bluetooth services",
		domain.ErrorCodeNoHandsFree:        "Device has no hands-free service",
		domain.ErrorCodeServiceToggle:      "Could not change Bluetooth service",
		domain.ErrorCodePartialReconnect:   "Reconnect incomplete",
		domain.ErrorCodeBusy:               "Device is already reconnecting",
		domain.ErrorCodeMonitorStopped:     "Monitor is not running",
	}
	for code, want := range cases {
		code, want := code, want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestModeMessage(t *testing.T) {
	t.Parallel()

	if got := modeMessage(domain.AudioModeHandsFree); got == "" {
		t.Fatalf("expected hands-free message")
	}
	if got := modeMessage(domain.AudioModeStereo); got == "" {
		t.Fatalf("expected stereo message")
	}
	if got := modeMessage(domain.AudioModeUnknown); got != "" {
		t.Fatalf("expected no message for unknown mode, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected not ready error, got %v", err)
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestOperationsBeforeStartup(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.MuteApp(42); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected not ready from MuteApp, got %v", err)
	}
	if err := app.ReconnectDevice("WH-1000XM4"); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected not ready from ReconnectDevice, got %v", err)
	}
	if state := app.GetState(); state.CurrentMode != domain.AudioModeUnknown || len(state.MicUsingApps) != 0 {
		t.Fatalf("unexpected state before startup: %+v", state)
	}
	if log := app.GetAuditLog(); log != nil {
		t.Fatalf("expected no audit log before startup, got %v", log)
	}

	// no Wails context yet, so confirmation refuses instead of blocking
	ok, err := app.ConfirmTermination(context.Background(), 42, "zoom")
	if ok || !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected refusal before startup, got %v %v", ok, err)
	}

	// sink methods must be safe before startup
	app.StateUpdated(domain.StateView{})
	app.ModeChanged(domain.AudioModeStereo, domain.AudioModeHandsFree)
	app.MonitorError("x")
	app.MonitorStopped()
	app.ReconnectFinished("WH-1000XM4", errors.New("x"))
}

func TestGetRuntimeInfoReportsBootError(t *testing.T) {
	t.Parallel()

	app := &App{bootErr: errors.New("boot")}
	info := app.GetRuntimeInfo()
	if info["error"] != "boot" {
		t.Fatalf("unexpected runtime info: %v", info)
	}
}
