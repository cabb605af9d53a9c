package main

import (
	"context"
	"fmt"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"stereoguard/internal/bootstrap"
	"stereoguard/internal/config"
	"stereoguard/internal/domain"
	"stereoguard/internal/usecase"
)

const (
	eventState     = "stereoguard:state"
	eventMode      = "stereoguard:mode"
	eventError     = "stereoguard:error"
	eventStopped   = "stereoguard:stopped"
	eventReconnect = "stereoguard:reconnect"

	shutdownTimeout = 3 * time.Second
)

// App is the Wails application root.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	services   *bootstrap.Services
	controller *usecase.Controller
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a)
	if err != nil {
		a.bootErr = err
		a.emitError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	services.StartListeners(runCtx)
	go func() {
		if err := a.controller.Run(runCtx); err != nil {
			services.Log.Error().Err(err).Msg("monitor did not start")
			a.emitError(domain.ErrorCodeAudioSubsystem, err.Error())
		}
	}()
}

func (a *App) shutdown(_ context.Context) {
	if a.services == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.controller.Shutdown(ctx); err != nil {
		a.services.Log.Warn().Err(err).Msg("shutdown did not finish cleanly")
	}
	if a.cancel != nil {
		a.cancel()
	}
	_ = a.services.Close()
}

// GetState returns the latest monitor snapshot.
func (a *App) GetState() domain.StateView {
	if a.controller == nil {
		return domain.StateView{}
	}
	return a.controller.State()
}

// MuteApp mutes every capture session of pid.
func (a *App) MuteApp(pid uint32) error {
	return a.do(func(ctx context.Context) error { return a.controller.MuteApp(ctx, pid) })
}

// UnmuteApp unmutes every capture session of pid.
func (a *App) UnmuteApp(pid uint32) error {
	return a.do(func(ctx context.Context) error { return a.controller.UnmuteApp(ctx, pid) })
}

// MuteAll mutes every active capture session.
func (a *App) MuteAll() error {
	return a.do(func(ctx context.Context) error { return a.controller.MuteAll(ctx) })
}

// RefreshDevices asks the monitor for a fresh snapshot.
func (a *App) RefreshDevices() error {
	return a.do(func(ctx context.Context) error { return a.controller.RefreshDevices(ctx) })
}

// TerminateApp runs the validated termination pipeline for pid.
func (a *App) TerminateApp(pid uint32) error {
	return a.do(func(ctx context.Context) error { return a.controller.TerminateApp(ctx, pid) })
}

// ReconnectDevice starts a background reconnect; the result arrives as an event.
func (a *App) ReconnectDevice(name string) error {
	return a.do(func(ctx context.Context) error { return a.controller.ReconnectDevice(ctx, name) })
}

func (a *App) ForceStereo(name string) error {
	return a.do(func(ctx context.Context) error { return a.controller.ForceStereo(ctx, name) })
}

func (a *App) AllowHandsFree(name string) error {
	return a.do(func(ctx context.Context) error { return a.controller.AllowHandsFree(ctx, name) })
}

// GetAuditLog returns termination attempts, oldest first.
func (a *App) GetAuditLog() []domain.TerminationAttempt {
	if a.controller == nil {
		return nil
	}
	return a.controller.AuditLog()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"configFile":          a.cfg.Path,
		"pollInterval":        a.cfg.PollInterval().String(),
		"preferStereo":        fmt.Sprint(a.cfg.General.PreferStereo),
		"requireConfirmation": fmt.Sprint(a.cfg.Process.RequireConfirmation),
		"eventFeed":           a.cfg.Feed.Address,
		"metrics":             a.cfg.Metrics.Address,
	}
}

func (a *App) do(op func(ctx context.Context) error) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := op(a.ctx); err != nil {
		a.reportError(err)
		return err
	}
	return nil
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return domain.ErrNotReady
	}
	return nil
}

func (a *App) reportError(err error) {
	a.emitError(domain.CodeOf(err), err.Error())
}

// StateUpdated emits the latest snapshot to the frontend.
func (a *App) StateUpdated(view domain.StateView) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, view)
}

// ModeChanged emits a stereo/hands-free transition.
func (a *App) ModeChanged(previous domain.AudioMode, current domain.AudioMode) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventMode, map[string]string{
		"previous": previous.String(),
		"current":  current.String(),
		"message":  modeMessage(current),
	})
}

// MonitorError emits a recoverable monitor failure.
func (a *App) MonitorError(message string) {
	a.emitError(domain.ErrorCodeAudioSubsystem, message)
}

func (a *App) MonitorStopped() {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventStopped)
}

// ReconnectFinished emits the outcome of a background reconnect.
func (a *App) ReconnectFinished(device string, err error) {
	if a.ctx == nil {
		return
	}
	payload := map[string]string{"device": device}
	if err != nil {
		payload["code"] = string(domain.CodeOf(err))
		payload["message"] = errorMessage(domain.CodeOf(err), err.Error())
		payload["detail"] = err.Error()
	}
	runtime.EventsEmit(a.ctx, eventReconnect, payload)
}

func (a *App) emitError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// ConfirmTermination asks before a process is killed.
func (a *App) ConfirmTermination(_ context.Context, pid uint32, name string) (bool, error) {
	return a.ask("Terminate application?",
		fmt.Sprintf("'%s' (PID %d) is using your Bluetooth microphone.\n\nTerminate it? Unsaved work in that application will be lost.", name, pid))
}

// ConfirmElevation asks before the privileged helper is launched.
func (a *App) ConfirmElevation(_ context.Context, pid uint32, name string) (bool, error) {
	return a.ask("Administrator rights required",
		fmt.Sprintf("Terminating '%s' (PID %d) requires administrator rights.\n\nContinue with elevation?", name, pid))
}

func (a *App) ask(title string, message string) (bool, error) {
	if a.ctx == nil {
		return false, domain.ErrNotReady
	}
	answer, err := runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         title,
		Message:       message,
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "No",
		CancelButton:  "No",
	})
	if err != nil {
		return false, err
	}
	return answer == "Yes", nil
}

func modeMessage(m domain.AudioMode) string {
	switch m {
	case domain.AudioModeStereo:
		return "Headset is in high-quality stereo mode"
	case domain.AudioModeHandsFree:
		return "Headset switched to hands-free mode; audio quality is reduced"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeNotReady:
		return "Application is not initialized"
	case domain.ErrorCodeAudioSubsystem:
		return "Audio system issue"
	case domain.ErrorCodeSessionNotFound:
		return "No audio session found for this application"
	case domain.ErrorCodeProcessNotFound:
		return "Application is no longer running"
	case domain.ErrorCodeProtectedProcess:
		return "Protected system process"
	case domain.ErrorCodeSystemProcess:
		return "Process runs as the system account"
	case domain.ErrorCodeNotUsingMicrophone:
		return "Application is not using the microphone"
	case domain.ErrorCodeTerminateFailed:
		return "Could not terminate application"
	case domain.ErrorCodeElevationFailed:
		return "Elevation failed"
	case domain.ErrorCodeDeviceNotFound:
		return "Bluetooth device not found"
	case domain.ErrorCodeNoServices:
		return "Device has no Bluetooth services"
	case domain.ErrorCodeNoHandsFree:
		return "Device has no hands-free service"
	case domain.ErrorCodeServiceToggle:
		return "Could not change Bluetooth service"
	case domain.ErrorCodePartialReconnect:
		return "Reconnect incomplete"
	case domain.ErrorCodeBusy:
		return "Device is already reconnecting"
	case domain.ErrorCodeMonitorStopped:
		return "Monitor is not running"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
