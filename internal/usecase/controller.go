package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"stereoguard/internal/bluetooth"
	"stereoguard/internal/domain"
	"stereoguard/internal/ports"
)

// OutputScanner lists apps with sessions on Bluetooth render endpoints.
type OutputScanner interface {
	BluetoothOutputApps(ctx context.Context) ([]domain.HfpUsingApp, error)
}

// Terminator is the termination pipeline fed by monitor snapshots.
type Terminator interface {
	PublishMicApps(apps []domain.MicUsingApp)
	Terminate(ctx context.Context, pid uint32, requireConfirmation bool) error
	AuditLog() []domain.TerminationAttempt
}

// DeviceReconnector resolves device names and toggles services of the
// resolved device.
type DeviceReconnector interface {
	FindDevice(ctx context.Context, name string) (domain.BluetoothDeviceInfo, error)
	ReconnectDevice(ctx context.Context, device domain.BluetoothDeviceInfo) error
	ForceStereoDevice(ctx context.Context, device domain.BluetoothDeviceInfo) error
	AllowHandsFreeDevice(ctx context.Context, device domain.BluetoothDeviceInfo) error
}

type ControllerConfig struct {
	PreferStereo        bool
	RequireConfirmation bool
}

type ControllerDeps struct {
	Monitor     *Monitor
	Outputs     OutputScanner
	Guard       Terminator
	Reconnector DeviceReconnector
	Tracker     *bluetooth.Tracker
	Sink        ports.EventSink
	Log         zerolog.Logger
}

// Controller is the hosting side of the monitor: it consumes monitor events,
// feeds the termination snapshot and runs reconnect workers.
type Controller struct {
	monitor     *Monitor
	outputs     OutputScanner
	guard       Terminator
	reconnector DeviceReconnector
	tracker     *bluetooth.Tracker
	sink        ports.EventSink
	cfg         ControllerConfig
	log         zerolog.Logger

	// forced maps device ID to display name.
	mu       sync.Mutex
	forced   map[string]string
	hfpApps  []domain.HfpUsingApp
	finished chan struct{}

	workers sync.WaitGroup
}

func NewController(deps ControllerDeps, cfg ControllerConfig) *Controller {
	tracker := deps.Tracker
	if tracker == nil {
		tracker = bluetooth.NewTracker()
	}
	return &Controller{
		monitor:     deps.Monitor,
		outputs:     deps.Outputs,
		guard:       deps.Guard,
		reconnector: deps.Reconnector,
		tracker:     tracker,
		sink:        deps.Sink,
		cfg:         cfg,
		log:         deps.Log,
		forced:      make(map[string]string),
		finished:    make(chan struct{}),
	}
}

// Run starts the monitor and consumes its events until the loop exits.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.monitor.Start(ctx); err != nil {
		return err
	}
	defer close(c.finished)

	for ev := range c.monitor.Events() {
		switch ev.Kind {
		case EventStateUpdate:
			c.handleState(ctx, ev.State)
		case EventModeChanged:
			c.sink.ModeChanged(ev.Previous, ev.Current)
			if c.cfg.PreferStereo && ev.Previous == domain.AudioModeStereo && ev.Current == domain.AudioModeHandsFree {
				c.log.Info().Msg("hands-free detected with prefer-stereo on, muting all mic apps")
				// Sent off the event loop so a full inbox cannot stall event draining.
				go func() {
					if err := c.monitor.Send(context.WithoutCancel(ctx), Command{Kind: CommandMuteAll}); err != nil {
						c.log.Warn().Err(err).Msg("auto mute failed")
					}
				}()
			}
		case EventError:
			c.sink.MonitorError(ev.Message)
		case EventShutdown:
			c.sink.MonitorStopped()
		}
	}
	return nil
}

func (c *Controller) handleState(ctx context.Context, state domain.MonitorState) {
	c.guard.PublishMicApps(state.MicUsingApps)

	var hfp []domain.HfpUsingApp
	if c.outputs != nil {
		apps, err := c.outputs.BluetoothOutputApps(ctx)
		if err != nil {
			c.log.Debug().Err(err).Msg("could not list bluetooth output apps")
		}
		hfp = apps
	}

	c.mu.Lock()
	c.hfpApps = hfp
	view := c.viewLocked(state)
	c.mu.Unlock()

	c.sink.StateUpdated(view)
}

// Stopped is closed when Run returns.
func (c *Controller) Stopped() <-chan struct{} {
	return c.finished
}

func (c *Controller) MuteApp(ctx context.Context, pid uint32) error {
	return c.monitor.Send(ctx, Command{Kind: CommandMuteApp, PID: pid})
}

func (c *Controller) UnmuteApp(ctx context.Context, pid uint32) error {
	return c.monitor.Send(ctx, Command{Kind: CommandUnmuteApp, PID: pid})
}

func (c *Controller) MuteAll(ctx context.Context) error {
	return c.monitor.Send(ctx, Command{Kind: CommandMuteAll})
}

func (c *Controller) RefreshDevices(ctx context.Context) error {
	return c.monitor.Send(ctx, Command{Kind: CommandRefreshDevices})
}

func (c *Controller) TerminateApp(ctx context.Context, pid uint32) error {
	return c.guard.Terminate(ctx, pid, c.cfg.RequireConfirmation)
}

// ReconnectDevice resolves name and starts a reconnect worker for that
// device, returning at once. Lookup failures are returned directly; the
// reconnect outcome is reported through the sink.
func (c *Controller) ReconnectDevice(ctx context.Context, name string) error {
	device, err := c.reconnector.FindDevice(ctx, name)
	if err != nil {
		return err
	}
	release, ok := c.tracker.TryAcquire(device.ID)
	if !ok {
		return domain.NewError(domain.ErrorCodeBusy, "'%s' is already reconnecting", device.Name)
	}

	workerCtx := context.WithoutCancel(ctx)
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		defer release()

		err := c.reconnect(workerCtx, device)
		if err != nil {
			c.log.Warn().Err(err).Str("device", device.Name).Msg("reconnect failed")
		}
		c.sink.ReconnectFinished(device.Name, err)
	}()
	return nil
}

func (c *Controller) reconnect(ctx context.Context, device domain.BluetoothDeviceInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewError(domain.ErrorCodeServiceToggle, "reconnect of '%s' aborted: %v", device.Name, r)
		}
	}()
	return c.reconnector.ReconnectDevice(ctx, device)
}

// WaitReconnects blocks until every reconnect worker has finished.
func (c *Controller) WaitReconnects(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) ForceStereo(ctx context.Context, name string) error {
	device, err := c.reconnector.FindDevice(ctx, name)
	if err != nil {
		return err
	}
	if err := c.reconnector.ForceStereoDevice(ctx, device); err != nil {
		return err
	}
	c.mu.Lock()
	c.forced[device.ID] = device.Name
	c.mu.Unlock()
	return nil
}

func (c *Controller) AllowHandsFree(ctx context.Context, name string) error {
	device, err := c.reconnector.FindDevice(ctx, name)
	if err != nil {
		return err
	}
	if err := c.reconnector.AllowHandsFreeDevice(ctx, device); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.forced, device.ID)
	c.mu.Unlock()
	return nil
}

// State returns the latest snapshot with the forced-stereo devices and the
// apps last seen on Bluetooth outputs.
func (c *Controller) State() domain.StateView {
	state := c.monitor.State()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(state)
}

func (c *Controller) viewLocked(state domain.MonitorState) domain.StateView {
	forced := make([]string, 0, len(c.forced))
	for _, name := range c.forced {
		forced = append(forced, name)
	}
	sort.Strings(forced)
	return domain.StateView{
		MonitorState: state,
		HfpUsingApps: append([]domain.HfpUsingApp(nil), c.hfpApps...),
		ForcedStereo: forced,
	}
}

func (c *Controller) AuditLog() []domain.TerminationAttempt {
	return c.guard.AuditLog()
}

// Shutdown stops the monitor and waits for reconnect workers. Run returns
// on its own once the final events are drained.
func (c *Controller) Shutdown(ctx context.Context) error {
	if err := c.monitor.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop monitor: %w", err)
	}
	return c.WaitReconnects(ctx)
}
