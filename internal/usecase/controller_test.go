package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stereoguard/internal/bluetooth"
	"stereoguard/internal/domain"
	"stereoguard/internal/logger"
	"stereoguard/internal/platform/mock"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeEventSink struct {
	mu          sync.Mutex
	states      int
	last        domain.StateView
	published   []int
	transitions [][2]domain.AudioMode
	errors      []string
	stopped     int
	reconnects  map[string][]error

	// guard lets StateUpdated observe what the terminator held at that point.
	guard *fakeTerminator
}

func newFakeEventSink(guard *fakeTerminator) *fakeEventSink {
	return &fakeEventSink{reconnects: make(map[string][]error), guard: guard}
}

func (f *fakeEventSink) StateUpdated(view domain.StateView) {
	published := 0
	if f.guard != nil {
		published = f.guard.publishedCount()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states++
	f.last = view
	f.published = append(f.published, published)
}

func (f *fakeEventSink) ModeChanged(previous domain.AudioMode, current domain.AudioMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, [2]domain.AudioMode{previous, current})
}

func (f *fakeEventSink) MonitorError(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, message)
}

func (f *fakeEventSink) MonitorStopped() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeEventSink) ReconnectFinished(device string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects[device] = append(f.reconnects[device], err)
}

func (f *fakeEventSink) lastState() (domain.StateView, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.states
}

func (f *fakeEventSink) reconnectResults(device string) []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.reconnects[device]...)
}

type fakeTerminator struct {
	mu        sync.Mutex
	published int
	apps      []domain.MicUsingApp
	calls     []bool
	err       error
}

func (f *fakeTerminator) PublishMicApps(apps []domain.MicUsingApp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published++
	f.apps = apps
}

func (f *fakeTerminator) Terminate(_ context.Context, _ uint32, requireConfirmation bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, requireConfirmation)
	return f.err
}

func (f *fakeTerminator) AuditLog() []domain.TerminationAttempt {
	return []domain.TerminationAttempt{{ProcessID: 1, Outcome: domain.OutcomeBlocked}}
}

func (f *fakeTerminator) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published
}

type fakeReconnector struct {
	mu      sync.Mutex
	paired  []domain.BluetoothDeviceInfo
	block   chan struct{}
	started chan string
	panics  bool
	err     error
	forced  []string
	allowed []string
}

func (f *fakeReconnector) FindDevice(_ context.Context, name string) (domain.BluetoothDeviceInfo, error) {
	for _, device := range f.paired {
		if bluetooth.MatchName(name, device.Name) != domain.MatchNone {
			return device, nil
		}
	}
	return domain.BluetoothDeviceInfo{}, domain.NewError(domain.ErrorCodeDeviceNotFound, "bluetooth device '%s' not found", name)
}

func (f *fakeReconnector) ReconnectDevice(_ context.Context, device domain.BluetoothDeviceInfo) error {
	if f.started != nil {
		f.started <- device.ID
	}
	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("adapter vanished")
	}
	return f.err
}

func (f *fakeReconnector) ForceStereoDevice(_ context.Context, device domain.BluetoothDeviceInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.forced = append(f.forced, device.ID)
	return nil
}

func (f *fakeReconnector) AllowHandsFreeDevice(_ context.Context, device domain.BluetoothDeviceInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.allowed = append(f.allowed, device.ID)
	return nil
}

type controllerFixture struct {
	*harness
	guard      *fakeTerminator
	reconnect  *fakeReconnector
	sink       *fakeEventSink
	controller *Controller
	runErr     chan error
}

func newControllerFixture(t *testing.T, cfg ControllerConfig) *controllerFixture {
	t.Helper()
	h := newHarness(t)
	guard := &fakeTerminator{}
	sink := newFakeEventSink(guard)
	reconnect := &fakeReconnector{paired: []domain.BluetoothDeviceInfo{
		{ID: "dev_1", Name: "WH-1000XM4"},
		{ID: "dev_2", Name: "Galaxy Buds2"},
		{ID: "dev_3", Name: "Car Kit"},
	}}
	c := NewController(ControllerDeps{
		Monitor:     h.monitor,
		Outputs:     h.scanner,
		Guard:       guard,
		Reconnector: reconnect,
		Tracker:     bluetooth.NewTracker(),
		Sink:        sink,
		Log:         logger.NewTestLogger(),
	}, cfg)
	return &controllerFixture{harness: h, guard: guard, reconnect: reconnect, sink: sink, controller: c}
}

func (f *controllerFixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f.runErr = make(chan error, 1)
	go func() { f.runErr <- f.controller.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		f.clock.Release()
		<-f.controller.Stopped()
	})
}

func TestControllerPublishesSnapshotBeforeSink(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, ControllerConfig{})
	f.audio.AddEndpoint(domain.EndpointCapture, "bluez_input.AA", "WH-1000XM4")
	f.audio.AddEndpoint(domain.EndpointRender, "bluez_output.AA.1", "WH-1000XM4")
	f.audio.SetMeter("bluez_output.AA.1", 1)
	f.audio.AddSession("bluez_input.AA", 100, "Zoom Meeting", true)
	f.audio.AddSession("bluez_output.AA.1", 200, "Ringtone", true)
	f.procs.AddProcess(mock.Process{PID: 100, Name: "zoom"})
	f.procs.AddProcess(mock.Process{PID: 200, Name: "telegram"})
	f.run(t)

	require.Eventually(t, func() bool {
		_, n := f.sink.lastState()
		return n >= 1
	}, waitFor, tick)

	view, _ := f.sink.lastState()
	assert.Equal(t, domain.AudioModeHandsFree, view.CurrentMode)
	require.Len(t, view.MicUsingApps, 1)
	assert.Equal(t, uint32(100), view.MicUsingApps[0].ProcessID)
	require.Len(t, view.HfpUsingApps, 1)
	assert.Equal(t, "telegram", view.HfpUsingApps[0].ProcessName)

	f.sink.mu.Lock()
	first := f.sink.published[0]
	f.sink.mu.Unlock()
	assert.Equal(t, 1, first, "snapshot must reach the guard before the sink")
}

func TestControllerPreferStereoMutesOnHandsFree(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, ControllerConfig{PreferStereo: true})
	f.audio.AddEndpoint(domain.EndpointCapture, "bluez_input.AA", "WH-1000XM4")
	f.audio.AddEndpoint(domain.EndpointRender, "bluez_output.AA.1", "WH-1000XM4")
	f.audio.SetMeter("bluez_output.AA.1", 2)
	session := f.audio.AddSession("bluez_input.AA", 100, "Zoom Meeting", true)
	f.run(t)

	require.Eventually(t, func() bool {
		view, _ := f.sink.lastState()
		return view.CurrentMode == domain.AudioModeStereo
	}, waitFor, tick)
	f.audio.SetMeter("bluez_output.AA.1", 1)
	f.clock.Release()

	require.Eventually(t, session.IsMuted, waitFor, tick)

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	require.NotEmpty(t, f.sink.transitions)
	assert.Equal(t, [2]domain.AudioMode{domain.AudioModeStereo, domain.AudioModeHandsFree}, f.sink.transitions[0])
}

func TestControllerWithoutPreferStereoLeavesSessions(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, ControllerConfig{})
	f.audio.AddEndpoint(domain.EndpointCapture, "bluez_input.AA", "WH-1000XM4")
	f.audio.AddEndpoint(domain.EndpointRender, "bluez_output.AA.1", "WH-1000XM4")
	f.audio.SetMeter("bluez_output.AA.1", 2)
	session := f.audio.AddSession("bluez_input.AA", 100, "Zoom Meeting", true)
	f.run(t)

	require.Eventually(t, func() bool {
		view, _ := f.sink.lastState()
		return view.CurrentMode == domain.AudioModeStereo
	}, waitFor, tick)
	f.audio.SetMeter("bluez_output.AA.1", 1)
	f.clock.Release()

	require.Eventually(t, func() bool {
		f.sink.mu.Lock()
		defer f.sink.mu.Unlock()
		return len(f.sink.transitions) > 0
	}, waitFor, tick)
	assert.False(t, session.IsMuted())
}

func TestControllerRejectsConcurrentReconnect(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, ControllerConfig{})
	f.reconnect.block = make(chan struct{})
	f.reconnect.started = make(chan string, 2)
	ctx := context.Background()

	require.NoError(t, f.controller.ReconnectDevice(ctx, "WH-1000XM4"))
	<-f.reconnect.started

	err := f.controller.ReconnectDevice(ctx, "wh-1000xm4")
	require.ErrorIs(t, err, domain.ErrAlreadyReconnecting)
	require.NoError(t, f.controller.ReconnectDevice(ctx, "Galaxy Buds2"))
	<-f.reconnect.started

	close(f.reconnect.block)
	require.NoError(t, f.controller.WaitReconnects(ctx))
	assert.Equal(t, []error{nil}, f.sink.reconnectResults("WH-1000XM4"))

	require.NoError(t, f.controller.ReconnectDevice(ctx, "WH-1000XM4"))
	<-f.reconnect.started
	require.NoError(t, f.controller.WaitReconnects(ctx))
}

func TestControllerReconnectKeysOnResolvedDevice(t *testing.T) {
	t.Parallel()

	bt := mock.NewBluetoothSystem()
	bt.AddDevice(domain.BluetoothDeviceInfo{ID: "dev_1", Name: "WH-1000XM4"}, domain.ServiceAudioSink, domain.ServiceHandsFree)
	hold := newStepClock()
	t.Cleanup(hold.Release)

	f := newControllerFixture(t, ControllerConfig{})
	f.controller.reconnector = bluetooth.NewReconnector(bt, hold, bluetooth.Config{}, nil, logger.NewTestLogger())
	ctx := context.Background()

	require.NoError(t, f.controller.ReconnectDevice(ctx, "WH-1000XM4"))
	require.Eventually(t, func() bool { return len(bt.Calls()) == 2 }, waitFor, tick)

	err := f.controller.ReconnectDevice(ctx, "1000XM4")
	require.ErrorIs(t, err, domain.ErrAlreadyReconnecting)
	assert.Len(t, bt.Calls(), 2)

	hold.Release()
	require.NoError(t, f.controller.WaitReconnects(ctx))
	assert.Equal(t, []error{nil}, f.sink.reconnectResults("WH-1000XM4"))
	assert.Len(t, bt.Calls(), 4)
}

func TestControllerReconnectUnknownDeviceFailsFast(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, ControllerConfig{})
	ctx := context.Background()

	require.ErrorIs(t, f.controller.ReconnectDevice(ctx, "AirPods"), domain.ErrDeviceNotFound)
	require.NoError(t, f.controller.WaitReconnects(ctx))
	assert.Empty(t, f.sink.reconnectResults("AirPods"))
}

func TestControllerReconnectPanicReleasesDevice(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, ControllerConfig{})
	f.reconnect.panics = true
	ctx := context.Background()

	require.NoError(t, f.controller.ReconnectDevice(ctx, "WH-1000XM4"))
	require.NoError(t, f.controller.WaitReconnects(ctx))

	results := f.sink.reconnectResults("WH-1000XM4")
	require.Len(t, results, 1)
	require.Error(t, results[0])
	assert.Contains(t, results[0].Error(), "adapter vanished")

	f.reconnect.panics = false
	require.NoError(t, f.controller.ReconnectDevice(ctx, "WH-1000XM4"))
	require.NoError(t, f.controller.WaitReconnects(ctx))
}

func TestControllerTracksForcedStereoDevices(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, ControllerConfig{})
	ctx := context.Background()

	require.NoError(t, f.controller.ForceStereo(ctx, "WH-1000XM4"))
	require.NoError(t, f.controller.ForceStereo(ctx, "Buds2"))
	require.NoError(t, f.controller.ForceStereo(ctx, "1000XM4"))
	assert.Equal(t, []string{"Galaxy Buds2", "WH-1000XM4"}, f.controller.State().ForcedStereo)

	require.NoError(t, f.controller.AllowHandsFree(ctx, "wh-1000"))
	assert.Equal(t, []string{"Galaxy Buds2"}, f.controller.State().ForcedStereo)
	assert.Equal(t, []string{"dev_1"}, f.reconnect.allowed)

	require.ErrorIs(t, f.controller.ForceStereo(ctx, "AirPods"), domain.ErrDeviceNotFound)
	f.reconnect.err = domain.NewError(domain.ErrorCodeNoHandsFree, "no hfp")
	require.ErrorIs(t, f.controller.ForceStereo(ctx, "Car Kit"), domain.ErrNoHandsFreeService)
	assert.Equal(t, []string{"Galaxy Buds2"}, f.controller.State().ForcedStereo)
}

func TestControllerTerminateUsesConfiguredConfirmation(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, ControllerConfig{RequireConfirmation: true})
	f.guard.err = domain.ErrNotUsingMicrophone

	err := f.controller.TerminateApp(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrNotUsingMicrophone)
	assert.Equal(t, []bool{true}, f.guard.calls)
	assert.Len(t, f.controller.AuditLog(), 1)
}

func TestControllerShutdownStopsRun(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, ControllerConfig{})
	f.run(t)
	f.clock.Release()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, f.controller.Shutdown(ctx))

	select {
	case err := <-f.runErr:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatalf("run did not return after shutdown")
	}
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	assert.Equal(t, 1, f.sink.stopped)
}

func TestControllerCommandsBeforeRun(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, ControllerConfig{})
	err := f.controller.MuteAll(context.Background())
	assert.True(t, errors.Is(err, domain.ErrNotReady))
}

func TestFanOutForwardsToEverySink(t *testing.T) {
	t.Parallel()

	a, b := newFakeEventSink(nil), newFakeEventSink(nil)
	fan := FanOut{a, b, NopSink{}}
	fan.ModeChanged(domain.AudioModeStereo, domain.AudioModeHandsFree)
	fan.ReconnectFinished("WH-1000XM4", nil)
	fan.MonitorStopped()

	for _, s := range []*fakeEventSink{a, b} {
		assert.Len(t, s.transitions, 1)
		assert.Len(t, s.reconnectResults("WH-1000XM4"), 1)
		assert.Equal(t, 1, s.stopped)
	}
}
