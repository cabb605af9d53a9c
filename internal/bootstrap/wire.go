package bootstrap

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"

	"stereoguard/internal/audio"
	"stereoguard/internal/bluetooth"
	"stereoguard/internal/config"
	"stereoguard/internal/domain"
	"stereoguard/internal/feed"
	"stereoguard/internal/logger"
	"stereoguard/internal/metrics"
	"stereoguard/internal/mode"
	"stereoguard/internal/platform/bluez"
	"stereoguard/internal/platform/pulse"
	"stereoguard/internal/platform/sysproc"
	"stereoguard/internal/ports"
	"stereoguard/internal/process"
	"stereoguard/internal/usecase"
)

// Platform is the set of operating-system backends the engines run on.
type Platform struct {
	Audio     ports.AudioSystem
	Processes ports.ProcessSystem
	Bluetooth ports.BluetoothSystem
	Elevator  ports.Elevator
	Clock     ports.Clock

	closers []io.Closer
}

// NewPlatform opens the Linux backends. A missing BlueZ daemon is not
// fatal: Bluetooth operations then fail with the connection error.
func NewPlatform(cfg config.Config, log zerolog.Logger) (Platform, error) {
	elevator, err := sysproc.NewElevator(cfg.Process.ElevationCommand, logger.WithComponent(log, "elevator"))
	if err != nil {
		return Platform{}, err
	}

	p := Platform{
		Audio:     pulse.New(pulse.NewExecRunner(cfg.Audio.PactlCommand), logger.WithComponent(log, "pulse")),
		Processes: sysproc.New(logger.WithComponent(log, "sysproc")),
		Elevator:  elevator,
		Clock:     ports.RealClock(),
	}

	bt, err := bluez.Connect(logger.WithComponent(log, "bluez"))
	if err != nil {
		log.Warn().Err(err).Msg("bluetooth control unavailable")
		p.Bluetooth = unavailableBluetooth{err: err}
	} else {
		p.Bluetooth = bt
		p.closers = append(p.closers, bt)
	}
	return p, nil
}

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.Controller
	Config     config.Config
	Log        zerolog.Logger
	Metrics    *metrics.Recorder
	Feed       *feed.Hub

	closers []io.Closer
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, confirmer ports.Confirmer) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, logCloser, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		log.Info().Str("path", cfg.Path).Msg("loaded config")
	}

	platform, err := NewPlatform(cfg, log)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	services := Assemble(cfg, log, platform, eventSink, confirmer)
	services.closers = append(services.closers, logCloser)
	return services, nil
}

// Assemble builds the engines on top of an already opened platform.
func Assemble(cfg config.Config, log zerolog.Logger, platform Platform, eventSink ports.EventSink, confirmer ports.Confirmer) *Services {
	rec := metrics.New()

	enumerator := audio.NewDeviceEnumerator(platform.Audio, logger.WithComponent(log, "enumerator"))
	scanner := audio.NewSessionScanner(enumerator, platform.Audio, platform.Processes, logger.WithComponent(log, "scanner"))
	detector := mode.NewDetector(enumerator, logger.WithComponent(log, "detector"))

	guard := process.NewGuard(process.Deps{
		Processes: platform.Processes,
		Confirmer: confirmer,
		Elevator:  platform.Elevator,
		Clock:     platform.Clock,
		Metrics:   rec,
		Log:       logger.WithComponent(log, "guard"),
	})

	reconnector := bluetooth.NewReconnector(platform.Bluetooth, platform.Clock, bluetooth.Config{
		ReconnectDelay: cfg.ReconnectDelay(),
		RetryDelay:     cfg.RetryDelay(),
	}, rec, logger.WithComponent(log, "reconnector"))

	thread, _ := platform.Audio.(ports.ThreadInitializer)
	monitor := usecase.NewMonitor(usecase.MonitorDeps{
		Devices:  enumerator,
		Detector: detector,
		Sessions: scanner,
		Thread:   thread,
		Clock:    platform.Clock,
		Interval: cfg.PollInterval(),
		Metrics:  rec,
		Log:      logger.WithComponent(log, "monitor"),
	})

	services := &Services{
		Config:  cfg,
		Log:     log,
		Metrics: rec,
		closers: platform.closers,
	}

	sink := eventSink
	if cfg.Feed.Address != "" {
		services.Feed = feed.NewHub(rec, logger.WithComponent(log, "feed"))
		sink = usecase.FanOut{eventSink, services.Feed}
	}

	services.Controller = usecase.NewController(usecase.ControllerDeps{
		Monitor:     monitor,
		Outputs:     scanner,
		Guard:       guard,
		Reconnector: reconnector,
		Tracker:     bluetooth.NewTracker(),
		Sink:        sink,
		Log:         logger.WithComponent(log, "controller"),
	}, usecase.ControllerConfig{
		PreferStereo:        cfg.General.PreferStereo,
		RequireConfirmation: cfg.Process.RequireConfirmation,
	})

	return services
}

// StartListeners serves the optional event feed and metrics endpoints
// until ctx ends. Listener failures are logged, never fatal.
func (s *Services) StartListeners(ctx context.Context) {
	if s.Feed != nil {
		go func() {
			if err := s.Feed.Serve(ctx, s.Config.Feed.Address); err != nil {
				s.Log.Error().Err(err).Msg("event feed stopped")
			}
		}()
	}
	if s.Config.Metrics.Address != "" {
		go func() {
			s.Log.Info().Str("addr", s.Config.Metrics.Address).Msg("metrics listening")
			if err := s.Metrics.Serve(ctx, s.Config.Metrics.Address); err != nil {
				s.Log.Error().Err(err).Msg("metrics listener stopped")
			}
		}()
	}
}

// Close releases backend connections and the log file.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Helper is the graph for the elevated termination helper.
type Helper struct {
	guard   *process.Guard
	scanner *audio.SessionScanner
	log     zerolog.Logger
	closer  io.Closer
}

// BuildHelper wires only what elevated re-validation needs. The helper
// never elevates again, so it carries no Elevator. It confirms through a
// desktop dialog when one is available and the terminal otherwise.
func BuildHelper() (*Helper, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	log = logger.WithComponent(log, "helper")

	platform := Platform{
		Audio:     pulse.New(pulse.NewExecRunner(cfg.Audio.PactlCommand), log),
		Processes: sysproc.New(log),
		Clock:     ports.RealClock(),
	}
	confirmer := sysproc.NewDialogConfirmer(os.Stdin, os.Stderr)
	return newHelper(platform, confirmer, log, closer), nil
}

func newHelper(platform Platform, confirmer ports.Confirmer, log zerolog.Logger, closer io.Closer) *Helper {
	enumerator := audio.NewDeviceEnumerator(platform.Audio, log)
	return &Helper{
		guard: process.NewGuard(process.Deps{
			Processes: platform.Processes,
			Confirmer: confirmer,
			Clock:     platform.Clock,
			Log:       log,
		}),
		scanner: audio.NewSessionScanner(enumerator, platform.Audio, platform.Processes, log),
		log:     log,
		closer:  closer,
	}
}

// Run re-validates and terminates pid. A cancelled confirmation is not an error.
func (h *Helper) Run(ctx context.Context, pid uint32) error {
	defer func() { _ = h.closer.Close() }()
	if err := h.guard.TerminateElevated(ctx, h.scanner, pid); err != nil {
		h.log.Error().Err(err).Uint32("pid", pid).Msg("elevated termination failed")
		return err
	}
	return nil
}

// unavailableBluetooth stands in for BlueZ when the daemon cannot be reached.
type unavailableBluetooth struct {
	err error
}

func (u unavailableBluetooth) PairedDevices(context.Context) ([]domain.BluetoothDeviceInfo, error) {
	return nil, u.err
}

func (u unavailableBluetooth) InstalledServices(context.Context, domain.BluetoothDeviceInfo) ([]domain.ServiceID, error) {
	return nil, u.err
}

func (u unavailableBluetooth) SetServiceState(context.Context, domain.BluetoothDeviceInfo, domain.ServiceID, bool) error {
	return u.err
}
