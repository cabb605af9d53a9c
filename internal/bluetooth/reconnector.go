// Package bluetooth resolves paired devices by name and toggles their services.
package bluetooth

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stereoguard/internal/domain"
	"stereoguard/internal/metrics"
	"stereoguard/internal/ports"
)

const (
	DefaultReconnectDelay = 1000 * time.Millisecond
	DefaultRetryDelay     = 500 * time.Millisecond
)

type Config struct {
	ReconnectDelay time.Duration
	RetryDelay     time.Duration
}

// Reconnector toggles Bluetooth services. Service lists are fetched fresh for
// every call since they change after pairing.
type Reconnector struct {
	system  ports.BluetoothSystem
	clock   ports.Clock
	cfg     Config
	metrics *metrics.Recorder
	log     zerolog.Logger
}

func NewReconnector(system ports.BluetoothSystem, clock ports.Clock, cfg Config, rec *metrics.Recorder, log zerolog.Logger) *Reconnector {
	if clock == nil {
		clock = ports.RealClock()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Reconnector{system: system, clock: clock, cfg: cfg, metrics: rec, log: log}
}

// FindDevice returns the first exact match, else the best partial match.
func (r *Reconnector) FindDevice(ctx context.Context, name string) (domain.BluetoothDeviceInfo, error) {
	devices, err := r.system.PairedDevices(ctx)
	if err != nil {
		return domain.BluetoothDeviceInfo{}, domain.WrapError(domain.ErrorCodeDeviceNotFound, err, "could not enumerate paired devices")
	}

	var best domain.BluetoothDeviceInfo
	bestQuality := domain.MatchNone
	for _, device := range devices {
		quality := MatchName(name, device.Name)
		if quality == domain.MatchNone {
			continue
		}
		r.log.Debug().Str("device", device.Name).Str("quality", quality.String()).Msg("device match")
		if quality == domain.MatchExact {
			return device, nil
		}
		if quality > bestQuality {
			best, bestQuality = device, quality
		}
	}

	if bestQuality == domain.MatchNone {
		return domain.BluetoothDeviceInfo{}, domain.NewError(domain.ErrorCodeDeviceNotFound, "bluetooth device '%s' not found", name)
	}
	r.log.Warn().Str("query", name).Str("device", best.Name).Msg("using fuzzy match, prefer exact name")
	return best, nil
}

// Reconnect resolves name and reconnects the device it names.
func (r *Reconnector) Reconnect(ctx context.Context, name string) error {
	device, err := r.FindDevice(ctx, name)
	if err != nil {
		r.metrics.Reconnect("reconnect", err)
		return err
	}
	return r.ReconnectDevice(ctx, device)
}

// ReconnectDevice disables every service of the device, waits, then
// re-enables them. Services that fail to come back get one more try each.
// If ctx ends while the services are down they are re-enabled before
// returning.
func (r *Reconnector) ReconnectDevice(ctx context.Context, device domain.BluetoothDeviceInfo) (err error) {
	defer func() { r.metrics.Reconnect("reconnect", err) }()

	log := r.log.With().Str("op", uuid.NewString()).Str("device", device.Name).Logger()
	log.Info().Msg("reconnecting bluetooth device")

	set, err := r.serviceSet(ctx, device)
	if err != nil {
		return err
	}
	if len(set.Services) == 0 {
		log.Warn().Msg("no services found")
		return domain.NewError(domain.ErrorCodeNoServices, "device '%s' has no Bluetooth services configured", device.Name)
	}

	log.Info().Int("services", len(set.Services)).Msg("disabling services")
	for i, service := range set.Services {
		if err := r.system.SetServiceState(ctx, device, service, false); err != nil {
			log.Warn().Err(err).Int("service", i+1).Str("uuid", service.String()).Msg("disable failed")
		}
	}

	if err := r.sleep(ctx, r.cfg.ReconnectDelay); err != nil {
		log.Warn().Err(err).Msg("interrupted while services were down, restoring")
		failed := r.enable(context.WithoutCancel(ctx), set, log)
		return domain.WrapError(domain.ErrorCodeServiceToggle, err,
			"reconnect of '%s' interrupted, %d of %d services could not be restored", device.Name, len(failed), len(set.Services))
	}

	log.Info().Int("services", len(set.Services)).Msg("re-enabling services")
	failed := r.enable(ctx, set, log)

	if len(failed) > 0 {
		log.Warn().Int("failed", len(failed)).Msg("retrying failed services")
		if err := r.sleep(ctx, r.cfg.RetryDelay); err != nil {
			return domain.WrapError(domain.ErrorCodeServiceToggle, err,
				"reconnect of '%s' interrupted before retrying %d services", device.Name, len(failed))
		}
		remaining := 0
		for _, service := range failed {
			if err := r.system.SetServiceState(ctx, device, service, true); err != nil {
				log.Warn().Err(err).Str("uuid", service.String()).Msg("retry failed")
				remaining++
			}
		}
		if remaining > 0 {
			return domain.NewError(domain.ErrorCodePartialReconnect,
				"Failed to reconnect %d of %d services. Try reconnecting manually via the system Bluetooth settings.",
				remaining, len(set.Services))
		}
	}

	log.Info().Msg("reconnected")
	return nil
}

// enable turns services back on and returns the ones that refused.
func (r *Reconnector) enable(ctx context.Context, set domain.ServiceSet, log zerolog.Logger) []domain.ServiceID {
	var failed []domain.ServiceID
	for i, service := range set.Services {
		if err := r.system.SetServiceState(ctx, set.Device, service, true); err != nil {
			log.Warn().Err(err).Int("service", i+1).Str("uuid", service.String()).Msg("enable failed")
			failed = append(failed, service)
		}
	}
	return failed
}

// ForceStereo disables only the hands-free service so playback stays on the
// stereo profile.
func (r *Reconnector) ForceStereo(ctx context.Context, name string) error {
	device, err := r.FindDevice(ctx, name)
	if err != nil {
		r.metrics.Reconnect("force_stereo", err)
		return err
	}
	return r.ForceStereoDevice(ctx, device)
}

func (r *Reconnector) ForceStereoDevice(ctx context.Context, device domain.BluetoothDeviceInfo) (err error) {
	defer func() { r.metrics.Reconnect("force_stereo", err) }()
	return r.setHandsFree(ctx, device, false)
}

// AllowHandsFree re-enables the hands-free service.
func (r *Reconnector) AllowHandsFree(ctx context.Context, name string) error {
	device, err := r.FindDevice(ctx, name)
	if err != nil {
		r.metrics.Reconnect("allow_hands_free", err)
		return err
	}
	return r.AllowHandsFreeDevice(ctx, device)
}

func (r *Reconnector) AllowHandsFreeDevice(ctx context.Context, device domain.BluetoothDeviceInfo) (err error) {
	defer func() { r.metrics.Reconnect("allow_hands_free", err) }()
	return r.setHandsFree(ctx, device, true)
}

func (r *Reconnector) setHandsFree(ctx context.Context, device domain.BluetoothDeviceInfo, enabled bool) error {
	set, err := r.serviceSet(ctx, device)
	if err != nil {
		return err
	}
	if !slices.Contains(set.Services, domain.ServiceHandsFree) {
		r.log.Warn().Str("device", device.Name).Msg("no hands-free service installed")
		return domain.NewError(domain.ErrorCodeNoHandsFree, "device '%s' does not support the Hands-Free Profile", device.Name)
	}
	if err := r.system.SetServiceState(ctx, device, domain.ServiceHandsFree, enabled); err != nil {
		return domain.WrapError(domain.ErrorCodeServiceToggle, err, "could not toggle hands-free on '%s'", device.Name)
	}
	r.log.Info().Str("device", device.Name).Bool("hands_free", enabled).Msg("hands-free service toggled")
	return nil
}

func (r *Reconnector) serviceSet(ctx context.Context, device domain.BluetoothDeviceInfo) (domain.ServiceSet, error) {
	services, err := r.system.InstalledServices(ctx, device)
	if err != nil {
		return domain.ServiceSet{Device: device}, domain.WrapError(domain.ErrorCodeNoServices, err, "could not enumerate services of '%s'", device.Name)
	}
	return domain.ServiceSet{Device: device, Services: services}, nil
}

func (r *Reconnector) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-r.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
