// Package mode decides whether a Bluetooth device is in stereo or hands-free mode.
package mode

import (
	"context"

	"github.com/rs/zerolog"

	"stereoguard/internal/domain"
)

// MeterReader reads the live channel count of a render endpoint.
type MeterReader interface {
	MeterChannelCount(ctx context.Context, ep domain.AudioEndpoint) (uint32, error)
}

// FromFormat infers a mode from a mix format: 16 kHz and below, or mono,
// is hands-free. Only used for display; Detector does not consult it.
func FromFormat(sampleRate uint32, channels uint16) domain.AudioMode {
	if sampleRate <= 16000 || channels == 1 {
		return domain.AudioModeHandsFree
	}
	return domain.AudioModeStereo
}

// FromMeter maps a meter channel count to a mode. ok is false for zero,
// which the platform reports when it cannot tell.
func FromMeter(channels uint32) (m domain.AudioMode, ok bool) {
	switch {
	case channels == 1:
		return domain.AudioModeHandsFree, true
	case channels >= 2:
		return domain.AudioModeStereo, true
	default:
		return domain.AudioModeUnknown, false
	}
}

// Detector combines the meter signal with mic usage.
type Detector struct {
	meter MeterReader
	log   zerolog.Logger
}

func NewDetector(meter MeterReader, log zerolog.Logger) *Detector {
	return &Detector{meter: meter, log: log}
}

// Detect returns Unknown without Bluetooth render devices. Otherwise the
// first device whose meter can be read decides; when none can, any
// Bluetooth microphone in use means hands-free.
func (d *Detector) Detect(ctx context.Context, devices []domain.BluetoothAudioDevice, micApps []domain.MicUsingApp) domain.AudioMode {
	if len(devices) == 0 {
		return domain.AudioModeUnknown
	}

	for _, device := range devices {
		channels, err := d.meter.MeterChannelCount(ctx, device.AudioEndpoint)
		if err != nil {
			d.log.Debug().Err(err).Str("endpoint", device.Name).Msg("meter read failed")
			continue
		}
		m, ok := FromMeter(channels)
		if !ok {
			d.log.Debug().Str("endpoint", device.Name).Msg("meter inconclusive")
			break
		}
		d.log.Debug().Str("endpoint", device.Name).Uint32("meter_channels", channels).Str("mode", m.String()).Msg("mode from meter")
		return m
	}

	for _, app := range micApps {
		if app.IsUsingBluetoothMic {
			return domain.AudioModeHandsFree
		}
	}
	return domain.AudioModeStereo
}
