package audio

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"stereoguard/internal/domain"
	"stereoguard/internal/mode"
	"stereoguard/internal/ports"
)

var bluetoothIDMarkers = []string{
	"bluetooth",
	"bluez",
	"bth",
	"{0000110b", // audio sink
	"{0000111e", // hands-free
}

var bluetoothNameMarkers = []string{
	"bluetooth",
	"headset",
	"headphone",
	"hands-free",
	"handsfree",
	"earbuds",
	"airpods",
	"buds",
}

// IsBluetooth classifies an endpoint by its platform id and friendly name.
// False positives only put a device in Bluetooth-specific lists.
func IsBluetooth(id string, name string) bool {
	id = strings.ToLower(id)
	for _, marker := range bluetoothIDMarkers {
		if strings.Contains(id, marker) {
			return true
		}
	}
	name = strings.ToLower(name)
	for _, marker := range bluetoothNameMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// DeviceEnumerator lists platform endpoints and reads their formats.
type DeviceEnumerator struct {
	system ports.AudioSystem
	log    zerolog.Logger
}

func NewDeviceEnumerator(system ports.AudioSystem, log zerolog.Logger) *DeviceEnumerator {
	return &DeviceEnumerator{system: system, log: log}
}

// ListEndpoints returns the active endpoints of kind, classified.
func (e *DeviceEnumerator) ListEndpoints(ctx context.Context, kind domain.EndpointKind) ([]domain.AudioEndpoint, error) {
	raw, err := e.system.Endpoints(ctx, kind)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeAudioSubsystem, err, "enumerate %s endpoints", kind)
	}
	endpoints := make([]domain.AudioEndpoint, 0, len(raw))
	for _, ep := range raw {
		name := ep.Name
		if name == "" {
			name = ep.ID
		}
		endpoints = append(endpoints, domain.AudioEndpoint{
			ID:          ep.ID,
			Name:        name,
			IsBluetooth: IsBluetooth(ep.ID, name),
		})
	}
	return endpoints, nil
}

// BluetoothDevices returns every Bluetooth render endpoint with its mix format.
// An endpoint whose format cannot be read is kept with the format unset.
func (e *DeviceEnumerator) BluetoothDevices(ctx context.Context) ([]domain.BluetoothAudioDevice, error) {
	endpoints, err := e.ListEndpoints(ctx, domain.EndpointRender)
	if err != nil {
		return nil, err
	}

	var devices []domain.BluetoothAudioDevice
	for _, ep := range endpoints {
		if !ep.IsBluetooth {
			continue
		}
		device := domain.BluetoothAudioDevice{AudioEndpoint: ep, CurrentMode: domain.AudioModeUnknown}
		format, err := e.Format(ctx, ep)
		if err != nil {
			e.log.Debug().Err(err).Str("endpoint", ep.Name).Msg("mix format unavailable")
		} else {
			rate, channels := format.SampleRate, format.Channels
			device.SampleRate = &rate
			device.Channels = &channels
			device.CurrentMode = mode.FromFormat(rate, channels)
		}
		e.log.Debug().
			Str("endpoint", ep.Name).
			Uint32("sample_rate", format.SampleRate).
			Uint16("channels", format.Channels).
			Msg("bluetooth render endpoint")
		devices = append(devices, device)
	}
	return devices, nil
}

func (e *DeviceEnumerator) Format(ctx context.Context, ep domain.AudioEndpoint) (ports.Format, error) {
	format, err := e.system.MixFormat(ctx, ep.ID)
	if err != nil {
		return ports.Format{}, domain.WrapError(domain.ErrorCodeAudioSubsystem, err, "read mix format of %s", ep.Name)
	}
	return format, nil
}

// MeterChannelCount reads how many channels the endpoint is carrying right now.
func (e *DeviceEnumerator) MeterChannelCount(ctx context.Context, ep domain.AudioEndpoint) (uint32, error) {
	count, err := e.system.MeterChannelCount(ctx, ep.ID)
	if err != nil {
		return 0, domain.WrapError(domain.ErrorCodeAudioSubsystem, err, "read meter of %s", ep.Name)
	}
	return count, nil
}
