package mode

import (
	"context"
	"errors"
	"testing"

	"stereoguard/internal/domain"
	"stereoguard/internal/logger"
)

type fakeMeter struct {
	counts map[string]uint32
	errs   map[string]error
	calls  []string
}

func (m *fakeMeter) MeterChannelCount(_ context.Context, ep domain.AudioEndpoint) (uint32, error) {
	m.calls = append(m.calls, ep.ID)
	if err := m.errs[ep.ID]; err != nil {
		return 0, err
	}
	return m.counts[ep.ID], nil
}

func device(id string) domain.BluetoothAudioDevice {
	return domain.BluetoothAudioDevice{AudioEndpoint: domain.AudioEndpoint{ID: id, Name: id, IsBluetooth: true}}
}

func TestFromFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rate     uint32
		channels uint16
		want     domain.AudioMode
	}{
		{16000, 1, domain.AudioModeHandsFree},
		{48000, 2, domain.AudioModeStereo},
		{44100, 1, domain.AudioModeHandsFree},
		{8000, 2, domain.AudioModeHandsFree},
		{16001, 2, domain.AudioModeStereo},
	}
	for _, tc := range cases {
		if got := FromFormat(tc.rate, tc.channels); got != tc.want {
			t.Fatalf("FromFormat(%d, %d) = %s, want %s", tc.rate, tc.channels, got, tc.want)
		}
	}
}

func TestFromMeter(t *testing.T) {
	t.Parallel()

	if m, ok := FromMeter(1); !ok || m != domain.AudioModeHandsFree {
		t.Fatalf("one channel should be hands-free")
	}
	for _, n := range []uint32{2, 6, 8} {
		if m, ok := FromMeter(n); !ok || m != domain.AudioModeStereo {
			t.Fatalf("%d channels should be stereo", n)
		}
	}
	if _, ok := FromMeter(0); ok {
		t.Fatalf("zero channels should be inconclusive")
	}
}

func TestDetectNoDevicesIsUnknown(t *testing.T) {
	t.Parallel()

	d := NewDetector(&fakeMeter{}, logger.NewTestLogger())
	apps := []domain.MicUsingApp{{ProcessID: 1, IsUsingBluetoothMic: true}}
	if got := d.Detect(context.Background(), nil, apps); got != domain.AudioModeUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
}

func TestDetectUsesFirstReadableMeter(t *testing.T) {
	t.Parallel()

	meter := &fakeMeter{
		counts: map[string]uint32{"b": 1, "c": 2},
		errs:   map[string]error{"a": errors.New("no meter")},
	}
	d := NewDetector(meter, logger.NewTestLogger())
	got := d.Detect(context.Background(), []domain.BluetoothAudioDevice{device("a"), device("b"), device("c")}, nil)
	if got != domain.AudioModeHandsFree {
		t.Fatalf("expected hands-free from second device, got %s", got)
	}
	if len(meter.calls) != 2 {
		t.Fatalf("detection should stop at the first readable meter, calls=%v", meter.calls)
	}
}

func TestDetectFallsBackToMicUsage(t *testing.T) {
	t.Parallel()

	meter := &fakeMeter{errs: map[string]error{"a": errors.New("no meter")}}
	d := NewDetector(meter, logger.NewTestLogger())
	devices := []domain.BluetoothAudioDevice{device("a")}

	if got := d.Detect(context.Background(), devices, []domain.MicUsingApp{{IsUsingBluetoothMic: false}}); got != domain.AudioModeStereo {
		t.Fatalf("expected stereo without bluetooth mic, got %s", got)
	}
	if got := d.Detect(context.Background(), devices, []domain.MicUsingApp{{IsUsingBluetoothMic: true}}); got != domain.AudioModeHandsFree {
		t.Fatalf("expected hands-free with bluetooth mic, got %s", got)
	}
}

func TestDetectInconclusiveMeterFallsBack(t *testing.T) {
	t.Parallel()

	meter := &fakeMeter{counts: map[string]uint32{"a": 0}}
	d := NewDetector(meter, logger.NewTestLogger())
	got := d.Detect(context.Background(), []domain.BluetoothAudioDevice{device("a")}, []domain.MicUsingApp{{IsUsingBluetoothMic: true}})
	if got != domain.AudioModeHandsFree {
		t.Fatalf("expected fallback to mic usage, got %s", got)
	}
}

func TestMeterWinsOverFormatHeuristic(t *testing.T) {
	t.Parallel()

	// 16 kHz mono mix format while the meter reports two live channels.
	rate, channels := uint32(16000), uint16(1)
	dev := device("a")
	dev.SampleRate, dev.Channels = &rate, &channels
	dev.CurrentMode = FromFormat(rate, channels)

	meter := &fakeMeter{counts: map[string]uint32{"a": 2}}
	got := NewDetector(meter, logger.NewTestLogger()).Detect(context.Background(), []domain.BluetoothAudioDevice{dev}, nil)
	if dev.CurrentMode != domain.AudioModeHandsFree {
		t.Fatalf("format heuristic should say hands-free")
	}
	if got != domain.AudioModeStereo {
		t.Fatalf("meter must be authoritative, got %s", got)
	}
}
