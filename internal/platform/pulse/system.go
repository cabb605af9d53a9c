package pulse

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"stereoguard/internal/domain"
	"stereoguard/internal/ports"
)

type device struct {
	Index         uint32            `json:"index"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	SampleSpec    string            `json:"sample_specification"`
	ChannelMap    string            `json:"channel_map"`
	MonitorOfSink string            `json:"monitor_of_sink"`
	Properties    map[string]string `json:"properties"`
}

func (d device) isMonitor() bool {
	if d.MonitorOfSink != "" && d.MonitorOfSink != "n/a" {
		return true
	}
	return d.Properties["device.class"] == "monitor"
}

type stream struct {
	Index      uint32            `json:"index"`
	Sink       *uint32           `json:"sink"`
	Source     *uint32           `json:"source"`
	Corked     bool              `json:"corked"`
	Mute       bool              `json:"mute"`
	Properties map[string]string `json:"properties"`
}

func (s stream) owner() (uint32, bool) {
	switch {
	case s.Sink != nil:
		return *s.Sink, true
	case s.Source != nil:
		return *s.Source, true
	default:
		return 0, false
	}
}

// System implements ports.AudioSystem on top of pactl. Endpoint IDs are
// sink and source names.
type System struct {
	runner Runner
	log    zerolog.Logger
}

func New(runner Runner, log zerolog.Logger) *System {
	return &System{runner: runner, log: log}
}

// InitThread checks that a sound server is reachable. pactl needs no
// per-thread setup, so the release is a no-op.
func (s *System) InitThread() (func(), error) {
	if _, err := s.runner.Run(context.Background(), "info"); err != nil {
		return nil, fmt.Errorf("sound server unavailable: %w", err)
	}
	return func() {}, nil
}

func (s *System) Endpoints(ctx context.Context, kind domain.EndpointKind) ([]ports.Endpoint, error) {
	devices, err := s.devices(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Endpoint, 0, len(devices))
	for _, d := range devices {
		if kind == domain.EndpointCapture && d.isMonitor() {
			continue
		}
		out = append(out, ports.Endpoint{ID: d.Name, Name: d.Description})
	}
	return out, nil
}

func (s *System) Sessions(ctx context.Context, endpointID string) ([]ports.AudioSession, error) {
	d, kind, err := s.lookup(ctx, endpointID)
	if err != nil {
		return nil, err
	}

	what := "sink-inputs"
	if kind == domain.EndpointCapture {
		what = "source-outputs"
	}
	var streams []stream
	if err := s.list(ctx, what, &streams); err != nil {
		return nil, err
	}

	var out []ports.AudioSession
	for _, st := range streams {
		owner, ok := st.owner()
		if !ok || owner != d.Index {
			continue
		}
		out = append(out, newSession(s, kind, st))
	}
	return out, nil
}

func (s *System) MixFormat(ctx context.Context, endpointID string) (ports.Format, error) {
	d, _, err := s.lookup(ctx, endpointID)
	if err != nil {
		return ports.Format{}, err
	}
	return parseSampleSpec(d.SampleSpec)
}

// MeterChannelCount reports the channels of the negotiated channel map. A
// Bluetooth sink on the hands-free profile is mono.
func (s *System) MeterChannelCount(ctx context.Context, endpointID string) (uint32, error) {
	d, _, err := s.lookup(ctx, endpointID)
	if err != nil {
		return 0, err
	}
	return channelCount(d.ChannelMap), nil
}

func (s *System) lookup(ctx context.Context, endpointID string) (device, domain.EndpointKind, error) {
	for _, kind := range []domain.EndpointKind{domain.EndpointRender, domain.EndpointCapture} {
		devices, err := s.devices(ctx, kind)
		if err != nil {
			return device{}, kind, err
		}
		for _, d := range devices {
			if d.Name == endpointID {
				return d, kind, nil
			}
		}
	}
	return device{}, "", fmt.Errorf("endpoint %q not found", endpointID)
}

func (s *System) devices(ctx context.Context, kind domain.EndpointKind) ([]device, error) {
	what := "sinks"
	if kind == domain.EndpointCapture {
		what = "sources"
	}
	var out []device
	if err := s.list(ctx, what, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *System) list(ctx context.Context, what string, into any) error {
	raw, err := s.runner.Run(ctx, "-f", "json", "list", what)
	if err != nil {
		return err
	}
	if err := sonic.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("decode pactl %s: %w", what, err)
	}
	return nil
}

type session struct {
	system      *System
	kind        domain.EndpointKind
	index       uint32
	pid         uint32
	displayName string
	iconPath    string
	active      bool

	mu    sync.Mutex
	muted bool
}

func newSession(system *System, kind domain.EndpointKind, st stream) *session {
	props := st.Properties
	pid, err := strconv.ParseUint(props["application.process.id"], 10, 32)
	if err != nil {
		pid = 0
	}
	name := props["application.name"]
	if name == "" {
		name = props["media.name"]
	}
	return &session{
		system:      system,
		kind:        kind,
		index:       st.Index,
		pid:         uint32(pid),
		displayName: name,
		iconPath:    props["application.icon_name"],
		active:      !st.Corked,
		muted:       st.Mute,
	}
}

func (s *session) ProcessID() uint32   { return s.pid }
func (s *session) DisplayName() string { return s.displayName }
func (s *session) IconPath() string    { return s.iconPath }
func (s *session) IsActive() bool      { return s.active }

func (s *session) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *session) SetMuted(ctx context.Context, muted bool) error {
	verb := "set-sink-input-mute"
	if s.kind == domain.EndpointCapture {
		verb = "set-source-output-mute"
	}
	flag := "0"
	if muted {
		flag = "1"
	}
	if _, err := s.system.runner.Run(ctx, verb, strconv.FormatUint(uint64(s.index), 10), flag); err != nil {
		return err
	}
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	s.system.log.Debug().Uint32("pid", s.pid).Bool("muted", muted).Str("verb", verb).Msg("stream mute changed")
	return nil
}
