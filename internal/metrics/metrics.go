// Package metrics exposes Prometheus instrumentation for the monitor,
// the process guard and the reconnector.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stereoguard/internal/domain"
)

// Recorder holds all Prometheus metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	PollDuration prometheus.Histogram
	PollErrors   prometheus.Counter
	CurrentMode  *prometheus.GaugeVec
	ModeChanges  *prometheus.CounterVec
	MicApps      prometheus.Gauge

	Terminations *prometheus.CounterVec
	Reconnects   *prometheus.CounterVec
	FeedClients  prometheus.Gauge
}

// New registers every metric on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stereoguard_poll_duration_seconds",
			Help:    "Duration of one monitor poll",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		PollErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "stereoguard_poll_errors_total",
			Help: "Monitor polls that failed",
		}),
		CurrentMode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stereoguard_audio_mode",
			Help: "1 for the currently detected audio mode, 0 otherwise",
		}, []string{"mode"}),
		ModeChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stereoguard_mode_changes_total",
			Help: "Detected audio mode transitions",
		}, []string{"from", "to"}),
		MicApps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stereoguard_mic_apps",
			Help: "Apps currently holding an active capture session",
		}),
		Terminations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stereoguard_terminations_total",
			Help: "Termination attempts by outcome",
		}, []string{"outcome"}),
		Reconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stereoguard_reconnects_total",
			Help: "Bluetooth service operations by kind and result",
		}, []string{"operation", "result"}),
		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stereoguard_feed_clients",
			Help: "Connected event feed clients",
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObservePoll(d time.Duration, err error) {
	if r == nil {
		return
	}
	r.PollDuration.Observe(d.Seconds())
	if err != nil {
		r.PollErrors.Inc()
	}
}

func (r *Recorder) SetMode(m domain.AudioMode, micApps int) {
	if r == nil {
		return
	}
	for _, candidate := range []domain.AudioMode{domain.AudioModeUnknown, domain.AudioModeStereo, domain.AudioModeHandsFree} {
		value := 0.0
		if candidate == m {
			value = 1
		}
		r.CurrentMode.WithLabelValues(candidate.String()).Set(value)
	}
	r.MicApps.Set(float64(micApps))
}

func (r *Recorder) ModeChanged(from, to domain.AudioMode) {
	if r == nil {
		return
	}
	r.ModeChanges.WithLabelValues(from.String(), to.String()).Inc()
}

func (r *Recorder) Termination(outcome domain.TerminationOutcome) {
	if r == nil {
		return
	}
	r.Terminations.WithLabelValues(outcome.String()).Inc()
}

// Reconnect counts one reconnector operation ("reconnect",
// "force_stereo", "allow_hands_free").
func (r *Recorder) Reconnect(operation string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = string(domain.CodeOf(err))
		if result == "" {
			result = "error"
		}
	}
	r.Reconnects.WithLabelValues(operation, result).Inc()
}

func (r *Recorder) FeedClientsChanged(delta int) {
	if r == nil {
		return
	}
	r.FeedClients.Add(float64(delta))
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	if r == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
