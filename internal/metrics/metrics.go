// Package metrics exports trigger activity as Prometheus counters.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/triggerpoints/internal/integration/debug"
	"github.com/dshills/triggerpoints/internal/logging"
)

// Collector implements debug.Recorder on its own Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	hits          *prometheus.CounterVec
	activations   *prometheus.CounterVec
	resets        prometheus.Counter
	invalidations *prometheus.CounterVec
}

var _ debug.Recorder = (*Collector)(nil)

// New creates a Collector with Go runtime and process collectors attached.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		hits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triggerpoints_hits_total",
				Help: "Managed breakpoint hits by mode",
			},
			[]string{"mode"},
		),
		activations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triggerpoints_cascade_activations_total",
				Help: "Targets moved to triggered by colour",
			},
			[]string{"color"},
		),
		resets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "triggerpoints_resets_total",
				Help: "Targets returned to not-triggered",
			},
		),
		invalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triggerpoints_invalidations_total",
				Help: "Native breakpoint failures by operation",
			},
			[]string{"op"},
		),
	}
}

// Hit counts a managed breakpoint hit.
func (c *Collector) Hit(mode debug.Mode) {
	c.hits.WithLabelValues(mode.String()).Inc()
}

// Cascade counts the targets activated by one trigger.
func (c *Collector) Cascade(color debug.Color, activated int) {
	c.activations.WithLabelValues(color.String()).Add(float64(activated))
}

// Reset counts the targets returned to not-triggered.
func (c *Collector) Reset(_ debug.Reason, reset int) {
	c.resets.Add(float64(reset))
}

// Invalidated counts a native failure.
func (c *Collector) Invalidated(op string) {
	c.invalidations.WithLabelValues(op).Inc()
}

// TrackRegistry exports the number of records held by reg.
func (c *Collector) TrackRegistry(reg *debug.Registry) {
	promauto.With(c.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "triggerpoints_breakpoints",
			Help: "Trigger breakpoint records currently registered",
		},
		func() float64 { return float64(reg.Len()) },
	)
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	logger = logging.WithComponent(logger, "metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
