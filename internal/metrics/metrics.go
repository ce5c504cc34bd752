// Package metrics exposes the run's Prometheus counters. All methods are safe
// on a nil *Metrics so components can be built without instrumentation.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Metrics struct {
	registry *prometheus.Registry

	claims            *prometheus.CounterVec
	emptyCatalogs     *prometheus.CounterVec
	credentialFetches prometheus.Counter
	watcherPolls      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seatsched",
			Name:      "claims_total",
			Help:      "Seat claims submitted, by target and interpreted action.",
		}, []string{"target", "action"}),
		emptyCatalogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seatsched",
			Name:      "empty_catalog_total",
			Help:      "Catalog fetches that left no claimable seat.",
		}, []string{"target"}),
		credentialFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seatsched",
			Name:      "credential_fetches_total",
			Help:      "Tokens fetched from the identity provider.",
		}),
		watcherPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seatsched",
			Name:      "watcher_polls_total",
			Help:      "Member status polls, by watcher.",
		}, []string{"watcher"}),
	}
	m.registry.MustRegister(m.claims, m.emptyCatalogs, m.credentialFetches, m.watcherPolls)
	return m
}

func (m *Metrics) ObserveClaim(target, action string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(target, action).Inc()
}

func (m *Metrics) ObserveEmptyCatalog(target string) {
	if m == nil {
		return
	}
	m.emptyCatalogs.WithLabelValues(target).Inc()
}

func (m *Metrics) ObserveCredentialFetch() {
	if m == nil {
		return
	}
	m.credentialFetches.Inc()
}

func (m *Metrics) ObserveWatcherPoll(watcher string) {
	if m == nil {
		return
	}
	m.watcherPolls.WithLabelValues(watcher).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, m *Metrics, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("metrics: listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
