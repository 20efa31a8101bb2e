package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Recorder holds the collectors for one run. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	segmentsTotal   *prometheus.CounterVec
	cacheHitsTotal  *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	stageDuration   *prometheus.HistogramVec
}

// NewRecorder registers all collectors on a fresh registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chmtrans_backend_requests_total",
				Help: "Total number of translation backend requests",
			},
			[]string{"backend", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chmtrans_backend_request_duration_seconds",
				Help:    "Duration of translation backend requests in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"backend", "status"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chmtrans_backend_retries_total",
				Help: "Total number of retried translation batches",
			},
			[]string{"backend"},
		),
		segmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chmtrans_segments_translated_total",
				Help: "Total number of text segments translated",
			},
			[]string{"backend"},
		),
		cacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chmtrans_translation_memory_hits_total",
				Help: "Segments served from the translation memory",
			},
			[]string{"backend"},
		),
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chmtrans_jobs_total",
				Help: "Total number of finished jobs by final status",
			},
			[]string{"status"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chmtrans_job_duration_seconds",
				Help:    "Wall time of finished jobs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chmtrans_stage_duration_seconds",
				Help:    "Wall time of individual job stages in seconds",
				Buckets: []float64{0.1, 1, 5, 15, 60, 300, 900},
			},
			[]string{"stage"},
		),
	}
}

// Registry returns the registry the collectors live in
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordRequest records one backend call
func (r *Recorder) RecordRequest(backend string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.requestsTotal.WithLabelValues(backend, status).Inc()
	r.requestDuration.WithLabelValues(backend, status).Observe(duration.Seconds())
}

// RecordRetry records a retried batch
func (r *Recorder) RecordRetry(backend string) {
	if r == nil {
		return
	}
	r.retriesTotal.WithLabelValues(backend).Inc()
}

// RecordSegments records translated and memory-served segment counts
func (r *Recorder) RecordSegments(backend string, translated, fromMemory int) {
	if r == nil {
		return
	}
	r.segmentsTotal.WithLabelValues(backend).Add(float64(translated))
	r.cacheHitsTotal.WithLabelValues(backend).Add(float64(fromMemory))
}

// RecordJob records a finished job
func (r *Recorder) RecordJob(status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.jobsTotal.WithLabelValues(status).Inc()
	r.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStage records the duration of one job stage
func (r *Recorder) RecordStage(stage string, duration time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving this recorder's metrics
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (r *Recorder) Serve(ctx context.Context, addr string, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

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

	logger.WithField("addr", addr).Info("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// WriteTextfile writes the current metric values in the text exposition
// format, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
