package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "csstrim"

// Recorder records pipeline and HTTP metrics.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	stylesheetsTotal   *prometheus.CounterVec
	cssBytesTotal      *prometheus.CounterVec
	reductionFactor    prometheus.Histogram
	workspacesReleased *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with a fresh registry that also carries
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome and final state.",
			},
			[]string{"outcome", "state"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of pipeline runs.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		stylesheetsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stylesheets_total",
				Help:      "Stylesheet references processed, by result (downloaded, skipped).",
			},
			[]string{"result"},
		),
		cssBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "css_bytes_total",
				Help:      "CSS bytes before and after purging.",
			},
			[]string{"kind"},
		),
		reductionFactor: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reduction_factor",
				Help:      "Fraction of CSS bytes removed per successful run.",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		workspacesReleased: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workspaces_released_total",
				Help:      "Workspace releases by result (ok, error).",
			},
			[]string{"result"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// Registry returns the registry the metrics are registered with.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RunFinished records a finished run. state is the state the run ended
// in or failed at; reduction is only observed for successful runs.
func (r *Recorder) RunFinished(succeeded bool, state string, elapsed time.Duration, reduction float64) {
	outcome := "failed"
	if succeeded {
		outcome = "done"
		r.reductionFactor.Observe(reduction)
	}
	r.runsTotal.WithLabelValues(outcome, state).Inc()
	r.runDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// StylesheetsProcessed records the download outcome of one run.
func (r *Recorder) StylesheetsProcessed(downloaded, skipped int) {
	r.stylesheetsTotal.WithLabelValues("downloaded").Add(float64(downloaded))
	r.stylesheetsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// BytesPurged records the CSS sizes of one run.
func (r *Recorder) BytesPurged(original, purged int64) {
	r.cssBytesTotal.WithLabelValues("original").Add(float64(original))
	r.cssBytesTotal.WithLabelValues("purged").Add(float64(purged))
}

// WorkspaceReleased records a workspace release.
func (r *Recorder) WorkspaceReleased(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.workspacesReleased.WithLabelValues(result).Inc()
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records count and duration of every request passing through.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, req)

		status := strconv.Itoa(rw.statusCode)
		r.httpRequestDuration.WithLabelValues(req.Method, req.URL.Path, status).Observe(time.Since(start).Seconds())
		r.httpRequestsTotal.WithLabelValues(req.Method, req.URL.Path, status).Inc()
	})
}
