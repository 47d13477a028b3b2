package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	runCounter            *prometheus.CounterVec
	matchStateCounter     *prometheus.CounterVec
	exceptionCounter      *prometheus.CounterVec
	integrityCounter      prometheus.Counter
	ttumLineCounter       *prometheus.CounterVec
	rollbackCounter       *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		runCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_runs_total",
			Help: "Reconciliation run outcomes",
		}, []string{"result"})

		matchStateCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_match_states_total",
			Help: "Match states assigned by the matching cascade",
		}, []string{"state"})

		exceptionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_exceptions_total",
			Help: "Exception types assigned by the classifier",
		}, []string{"exception"})

		integrityCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recon_integrity_errors_total",
			Help: "Per-record data-quality findings excluded from classification",
		})

		ttumLineCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ttum_lines_generated_total",
			Help: "Instruction lines emitted per batch type",
		}, []string{"batch_type"})

		rollbackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollback_checkpoints_total",
			Help: "Rollback outcomes per level",
		}, []string{"level", "result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			runCounter,
			matchStateCounter,
			exceptionCounter,
			integrityCounter,
			ttumLineCounter,
			rollbackCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementRun(result string) {
	if runCounter == nil {
		return
	}
	runCounter.WithLabelValues(result).Inc()
}

func IncrementMatchState(state string) {
	if matchStateCounter == nil {
		return
	}
	matchStateCounter.WithLabelValues(state).Inc()
}

func IncrementException(exception string) {
	if exceptionCounter == nil {
		return
	}
	exceptionCounter.WithLabelValues(exception).Inc()
}

func IncrementIntegrityErrors(n int) {
	if integrityCounter == nil || n <= 0 {
		return
	}
	integrityCounter.Add(float64(n))
}

func AddTTUMLines(batchType string, n int) {
	if ttumLineCounter == nil || n <= 0 {
		return
	}
	ttumLineCounter.WithLabelValues(batchType).Add(float64(n))
}

func IncrementRollback(level, result string) {
	if rollbackCounter == nil {
		return
	}
	rollbackCounter.WithLabelValues(level, result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
