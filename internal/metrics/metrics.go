package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// HTTPRequestsTotal counts handled requests by route pattern, method and status code.
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wastepatrol",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled, labeled by route, method and status.",
	}, []string{"route", "method", "status"})

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wastepatrol",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent handling HTTP requests.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"route", "method"})

	// AnalysisTotal counts image analyses by source (ai|mock) and result (ok|error).
	AnalysisTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wastepatrol",
		Subsystem: "detection",
		Name:      "analysis_total",
		Help:      "Total number of waste image analyses, labeled by source and result.",
	}, []string{"source", "result"})

	ReportsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wastepatrol",
		Subsystem: "reports",
		Name:      "created_total",
		Help:      "Total number of waste reports created, labeled by priority.",
	}, []string{"priority"})

	WebsocketClients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "wastepatrol",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Number of connected live feed clients.",
	}, func() float64 { return float64(currentClientCount()) })

	countMu     sync.RWMutex
	clientCount = func() int { return 0 }
)

// Register registers the metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			AnalysisTotal,
			ReportsCreatedTotal,
			WebsocketClients,
		)
	})
}

// SetClientCounter wires the websocket client gauge.
func SetClientCounter(fn func() int) {
	countMu.Lock()
	defer countMu.Unlock()
	clientCount = fn
}

func currentClientCount() int {
	countMu.RLock()
	defer countMu.RUnlock()
	return clientCount()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
