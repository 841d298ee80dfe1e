// Registers:
//
//	#clawdash_snapshot_items{kind}
//	#clawdash_collector_failures_total{collector}
//	#clawdash_run_duration_seconds
//	#clawdash_last_success_timestamp_seconds
//	#clawdash_http_requests_total{path,code}
//	#go_* and process_* system metrics
//
// Batch runs flush them to a node_exporter textfile; serve mode exposes them
// on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once              sync.Once
	registry          *prometheus.Registry
	snapshotItems     *prometheus.GaugeVec
	collectorFailures *prometheus.CounterVec
	runDuration       prometheus.Gauge
	lastSuccess       prometheus.Gauge
	httpRequests      *prometheus.CounterVec
)

// itemMetrics are the EmitMetric names mirrored into clawdash_snapshot_items.
var itemMetrics = map[string]bool{
	"positions":    true,
	"bots":         true,
	"sessions":     true,
	"cpu_percent":  true,
	"mem_percent":  true,
	"disk_percent": true,
}

// Init builds the registry once and returns it.
func Init() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		snapshotItems = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clawdash_snapshot_items",
				Help: "Values recorded in the last published snapshot",
			},
			[]string{"kind"},
		)
		collectorFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clawdash_collector_failures_total",
				Help: "Collectors that fell back to placeholder data",
			},
			[]string{"collector"},
		)
		runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clawdash_run_duration_seconds",
			Help: "Wall time of the last snapshot run",
		})
		lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clawdash_last_success_timestamp_seconds",
			Help: "Unix time the snapshot was last published",
		})
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clawdash_http_requests_total",
				Help: "Dashboard API requests served",
			},
			[]string{"path", "code"},
		)

		registry.MustRegister(snapshotItems, collectorFailures, runDuration, lastSuccess, httpRequests)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	return registry
}

// Observe maps an emitted metric onto the Prometheus collectors. Register it
// with RegisterMetricHandler.
func Observe(m Metric) {
	Init()

	value, ok := toFloat64(m.Value)
	if !ok {
		return
	}

	switch {
	case m.Name == "collector_failure":
		name, _ := m.Fields["collector"].(string)
		if name == "" {
			name = "unknown"
		}
		collectorFailures.WithLabelValues(name).Add(value)
	case m.Name == "run_duration":
		runDuration.Set(value)
	case m.Name == "last_success":
		lastSuccess.Set(value)
	case itemMetrics[m.Name]:
		snapshotItems.WithLabelValues(m.Name).Set(value)
	}
}

// ObserveRequest counts one served HTTP request.
func ObserveRequest(path string, code int) {
	Init()
	httpRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

// WriteTextfile writes the registry in the text exposition format, replacing
// path atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Init())
}

// Handler serves the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Init(), promhttp.HandlerOpts{})
}
