package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pastry",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful process starts.",
		},
	)
	processRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pastry",
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Number of operator-requested restarts.",
		},
	)
	processStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pastry",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of stop sequences (graceful or kill).",
		},
	)
	spawnFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pastry",
			Subsystem: "process",
			Name:      "spawn_failures_total",
			Help:      "Number of failed attempts to launch the command.",
		},
	)
	abnormalExits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pastry",
			Subsystem: "process",
			Name:      "abnormal_exits_total",
			Help:      "Number of exits with a non-zero code.",
		},
	)
	processUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pastry",
			Subsystem: "process",
			Name:      "up",
			Help:      "1 while the managed process is running.",
		},
	)
	configWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pastry",
			Subsystem: "config",
			Name:      "writes_total",
			Help:      "Number of env file writes by operation.",
		}, []string{"op"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{processStarts, processRestarts, processStops, spawnFailures, abnormalExits, processUp, configWrites}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving metrics for the DefaultGatherer.
// The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncStart() {
	if regOK.Load() {
		processStarts.Inc()
	}
}
func IncRestart() {
	if regOK.Load() {
		processRestarts.Inc()
	}
}
func IncStop() {
	if regOK.Load() {
		processStops.Inc()
	}
}
func IncSpawnFailure() {
	if regOK.Load() {
		spawnFailures.Inc()
	}
}
func IncAbnormalExit() {
	if regOK.Load() {
		abnormalExits.Inc()
	}
}
func SetUp(up bool) {
	if !regOK.Load() {
		return
	}
	if up {
		processUp.Set(1)
	} else {
		processUp.Set(0)
	}
}
func IncConfigWrite(op string) {
	if regOK.Load() {
		configWrites.WithLabelValues(op).Inc()
	}
}
