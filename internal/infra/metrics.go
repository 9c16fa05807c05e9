package infra

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsTotal counts normalized events by kind as the engine consumes them.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "events_total", Help: "Normalized events processed by the engine"},
		[]string{"kind"},
	)
	// StaleDropsTotal counts stale/duplicate market updates dropped by the store.
	StaleDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "stale_drops_total", Help: "Stale or duplicate market updates dropped"},
	)
	// SignalsTotal counts evaluated signals by value.
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals produced per decision cycle"},
		[]string{"signal"},
	)
	// IntentsTotal counts emitted order intents.
	IntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_intents_total", Help: "Order intents handed to the executor"},
		[]string{"side", "type"},
	)
	// OutcomesTotal counts execution outcomes by kind.
	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "execution_outcomes_total", Help: "Execution outcomes by kind"},
		[]string{"kind"},
	)
	// DecisionSeconds observes full decision-cycle latency.
	DecisionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decision_cycle_seconds",
			Help:    "Latency of one decision cycle (tick, snapshot, evaluate, transition)",
			Buckets: prometheus.ExponentialBuckets(10e-6, 4, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(EventsTotal, StaleDropsTotal, SignalsTotal, IntentsTotal, OutcomesTotal, DecisionSeconds)
}

// ServeMetrics exposes /metrics on addr, plus /status when a status
// source is given. The caller owns shutdown.
func ServeMetrics(addr string, status func() any) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if status != nil {
		mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(status())
		})
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
