package resilience

import "github.com/prometheus/client_golang/prometheus"

// Circuit collectors carry the upstream name, "backend" for the food backend.
// They live on the default registry so every Breaker shares them.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "checkout",
		Subsystem: "upstream",
		Name:      "circuit_state",
		Help:      "Circuit position per upstream: 0=closed, 1=open, 2=half-open",
	}, []string{"target"})

	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: "upstream",
		Name:      "circuit_transitions_total",
		Help:      "Circuit position changes per upstream",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: "upstream",
		Name:      "circuit_trips_total",
		Help:      "Times the circuit to an upstream tripped open",
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
