package vm

import "github.com/prometheus/client_golang/prometheus"

// Metrics wraps the accepted/rejected/errored counters Machine.Run
// increments when attached via SetMetrics. The zero value is not usable;
// use NewMetrics.
type Metrics struct {
	accepted prometheus.Counter
	rejected prometheus.Counter
	errored  prometheus.Counter
}

// NewMetrics builds and registers the three counters with reg (pass
// prometheus.DefaultRegisterer for the global registry).
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	m := &Metrics{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "accepted_total", Help: "Messages accepted by the filter VM.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "rejected_total", Help: "Messages rejected by the filter VM.",
		}),
		errored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "errored_total", Help: "Messages that halted the filter VM with an error.",
		}),
	}
	reg.MustRegister(m.accepted, m.rejected, m.errored)
	return m
}
