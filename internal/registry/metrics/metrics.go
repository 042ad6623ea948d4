package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module.
// Tracks registration/transfer counts and critical path durations.
type Metrics struct {
	PropertiesRegistered prometheus.Counter
	PropertiesTransferred prometheus.Counter
	PropertiesFrozen     prometheus.Counter
	RegisterDuration     prometheus.Histogram
	TransferDuration     prometheus.Histogram
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		PropertiesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deedbook_properties_registered_total",
			Help: "Total number of properties registered",
		}),
		PropertiesTransferred: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deedbook_properties_transferred_total",
			Help: "Total number of completed ownership transfers",
		}),
		PropertiesFrozen: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deedbook_properties_frozen_total",
			Help: "Total number of owner-initiated transfer freezes",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "deedbook_register_duration_seconds",
			Help:    "Duration of Register operations (ledger critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "deedbook_transfer_duration_seconds",
			Help:    "Duration of Transfer operations (ledger critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRegistered records successful registrations.
func (m *Metrics) IncrementRegistered(n int) {
	m.PropertiesRegistered.Add(float64(n))
}

// IncrementTransferred records a completed transfer.
func (m *Metrics) IncrementTransferred() {
	m.PropertiesTransferred.Inc()
}

// IncrementFrozen records an owner freeze.
func (m *Metrics) IncrementFrozen() {
	m.PropertiesFrozen.Inc()
}

// ObserveRegister records the duration of a Register operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

// ObserveTransfer records the duration of a Transfer operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransfer(start time.Time) {
	m.TransferDuration.Observe(time.Since(start).Seconds())
}
