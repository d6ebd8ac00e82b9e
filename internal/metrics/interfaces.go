package metrics

import "time"

// Collector defines the metrics recorded by the server router and the
// device agent.
//
// Implementations:
//   - PrometheusMetrics: client_golang collectors on a private registry
//   - NullMetrics: no-op implementation when metrics are disabled
type Collector interface {
	// IncrementMessages counts inbound messages by kind ("reading", "status", "command", "unknown")
	IncrementMessages(kind string)

	// IncrementDecodeErrors counts dropped undecodable messages by decode kind
	IncrementDecodeErrors(kind string)

	// IncrementFaultAlerts counts FaultAlert commands dispatched
	IncrementFaultAlerts()

	// IncrementPredictions counts PowerPrediction commands dispatched
	IncrementPredictions()

	// IncrementPublishFailures counts publishes that failed or were skipped while offline
	IncrementPublishFailures()

	// IncrementCollaboratorErrors counts failures isolated per collaborator
	IncrementCollaboratorErrors(collaborator string)

	// IncrementErrors counts handled errors by kind
	IncrementErrors(kind string)

	// IncrementReadings counts device sampling outcomes ("published", "skipped", "dropped")
	IncrementReadings(outcome string)

	// SetBrokerConnected sets the current broker connection status
	SetBrokerConnected(connected bool)

	// ObserveProcessingDuration records how long one inbound message took to route
	ObserveProcessingDuration(duration time.Duration)
}

// Compile-time verification that both implementations satisfy Collector
var (
	_ Collector = (*PrometheusMetrics)(nil)
	_ Collector = (*NullMetrics)(nil)
)
