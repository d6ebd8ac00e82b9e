package metrics

import "time"

// NullMetrics is a no-op Collector used when metrics are disabled
type NullMetrics struct{}

// NewNullMetrics creates a new NullMetrics instance
func NewNullMetrics() *NullMetrics {
	return &NullMetrics{}
}

func (nm *NullMetrics) IncrementMessages(kind string)                    {}
func (nm *NullMetrics) IncrementDecodeErrors(kind string)                {}
func (nm *NullMetrics) IncrementFaultAlerts()                            {}
func (nm *NullMetrics) IncrementPredictions()                            {}
func (nm *NullMetrics) IncrementPublishFailures()                        {}
func (nm *NullMetrics) IncrementCollaboratorErrors(collaborator string)  {}
func (nm *NullMetrics) IncrementErrors(kind string)                      {}
func (nm *NullMetrics) IncrementReadings(outcome string)                 {}
func (nm *NullMetrics) SetBrokerConnected(connected bool)                {}
func (nm *NullMetrics) ObserveProcessingDuration(duration time.Duration) {}
