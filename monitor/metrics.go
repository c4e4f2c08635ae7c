// Package monitor records cache, provider, coordinator and task metrics.
package monitor

import "time"

// Task and request outcomes used as label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeRetry   = "retry"
	OutcomeDropped = "dropped"
)

type Collector interface {
	CacheLookup(backend string, hit bool)
	ProviderCall(provider, op string, err error, elapsed time.Duration)
	CoordinatorRequest(kind, status string)
	TaskRun(kind, outcome string, elapsed time.Duration)
}

type NoOpCollector struct{}

func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (NoOpCollector) CacheLookup(string, bool)                          {}
func (NoOpCollector) ProviderCall(string, string, error, time.Duration) {}
func (NoOpCollector) CoordinatorRequest(string, string)                 {}
func (NoOpCollector) TaskRun(string, string, time.Duration)             {}

// OrNoOp returns c, or a no-op collector when c is nil.
func OrNoOp(c Collector) Collector {
	if c == nil {
		return NoOpCollector{}
	}
	return c
}
