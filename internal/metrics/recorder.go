// Package metrics provides observability hooks for instrumented builds.
package metrics

import "time"

// Step names the external process a measurement belongs to.
type Step string

const (
	StepInstantiate Step = "instantiate"
	StepBuild       Step = "build"
)

// OutcomeSuccess labels a step that finished without error. Failed steps
// are labelled with their error code.
const OutcomeSuccess = "success"

// Recorder receives build measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveStepDuration(step Step, d time.Duration)
	IncStepOutcome(step Step, outcome string)
	AddWatchEntries(kind string, n int)
	AddLogLines(class string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStepDuration(Step, time.Duration) {}
func (NoopRecorder) IncStepOutcome(Step, string)             {}
func (NoopRecorder) AddWatchEntries(string, int)             {}
func (NoopRecorder) AddLogLines(string, int)                 {}
