package pipeline

// State tracks a request through the pipeline. Transitions are linear:
// Received, Normalizing, Extracting, Synthesizing (which covers the
// concurrent render fan-out), then Complete or Failed.
type State string

const (
	StateReceived     State = "received"
	StateNormalizing  State = "normalizing"
	StateExtracting   State = "extracting"
	StateSynthesizing State = "synthesizing"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)
