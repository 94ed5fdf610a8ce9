// Package feedback abstracts the host platform's haptic and accessibility
// cues. All triggers are fire-and-forget; failures are ignored.
package feedback

import "go.uber.org/zap"

// Notifier receives wizard feedback cues at fixed points.
type Notifier interface {
	StepAdvanced()
	RefineSucceeded()
	PublishSucceeded()
}

// Noop discards every cue.
type Noop struct{}

func (Noop) StepAdvanced()     {}
func (Noop) RefineSucceeded()  {}
func (Noop) PublishSucceeded() {}

// Logging traces cues for hosts without haptics (CLI, tests).
type Logging struct {
	Logger *zap.Logger
}

func (l Logging) StepAdvanced() {
	l.log("step advanced")
}

func (l Logging) RefineSucceeded() {
	l.log("refine succeeded")
}

func (l Logging) PublishSucceeded() {
	l.log("publish succeeded")
}

func (l Logging) log(msg string) {
	if l.Logger != nil {
		l.Logger.Debug("feedback cue", zap.String("cue", msg))
	}
}
