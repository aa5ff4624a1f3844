package report

import "fmt"

// Stage is a step of a read. Stages only move forward.
type Stage int

const (
	StageInit Stage = iota
	StageNavigated
	StageWaited
	StageWaitFailed
	StageLocated
	StageExtracted
	StageDisposed
)

var stageNames = [...]string{
	StageInit:       "init",
	StageNavigated:  "navigated",
	StageWaited:     "waited",
	StageWaitFailed: "wait-failed",
	StageLocated:    "located",
	StageExtracted:  "extracted",
	StageDisposed:   "disposed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError is a fatal failure. Stage is the last stage reached before
// the failing step.
type StageError struct {
	Stage Stage
	Op    string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
