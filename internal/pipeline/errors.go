package pipeline

import "fmt"

// StageKind tags an error with the pipeline stage that produced it.
type StageKind string

const (
	StageAcquisition StageKind = "acquisition"
	StageSeparation  StageKind = "separation"
	StageComposition StageKind = "composition"
	StagePublish     StageKind = "publish"
)

// StageError is a fatal pipeline error. The orchestrator aborts the task on
// the first one, reports its message in the failure webhook, and cleans up.
type StageError struct {
	Kind StageKind
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func acquisitionError(format string, args ...interface{}) *StageError {
	return &StageError{Kind: StageAcquisition, Err: fmt.Errorf(format, args...)}
}

func separationError(format string, args ...interface{}) *StageError {
	return &StageError{Kind: StageSeparation, Err: fmt.Errorf(format, args...)}
}

func compositionError(format string, args ...interface{}) *StageError {
	return &StageError{Kind: StageComposition, Err: fmt.Errorf(format, args...)}
}

// PublishError wraps an upload or URL-issuance failure in a StageError so the
// orchestrator treats it like any other fatal stage.
func PublishError(err error) *StageError {
	return &StageError{Kind: StagePublish, Err: err}
}
