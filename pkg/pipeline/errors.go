// Package pipeline provides a graph-based conversation orchestration engine.
package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent stage.
	ErrEntryNotFound = errors.New("entry point stage not found")

	// ErrStageNotFound indicates a transition references a non-existent stage.
	ErrStageNotFound = errors.New("stage not found")

	// ErrNoPathToEnd indicates no path exists from the entry point to End.
	ErrNoPathToEnd = errors.New("no path to End from entry")
)

// Sentinel errors for execution.
var (
	// ErrMaxIterations indicates the execution loop exceeded the configured limit.
	ErrMaxIterations = errors.New("exceeded maximum iterations")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidRouterResult indicates a router function returned an empty string.
	ErrInvalidRouterResult = errors.New("router returned empty string")

	// ErrRouterTargetNotFound indicates a router function returned an unknown stage ID.
	ErrRouterTargetNotFound = errors.New("router returned unknown stage")

	// ErrInterrupt is the sentinel a stage returns (possibly wrapped) to
	// pause the run. The executor checkpoints the pre-stage state and
	// surfaces an *InterruptError to the caller.
	ErrInterrupt = errors.New("pipeline interrupted")
)

// Sentinel errors for checkpointing and resume.
var (
	// ErrRunIDRequired indicates checkpointing was enabled without a run ID.
	ErrRunIDRequired = errors.New("run ID required for checkpointing")

	// ErrDeserializeState indicates state deserialization failed.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrNoCheckpoints indicates no checkpoints exist for the run.
	ErrNoCheckpoints = errors.New("no checkpoints found for run")

	// ErrInvalidResumeStage indicates the resume stage doesn't exist in the pipeline.
	ErrInvalidResumeStage = errors.New("invalid resume stage")

	// ErrCheckpointVersionMismatch indicates the checkpoint version is incompatible.
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")
)

// StageError wraps an error with stage context.
type StageError struct {
	// StageID is the identifier of the stage that failed.
	StageID string
	// Op is the operation that failed (e.g., "execute").
	Op string
	// Err is the underlying error from the stage.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.StageID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// InterruptError is returned by Run when a stage requested a pause,
// typically to await an external human decision. The state at the point
// of interrupt has been checkpointed (when a store is configured) and is
// also returned by Run alongside this error.
type InterruptError struct {
	// StageID is the stage that requested the interrupt.
	StageID string
	// RunID identifies the paused run for later Resume.
	RunID string
	// Reason is a human-readable explanation of the pause.
	Reason string
}

// Error implements the error interface.
func (e *InterruptError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("interrupted at stage %s: %s", e.StageID, e.Reason)
	}
	return fmt.Sprintf("interrupted at stage %s", e.StageID)
}

// Unwrap returns ErrInterrupt for errors.Is support.
func (e *InterruptError) Unwrap() error {
	return ErrInterrupt
}

// PanicError captures panic information from stage execution.
type PanicError struct {
	// StageID is the identifier of the stage that panicked.
	StageID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("stage %s panicked: %v", e.StageID, e.Value)
}

// CancellationError captures the state when execution was cancelled.
type CancellationError struct {
	// StageID is the stage that was about to execute.
	StageID string
	// State is the state at cancellation (type-assert to the actual type).
	State any
	// Cause is the underlying cancellation cause.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before stage %s: %v", e.StageID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError wraps errors from conditional transition routing.
type RouterError struct {
	// FromStage is the stage with the conditional transition.
	FromStage string
	// Returned is the value the router returned.
	Returned string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromStage, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// MaxIterationsError provides context when the loop limit is exceeded.
type MaxIterationsError struct {
	// Max is the configured iteration limit.
	Max int
	// LastStageID is the stage that would have executed next.
	LastStageID string
	// State is the state at termination (type-assert to the actual type).
	State any
}

// Error implements the error interface.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at stage %s", e.Max, e.LastStageID)
}

// Unwrap returns ErrMaxIterations for errors.Is support.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// StageID is the stage where checkpointing failed.
	StageID string
	// Op is the operation that failed ("save", "serialize", "marshal").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at stage %s: %v", e.Op, e.StageID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}
