package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/procura/pkg/pipeline/checkpoint"
)

// resumeConfig holds options applied when resuming a paused run.
type resumeConfig struct {
	stateOverride func(any) any
	validateState func(any) error
}

// ResumeOption configures Resume behavior.
type ResumeOption func(*resumeConfig)

// WithStateOverride mutates the deserialized state before execution
// continues. This is how an external decision (e.g. a human approval) is
// attached to a paused turn: override the state, then let the
// interrupting stage re-execute and apply it.
func WithStateOverride(fn func(any) any) ResumeOption {
	return func(c *resumeConfig) {
		c.stateOverride = fn
	}
}

// WithStateValidation rejects a resume if the deserialized state fails
// the given check.
func WithStateValidation(fn func(any) error) ResumeOption {
	return func(c *resumeConfig) {
		c.validateState = fn
	}
}

// Resume continues execution from the latest checkpoint for a run.
//
// For a run paused by an interrupt, the checkpoint points back at the
// interrupting stage, so that stage re-executes with whatever decision
// was attached via WithStateOverride.
//
// Example:
//
//	result, err := compiled.Resume(ctx, store, "turn-123",
//	    pipeline.WithStateOverride(attachDecision))
func (cp *CompiledPipeline[S]) Resume(ctx Context, store checkpoint.Store, runID string, opts ...ResumeOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	infos, err := store.List(runID)
	if err != nil {
		return zero, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(infos) == 0 {
		return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, runID)
	}

	// Load the latest checkpoint (last in sequence).
	latest := infos[len(infos)-1]
	data, err := store.Load(runID, latest.StageID)
	if err != nil {
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	chkpt, state, err := decodeCheckpoint[S](data, &cfg)
	if err != nil {
		return zero, err
	}

	startStage := chkpt.NextStage
	if startStage != End && !cp.HasStage(startStage) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeStage, startStage)
	}

	runCfg := defaultRunConfig()
	runCfg.checkpointStore = store
	runCfg.runID = runID
	runCfg.sequence = chkpt.Sequence

	result, _, err := cp.runFrom(ctx, ctx, state, startStage, &runCfg)
	if err != nil && errors.Is(err, ErrInterrupt) {
		return result, interruptError(err, startStage, runID)
	}
	return result, err
}

// ResumeFrom continues execution from the checkpoint at a specific stage,
// rather than the latest.
func (cp *CompiledPipeline[S]) ResumeFrom(ctx Context, store checkpoint.Store, runID, stageID string, opts ...ResumeOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := store.Load(runID, stageID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s at stage %s", ErrNoCheckpoints, runID, stageID)
		}
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	chkpt, state, err := decodeCheckpoint[S](data, &cfg)
	if err != nil {
		return zero, err
	}

	startStage := chkpt.NextStage
	if startStage != End && !cp.HasStage(startStage) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeStage, startStage)
	}

	runCfg := defaultRunConfig()
	runCfg.checkpointStore = store
	runCfg.runID = runID
	runCfg.sequence = chkpt.Sequence

	result, _, err := cp.runFrom(ctx, ctx, state, startStage, &runCfg)
	if err != nil && errors.Is(err, ErrInterrupt) {
		return result, interruptError(err, startStage, runID)
	}
	return result, err
}

// decodeCheckpoint unmarshals the envelope, verifies the version, and
// deserializes the state, applying any override and validation.
func decodeCheckpoint[S any](data []byte, cfg *resumeConfig) (*checkpoint.Checkpoint, S, error) {
	var zero S

	chkpt, err := checkpoint.Unmarshal(data)
	if err != nil {
		return nil, zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if chkpt.Version != checkpoint.Version {
		return nil, zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, chkpt.Version, checkpoint.Version)
	}

	var state S
	if err := json.Unmarshal(chkpt.State, &state); err != nil {
		return nil, zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cfg.stateOverride != nil {
		modified := cfg.stateOverride(state)
		if typed, ok := modified.(S); ok {
			state = typed
		}
	}

	if cfg.validateState != nil {
		if err := cfg.validateState(state); err != nil {
			return nil, zero, fmt.Errorf("state validation failed: %w", err)
		}
	}

	return chkpt, state, nil
}
