package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/procura/pkg/pipeline/checkpoint"
	"github.com/randalmurphal/procura/pkg/pipeline/observability"
)

// Run executes the pipeline with the given initial state.
// Returns the final state and any error encountered.
//
// On success, returns the state after the last stage executed before End.
// On error, returns the state at the point of failure.
//
// A stage may pause the run by returning an error wrapping ErrInterrupt:
// Run checkpoints the state it returned (when a store is configured) and
// surfaces an *InterruptError. The paused run is continued with Resume,
// which re-executes the interrupting stage.
//
// Execution flow:
//  1. Start at the entry point stage
//  2. Check for cancellation
//  3. Execute the current stage
//  4. Determine the next stage (via simple or conditional transition)
//  5. Repeat until End is reached or an error occurs
func (cp *CompiledPipeline[S]) Run(ctx Context, state S, opts ...RunOption) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.checkpointStore != nil && cfg.runID == "" {
		return state, ErrRunIDRequired
	}

	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}

	startTime := time.Now()

	observability.LogRunStart(cfg.logger, runID)

	var execCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, "procura", runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	var stageCount int
	result, stageCount, runErr = cp.runFrom(execCtx, ctx, state, cp.entryPoint, &cfg)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())

	cfg.metrics.RecordRun(ctx, runErr == nil, duration)

	switch {
	case runErr == nil:
		observability.LogRunComplete(cfg.logger, runID, durationMs, stageCount)
	case errors.Is(runErr, ErrInterrupt):
		var intErr *InterruptError
		if errors.As(runErr, &intErr) {
			observability.LogRunInterrupted(cfg.logger, runID, intErr.StageID, intErr.Reason)
		}
	default:
		lastStage := ""
		var stageErr *StageError
		var maxErr *MaxIterationsError
		var cancelErr *CancellationError
		switch {
		case errors.As(runErr, &stageErr):
			lastStage = stageErr.StageID
		case errors.As(runErr, &maxErr):
			lastStage = maxErr.LastStageID
		case errors.As(runErr, &cancelErr):
			lastStage = cancelErr.StageID
		}
		observability.LogRunError(cfg.logger, runID, runErr, durationMs, lastStage)
	}

	return result, runErr
}

// runFrom executes the pipeline starting from a specific stage.
// tracingCtx carries span context; pCtx is the pipeline Context.
// Returns the final state, stage count, and any error.
func (cp *CompiledPipeline[S]) runFrom(tracingCtx context.Context, pCtx Context, state S, startStage string, cfg *runConfig) (S, int, error) {
	current := startStage
	iterations := 0
	prevStage := ""
	stageCount := 0

	for current != End {
		iterations++
		if iterations > cfg.maxIterations {
			return state, stageCount, &MaxIterationsError{
				Max:         cfg.maxIterations,
				LastStageID: current,
				State:       state,
			}
		}

		// Check for cancellation before executing the stage
		select {
		case <-pCtx.Done():
			return state, stageCount, &CancellationError{
				StageID: current,
				State:   state,
				Cause:   pCtx.Err(),
			}
		default:
		}

		observability.LogStageStart(cfg.logger, current)

		stageTracingCtx := tracingCtx
		var stageSpan trace.Span
		if cfg.tracingEnabled {
			stageTracingCtx, stageSpan = cfg.spans.StartStageSpan(tracingCtx, current)
		}

		stageStart := time.Now()

		var stageErr error
		state, stageErr = cp.executeStage(pCtx, current, state)

		stageDuration := time.Since(stageStart)
		stageDurationMs := float64(stageDuration.Milliseconds())

		cfg.metrics.RecordStageExecution(stageTracingCtx, current, stageDuration, stageErr)

		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(stageSpan, stageErr)
		}

		if stageErr != nil {
			// An interrupt is a pause, not a failure. Checkpoint the
			// interrupting stage itself so Resume re-executes it.
			if errors.Is(stageErr, ErrInterrupt) {
				cfg.metrics.RecordInterrupt(pCtx, current)
				if cfg.checkpointStore != nil {
					if err := cp.saveCheckpoint(pCtx, cfg, current, prevStage, state, current); err != nil {
						return state, stageCount, err
					}
				}
				return state, stageCount, interruptError(stageErr, current, cfg.runID)
			}

			observability.LogStageError(cfg.logger, current, stageErr)
			return state, stageCount, stageErr
		}
		observability.LogStageComplete(cfg.logger, current, stageDurationMs)
		stageCount++

		next, err := cp.nextStage(pCtx, state, current)
		if err != nil {
			return state, stageCount, err
		}

		if cfg.checkpointStore != nil {
			if err := cp.saveCheckpoint(pCtx, cfg, current, prevStage, state, next); err != nil {
				return state, stageCount, err
			}
		}

		prevStage = current
		current = next
	}

	return state, stageCount, nil
}

// interruptError normalizes a stage's interrupt into an *InterruptError.
func interruptError(err error, stageID, runID string) error {
	var intErr *InterruptError
	if errors.As(err, &intErr) {
		if intErr.RunID == "" {
			intErr.RunID = runID
		}
		return intErr
	}
	return &InterruptError{StageID: stageID, RunID: runID}
}

// saveCheckpoint persists the current state after stage execution.
func (cp *CompiledPipeline[S]) saveCheckpoint(ctx Context, cfg *runConfig, stageID, prevStageID string, state S, nextStage string) error {
	stateBytes, err := json.Marshal(state)
	if err != nil {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{StageID: stageID, Op: "serialize", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, stageID, "serialize", err)
		return nil
	}

	cfg.sequence++
	chkpt := checkpoint.New(cfg.runID, stageID, cfg.sequence, stateBytes, nextStage).
		WithPrevStage(prevStageID)

	data, err := chkpt.Marshal()
	if err != nil {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{StageID: stageID, Op: "marshal", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, stageID, "marshal", err)
		return nil
	}

	if err := cfg.checkpointStore.Save(cfg.runID, stageID, data); err != nil {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{StageID: stageID, Op: "save", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, stageID, "save", err)
		return nil
	}

	sizeBytes := len(data)
	observability.LogCheckpoint(cfg.logger, stageID, sizeBytes)
	cfg.metrics.RecordCheckpoint(ctx, stageID, int64(sizeBytes))

	return nil
}

// executeStage executes a single stage with panic recovery.
// Returns the new state and any error (including wrapped panics).
func (cp *CompiledPipeline[S]) executeStage(ctx Context, stageID string, state S) (result S, err error) {
	fn, exists := cp.getStage(stageID)
	if !exists {
		// Shouldn't happen if compilation was successful.
		return state, &StageError{
			StageID: stageID,
			Op:      "lookup",
			Err:     fmt.Errorf("stage not found: %s", stageID),
		}
	}

	// Stage-specific context with enriched logger.
	stageCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		stageCtx = ec.withStageID(stageID)
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				StageID: stageID,
				Value:   r,
				Stack:   string(debug.Stack()),
			}
		}
	}()

	result, err = fn(stageCtx, state)
	if err != nil {
		if errors.Is(err, ErrInterrupt) {
			return result, err
		}
		return result, &StageError{
			StageID: stageID,
			Op:      "execute",
			Err:     err,
		}
	}

	return result, nil
}

// nextStage determines the next stage to execute.
// Checks conditional transitions first, then simple ones.
func (cp *CompiledPipeline[S]) nextStage(ctx Context, state S, current string) (string, error) {
	if router, exists := cp.getRouter(current); exists {
		routerCtx := ctx
		if ec, ok := ctx.(*executionContext); ok {
			routerCtx = ec.withStageID(current)
		}

		next := router(routerCtx, state)

		if next == "" {
			return "", &RouterError{
				FromStage: current,
				Returned:  next,
				Err:       ErrInvalidRouterResult,
			}
		}

		if next != End {
			if _, exists := cp.getStage(next); !exists {
				return "", &RouterError{
					FromStage: current,
					Returned:  next,
					Err:       ErrRouterTargetNotFound,
				}
			}
		}

		return next, nil
	}

	transitions := cp.getTransitions(current)
	if len(transitions) == 0 {
		// Shouldn't happen if compilation was successful.
		return "", &StageError{
			StageID: current,
			Op:      "routing",
			Err:     fmt.Errorf("no outgoing transition from stage %s", current),
		}
	}

	// Stages execute strictly sequentially within a turn; a stage has
	// exactly one unconditional successor.
	return transitions[0], nil
}
