// Package pipeline implements the conversation orchestration engine: a
// directed graph of named stages with conditional routing over a shared,
// explicitly-threaded state record.
//
// A turn is one Run() of a CompiledPipeline: stages execute strictly
// sequentially in router-determined order, each receiving the state by
// value and returning the updated state. Stages never call each other;
// only transitions and RouterFuncs decide sequencing.
//
// Human-in-the-loop pauses are modeled as interrupts: a stage returns an
// error wrapping ErrInterrupt, the engine checkpoints the state, and the
// caller later continues the turn with Resume, attaching the external
// decision via WithStateOverride.
package pipeline
