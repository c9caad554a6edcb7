package pipeline

import (
	"fmt"
	"strings"
	"sync"
)

// Pipeline is a mutable builder for creating stage graphs.
// Use New to create a builder, then chain AddStage, AddTransition,
// AddConditional, and SetEntry calls to define the flow.
//
// Pipeline is NOT thread-safe during building. Construct it from a single
// goroutine, then call Compile() to create an immutable CompiledPipeline
// that can be safely shared across turns.
//
// Example:
//
//	p := pipeline.New[Turn]().
//	    AddStage("guardrails", guardrails).
//	    AddStage("respond", respond).
//	    AddTransition("guardrails", "respond").
//	    AddTransition("respond", pipeline.End).
//	    SetEntry("guardrails")
//
//	compiled, err := p.Compile()
type Pipeline[S any] struct {
	mu          sync.RWMutex
	stages      map[string]StageFunc[S]
	transitions map[string][]string
	routers     map[string]RouterFunc[S]
	entryPoint  string
}

// New creates a new pipeline builder for state type S.
func New[S any]() *Pipeline[S] {
	return &Pipeline[S]{
		stages:      make(map[string]StageFunc[S]),
		transitions: make(map[string][]string),
		routers:     make(map[string]RouterFunc[S]),
	}
}

// AddStage adds a named stage to the pipeline.
// Returns the pipeline for method chaining.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace
//   - fn is nil
//   - id already exists in the pipeline
func (p *Pipeline[S]) AddStage(id string, fn StageFunc[S]) *Pipeline[S] {
	if id == "" {
		panic("pipeline: stage ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == "__end__" {
		panic("pipeline: stage ID cannot be reserved word 'End'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("pipeline: stage ID cannot contain whitespace")
	}

	if fn == nil {
		panic("pipeline: stage function cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.stages[id]; exists {
		panic(fmt.Sprintf("pipeline: duplicate stage ID: %s", id))
	}

	p.stages[id] = fn
	return p
}

// AddTransition adds an unconditional transition from one stage to another.
// The target can be a stage ID or pipeline.End.
// Returns the pipeline for method chaining.
//
// Transition validation happens at Compile() time, not here, so
// transitions can be added in any order.
func (p *Pipeline[S]) AddTransition(from, to string) *Pipeline[S] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.transitions[from] = append(p.transitions[from], to)
	return p
}

// AddConditional adds a conditional transition where a RouterFunc decides
// the next stage at runtime based on state.
// Returns the pipeline for method chaining.
//
// A stage can have either simple transitions or a conditional one, not
// both. If both are present, the conditional takes precedence.
func (p *Pipeline[S]) AddConditional(from string, router RouterFunc[S]) *Pipeline[S] {
	if router == nil {
		panic("pipeline: router function cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.routers[from] = router
	return p
}

// SetEntry designates the entry point stage.
// This must be called before Compile().
// Returns the pipeline for method chaining.
func (p *Pipeline[S]) SetEntry(id string) *Pipeline[S] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entryPoint = id
	return p
}
