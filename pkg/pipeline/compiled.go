package pipeline

// CompiledPipeline is an immutable, executable stage graph.
// It is created by calling Compile() on a Pipeline builder.
//
// CompiledPipeline is thread-safe and can be used concurrently for
// multiple Run() calls: each turn owns its own state record exclusively,
// and the graph structure cannot be modified after compilation.
//
// Use the introspection methods (StageIDs, Successors, etc.) to examine
// the structure for debugging or visualization.
type CompiledPipeline[S any] struct {
	stages      map[string]StageFunc[S]
	transitions map[string][]string
	routers     map[string]RouterFunc[S]
	entryPoint  string

	// Pre-computed for efficient lookup
	successors    map[string][]string
	predecessors  map[string][]string
	isConditional map[string]bool
}

// EntryPoint returns the entry stage ID.
func (cp *CompiledPipeline[S]) EntryPoint() string {
	return cp.entryPoint
}

// StageIDs returns all stage identifiers in the pipeline.
// The order is not guaranteed.
func (cp *CompiledPipeline[S]) StageIDs() []string {
	ids := make([]string, 0, len(cp.stages))
	for id := range cp.stages {
		ids = append(ids, id)
	}
	return ids
}

// HasStage checks if a stage exists in the pipeline.
func (cp *CompiledPipeline[S]) HasStage(id string) bool {
	_, exists := cp.stages[id]
	return exists
}

// Successors returns the stage IDs reachable from the given stage via
// simple (non-conditional) transitions. Returns nil for End or unknown
// stages. Conditional targets are runtime-determined and not included.
func (cp *CompiledPipeline[S]) Successors(id string) []string {
	if id == End {
		return nil
	}
	return cp.successors[id]
}

// Predecessors returns the stage IDs that have transitions to the given stage.
func (cp *CompiledPipeline[S]) Predecessors(id string) []string {
	return cp.predecessors[id]
}

// IsConditional returns true if the stage has a conditional transition.
func (cp *CompiledPipeline[S]) IsConditional(id string) bool {
	return cp.isConditional[id]
}

// getStage returns the stage function for the given ID.
func (cp *CompiledPipeline[S]) getStage(id string) (StageFunc[S], bool) {
	fn, exists := cp.stages[id]
	return fn, exists
}

// getRouter returns the router function for the given stage.
func (cp *CompiledPipeline[S]) getRouter(id string) (RouterFunc[S], bool) {
	router, exists := cp.routers[id]
	return router, exists
}

// getTransitions returns the simple transition targets for the given stage.
func (cp *CompiledPipeline[S]) getTransitions(id string) []string {
	return cp.transitions[id]
}
