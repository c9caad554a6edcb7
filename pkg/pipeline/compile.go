package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
)

// Compile validates the pipeline and creates an executable CompiledPipeline.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks (in order):
//  1. Entry point must be set
//  2. Entry point must reference an existing stage
//  3. All transition sources must reference existing stages
//  4. All transition targets must reference existing stages or End
//  5. A path from entry to End must exist
//
// Unreachable stages are logged as warnings but do not fail compilation.
func (p *Pipeline[S]) Compile() (*CompiledPipeline[S], error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var errs []error

	if p.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := p.stages[p.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, p.entryPoint))
	}

	for from, targets := range p.transitions {
		if from != End {
			if _, exists := p.stages[from]; !exists {
				if _, hasRouter := p.routers[from]; !hasRouter {
					errs = append(errs, fmt.Errorf("%w: transition source %q does not exist", ErrStageNotFound, from))
				}
			}
		}

		for _, to := range targets {
			if to != End {
				if _, exists := p.stages[to]; !exists {
					errs = append(errs, fmt.Errorf("%w: transition target %q does not exist", ErrStageNotFound, to))
				}
			}
		}
	}

	for from := range p.routers {
		if _, exists := p.stages[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional source %q does not exist", ErrStageNotFound, from))
		}
	}

	if p.entryPoint != "" {
		if _, exists := p.stages[p.entryPoint]; exists {
			if !p.hasPathToEnd() {
				errs = append(errs, ErrNoPathToEnd)
			}
		}
	}

	p.warnUnreachableStages()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return p.buildCompiled(), nil
}

// hasPathToEnd checks whether a path from entry to End exists using
// reverse reachability. Stages with a conditional transition are assumed
// to potentially reach End, since the router might return it.
func (p *Pipeline[S]) hasPathToEnd() bool {
	canReachEnd := make(map[string]bool)
	canReachEnd[End] = true

	changed := true
	for changed {
		changed = false

		for from, targets := range p.transitions {
			if canReachEnd[from] {
				continue
			}
			for _, to := range targets {
				if canReachEnd[to] {
					canReachEnd[from] = true
					changed = true
					break
				}
			}
		}

		for from := range p.routers {
			if !canReachEnd[from] {
				canReachEnd[from] = true
				changed = true
			}
		}
	}

	return canReachEnd[p.entryPoint]
}

// warnUnreachableStages logs warnings for stages not reachable from entry.
func (p *Pipeline[S]) warnUnreachableStages() {
	if p.entryPoint == "" {
		return
	}

	reachable := p.findReachableStages()

	for stageID := range p.stages {
		if !reachable[stageID] {
			slog.Warn("stage is unreachable from entry", "stage_id", stageID)
		}
	}
}

// findReachableStages returns the set of stages reachable from entry via BFS.
// A conditional transition can target any stage at runtime, so every stage
// is considered reachable once a router is encountered.
func (p *Pipeline[S]) findReachableStages() map[string]bool {
	reachable := make(map[string]bool)

	if p.entryPoint == "" {
		return reachable
	}

	queue := []string{p.entryPoint}
	reachable[p.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range p.transitions[current] {
			if target != End && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}

		if _, hasRouter := p.routers[current]; hasRouter {
			for stageID := range p.stages {
				if !reachable[stageID] {
					reachable[stageID] = true
					queue = append(queue, stageID)
				}
			}
		}
	}

	return reachable
}

// buildCompiled creates the immutable CompiledPipeline from builder state.
func (p *Pipeline[S]) buildCompiled() *CompiledPipeline[S] {
	stages := make(map[string]StageFunc[S], len(p.stages))
	for id, fn := range p.stages {
		stages[id] = fn
	}

	transitions := make(map[string][]string, len(p.transitions))
	for from, targets := range p.transitions {
		transitions[from] = make([]string, len(targets))
		copy(transitions[from], targets)
	}

	routers := make(map[string]RouterFunc[S], len(p.routers))
	for from, router := range p.routers {
		routers[from] = router
	}

	successors := make(map[string][]string)
	for from, targets := range transitions {
		successors[from] = targets
	}

	predecessors := make(map[string][]string)
	for from, targets := range transitions {
		for _, to := range targets {
			if to != End {
				predecessors[to] = append(predecessors[to], from)
			}
		}
	}

	isConditional := make(map[string]bool)
	for from := range routers {
		isConditional[from] = true
	}

	return &CompiledPipeline[S]{
		stages:        stages,
		transitions:   transitions,
		routers:       routers,
		entryPoint:    p.entryPoint,
		successors:    successors,
		predecessors:  predecessors,
		isConditional: isConditional,
	}
}
