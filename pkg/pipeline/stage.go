package pipeline

// End is the terminal stage identifier.
// Use this as a transition target to indicate the pipeline should terminate.
const End = "__end__"

// StageFunc is the signature for all stage functions.
// Stages receive the execution context and current state, and return the
// updated state (or the same state) and any error.
//
// The state parameter is passed by value. Stages should modify and return
// a new state value, not rely on pointer mutation. No stage may retain a
// reference to the state past its own invocation.
//
// Example:
//
//	func guardrails(ctx pipeline.Context, s Turn) (Turn, error) {
//	    s.Checked = true
//	    return s, nil
//	}
type StageFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc determines the next stage based on state.
// It is used for conditional transitions where the next stage depends on
// runtime state.
//
// The router should return a valid stage ID or pipeline.End.
// Returning an empty string or an unknown stage ID causes a runtime error.
type RouterFunc[S any] func(ctx Context, state S) string
