// Package sourcing implements a conversational supplier-sourcing
// assistant as a pipeline of stages over a shared State record.
//
// A turn enters at guardrails, gets classified into an intent, runs the
// domain stages that intent needs (supplier search, compliance checks,
// comparison, risk assessment, process expertise), optionally pauses
// for human approval, and ends with response generation, degradation
// handling, and sampled evaluation. Stages never call each other; the
// routers wired by BuildPipeline decide all sequencing.
//
// Export-control sensitive requests and high-risk results pause the
// turn: the hitl stage raises a pipeline interrupt and the run is
// checkpointed until a reviewer decision is attached and the run
// resumed.
package sourcing
