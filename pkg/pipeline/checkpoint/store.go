// Package checkpoint provides persistent checkpoint storage for paused
// and crashed turns.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints for resume and crash recovery.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint for a run at a specific stage.
	// Overwrites if a checkpoint for (runID, stageID) already exists.
	Save(runID, stageID string, data []byte) error

	// Load retrieves a checkpoint.
	// Returns ErrNotFound if the checkpoint doesn't exist.
	Load(runID, stageID string) ([]byte, error)

	// List returns all checkpoints for a run, ordered by sequence.
	// Returns an empty slice (not an error) if the run has none.
	List(runID string) ([]Info, error)

	// Delete removes a specific checkpoint.
	// Returns nil if the checkpoint doesn't exist.
	Delete(runID, stageID string) error

	// DeleteRun removes all checkpoints for a run.
	// Returns nil if the run has no checkpoints.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	RunID     string
	StageID   string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
