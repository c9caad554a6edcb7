package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to the checkpoint structure.
const Version = 1

// Checkpoint is the persisted snapshot of a turn in flight.
// It contains all information needed to resume execution, including a
// turn paused for human approval.
type Checkpoint struct {
	// Metadata
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	StageID   string    `json:"stage_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// Execution state
	State     json.RawMessage `json:"state"`
	NextStage string          `json:"next_stage"`

	// PrevStageID aids debugging of routing decisions.
	PrevStageID string `json:"prev_stage_id,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// New creates a new checkpoint with the given parameters.
// State must already be JSON-serialized.
func New(runID, stageID string, sequence int, state []byte, nextStage string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		RunID:     runID,
		StageID:   stageID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextStage: nextStage,
	}
}

// WithPrevStage sets the previous stage ID for debugging.
func (c *Checkpoint) WithPrevStage(prevStageID string) *Checkpoint {
	c.PrevStageID = prevStageID
	return c
}
