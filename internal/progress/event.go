// Package progress defines the event stream emitted while a pipeline run
// executes.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageRunDone      Stage = "RUN_DONE"
	StageRunError     Stage = "RUN_ERROR"
	StageBatchDone    Stage = "BATCH_DONE"
	StageDocumentDone Stage = "DOCUMENT_DONE"
)

// Outcome is a document's terminal state within a run.
type Outcome string

// Document outcomes reported on DOCUMENT_DONE events.
const (
	OutcomeSummarized Outcome = "summarized"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Event captures a single pipeline run milestone.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// URL is the document URL for DOCUMENT_DONE events.
	URL string
	// Outcome is the document's terminal state for DOCUMENT_DONE events.
	Outcome Outcome
	// Batch is the zero-based batch index for BATCH_DONE events.
	Batch int
	// Docs carries the document count for batch and run events.
	Docs int64
	// Dur captures wall time for run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageBatchDone:
		if e.Docs < 0 {
			return errors.New("batch done requires a non-negative document count")
		}
	case StageDocumentDone:
		if e.URL == "" {
			return errors.New("document done requires url")
		}
		if e.Outcome == "" {
			return errors.New("document done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for sinks.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// Clock supplies event timestamps. The system implementation delegates to
// time.Now; tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}
