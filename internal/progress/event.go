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
	StagePageRendered Stage = "PAGE_RENDERED"
	StagePageWritten  Stage = "PAGE_WRITTEN"
	StageDeployStart  Stage = "DEPLOY_START"
	StageDeployDone   Stage = "DEPLOY_DONE"
	StageDeployError  Stage = "DEPLOY_ERROR"
)

// Event captures a single milestone of a freeze or deploy run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or page milestone occurred.
	Stage Stage
	// Site is the host the tree is frozen for, from the base URL.
	Site string
	// BaseURL carries the configured public URL on run starts.
	BaseURL string
	// Destination carries the output directory on run starts.
	Destination string
	// URL is the page URL for page stages.
	URL string
	// Path is the tree-relative file path for written pages.
	Path string
	// Bytes carries the payload size delta for written pages.
	Bytes int64
	// Pages increments by one for each page written.
	Pages int64
	// Dur captures execution latency for renders and run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
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
	case StageDeployStart, StageDeployDone, StageDeployError:
	case StagePageRendered:
		if e.URL == "" {
			return errors.New("page rendered requires url")
		}
	case StagePageWritten:
		if e.URL == "" {
			return errors.New("page written requires url")
		}
		if e.Path == "" {
			return errors.New("page written requires path")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
