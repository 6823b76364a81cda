package app

import (
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/permafrost/internal/clock/system"
	"github.com/JakeFAU/permafrost/internal/progress"
	"github.com/JakeFAU/permafrost/internal/telemetry"
	"github.com/JakeFAU/permafrost/pkg/freezer"
)

// RunBridge stamps freezer progress callbacks with a run identity and
// forwards them to the hub, so one freeze (and its deploy) shows up as
// one audited run.
type RunBridge struct {
	hub   *progress.Hub
	clock *system.Clock

	runID       uuid.UUID
	site        string
	baseURL     string
	destination string
}

// NewRunBridge mints the run ID for one freeze of the given base URL.
func (c *Components) NewRunBridge(baseURL string) (*RunBridge, error) {
	id, err := c.IDs.NewRawID()
	if err != nil {
		return nil, err
	}
	return &RunBridge{
		hub:         c.Hub,
		clock:       system.New(),
		runID:       id,
		site:        telemetry.SanitizeSite(baseURL),
		baseURL:     baseURL,
		destination: c.DestinationLabel(),
	}, nil
}

// RunID identifies this run in audit records.
func (b *RunBridge) RunID() uuid.UUID {
	return b.runID
}

// OnFreezeEvent is installed as the freezer's progress hook.
func (b *RunBridge) OnFreezeEvent(ev freezer.Event) {
	switch ev.Stage {
	case freezer.StageFreezeStart:
		b.emit(progress.Event{
			Stage:       progress.StageRunStart,
			BaseURL:     b.baseURL,
			Destination: b.destination,
		})
	case freezer.StagePageRendered:
		b.emit(progress.Event{
			Stage: progress.StagePageRendered,
			URL:   ev.URL,
			Bytes: int64(ev.Bytes),
			Dur:   ev.Dur,
		})
	case freezer.StagePageWritten:
		b.emit(progress.Event{
			Stage: progress.StagePageWritten,
			URL:   ev.URL,
			Path:  ev.Path,
			Bytes: int64(ev.Bytes),
			Pages: 1,
		})
	case freezer.StageFreezeComplete:
		b.emit(progress.Event{
			Stage: progress.StageRunDone,
			Dur:   ev.Dur,
		})
	case freezer.StageFreezeFailed:
		var note string
		if ev.Err != nil {
			note = ev.Err.Error()
		}
		b.emit(progress.Event{
			Stage: progress.StageRunError,
			Dur:   ev.Dur,
			Note:  note,
		})
	}
}

// DeployStarted records the start of this run's deploy.
func (b *RunBridge) DeployStarted() {
	b.emit(progress.Event{Stage: progress.StageDeployStart})
}

// DeployFinished records the deploy outcome. A nil error marks success.
func (b *RunBridge) DeployFinished(dur time.Duration, err error) {
	ev := progress.Event{Stage: progress.StageDeployDone, Dur: dur}
	if err != nil {
		ev.Stage = progress.StageDeployError
		ev.Note = err.Error()
	}
	b.emit(ev)
}

func (b *RunBridge) emit(ev progress.Event) {
	if b == nil || b.hub == nil {
		return
	}
	ev.RunID = progress.UUIDToBytes(b.runID)
	ev.TS = b.clock.Now()
	ev.Site = b.site
	b.hub.Emit(ev)
}
