package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/internal/progress"
	"github.com/JakeFAU/permafrost/internal/store"
)

// StoreSink persists freeze run lifecycle and counters via a
// store.FreezeRunRepository. Page deltas are collapsed per run to reduce
// write amplification.
type StoreSink struct {
	repo   store.FreezeRunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.FreezeRunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume collapses page deltas and forwards them to the repository. It
// respects ctx deadlines and returns any repository errors verbatim.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	stats := make(map[uuid.UUID]*pageDelta)

	for _, evt := range batch {
		runID := evt.RunUUID()
		switch evt.Stage {
		case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
			if err := s.handleRunEvent(ctx, runID, evt); err != nil {
				return err
			}
		case progress.StagePageWritten:
			recordPageDelta(stats, runID, evt)
		}
	}

	for runID, delta := range stats {
		if delta.pages == 0 && delta.bytes == 0 {
			continue
		}
		if err := s.repo.AddPageStats(ctx, runID, delta.pages, delta.bytes, delta.at); err != nil {
			return fmt.Errorf("add page stats: %w", err)
		}
	}
	return nil
}

func (s *StoreSink) handleRunEvent(ctx context.Context, runID uuid.UUID, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageRunStart:
		run := store.FreezeRun{
			ID:          runID,
			Site:        evt.Site,
			BaseURL:     evt.BaseURL,
			Destination: evt.Destination,
			StartedAt:   evt.TS,
			LastUpdate:  evt.TS,
			Outcome:     store.RunRunning,
		}
		if err := s.repo.StartRun(ctx, run); err != nil {
			return fmt.Errorf("start run: %w", err)
		}
	case progress.StageRunDone:
		if err := s.repo.CompleteRun(ctx, runID, evt.TS, store.RunSuccess, nil); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	case progress.StageRunError:
		var note *string
		if evt.Note != "" {
			note = &evt.Note
		}
		if err := s.repo.CompleteRun(ctx, runID, evt.TS, store.RunError, note); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	}
	return nil
}

func recordPageDelta(stats map[uuid.UUID]*pageDelta, runID uuid.UUID, evt progress.Event) {
	delta := stats[runID]
	if delta == nil {
		delta = &pageDelta{}
		stats[runID] = delta
	}
	delta.pages += evt.Pages
	delta.bytes += evt.Bytes
	if evt.TS.After(delta.at) || delta.at.IsZero() {
		delta.at = evt.TS
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type pageDelta struct {
	pages int64
	bytes int64
	at    time.Time
}
