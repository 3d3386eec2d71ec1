package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/id/uuid"
	"github.com/JakeFAU/sitedigest/internal/pipeline"
	"github.com/JakeFAU/sitedigest/internal/progress"
)

// runStream scopes progress events to a single run. All methods are safe on
// a nil receiver, so call sites stay clean when no emitter is attached.
type runStream struct {
	emitter progress.Emitter
	clock   progress.Clock
	runID   [16]byte
	start   time.Time
}

func (l *Local) newRunStream() *runStream {
	if l.emitter == nil || l.clock == nil {
		return nil
	}
	raw, err := uuid.New().NewRawID()
	if err != nil {
		l.logger.Warn("run id generation failed, progress disabled for this run", zap.Error(err))
		return nil
	}
	return &runStream{
		emitter: l.emitter,
		clock:   l.clock,
		runID:   progress.UUIDToBytes(raw),
		start:   l.clock.Now(),
	}
}

func (r *runStream) emit(evt progress.Event) {
	if r == nil {
		return
	}
	evt.RunID = r.runID
	evt.TS = r.clock.Now()
	r.emitter.Emit(evt)
}

func (r *runStream) runStart() {
	r.emit(progress.Event{Stage: progress.StageRunStart})
}

func (r *runStream) runDone(counts pipeline.RunCounts) {
	if r == nil {
		return
	}
	r.emit(progress.Event{
		Stage: progress.StageRunDone,
		Docs:  int64(counts.Discovered),
		Dur:   r.clock.Now().Sub(r.start),
	})
}

func (r *runStream) runError(err error) {
	if r == nil {
		return
	}
	r.emit(progress.Event{
		Stage: progress.StageRunError,
		Dur:   r.clock.Now().Sub(r.start),
		Note:  err.Error(),
	})
}

func (r *runStream) batchDone(index, size int) {
	r.emit(progress.Event{
		Stage: progress.StageBatchDone,
		Batch: index,
		Docs:  int64(size),
	})
}

func (r *runStream) documentsDone(outcomes []pipeline.DocOutcome) {
	if r == nil {
		return
	}
	for _, out := range outcomes {
		evt := progress.Event{
			Stage:   progress.StageDocumentDone,
			URL:     out.URL,
			Outcome: progress.Outcome(out.Status),
		}
		if out.Err != nil {
			evt.Note = out.Err.Error()
		}
		r.emit(evt)
	}
}
