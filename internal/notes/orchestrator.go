package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// TranscriptSource fetches the transcript and metadata for a video ID.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) (*Transcript, error)
}

// NotesGenerator turns a transcript into markdown lecture notes, delivered
// as text deltas. The returned channel is closed when generation finishes;
// a delta with a non-nil Err reports a mid-stream failure.
type NotesGenerator interface {
	Generate(ctx context.Context, transcript, videoTitle string) (<-chan NotesDelta, error)
}

// ToolExtractor produces the ordered list of AI tools mentioned in a
// transcript.
type ToolExtractor interface {
	Extract(ctx context.Context, transcript, videoTitle string) ([]ToolMention, error)
}

// Store is the durable result cache keyed by video ID. Get returns
// (nil, nil) on a miss or when the entry's TTL has lapsed.
type Store interface {
	Get(ctx context.Context, videoID string) (*Result, error)
	Put(ctx context.Context, res *Result) error
	Delete(ctx context.Context, videoID string) error
}

// fallbackNotes substitutes for the notes text when that branch fails but
// tool extraction succeeded.
const fallbackNotes = "_Lecture notes could not be generated for this video. " +
	"The transcript was processed and the tool list below is complete; " +
	"resubmit with force enabled to retry notes generation._"

// Orchestrator coordinates one processing run per video: cache lookup,
// transcript fetch, parallel notes + tool generation, merge, persist. All
// collaborators are injected; the orchestrator holds no other state than a
// single-flight group collapsing concurrent runs for the same video.
type Orchestrator struct {
	source TranscriptSource
	notes  NotesGenerator
	tools  ToolExtractor
	store  Store

	fetchTimeout time.Duration
	genTimeout   time.Duration

	flights singleflight.Group
}

// OrchestratorConfig wires an Orchestrator. Source, Notes, Tools, and Store
// are required; zero timeouts get conservative defaults.
type OrchestratorConfig struct {
	Source TranscriptSource
	Notes  NotesGenerator
	Tools  ToolExtractor
	Store  Store

	FetchTimeout      time.Duration // transcript fetch budget
	GenerationTimeout time.Duration // per generator branch
	PersistTimeout    time.Duration // cache write budget
}

// NewOrchestrator builds an Orchestrator from cfg.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 90 * time.Second
	}
	return &Orchestrator{
		source:       cfg.Source,
		notes:        cfg.Notes,
		tools:        cfg.Tools,
		store:        cfg.Store,
		fetchTimeout: cfg.FetchTimeout,
		genTimeout:   cfg.GenerationTimeout,
	}
}

// Process runs the pipeline for one video and returns its ordered event
// stream. The channel delivers at most one terminal event (complete or
// error) and is closed afterwards. Cancelling ctx stops event delivery but
// lets in-flight generation finish, bounded by the per-branch timeouts, so
// the cache write still lands for the next caller.
func (o *Orchestrator) Process(ctx context.Context, videoID string, force bool) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		o.run(ctx, videoID, force, out)
	}()
	return out
}

// emitFunc delivers one event to the caller; false means the caller is gone.
type emitFunc func(Event) bool

func (o *Orchestrator) run(ctx context.Context, videoID string, force bool, out chan<- Event) {
	metrics.ProcessRequests.Add(1)

	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !force {
		cached, err := o.store.Get(ctx, videoID)
		switch {
		case err != nil:
			// Read failures degrade to a miss; never fatal.
			slog.Warn("cache read failed, regenerating",
				slog.String("video_id", videoID), slog.Any("error", err))
			metrics.CacheMisses.Add(1)
		case cached != nil:
			metrics.CacheHits.Add(1)
			o.replay(cached, true, emit)
			return
		default:
			metrics.CacheMisses.Add(1)
		}
	}

	// Concurrent cache-miss callers for the same video collapse into one
	// generation; the extra callers replay the shared result. This avoids
	// duplicate paid API calls under a thundering first request.
	var live bool
	v, err, _ := o.flights.Do(videoID, func() (any, error) {
		live = true
		return o.generate(ctx, videoID, emit)
	})
	if err != nil {
		emit(ErrorEvent{Reason: err.Error()})
		return
	}
	res := v.(*Result)
	if !live {
		o.replay(res, false, emit)
		return
	}
	emit(CompleteEvent{FailedBranch: res.FailedBranch, ProcessingTime: res.ProcessingTime})
}

// replay emits a previously computed result as if freshly generated: the
// full notes text travels as a single chunk. notes_complete is withheld when
// the notes branch of the original run failed, matching the live stream.
func (o *Orchestrator) replay(res *Result, cacheHit bool, emit emitFunc) {
	if !emit(MetadataEvent{Meta: res.Meta, Transcript: res.Transcript}) {
		return
	}
	if res.Notes != "" {
		if !emit(ChunkEvent{Data: res.Notes}) {
			return
		}
	}
	if res.FailedBranch != BranchNotes {
		if !emit(NotesCompleteEvent{}) {
			return
		}
	}
	if !emit(ToolsEvent{Tools: res.Tools}) {
		return
	}
	emit(CompleteEvent{
		FailedBranch:   res.FailedBranch,
		CacheHit:       cacheHit,
		ProcessingTime: res.ProcessingTime,
	})
}

// generate runs fetch → fan-out → merge → persist. It emits progress events
// but never the terminal one; run owns that. Generation is detached from the
// caller's context so a dropped connection cannot abort it mid-flight — the
// per-branch timeouts bound how long the detached work may run.
func (o *Orchestrator) generate(ctx context.Context, videoID string, emit emitFunc) (*Result, error) {
	start := time.Now()
	dctx := context.WithoutCancel(ctx)

	fctx, cancelFetch := context.WithTimeout(dctx, o.fetchTimeout)
	tr, err := o.source.Fetch(fctx, videoID)
	cancelFetch()
	if err != nil {
		metrics.TranscriptErrors.Add(1)
		if !errors.Is(err, ErrTranscriptUnavailable) {
			err = fmt.Errorf("%w: %v", ErrTranscriptUnavailable, err)
		}
		return nil, err
	}

	emit(MetadataEvent{Meta: tr.Meta, Transcript: tr.FullText})
	emit(StatusEvent{Message: "generating"})

	gctx, cancelGen := context.WithTimeout(dctx, o.genTimeout)
	defer cancelGen()

	type toolsOut struct {
		tools []ToolMention
		err   error
	}
	toolsCh := make(chan toolsOut, 1)
	go func() {
		tools, terr := o.tools.Extract(gctx, tr.FullText, tr.Meta.Title)
		toolsCh <- toolsOut{tools, terr}
	}()

	var (
		sb       strings.Builder
		notesErr error
		toolsErr error
		toolList []ToolMention
	)

	deltas, err := o.notes.Generate(gctx, tr.FullText, tr.Meta.Title)
	if err != nil {
		notesErr = err
	}

	// Fan-in: forward notes deltas in generation order, deliver the tools
	// list whenever it is ready. A nil deltas channel blocks its case, so a
	// failed Generate leaves only the tools case live.
	notesDone := deltas == nil
	toolsDone := false
	for !notesDone || !toolsDone {
		select {
		case d, ok := <-deltas:
			if !ok {
				deltas = nil // disable this case
				notesDone = true
				if notesErr == nil {
					emit(NotesCompleteEvent{})
				}
				continue
			}
			if d.Err != nil {
				notesErr = d.Err
				continue
			}
			if notesErr == nil {
				sb.WriteString(d.Text)
				emit(ChunkEvent{Data: d.Text})
			}
		case t := <-toolsCh:
			toolsDone = true
			if t.err != nil {
				toolsErr = t.err
				continue
			}
			toolList = t.tools
			if toolList == nil {
				toolList = []ToolMention{}
			}
			emit(ToolsEvent{Tools: toolList})
		}
	}

	if notesErr != nil && toolsErr != nil {
		return nil, fmt.Errorf("%w: notes: %v; tools: %v",
			ErrBothGeneratorsFailed, notesErr, toolsErr)
	}

	res := &Result{
		VideoID:        videoID,
		Meta:           tr.Meta,
		Transcript:     tr.FullText,
		Notes:          sb.String(),
		Tools:          toolList,
		CreatedAt:      time.Now().UTC(),
		ProcessingTime: time.Since(start).Seconds(),
	}
	if res.Tools == nil {
		res.Tools = []ToolMention{}
	}

	switch {
	case notesErr != nil:
		slog.Warn("notes branch failed, substituting placeholder",
			slog.String("video_id", videoID), slog.Any("error", notesErr))
		res.Notes = fallbackNotes
		res.FailedBranch = BranchNotes
		// Deliver the placeholder to the live caller too, so the streamed
		// view and a later cache-hit replay show the same text.
		emit(ChunkEvent{Data: fallbackNotes})
	case toolsErr != nil:
		slog.Warn("tools branch failed, substituting empty list",
			slog.String("video_id", videoID), slog.Any("error", toolsErr))
		res.FailedBranch = BranchTools
		emit(ToolsEvent{Tools: res.Tools})
	}

	pctx, cancelPut := context.WithTimeout(dctx, 10*time.Second)
	defer cancelPut()
	if err := o.store.Put(pctx, res); err != nil {
		metrics.PersistErrors.Add(1)
		slog.Warn("cache write failed, result served uncached",
			slog.String("video_id", videoID), slog.Any("error", err))
	}

	slog.Info("processing complete",
		slog.String("video_id", videoID),
		slog.Int("notes_chars", len(res.Notes)),
		slog.Int("tools", len(res.Tools)),
		slog.String("failed_branch", res.FailedBranch),
		slog.Duration("elapsed", time.Since(start)))

	return res, nil
}
