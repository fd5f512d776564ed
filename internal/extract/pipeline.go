// Package extract orchestrates the multi-stage profile extraction run:
// flatten and sort the selected conversations, sample and chunk them within
// budget, extract per chunk, merge, compute local stats, extract the
// relationship timeline, and generate the companion system prompt.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flaggdavid-source/lifeboat/internal/llm"
	"github.com/flaggdavid-source/lifeboat/internal/parse"
	"github.com/flaggdavid-source/lifeboat/internal/profile"
	"github.com/flaggdavid-source/lifeboat/internal/sanitize"
	"github.com/flaggdavid-source/lifeboat/internal/scan"
	"github.com/flaggdavid-source/lifeboat/internal/sample"
)

var (
	// ErrBusy is returned when a run is started while one is in flight.
	// At most one extraction run is active per pipeline.
	ErrBusy = errors.New("extraction already running")

	// ErrCancelled is returned when the run was aborted by the user.
	// Partial per-chunk results are discarded, never committed.
	ErrCancelled = errors.New("extraction cancelled")
)

// State identifies the pipeline stage of an extraction run.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateChunking
	StateExtracting
	StateMerging
	StateStatsComputed
	StateTimelineExtracting
	StatePromptGenerating
	StateComplete
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateChunking:
		return "chunking"
	case StateExtracting:
		return "extracting"
	case StateMerging:
		return "merging"
	case StateStatsComputed:
		return "stats_computed"
	case StateTimelineExtracting:
		return "timeline_extracting"
	case StatePromptGenerating:
		return "prompt_generating"
	case StateComplete:
		return "complete"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress is a snapshot of the run state. ChunkIndex/ChunkCount are only
// meaningful while extracting.
type Progress struct {
	State      State  `json:"-"`
	StateName  string `json:"state"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkCount int    `json:"chunk_count"`
}

// Completion token budgets per call kind.
const (
	extractMaxTokens  = 8192
	mergeMaxTokens    = 8192
	timelineMaxTokens = 4096
	promptMaxTokens   = 8192
)

// Pipeline runs extractions. One run at a time; shared mutable state is
// owned by the active run and guarded by the busy flag.
type Pipeline struct {
	llm    llm.Client
	budget sample.Budget
	logger *slog.Logger

	// OnProgress, when set, observes every state transition. Called from
	// the run's goroutine.
	OnProgress func(Progress)

	mu       sync.Mutex
	running  bool
	progress Progress
	aborted  atomic.Bool
}

func New(client llm.Client, budget sample.Budget, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		llm:      client,
		budget:   budget,
		logger:   logger,
		progress: Progress{State: StateIdle, StateName: StateIdle.String()},
	}
}

// Status returns the current progress snapshot.
func (p *Pipeline) Status() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Cancel requests a cooperative abort. The in-flight provider call is not
// interrupted; the run stops before starting the next chunk.
func (p *Pipeline) Cancel() {
	p.aborted.Store(true)
}

func (p *Pipeline) setState(s State, chunkIdx, chunkCount int) {
	p.mu.Lock()
	p.progress = Progress{State: s, StateName: s.String(), ChunkIndex: chunkIdx, ChunkCount: chunkCount}
	snapshot := p.progress
	p.mu.Unlock()
	if p.OnProgress != nil {
		p.OnProgress(snapshot)
	}
}

// Run executes one extraction over the selected conversations. Any call
// failure aborts the run and surfaces the error verbatim; partial results
// are discarded.
func (p *Pipeline) Run(ctx context.Context, convs []parse.Conversation) (*profile.CompanionProfile, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	p.running = true
	p.mu.Unlock()
	p.aborted.Store(false)

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	result, err := p.run(ctx, convs)
	switch {
	case errors.Is(err, ErrCancelled):
		p.setState(StateAborted, 0, 0)
	case err != nil:
		p.setState(StateFailed, 0, 0)
	default:
		p.setState(StateComplete, 0, 0)
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, convs []parse.Conversation) (*profile.CompanionProfile, error) {
	p.setState(StatePreparing, 0, 0)

	msgs := flatten(convs)
	if len(msgs) == 0 {
		return nil, parse.ErrNoMessagesFound
	}

	p.setState(StateChunking, 0, 0)
	chunks, sampled := sample.BuildChunks(msgs, p.budget)
	p.logger.Info("corpus chunked",
		"messages", len(msgs),
		"conversations", len(convs),
		"chunks", len(chunks),
		"sampled", sampled,
	)

	partials := make([]*profile.CompanionProfile, 0, len(chunks))
	for i, chunk := range chunks {
		if err := p.checkCancel(ctx); err != nil {
			return nil, err
		}
		p.setState(StateExtracting, i+1, len(chunks))

		part, err := p.extractChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("extract chunk %d/%d: %w", i+1, len(chunks), err)
		}
		partials = append(partials, part)
	}

	var base *profile.CompanionProfile
	if len(partials) == 1 {
		base = partials[0]
	} else {
		if err := p.checkCancel(ctx); err != nil {
			return nil, err
		}
		p.setState(StateMerging, 0, len(chunks))
		merged, err := p.merge(ctx, partials)
		if err != nil {
			return nil, fmt.Errorf("merge profiles: %w", err)
		}
		base = merged
	}

	// Stats are local ground truth: computed from the raw message list,
	// attached after the model calls so nothing can overwrite them.
	base.Stats = ComputeStats(msgs)
	base.SourceMessages = len(msgs)
	base.SourceConversations = len(convs)
	p.setState(StateStatsComputed, 0, len(chunks))

	if err := p.checkCancel(ctx); err != nil {
		return nil, err
	}
	p.setState(StateTimelineExtracting, 0, len(chunks))
	timeline, rawTimeline, err := p.extractTimeline(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("extract timeline: %w", err)
	}
	base.RelationshipTimeline = timeline
	if rawTimeline != "" {
		if base.RawNotes != "" {
			base.RawNotes += "\n\n"
		}
		base.RawNotes += "unparsed timeline reply:\n" + rawTimeline
	}

	if err := p.checkCancel(ctx); err != nil {
		return nil, err
	}
	p.setState(StatePromptGenerating, 0, len(chunks))
	prompt, err := p.generatePrompt(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("generate system prompt: %w", err)
	}
	base.SystemPrompt = prompt
	base.ExtractedAt = time.Now().UTC()

	// Post-generation scan is informational only: findings are logged,
	// never block the run.
	for _, f := range scan.Scan(prompt) {
		p.logger.Warn("injection pattern in generated prompt",
			"pattern", f.Pattern,
			"matched", f.Matched,
		)
	}

	return base, nil
}

func (p *Pipeline) checkCancel(ctx context.Context) error {
	if p.aborted.Load() {
		return ErrCancelled
	}
	select {
	case <-ctx.Done():
		return ErrCancelled
	default:
		return nil
	}
}

// extractChunk issues one extraction call for a sanitized, boundary-framed
// chunk and decodes the reply permissively. An unparseable reply becomes a
// raw-notes profile rather than a failure.
func (p *Pipeline) extractChunk(ctx context.Context, chunk string) (*profile.CompanionProfile, error) {
	userPrompt := fmt.Sprintf(extractionUserPrompt, boundaryOpen, sanitize.Clean(chunk), boundaryClose)

	raw, err := p.llm.Complete(ctx, extractionSystemPrompt, []llm.Message{
		{Role: "user", Content: userPrompt},
	}, extractMaxTokens)
	if err != nil {
		return nil, err
	}

	var part profile.CompanionProfile
	if !decodeModelJSON(raw, &part) {
		p.logger.Warn("unparseable extraction reply, keeping raw text", "len", len(raw))
		return &profile.CompanionProfile{RawNotes: raw}, nil
	}
	return &part, nil
}

func (p *Pipeline) merge(ctx context.Context, partials []*profile.CompanionProfile) (*profile.CompanionProfile, error) {
	serialized, err := json.Marshal(partials)
	if err != nil {
		return nil, fmt.Errorf("marshal partials: %w", err)
	}

	raw, err := p.llm.Complete(ctx, mergeSystemPrompt, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(mergeUserPrompt, len(partials), serialized)},
	}, mergeMaxTokens)
	if err != nil {
		return nil, err
	}

	var merged profile.CompanionProfile
	if !decodeModelJSON(raw, &merged) {
		p.logger.Warn("unparseable merge reply, keeping raw text", "len", len(raw))
		return &profile.CompanionProfile{RawNotes: raw}, nil
	}
	return &merged, nil
}

// extractTimeline runs the smaller-context timeline call over a
// representative subset: first and last chunk when three or more exist,
// otherwise everything. An unparseable reply yields no phases and the raw
// text instead, so the caller can keep it in the raw-notes escape hatch.
func (p *Pipeline) extractTimeline(ctx context.Context, chunks []string) ([]profile.TimelinePhase, string, error) {
	var subset string
	if len(chunks) >= 3 {
		subset = chunks[0] + "\n\n" + sample.Marker("later period") + "\n\n" + chunks[len(chunks)-1]
	} else {
		for i, c := range chunks {
			if i > 0 {
				subset += "\n\n"
			}
			subset += c
		}
	}

	userPrompt := fmt.Sprintf(timelineUserPrompt, boundaryOpen, sanitize.Clean(subset), boundaryClose)
	raw, err := p.llm.Complete(ctx, timelineSystemPrompt, []llm.Message{
		{Role: "user", Content: userPrompt},
	}, timelineMaxTokens)
	if err != nil {
		return nil, "", err
	}

	var phases []profile.TimelinePhase
	if !decodeModelJSON(raw, &phases) {
		p.logger.Warn("unparseable timeline reply, keeping raw text", "len", len(raw))
		return nil, raw, nil
	}
	return phases, "", nil
}

func (p *Pipeline) generatePrompt(ctx context.Context, base *profile.CompanionProfile) (string, error) {
	serialized, err := json.Marshal(base)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	return p.llm.Complete(ctx, promptGenSystemPrompt, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(promptGenUserPrompt, serialized)},
	}, promptMaxTokens)
}

// flatten merges the selected conversations into one chronologically
// ordered message stream. Messages with unknown timestamps keep their
// positions within the combined stream.
func flatten(convs []parse.Conversation) []parse.Message {
	var msgs []parse.Message
	for _, c := range convs {
		msgs = append(msgs, c.Messages...)
	}
	parse.SortChronological(msgs)
	return msgs
}
