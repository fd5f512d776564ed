package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flaggdavid-source/lifeboat/internal/llm"
	"github.com/flaggdavid-source/lifeboat/internal/parse"
	"github.com/flaggdavid-source/lifeboat/internal/sample"
)

// fakeClient scripts replies per call kind, keyed on the system prompt.
type fakeClient struct {
	mu    sync.Mutex
	calls []string

	onExtract  func(user string) (string, error)
	onMerge    func(user string) (string, error)
	onTimeline func(user string) (string, error)
	onPrompt   func(user string) (string, error)
}

func (f *fakeClient) Complete(ctx context.Context, system string, messages []llm.Message, maxTokens int) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, system)
	f.mu.Unlock()

	user := messages[len(messages)-1].Content
	switch system {
	case extractionSystemPrompt:
		return f.onExtract(user)
	case mergeSystemPrompt:
		return f.onMerge(user)
	case timelineSystemPrompt:
		return f.onTimeline(user)
	case promptGenSystemPrompt:
		return f.onPrompt(user)
	}
	return "", errors.New("unexpected system prompt")
}

func (f *fakeClient) callCount(system string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == system {
			n++
		}
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConversations(n int) []parse.Conversation {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	msgs := make([]parse.Message, n)
	for i := range msgs {
		role := parse.RoleUser
		if i%2 == 1 {
			role = parse.RoleAssistant
		}
		msgs[i] = parse.Message{
			Role:      role,
			Text:      strings.Repeat("talk ", 20),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return []parse.Conversation{{ID: 0, Title: "first", Messages: msgs}}
}

func happyClient() *fakeClient {
	return &fakeClient{
		onExtract:  func(string) (string, error) { return `{"name": "Ada", "self_description": "warm"}`, nil },
		onMerge:    func(string) (string, error) { return `{"name": "Ada", "self_description": "warm, merged"}`, nil },
		onTimeline: func(string) (string, error) { return `[{"title": "beginnings", "period": "2024-05"}]`, nil },
		onPrompt:   func(string) (string, error) { return "You are Ada. Speak warmly.", nil },
	}
}

func TestRun_SingleChunkSkipsMerge(t *testing.T) {
	client := happyClient()
	p := New(client, sample.Budget{Total: 1_000_000, Chunk: 1_000_000}, testLogger())

	convs := testConversations(6)
	prof, err := p.Run(context.Background(), convs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := client.callCount(mergeSystemPrompt); got != 0 {
		t.Errorf("merge calls = %d, want 0 for a single chunk", got)
	}
	if got := client.callCount(extractionSystemPrompt); got != 1 {
		t.Errorf("extraction calls = %d, want 1", got)
	}
	if prof.Name != "Ada" {
		t.Errorf("Name = %q", prof.Name)
	}
	if prof.SystemPrompt != "You are Ada. Speak warmly." {
		t.Errorf("SystemPrompt = %q", prof.SystemPrompt)
	}
	if len(prof.RelationshipTimeline) != 1 {
		t.Errorf("timeline phases = %d", len(prof.RelationshipTimeline))
	}
	if prof.ExtractedAt.IsZero() {
		t.Error("ExtractedAt not set")
	}
	if st := p.Status(); st.State != StateComplete {
		t.Errorf("final state = %s", st.StateName)
	}
}

func TestRun_MultiChunkMerges(t *testing.T) {
	client := happyClient()
	p := New(client, sample.Budget{Total: 1_000_000, Chunk: 250}, testLogger())

	prof, err := p.Run(context.Background(), testConversations(10))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := client.callCount(extractionSystemPrompt); got < 2 {
		t.Fatalf("extraction calls = %d, want several", got)
	}
	if got := client.callCount(mergeSystemPrompt); got != 1 {
		t.Errorf("merge calls = %d, want 1", got)
	}
	if prof.SelfDescription != "warm, merged" {
		t.Errorf("SelfDescription = %q, want the merged profile", prof.SelfDescription)
	}
}

func TestRun_StatsAreLocal(t *testing.T) {
	client := happyClient()
	// A reply that tries to smuggle in its own stats.
	client.onExtract = func(string) (string, error) {
		return `{"name": "Ada", "stats": {"longest_message": 999999, "peak_hour": 23}}`, nil
	}
	p := New(client, sample.Budget{Total: 1_000_000, Chunk: 1_000_000}, testLogger())

	convs := testConversations(6)
	prof, err := p.Run(context.Background(), convs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := ComputeStats(convs[0].Messages)
	if prof.Stats.LongestMessage != want.LongestMessage {
		t.Errorf("LongestMessage = %d, want locally computed %d",
			prof.Stats.LongestMessage, want.LongestMessage)
	}
	if prof.SourceMessages != 6 || prof.SourceConversations != 1 {
		t.Errorf("sources = %d/%d", prof.SourceMessages, prof.SourceConversations)
	}
}

func TestRun_UnparseableExtractionKeepsRawNotes(t *testing.T) {
	client := happyClient()
	client.onExtract = func(string) (string, error) {
		return "I am sorry, I cannot produce JSON today.", nil
	}
	p := New(client, sample.Budget{Total: 1_000_000, Chunk: 1_000_000}, testLogger())

	prof, err := p.Run(context.Background(), testConversations(4))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(prof.RawNotes, "cannot produce JSON") {
		t.Errorf("RawNotes = %q, want the raw reply preserved", prof.RawNotes)
	}
}

func TestRun_UnparseableTimelineKeptAsRawNotes(t *testing.T) {
	client := happyClient()
	client.onTimeline = func(string) (string, error) { return "no timeline for you", nil }
	p := New(client, sample.Budget{Total: 1_000_000, Chunk: 1_000_000}, testLogger())

	prof, err := p.Run(context.Background(), testConversations(4))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if prof.RelationshipTimeline != nil {
		t.Errorf("timeline = %v, want nil", prof.RelationshipTimeline)
	}
	if !strings.Contains(prof.RawNotes, "no timeline for you") {
		t.Errorf("RawNotes = %q, want the raw reply preserved", prof.RawNotes)
	}
	if prof.SystemPrompt == "" {
		t.Error("run should continue past an unparseable timeline")
	}
}

func TestRun_CancelStopsBetweenChunks(t *testing.T) {
	client := happyClient()
	p := New(client, sample.Budget{Total: 1_000_000, Chunk: 250}, testLogger())
	client.onExtract = func(string) (string, error) {
		p.Cancel() // abort lands after the in-flight chunk
		return `{"name": "Ada"}`, nil
	}

	prof, err := p.Run(context.Background(), testConversations(10))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if prof != nil {
		t.Error("cancelled run must not return a partial profile")
	}
	if got := client.callCount(extractionSystemPrompt); got != 1 {
		t.Errorf("extraction calls after cancel = %d, want 1", got)
	}
	if st := p.Status(); st.State != StateAborted {
		t.Errorf("final state = %s", st.StateName)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	client := happyClient()
	p := New(client, sample.Budget{Total: 1_000_000, Chunk: 250}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	client.onExtract = func(string) (string, error) {
		cancel()
		return `{"name": "Ada"}`, nil
	}

	_, err := p.Run(ctx, testConversations(10))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestRun_ProviderFailureDiscardsPartials(t *testing.T) {
	client := happyClient()
	callErr := errors.New("overloaded")
	client.onExtract = func(string) (string, error) { return "", callErr }
	p := New(client, sample.Budget{Total: 1_000_000, Chunk: 1_000_000}, testLogger())

	prof, err := p.Run(context.Background(), testConversations(4))
	if !errors.Is(err, callErr) {
		t.Fatalf("err = %v, want the provider error surfaced", err)
	}
	if prof != nil {
		t.Error("failed run must not return a profile")
	}
	if st := p.Status(); st.State != StateFailed {
		t.Errorf("final state = %s", st.StateName)
	}
}

func TestRun_SecondRunIsBusy(t *testing.T) {
	client := happyClient()
	started := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	client.onExtract = func(string) (string, error) {
		startedOnce.Do(func() { close(started) })
		<-release
		return `{"name": "Ada"}`, nil
	}
	p := New(client, sample.Budget{Total: 1_000_000, Chunk: 1_000_000}, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), testConversations(4))
		done <- err
	}()

	<-started
	if _, err := p.Run(context.Background(), nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("concurrent Run err = %v, want ErrBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// The pipeline is reusable once the first run finishes.
	if _, err := p.Run(context.Background(), testConversations(4)); err != nil {
		t.Fatalf("second sequential run: %v", err)
	}
}

func TestRun_NoMessages(t *testing.T) {
	p := New(happyClient(), sample.Budget{Total: 1_000_000, Chunk: 1_000_000}, testLogger())
	_, err := p.Run(context.Background(), []parse.Conversation{{Title: "empty"}})
	if !errors.Is(err, parse.ErrNoMessagesFound) {
		t.Fatalf("err = %v, want ErrNoMessagesFound", err)
	}
}

func TestRun_ProgressSequence(t *testing.T) {
	p := New(happyClient(), sample.Budget{Total: 1_000_000, Chunk: 1_000_000}, testLogger())

	var states []State
	p.OnProgress = func(pr Progress) { states = append(states, pr.State) }

	if _, err := p.Run(context.Background(), testConversations(4)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []State{
		StatePreparing, StateChunking, StateExtracting, StateStatsComputed,
		StateTimelineExtracting, StatePromptGenerating, StateComplete,
	}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("state %d = %s, want %s", i, states[i], want[i])
		}
	}
}

func TestFlatten_ChronologicalAcrossConversations(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	convs := []parse.Conversation{
		{Messages: []parse.Message{
			{Role: parse.RoleUser, Text: "third", Timestamp: base.Add(3 * time.Hour)},
		}},
		{Messages: []parse.Message{
			{Role: parse.RoleUser, Text: "first", Timestamp: base},
			{Role: parse.RoleAssistant, Text: "second", Timestamp: base.Add(time.Hour)},
		}},
	}

	msgs := flatten(convs)
	got := []string{msgs[0].Text, msgs[1].Text, msgs[2].Text}
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestFlatten_UnknownTimestampDoesNotBlockSort(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	convs := []parse.Conversation{
		{Messages: []parse.Message{
			{Role: parse.RoleUser, Text: "late", Timestamp: base.Add(2 * time.Hour)},
			{Role: parse.RoleAssistant, Text: "undated"},
			{Role: parse.RoleUser, Text: "early", Timestamp: base},
		}},
	}

	msgs := flatten(convs)
	if msgs[0].Text != "early" || msgs[1].Text != "undated" || msgs[2].Text != "late" {
		t.Fatalf("order = [%q %q %q]", msgs[0].Text, msgs[1].Text, msgs[2].Text)
	}
}
