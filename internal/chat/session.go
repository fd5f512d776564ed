// Package chat runs an interactive conversation with a resurrected
// companion: the profile's generated system prompt plus a rolling message
// history, streamed one reply at a time.
package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/flaggdavid-source/lifeboat/internal/llm"
	"github.com/flaggdavid-source/lifeboat/internal/profile"
	"github.com/flaggdavid-source/lifeboat/internal/sanitize"
)

// ErrReplyInFlight is returned when Send is called while a reply is still
// streaming. Sessions are strictly one reply at a time.
var ErrReplyInFlight = errors.New("a reply is already in progress")

// ErrNoSystemPrompt is returned for profiles that have not been through
// prompt generation.
var ErrNoSystemPrompt = errors.New("profile has no system prompt")

// historyWindow bounds the rolling history, oldest turns dropped first.
const historyWindow = 40

const replyMaxTokens = 2048

// Session is one chat with one companion. Not safe for concurrent Sends.
type Session struct {
	client       llm.StreamingClient
	systemPrompt string

	mu      sync.Mutex
	busy    bool
	history []llm.Message
}

func NewSession(client llm.StreamingClient, p *profile.CompanionProfile) (*Session, error) {
	if p == nil || p.SystemPrompt == "" {
		return nil, ErrNoSystemPrompt
	}
	return &Session{client: client, systemPrompt: p.SystemPrompt}, nil
}

// Send streams the companion's reply to userText, invoking onDelta per
// fragment. Both turns are appended to the history once the reply
// completes; a failed call leaves the history untouched.
func (s *Session) Send(ctx context.Context, userText string, onDelta func(string)) (string, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return "", ErrReplyInFlight
	}
	s.busy = true
	messages := make([]llm.Message, len(s.history), len(s.history)+1)
	copy(messages, s.history)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	userMsg := llm.Message{Role: "user", Content: sanitize.Clean(userText)}
	messages = append(messages, userMsg)

	reply, err := s.client.Stream(ctx, s.systemPrompt, messages, replyMaxTokens, onDelta)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.history = append(s.history, userMsg, llm.Message{Role: "assistant", Content: reply})
	if len(s.history) > historyWindow {
		s.history = s.history[len(s.history)-historyWindow:]
	}
	s.mu.Unlock()

	return reply, nil
}

// History returns a copy of the rolling message history.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}
