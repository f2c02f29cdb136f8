package chat

import (
	"sync"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/worker"
)

// Session is one user's conversation. Every scripted step it schedules
// is owned by its scheduler and revoked by Close.
type Session struct {
	identity  string
	scheduler *worker.Scheduler

	mu       sync.Mutex
	messages []domain.ChatMessage
	thinking int
}

func newSession(identity string, scheduler *worker.Scheduler) *Session {
	return &Session{identity: identity, scheduler: scheduler}
}

// Identity returns the account that owns the session.
func (s *Session) Identity() string {
	return s.identity
}

// Messages returns a copy of the conversation, oldest first.
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.messages))
	for i, msg := range s.messages {
		msg.Timeline = append([]domain.TimelineEntry(nil), msg.Timeline...)
		out[i] = msg
	}
	return out
}

// Thinking reports whether a scripted reply is pending.
func (s *Session) Thinking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thinking > 0
}

// Pending returns the number of scheduled steps not yet run.
func (s *Session) Pending() int {
	return s.scheduler.Pending()
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	return s.scheduler.Closed()
}

// Close revokes every pending step and returns how many were dropped.
func (s *Session) Close() int {
	revoked := s.scheduler.Pending()
	s.scheduler.Close()
	s.mu.Lock()
	s.thinking = 0
	s.mu.Unlock()
	return revoked
}

func (s *Session) append(msg domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *Session) startThinking() {
	s.mu.Lock()
	s.thinking++
	s.mu.Unlock()
}

func (s *Session) stopThinking() {
	s.mu.Lock()
	if s.thinking > 0 {
		s.thinking--
	}
	s.mu.Unlock()
}
