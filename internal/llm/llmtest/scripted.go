// Package llmtest provides scripted extractors for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
)

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Text answers with s.
func Text(s string) Reply { return Reply{Text: s} }

// Fail answers with an AdapterError carrying status.
func Fail(status int, msg string) Reply {
	return Reply{Err: &llm.AdapterError{StatusCode: status, Err: errors.New(msg)}}
}

// RateLimited answers with a 429 and the given Retry-After.
func RateLimited(retryAfter time.Duration) Reply {
	return Reply{Err: &llm.AdapterError{StatusCode: 429, RetryAfter: retryAfter, Err: errors.New("rate limited")}}
}

// Call records one Extract invocation.
type Call struct {
	Prompt   string
	MimeType string
}

type rule struct {
	match   string
	replies []Reply
	next    int
}

// Scripted is an llm.Extractor whose answers are chosen by prompt content.
// Rules are checked in registration order; each rule plays its replies in
// sequence and repeats the last one.
type Scripted struct {
	name string

	mu       sync.Mutex
	rules    []*rule
	fallback *Reply
	calls    []Call
}

func New(name string) *Scripted {
	return &Scripted{name: name}
}

// On registers replies for prompts containing match.
func (s *Scripted) On(match string, replies ...Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &rule{match: match, replies: replies})
	return s
}

// Otherwise sets the reply for prompts no rule matches.
func (s *Scripted) Otherwise(r Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = &r
	return s
}

func (s *Scripted) Name() string { return s.name }

func (s *Scripted) Extract(ctx context.Context, prompt string, _ []byte, mimeType string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Prompt: prompt, MimeType: mimeType})
	reply := s.pick(prompt)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if reply.Err != nil {
		var ae *llm.AdapterError
		if errors.As(reply.Err, &ae) && ae.Provider == "" {
			cp := *ae
			cp.Provider = s.name
			return "", &cp
		}
		return "", reply.Err
	}
	return reply.Text, nil
}

func (s *Scripted) pick(prompt string) Reply {
	for _, r := range s.rules {
		if !strings.Contains(prompt, r.match) || len(r.replies) == 0 {
			continue
		}
		reply := r.replies[r.next]
		if r.next < len(r.replies)-1 {
			r.next++
		}
		return reply
	}
	if s.fallback != nil {
		return *s.fallback
	}
	return Reply{Err: &llm.AdapterError{Provider: s.name, Err: errors.New("no scripted reply")}}
}

// Calls returns a copy of the recorded calls.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of Extract calls so far.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

var _ llm.Extractor = (*Scripted)(nil)
