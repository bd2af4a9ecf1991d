package llm

import (
	"context"
	"fmt"
	"sync"
)

// Reply is one canned provider response.
type Reply struct {
	Text string
	Err  error
}

// Scripted replays canned replies per role in order. Once a role's script
// is used up its last reply repeats. It records every request it receives.
type Scripted struct {
	mu       sync.Mutex
	scripts  map[string][]Reply
	next     map[string]int
	requests []Request
}

// NewScripted returns a provider replaying scripts keyed by role.
func NewScripted(scripts map[string][]Reply) *Scripted {
	copied := make(map[string][]Reply, len(scripts))
	for role, replies := range scripts {
		copied[role] = append([]Reply(nil), replies...)
	}
	return &Scripted{scripts: copied, next: make(map[string]int)}
}

// Texts builds a script of successful replies.
func Texts(texts ...string) []Reply {
	replies := make([]Reply, len(texts))
	for i, text := range texts {
		replies[i] = Reply{Text: text}
	}
	return replies
}

func (s *Scripted) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	replies := s.scripts[req.Role]
	if len(replies) == 0 {
		return "", &ProviderError{Kind: KindMalformed, Model: req.Model, Err: fmt.Errorf("no scripted reply for role %q", req.Role)}
	}
	i := s.next[req.Role]
	if i >= len(replies) {
		i = len(replies) - 1
	}
	s.next[req.Role]++
	return replies[i].Text, replies[i].Err
}

// Calls returns how many requests a role has issued.
func (s *Scripted) Calls(role string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.requests {
		if req.Role == role {
			n++
		}
	}
	return n
}

// Requests returns a copy of every request received, in order.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
