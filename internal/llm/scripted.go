package llm

import (
	"context"
	"fmt"
	"sync"
)

// Scripted replays canned responses in order. It backs offline runs and tests.
type Scripted struct {
	mu        sync.Mutex
	responses []Response
	errs      []error
	calls     []Request
}

// NewScripted returns a provider that answers with responses in order. The
// last response repeats once the script runs out.
func NewScripted(responses ...Response) *Scripted {
	return &Scripted{responses: responses}
}

// FailNext queues an error for the next call.
func (s *Scripted) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) Complete(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	if len(s.responses) == 0 {
		return nil, fmt.Errorf("scripted: no responses configured")
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return &resp, nil
}

// Calls returns every request received so far.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}
