package workflow

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc"
)

// Supervisor tracks the live runner goroutine per workflow id, guaranteeing
// at most one active pass per workflow so a resume can never start a second
// concurrent runner.
type Supervisor struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      conc.WaitGroup
}

func NewSupervisor() *Supervisor {
	return &Supervisor{
		running: make(map[string]struct{}),
	}
}

// Launch starts fn in a supervised goroutine for the given workflow id.
// It returns false without starting anything when a pass for the id is
// already active.
func (s *Supervisor) Launch(ctx context.Context, id string, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if _, ok := s.running[id]; ok {
		s.mu.Unlock()
		return false
	}
	s.running[id] = struct{}{}
	s.mu.Unlock()

	s.wg.Go(func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, id)
			s.mu.Unlock()
		}()
		fn(ctx)
	})
	return true
}

// Running reports whether a pass is active for the workflow id.
func (s *Supervisor) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	return ok
}

// Active returns the number of currently running passes.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Wait blocks until every supervised goroutine has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
