package repositoryimpl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/workflow"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/cerr"
)

// MemoryRepository keeps all workflow state in process memory behind a
// single RWMutex. State lives from process start to process end.
type MemoryRepository struct {
	mu        sync.RWMutex
	workflows map[string]*workflow.Workflow
	order     []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		workflows: make(map[string]*workflow.Workflow),
	}
}

func (r *MemoryRepository) Create(_ context.Context, w *workflow.Workflow) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := w.Clone()
	if stored.ID == "" {
		stored.ID = ulid.Make().String()
	}
	if _, ok := r.workflows[stored.ID]; ok {
		return "", cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("workflow %s already exists", stored.ID), nil)
	}

	stored.Status = workflow.StatusPending
	stored.Progress = 0
	stored.Results = make(map[string]workflow.TaskOutput)
	stored.ResultLog = nil
	stored.ErrorMessage = ""
	stored.CompletedAt = nil
	if stored.StartedAt.IsZero() {
		stored.StartedAt = time.Now()
	}

	r.workflows[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	return stored.ID, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*workflow.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workflows[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "workflow not found", nil)
	}
	return w.Clone(), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*workflow.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*workflow.Workflow, 0, len(r.order))
	for _, id := range r.order {
		if w, ok := r.workflows[id]; ok {
			list = append(list, w.Clone())
		}
	}
	return list, nil
}

func (r *MemoryRepository) AppendResult(_ context.Context, id string, result workflow.TaskResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workflows[id]
	if !ok {
		return cerr.NewError(cerr.NotFound, "workflow not found", nil)
	}
	// A result may land while the workflow is paused (the task was already
	// in flight when the pause arrived), but never after a terminal state.
	if w.Status.IsTerminal() {
		return cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("cannot append result to %s workflow", w.Status), nil)
	}

	w.ResultLog = append(w.ResultLog, result)
	w.Results[result.AgentRole] = result.Output()
	if total := len(w.Tasks); total > 0 {
		w.Progress = float64(len(w.ResultLog)) / float64(total) * 100
	}
	return nil
}

func (r *MemoryRepository) SetStatus(_ context.Context, id string, status workflow.Status, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workflows[id]
	if !ok {
		return cerr.NewError(cerr.NotFound, "workflow not found", nil)
	}
	if !w.Status.CanTransitionTo(status) {
		return cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("cannot transition workflow from %s to %s", w.Status, status), nil)
	}

	w.Status = status
	switch status {
	case workflow.StatusCompleted:
		w.Progress = 100
		now := time.Now()
		w.CompletedAt = &now
	case workflow.StatusFailed:
		w.ErrorMessage = errorMessage
	}
	return nil
}

func (r *MemoryRepository) Results(_ context.Context, id string) ([]workflow.TaskResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workflows[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "workflow not found", nil)
	}
	results := make([]workflow.TaskResult, len(w.ResultLog))
	copy(results, w.ResultLog)
	return results, nil
}

func (r *MemoryRepository) CountByStatus(_ context.Context) (map[workflow.Status]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[workflow.Status]int)
	for _, w := range r.workflows {
		counts[w.Status]++
	}
	return counts, nil
}
