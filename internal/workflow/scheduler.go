package workflow

import (
	"fmt"
	"sort"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/cerr"
)

// Mode selects how the runner walks a workflow's task list.
type Mode string

const (
	// ModeHeuristic sorts the task list once by dependency count and
	// priority and walks it in a single pass. A task whose dependencies
	// are not satisfied when its turn comes is skipped and never retried,
	// even when a later task would have satisfied them.
	ModeHeuristic Mode = "heuristic"

	// ModeTopological repeatedly scans for tasks whose dependencies are
	// satisfied and runs them until none remain. Tasks that can never run
	// because of an unsatisfiable dependency fail the workflow with a
	// deadlock error.
	ModeTopological Mode = "topological"
)

// ParseMode parses a scheduler mode from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHeuristic:
		return ModeHeuristic, nil
	case ModeTopological, Mode(""):
		return ModeTopological, nil
	default:
		return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown scheduler mode: %s", s), nil)
	}
}

// Scheduler orders a workflow's task list and answers per-dispatch
// eligibility questions. It holds no per-workflow state; the completed-role
// set is threaded through by the runner.
type Scheduler struct {
	mode Mode
}

func NewScheduler(mode Mode) *Scheduler {
	return &Scheduler{mode: mode}
}

func (s *Scheduler) Mode() Mode {
	return s.mode
}

// Order returns the static execution order: ascending by dependency count,
// then descending by priority. The sort is stable, so tasks that tie keep
// their definition order.
func (s *Scheduler) Order(tasks []Task) []Task {
	ordered := make([]Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		if len(ordered[i].Dependencies) != len(ordered[j].Dependencies) {
			return len(ordered[i].Dependencies) < len(ordered[j].Dependencies)
		}
		return ordered[i].Priority > ordered[j].Priority
	})
	return ordered
}

// Eligible reports whether every dependency of task has completed.
func (s *Scheduler) Eligible(task Task, completed map[string]struct{}) bool {
	return len(s.Unmet(task, completed)) == 0
}

// Unmet returns the dependencies of task that have not completed yet, in
// declaration order.
func (s *Scheduler) Unmet(task Task, completed map[string]struct{}) []string {
	var unmet []string
	for _, dep := range task.Dependencies {
		if _, ok := completed[dep]; !ok {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}
