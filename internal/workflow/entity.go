package workflow

import "time"

// Status represents the lifecycle state of a workflow.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusPaused     Status = "PAUSED"
)

// IsTerminal reports whether s allows no further execution.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the transition from s to target is legal.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusInProgress
	case StatusInProgress:
		return target == StatusCompleted || target == StatusFailed || target == StatusPaused
	case StatusPaused:
		// A task that was already in flight when the pause landed may still
		// fail the workflow; completion always waits for an explicit resume.
		return target == StatusInProgress || target == StatusFailed
	default:
		return false
	}
}

// Task is a unit of work belonging to a workflow. AgentRole doubles as the
// dependency key, so roles must be unique within one workflow's task list.
type Task struct {
	AgentRole    string         `json:"agent_type"`
	Description  string         `json:"task"`
	Context      map[string]any `json:"context,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Priority     int            `json:"priority"`
}

// TaskOutput is the stored output of one successfully executed task.
type TaskOutput struct {
	Response       string  `json:"response"`
	Confidence     float64 `json:"confidence"`
	ProcessingTime float64 `json:"processing_time"`
}

// TaskResultStatusCompleted is the only status a logged result can carry;
// failed tasks abort the workflow instead of producing a result entry.
const TaskResultStatusCompleted = "completed"

// TaskResult is one entry in a workflow's append-only execution log.
type TaskResult struct {
	AgentRole      string  `json:"agent_type"`
	TaskID         string  `json:"task_id"`
	Response       string  `json:"response"`
	Confidence     float64 `json:"confidence"`
	ProcessingTime float64 `json:"processing_time"`
	Status         string  `json:"status"`
}

// Output converts the log entry into the form stored in Workflow.Results.
func (r TaskResult) Output() TaskOutput {
	return TaskOutput{
		Response:       r.Response,
		Confidence:     r.Confidence,
		ProcessingTime: r.ProcessingTime,
	}
}

// Workflow is one orchestration run: a fixed task list plus mutable
// execution state. The repository owns the canonical record; callers only
// ever see snapshots.
type Workflow struct {
	ID           string                `json:"workflow_id"`
	ProjectName  string                `json:"project_name"`
	Description  string                `json:"description"`
	Tasks        []Task                `json:"tasks"`
	Metadata     map[string]any        `json:"metadata,omitempty"`
	Status       Status                `json:"status"`
	Progress     float64               `json:"progress"`
	Results      map[string]TaskOutput `json:"results"`
	ResultLog    []TaskResult          `json:"-"`
	ErrorMessage string                `json:"error_message,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// Summary is the compact listing view of a workflow.
type Summary struct {
	ID          string    `json:"id"`
	ProjectName string    `json:"project_name"`
	Status      Status    `json:"status"`
	Progress    float64   `json:"progress"`
	StartedAt   time.Time `json:"started_at"`
}

// Summary returns the listing view of the workflow.
func (w *Workflow) Summary() Summary {
	return Summary{
		ID:          w.ID,
		ProjectName: w.ProjectName,
		Status:      w.Status,
		Progress:    w.Progress,
		StartedAt:   w.StartedAt,
	}
}

// CompletedRoles returns the set of agent roles that already have a result.
func (w *Workflow) CompletedRoles() map[string]struct{} {
	roles := make(map[string]struct{}, len(w.Results))
	for role := range w.Results {
		roles[role] = struct{}{}
	}
	return roles
}

// Clone returns a deep copy safe to hand to callers. Values inside task
// contexts and metadata are shared, not copied; they are treated as
// immutable once the workflow is created.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	clone := *w

	clone.Tasks = make([]Task, len(w.Tasks))
	for i, t := range w.Tasks {
		clone.Tasks[i] = t.clone()
	}

	if w.Metadata != nil {
		clone.Metadata = make(map[string]any, len(w.Metadata))
		for k, v := range w.Metadata {
			clone.Metadata[k] = v
		}
	}

	clone.Results = make(map[string]TaskOutput, len(w.Results))
	for role, output := range w.Results {
		clone.Results[role] = output
	}

	clone.ResultLog = make([]TaskResult, len(w.ResultLog))
	copy(clone.ResultLog, w.ResultLog)

	if w.CompletedAt != nil {
		completedAt := *w.CompletedAt
		clone.CompletedAt = &completedAt
	}
	return &clone
}

func (t Task) clone() Task {
	clone := t
	if t.Context != nil {
		clone.Context = make(map[string]any, len(t.Context))
		for k, v := range t.Context {
			clone.Context[k] = v
		}
	}
	if t.Dependencies != nil {
		clone.Dependencies = append([]string(nil), t.Dependencies...)
	}
	return clone
}
