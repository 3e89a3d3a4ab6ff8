package workflow

import "context"

// Repository is the process-wide registry of workflow state. Mutations must
// be immediately visible to concurrent readers, and every returned workflow
// is a snapshot detached from the stored record.
type Repository interface {
	// Create stores a new workflow and returns its identifier, generating
	// one when the workflow carries none. It fails when the id is taken.
	Create(ctx context.Context, w *Workflow) (string, error)
	Get(ctx context.Context, id string) (*Workflow, error)
	// List returns snapshots in creation order.
	List(ctx context.Context) ([]*Workflow, error)
	// AppendResult atomically appends to the result log, updates the
	// per-role results map, and recomputes progress.
	AppendResult(ctx context.Context, id string, result TaskResult) error
	// SetStatus applies a status transition, rejecting illegal ones.
	// errorMessage is recorded only on the transition to FAILED.
	SetStatus(ctx context.Context, id string, status Status, errorMessage string) error
	// Results returns the append-only task result log in execution order.
	Results(ctx context.Context, id string) ([]TaskResult, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
