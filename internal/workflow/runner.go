package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/event"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/executor"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/panicerr"
)

const runnerEventSource = "workflow-runner"

// Runner drives one workflow end to end: it walks the scheduled task list,
// re-checks eligibility and pause state before every dispatch, invokes the
// agent executor, and records results and terminal transitions.
type Runner struct {
	repo      Repository
	executor  executor.Executor
	scheduler *Scheduler
	bus       *event.EventBus
	logger    *slog.Logger
}

func NewRunner(repo Repository, exec executor.Executor, scheduler *Scheduler, bus *event.EventBus, logger *slog.Logger) *Runner {
	return &Runner{
		repo:      repo,
		executor:  exec,
		scheduler: scheduler,
		bus:       bus,
		logger:    logger,
	}
}

// Run executes one pass over the workflow's schedule. Panics and unexpected
// store errors are confined to this workflow: they mark it FAILED instead
// of crashing the process or touching other workflows.
func (r *Runner) Run(ctx context.Context, id string) {
	err := panicerr.SafeContext(func(ctx context.Context) error {
		return r.run(ctx, id)
	})(ctx)
	if err == nil {
		return
	}

	r.logger.ErrorContext(ctx, "workflow run aborted",
		slog.String("workflow_id", id),
		slog.String("error", err.Error()),
	)
	r.fail(ctx, id, "", err.Error())
}

func (r *Runner) run(ctx context.Context, id string) error {
	w, err := r.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if w.Status.IsTerminal() {
		return nil
	}
	// A fresh run starts from PENDING; resume passes are already flipped to
	// IN_PROGRESS by the resume operation.
	if w.Status == StatusPending {
		if err := r.repo.SetStatus(ctx, id, StatusInProgress, ""); err != nil {
			return err
		}
	}

	ordered := r.scheduler.Order(w.Tasks)
	completed := w.CompletedRoles()

	r.logger.InfoContext(ctx, "starting workflow pass",
		slog.String("workflow_id", id),
		slog.Int("total_tasks", len(ordered)),
		slog.Int("completed_tasks", len(completed)),
		slog.String("mode", string(r.scheduler.Mode())),
	)

	if r.scheduler.Mode() == ModeHeuristic {
		return r.runHeuristic(ctx, id, ordered, completed)
	}
	return r.runTopological(ctx, id, ordered, completed)
}

// runHeuristic walks the precomputed order exactly once. Tasks whose
// dependencies are unsatisfied when their turn comes are skipped for the
// rest of the run, even when a later task would have satisfied them.
func (r *Runner) runHeuristic(ctx context.Context, id string, ordered []Task, completed map[string]struct{}) error {
	for _, t := range ordered {
		if _, done := completed[t.AgentRole]; done {
			continue
		}

		w, err := r.checkRunnable(ctx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return nil
		}

		if unmet := r.scheduler.Unmet(t, completed); len(unmet) > 0 {
			r.skip(ctx, id, t, unmet)
			continue
		}

		ok, err := r.execute(ctx, w, t, completed)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	return r.complete(ctx, id, completed)
}

// runTopological repeatedly scans for tasks whose dependencies are
// satisfied and executes them, deferring the rest to the next round. When a
// full round makes no progress the remaining tasks can never run and the
// workflow fails.
func (r *Runner) runTopological(ctx context.Context, id string, ordered []Task, completed map[string]struct{}) error {
	pending := make([]Task, 0, len(ordered))
	for _, t := range ordered {
		if _, done := completed[t.AgentRole]; !done {
			pending = append(pending, t)
		}
	}

	for len(pending) > 0 {
		progressed := false
		var blocked []Task

		for _, t := range pending {
			w, err := r.checkRunnable(ctx, id)
			if err != nil {
				return err
			}
			if w == nil {
				return nil
			}

			if len(r.scheduler.Unmet(t, completed)) > 0 {
				blocked = append(blocked, t)
				continue
			}

			ok, err := r.execute(ctx, w, t, completed)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			progressed = true
		}

		if !progressed {
			roles := make([]string, len(blocked))
			for i, t := range blocked {
				roles[i] = t.AgentRole
			}
			msg := fmt.Sprintf("deadlock detected: tasks can never be scheduled: %s", strings.Join(roles, ", "))
			r.fail(ctx, id, "", msg)
			return nil
		}
		pending = blocked
	}
	return r.complete(ctx, id, completed)
}

// checkRunnable returns a fresh snapshot when the pass may continue, or nil
// when it must halt: the run context is gone, the workflow was paused, or
// it already reached a terminal state. Pause is only ever detected here, at
// the top of the per-task loop; an in-flight executor call is never
// interrupted.
func (r *Runner) checkRunnable(ctx context.Context, id string) (*Workflow, error) {
	if ctx.Err() != nil {
		r.logger.InfoContext(ctx, "workflow run canceled", slog.String("workflow_id", id))
		return nil, nil
	}

	w, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case w.Status == StatusPaused:
		r.logger.InfoContext(ctx, "workflow paused", slog.String("workflow_id", id))
		return nil, nil
	case w.Status.IsTerminal():
		return nil, nil
	}
	return w, nil
}

// execute dispatches one eligible task. It returns false when the pass must
// halt because the workflow failed; an error return means the store itself
// misbehaved and the caller aborts the pass.
func (r *Runner) execute(ctx context.Context, w *Workflow, t Task, completed map[string]struct{}) (bool, error) {
	taskID := fmt.Sprintf("%s_%s_%d", w.ID, t.AgentRole, time.Now().Unix())

	// Inject the accumulated results into a per-dispatch copy of the task
	// context; the stored task definition stays untouched so later passes
	// see a fresh snapshot.
	taskContext := make(map[string]any, len(t.Context)+1)
	for k, v := range t.Context {
		taskContext[k] = v
	}
	taskContext["previous_results"] = w.Results

	result, err := r.executor.Execute(ctx, &executor.Request{
		AgentRole: t.AgentRole,
		Task:      t.Description,
		Context:   taskContext,
	})
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown cancellation, not an executor verdict.
			r.logger.InfoContext(ctx, "workflow run canceled during task",
				slog.String("workflow_id", w.ID),
				slog.String("agent_type", t.AgentRole),
			)
			return false, nil
		}
		r.fail(ctx, w.ID, t.AgentRole, fmt.Sprintf("Task %s failed: %v", t.AgentRole, err))
		return false, nil
	}

	taskResult := TaskResult{
		AgentRole:      t.AgentRole,
		TaskID:         taskID,
		Response:       result.Response,
		Confidence:     result.Confidence,
		ProcessingTime: result.ProcessingTime,
		Status:         TaskResultStatusCompleted,
	}
	if err := r.repo.AppendResult(ctx, w.ID, taskResult); err != nil {
		return false, err
	}
	completed[t.AgentRole] = struct{}{}

	r.publish(ctx, event.TaskCompletedData{
		WorkflowID:     w.ID,
		TaskID:         taskID,
		AgentRole:      t.AgentRole,
		Confidence:     result.Confidence,
		ProcessingTime: result.ProcessingTime,
	})
	r.logger.InfoContext(ctx, "completed task",
		slog.String("workflow_id", w.ID),
		slog.String("agent_type", t.AgentRole),
		slog.String("task_id", taskID),
	)
	return true, nil
}

// skip records a dependency skip. Not an error: the run continues and the
// task is never retried within this pass.
func (r *Runner) skip(ctx context.Context, id string, t Task, unmet []string) {
	r.logger.WarnContext(ctx, "dependencies not met for task",
		slog.String("workflow_id", id),
		slog.String("agent_type", t.AgentRole),
		slog.String("unmet", strings.Join(unmet, ", ")),
	)
	r.publish(ctx, event.TaskSkippedData{
		WorkflowID:        id,
		AgentRole:         t.AgentRole,
		UnmetDependencies: unmet,
	})
}

// complete marks the workflow COMPLETED unless a pause landed during the
// final task, in which case the workflow stays paused until resumed.
func (r *Runner) complete(ctx context.Context, id string, completed map[string]struct{}) error {
	w, err := r.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if w.Status != StatusInProgress {
		return nil
	}
	if err := r.repo.SetStatus(ctx, id, StatusCompleted, ""); err != nil {
		// Lost the race against a concurrent pause; leave it paused.
		r.logger.InfoContext(ctx, "workflow not completed",
			slog.String("workflow_id", id),
			slog.String("error", err.Error()),
		)
		return nil
	}

	r.publish(ctx, event.WorkflowCompletedData{
		WorkflowID:     id,
		CompletedTasks: len(completed),
		TotalTasks:     len(w.Tasks),
		Progress:       100,
	})
	r.logger.InfoContext(ctx, "workflow completed",
		slog.String("workflow_id", id),
		slog.Int("completed_tasks", len(completed)),
		slog.Int("total_tasks", len(w.Tasks)),
	)
	return nil
}

// fail transitions the workflow to FAILED with the given message. Best
// effort: a workflow that is already terminal stays as it is.
func (r *Runner) fail(ctx context.Context, id, agentRole, msg string) {
	if err := r.repo.SetStatus(ctx, id, StatusFailed, msg); err != nil {
		r.logger.ErrorContext(ctx, "failed to record workflow failure",
			slog.String("workflow_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	r.publish(ctx, event.WorkflowFailedData{
		WorkflowID:   id,
		AgentRole:    agentRole,
		ErrorMessage: msg,
	})
	r.logger.ErrorContext(ctx, "workflow failed",
		slog.String("workflow_id", id),
		slog.String("agent_type", agentRole),
		slog.String("error", msg),
	)
}

func (r *Runner) publish(ctx context.Context, data any) {
	if err := r.bus.Publish(ctx, runnerEventSource, data); err != nil {
		r.logger.WarnContext(ctx, "failed to publish event", slog.String("error", err.Error()))
	}
}
