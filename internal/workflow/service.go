package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/event"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/executor"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/cerr"
)

const serviceEventSource = "workflow-service"

// CreateRequest is a caller-supplied workflow definition.
type CreateRequest struct {
	WorkflowID  string         `json:"workflow_id,omitempty"`
	ProjectName string         `json:"project_name"`
	Description string         `json:"description"`
	Tasks       []Task         `json:"tasks"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ResultsView is the detailed-results response: the workflow snapshot plus
// its append-only task result log.
type ResultsView struct {
	WorkflowID   string       `json:"workflow_id"`
	Workflow     *Workflow    `json:"workflow"`
	AgentResults []TaskResult `json:"agent_results"`
}

// ExecutorStatus describes the agent backend as seen from this process.
type ExecutorStatus struct {
	Healthy bool            `json:"healthy"`
	Error   string          `json:"error,omitempty"`
	Stats   *executor.Stats `json:"stats,omitempty"`
}

// SystemStatus aggregates engine-wide state for the status endpoint.
type SystemStatus struct {
	Service       string         `json:"service"`
	Status        string         `json:"status"`
	Timestamp     time.Time      `json:"timestamp"`
	Workflows     map[Status]int `json:"workflows"`
	ActiveRunners int            `json:"active_runners"`
	Executor      ExecutorStatus `json:"executor"`
	Presets       []string       `json:"presets"`
}

// Service exposes the workflow lifecycle operations and owns the launching
// of runner goroutines.
type Service struct {
	// runCtx parents every workflow run so that a closed client connection
	// cannot cancel a run; only process shutdown does.
	runCtx     context.Context
	repo       Repository
	runner     *Runner
	supervisor *Supervisor
	presets    *PresetRegistry
	exec       executor.Executor
	bus        *event.EventBus
	logger     *slog.Logger
}

func NewService(
	runCtx context.Context,
	repo Repository,
	runner *Runner,
	supervisor *Supervisor,
	presets *PresetRegistry,
	exec executor.Executor,
	bus *event.EventBus,
	logger *slog.Logger,
) *Service {
	return &Service{
		runCtx:     runCtx,
		repo:       repo,
		runner:     runner,
		supervisor: supervisor,
		presets:    presets,
		exec:       exec,
		bus:        bus,
		logger:     logger,
	}
}

// CreateWorkflow validates and stores a new workflow, then starts its run
// in the background. The returned snapshot reflects the state at return
// time; the run may already have begun.
func (s *Service) CreateWorkflow(ctx context.Context, req *CreateRequest) (*Workflow, error) {
	if req.ProjectName == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "project_name is required", nil)
	}
	if err := validateRoles(req.Tasks); err != nil {
		return nil, err
	}

	id, err := s.repo.Create(ctx, &Workflow{
		ID:          req.WorkflowID,
		ProjectName: req.ProjectName,
		Description: req.Description,
		Tasks:       req.Tasks,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.WorkflowCreatedData{
		WorkflowID:  id,
		ProjectName: req.ProjectName,
		TaskCount:   len(req.Tasks),
	})
	s.logger.InfoContext(ctx, "workflow created",
		slog.String("workflow_id", id),
		slog.String("project_name", req.ProjectName),
		slog.Int("total_tasks", len(req.Tasks)),
	)

	s.launch(id)
	return s.repo.Get(ctx, id)
}

// CreateFromPreset materializes a named preset into a workflow definition
// and creates it like any other workflow.
func (s *Service) CreateFromPreset(ctx context.Context, presetName, projectName, requirements string) (*Workflow, error) {
	if projectName == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "project_name is required", nil)
	}
	if requirements == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "requirements is required", nil)
	}

	req, err := s.presets.Materialize(presetName, projectName, requirements)
	if err != nil {
		return nil, err
	}
	return s.CreateWorkflow(ctx, req)
}

func (s *Service) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetWorkflowResults(ctx context.Context, id string) (*ResultsView, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.repo.Results(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ResultsView{
		WorkflowID:   id,
		Workflow:     w,
		AgentResults: results,
	}, nil
}

func (s *Service) ListWorkflows(ctx context.Context) ([]Summary, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, len(list))
	for i, w := range list {
		summaries[i] = w.Summary()
	}
	return summaries, nil
}

// PauseWorkflow requests a pause. The transition is immediate; the running
// pass notices it at the top of its per-task loop, so an in-flight task
// still finishes and its result is recorded.
func (s *Service) PauseWorkflow(ctx context.Context, id string) error {
	if err := s.repo.SetStatus(ctx, id, StatusPaused, ""); err != nil {
		return err
	}

	s.publish(ctx, event.WorkflowPausedData{WorkflowID: id})
	s.logger.InfoContext(ctx, "workflow paused", slog.String("workflow_id", id))
	return nil
}

// ResumeWorkflow restarts a paused workflow with a fresh pass over the same
// schedule. Roles that already have results are not re-executed.
func (s *Service) ResumeWorkflow(ctx context.Context, id string) error {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if w.Status != StatusPaused {
		return cerr.NewError(cerr.FailedPrecondition, "Workflow is not paused", nil)
	}
	// The previous pass may still be draining its in-flight task; starting
	// another runner now could leave two passes alive.
	if s.supervisor.Running(id) {
		return cerr.NewError(cerr.FailedPrecondition, "workflow is still finishing its previous pass", nil)
	}

	// Concurrent resumes serialize here: only one wins the transition.
	if err := s.repo.SetStatus(ctx, id, StatusInProgress, ""); err != nil {
		return err
	}

	s.publish(ctx, event.WorkflowResumedData{WorkflowID: id})
	s.logger.InfoContext(ctx, "workflow resumed", slog.String("workflow_id", id))

	s.launch(id)
	return nil
}

// SystemStatus reports workflow counts, runner activity, and the health of
// the agent backend.
func (s *Service) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	presets := s.presets.List()
	presetNames := make([]string, len(presets))
	for i, p := range presets {
		presetNames[i] = p.Name
	}

	status := &SystemStatus{
		Service:       "agent-orchestrator",
		Status:        "healthy",
		Timestamp:     time.Now(),
		Workflows:     counts,
		ActiveRunners: s.supervisor.Active(),
		Executor:      ExecutorStatus{Healthy: true},
		Presets:       presetNames,
	}
	if err := s.exec.Healthy(ctx); err != nil {
		status.Status = "degraded"
		status.Executor.Healthy = false
		status.Executor.Error = err.Error()
	}
	if sp, ok := s.exec.(interface{ Stats() executor.Stats }); ok {
		stats := sp.Stats()
		status.Executor.Stats = &stats
	}
	return status, nil
}

// Presets exposes the preset registry to the HTTP layer.
func (s *Service) Presets() *PresetRegistry {
	return s.presets
}

func (s *Service) launch(id string) {
	if !s.supervisor.Launch(s.runCtx, id, func(ctx context.Context) {
		s.runner.Run(ctx, id)
	}) {
		s.logger.WarnContext(s.runCtx, "runner already active", slog.String("workflow_id", id))
	}
}

func (s *Service) publish(ctx context.Context, data any) {
	if err := s.bus.Publish(ctx, serviceEventSource, data); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", slog.String("error", err.Error()))
	}
}
