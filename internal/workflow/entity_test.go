package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusFailed, false},
		{StatusPending, StatusPaused, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusPaused, true},
		{StatusInProgress, StatusPending, false},
		{StatusPaused, StatusInProgress, true},
		{StatusPaused, StatusFailed, true},
		{StatusPaused, StatusCompleted, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusInProgress, false},
		{StatusFailed, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.False(t, StatusPaused.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestWorkflow_Clone(t *testing.T) {
	completedAt := time.Now()
	original := &Workflow{
		ID:          "wf-1",
		ProjectName: "demo",
		Tasks: []Task{
			{
				AgentRole:    "product_manager",
				Description:  "plan",
				Context:      map[string]any{"key": "value"},
				Dependencies: nil,
				Priority:     5,
			},
			{
				AgentRole:    "software_developer",
				Description:  "build",
				Dependencies: []string{"product_manager"},
				Priority:     3,
			},
		},
		Metadata: map[string]any{"workflow_type": "sdlc"},
		Status:   StatusCompleted,
		Progress: 100,
		Results: map[string]TaskOutput{
			"product_manager": {Response: "done", Confidence: 0.9},
		},
		ResultLog: []TaskResult{
			{AgentRole: "product_manager", TaskID: "t1", Response: "done"},
		},
		StartedAt:   time.Now().Add(-time.Minute),
		CompletedAt: &completedAt,
	}

	clone := original.Clone()
	require.NotSame(t, original, clone)
	assert.Equal(t, original, clone)

	// Mutating the clone must never leak back into the original.
	clone.Tasks[0].Context["key"] = "changed"
	clone.Tasks[1].Dependencies[0] = "changed"
	clone.Metadata["workflow_type"] = "changed"
	clone.Results["business_analyst"] = TaskOutput{Response: "new"}
	clone.ResultLog[0].Response = "changed"
	*clone.CompletedAt = clone.CompletedAt.Add(time.Hour)

	assert.Equal(t, "value", original.Tasks[0].Context["key"])
	assert.Equal(t, "product_manager", original.Tasks[1].Dependencies[0])
	assert.Equal(t, "sdlc", original.Metadata["workflow_type"])
	assert.NotContains(t, original.Results, "business_analyst")
	assert.Equal(t, "done", original.ResultLog[0].Response)
	assert.Equal(t, completedAt, *original.CompletedAt)
}

func TestWorkflow_CloneNil(t *testing.T) {
	var w *Workflow
	assert.Nil(t, w.Clone())
}

func TestWorkflow_Summary(t *testing.T) {
	started := time.Now()
	w := &Workflow{
		ID:          "wf-1",
		ProjectName: "demo",
		Description: "ignored by the summary",
		Status:      StatusInProgress,
		Progress:    40,
		StartedAt:   started,
	}

	s := w.Summary()
	assert.Equal(t, "wf-1", s.ID)
	assert.Equal(t, "demo", s.ProjectName)
	assert.Equal(t, StatusInProgress, s.Status)
	assert.Equal(t, 40.0, s.Progress)
	assert.Equal(t, started, s.StartedAt)
}

func TestWorkflow_CompletedRoles(t *testing.T) {
	w := &Workflow{
		Results: map[string]TaskOutput{
			"product_manager":  {},
			"business_analyst": {},
		},
	}

	roles := w.CompletedRoles()
	assert.Len(t, roles, 2)
	assert.Contains(t, roles, "product_manager")
	assert.Contains(t, roles, "business_analyst")
}

func TestTaskResult_Output(t *testing.T) {
	r := TaskResult{
		AgentRole:      "qa_engineer",
		TaskID:         "t9",
		Response:       "all green",
		Confidence:     0.87,
		ProcessingTime: 1.5,
		Status:         TaskResultStatusCompleted,
	}

	out := r.Output()
	assert.Equal(t, "all green", out.Response)
	assert.Equal(t, 0.87, out.Confidence)
	assert.Equal(t, 1.5, out.ProcessingTime)
}
