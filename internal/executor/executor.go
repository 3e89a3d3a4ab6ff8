package executor

import "context"

// Request carries one task to an agent backend.
type Request struct {
	AgentRole   string         `json:"agent_type"`
	Task        string         `json:"task"`
	Context     map[string]any `json:"context,omitempty"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
}

// Result is a successful agent response.
type Result struct {
	Response       string
	Confidence     float64
	ProcessingTime float64
}

// Executor turns a task description plus accumulated context into a
// generated result. It is the only blocking dependency of a workflow run;
// implementations must honor the deadline on ctx.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
	Healthy(ctx context.Context) error
}

// Stats is a point-in-time snapshot of an executor's request counters.
type Stats struct {
	Requests        int64   `json:"requests"`
	Errors          int64   `json:"errors"`
	AvgResponseTime float64 `json:"avg_response_time"`
	CircuitState    string  `json:"circuit_state,omitempty"`
}
