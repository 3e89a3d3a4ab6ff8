package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/workflow"
)

// Client provides JSON API operations against the orchestrator server.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// CreateWorkflow creates a workflow from a full definition.
func (c *Client) CreateWorkflow(ctx context.Context, req *workflow.CreateRequest) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := c.do(ctx, http.MethodPost, "/workflow/create", nil, req, &wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	return &wf, nil
}

// CreateSDLCWorkflow creates a workflow from the builtin sdlc preset.
func (c *Client) CreateSDLCWorkflow(ctx context.Context, projectName, requirements string) (*workflow.Workflow, error) {
	q := url.Values{}
	q.Set("project_name", projectName)
	q.Set("requirements", requirements)

	var wf workflow.Workflow
	if err := c.do(ctx, http.MethodPost, "/workflow/sdlc", q, nil, &wf); err != nil {
		return nil, fmt.Errorf("failed to create sdlc workflow: %w", err)
	}
	return &wf, nil
}

// GetWorkflow gets a workflow snapshot.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := c.do(ctx, http.MethodGet, "/workflow/"+url.PathEscape(id), nil, nil, &wf); err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return &wf, nil
}

// GetWorkflowResults gets a workflow with its full task result log.
func (c *Client) GetWorkflowResults(ctx context.Context, id string) (*workflow.ResultsView, error) {
	var view workflow.ResultsView
	if err := c.do(ctx, http.MethodGet, "/workflow/"+url.PathEscape(id)+"/results", nil, nil, &view); err != nil {
		return nil, fmt.Errorf("failed to get workflow results: %w", err)
	}
	return &view, nil
}

// PauseWorkflow pauses a running workflow.
func (c *Client) PauseWorkflow(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/workflow/"+url.PathEscape(id)+"/pause", nil, nil, nil); err != nil {
		return fmt.Errorf("failed to pause workflow: %w", err)
	}
	return nil
}

// ResumeWorkflow resumes a paused workflow.
func (c *Client) ResumeWorkflow(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/workflow/"+url.PathEscape(id)+"/resume", nil, nil, nil); err != nil {
		return fmt.Errorf("failed to resume workflow: %w", err)
	}
	return nil
}

// ListWorkflows lists workflow summaries in creation order.
func (c *Client) ListWorkflows(ctx context.Context) ([]workflow.Summary, error) {
	var resp struct {
		Workflows []workflow.Summary `json:"workflows"`
	}
	if err := c.do(ctx, http.MethodGet, "/workflows", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return resp.Workflows, nil
}

// ListPresets lists the registered workflow presets.
func (c *Client) ListPresets(ctx context.Context) ([]workflow.PresetInfo, error) {
	var resp struct {
		Presets []workflow.PresetInfo `json:"presets"`
	}
	if err := c.do(ctx, http.MethodGet, "/presets", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	return resp.Presets, nil
}

// SystemStatus gets engine-wide status.
func (c *Client) SystemStatus(ctx context.Context) (*workflow.SystemStatus, error) {
	var status workflow.SystemStatus
	if err := c.do(ctx, http.MethodGet, "/system/status", nil, nil, &status); err != nil {
		return nil, fmt.Errorf("failed to get system status: %w", err)
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
