package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/config"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/cerr"
)

const (
	generatePath = "/agent/generate"

	// breakerCooldown is how long the circuit stays open before a probe
	// request is allowed through.
	breakerCooldown = 30 * time.Second
)

// HTTPExecutor dispatches tasks to a model-inference backend over HTTP.
// A circuit breaker sheds load from the backend once it starts failing
// consecutively.
type HTTPExecutor struct {
	baseURL     string
	client      *http.Client
	maxTokens   int
	temperature float64
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger

	mu    sync.Mutex
	stats Stats
}

func NewHTTPExecutor(env *config.ExecutorEnv, logger *slog.Logger) *HTTPExecutor {
	e := &HTTPExecutor{
		baseURL: env.URL,
		client: &http.Client{
			Timeout: env.Timeout,
		},
		maxTokens:   env.MaxTokens,
		temperature: env.Temperature,
		logger:      logger,
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "agent-backend",
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// A canceled caller says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("agent backend circuit state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return e
}

func (e *HTTPExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	wire := *req
	if wire.MaxTokens == 0 {
		wire.MaxTokens = e.maxTokens
	}
	if wire.Temperature == 0 {
		wire.Temperature = e.temperature
	}

	payload, err := json.Marshal(&wire)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to encode agent request", err)
	}

	out, err := e.breaker.Execute(func() (any, error) {
		return e.exchange(ctx, req.AgentRole, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, cerr.NewError(cerr.Unavailable,
				fmt.Sprintf("agent backend circuit open for %s", req.AgentRole), err)
		}
		return nil, err
	}
	return out.(*Result), nil
}

// exchange performs one request/response round trip with the backend and
// folds the outcome into the stats counters.
func (e *HTTPExecutor) exchange(ctx context.Context, agentRole string, payload []byte) (*Result, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+generatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to build agent request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		e.record(time.Since(start), true)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, cerr.NewError(cerr.DeadlineExceeded,
				fmt.Sprintf("agent backend timed out for %s", agentRole), err)
		}
		return nil, cerr.NewError(cerr.Unavailable,
			fmt.Sprintf("agent backend unreachable for %s", agentRole), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.record(time.Since(start), true)
		code := cerr.Internal
		if resp.StatusCode >= http.StatusInternalServerError {
			code = cerr.Unavailable
		}
		return nil, cerr.NewError(code,
			fmt.Sprintf("agent backend returned status %d", resp.StatusCode),
			fmt.Errorf("response body: %s", bytes.TrimSpace(body)))
	}

	// Pointer fields so absent keys are distinguishable from zero values.
	var decoded struct {
		Response   *string  `json:"response"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		e.record(time.Since(start), true)
		return nil, cerr.NewError(cerr.Internal, "malformed agent response", err)
	}
	if decoded.Response == nil || decoded.Confidence == nil {
		e.record(time.Since(start), true)
		return nil, cerr.NewError(cerr.Internal, "agent response missing response or confidence", nil)
	}
	if *decoded.Confidence < 0 || *decoded.Confidence > 1 {
		e.record(time.Since(start), true)
		return nil, cerr.NewError(cerr.Internal,
			fmt.Sprintf("agent confidence out of range: %v", *decoded.Confidence), nil)
	}

	elapsed := time.Since(start)
	e.record(elapsed, false)
	e.logger.DebugContext(ctx, "agent task executed",
		slog.String("agent_type", agentRole),
		slog.Duration("elapsed", elapsed),
	)

	return &Result{
		Response:       *decoded.Response,
		Confidence:     *decoded.Confidence,
		ProcessingTime: elapsed.Seconds(),
	}, nil
}

// Healthy probes the backend's health endpoint directly, bypassing the
// breaker so recovery is observable while the circuit is still open.
func (e *HTTPExecutor) Healthy(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to build health request", err)
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "agent backend unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return cerr.NewError(cerr.Unavailable,
			fmt.Sprintf("agent backend unhealthy: status %d", resp.StatusCode), nil)
	}
	return nil
}

// Stats returns a snapshot of the request counters.
func (e *HTTPExecutor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.CircuitState = e.breaker.State().String()
	return s
}

// record folds one request into the counters using an exponential moving
// average for response time.
func (e *HTTPExecutor) record(elapsed time.Duration, failed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Requests++
	if failed {
		e.stats.Errors++
	}
	e.stats.AvgResponseTime = e.stats.AvgResponseTime*0.9 + elapsed.Seconds()*0.1
}
