package executor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/config"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/cerr"
)

func newBackend(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newHTTPExecutor(url string) *HTTPExecutor {
	return NewHTTPExecutor(&config.ExecutorEnv{
		URL:         url,
		Timeout:     5 * time.Second,
		MaxTokens:   500,
		Temperature: 0.7,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHTTPExecutor_Execute(t *testing.T) {
	var got Request
	srv := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/agent/generate", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"the plan","confidence":0.93,"processing_time":0.5}`))
	}))

	e := newHTTPExecutor(srv.URL)
	result, err := e.Execute(context.Background(), &Request{
		AgentRole: "product_manager",
		Task:      "plan the release",
		Context:   map[string]any{"project_name": "demo"},
	})
	require.NoError(t, err)

	assert.Equal(t, "the plan", result.Response)
	assert.Equal(t, 0.93, result.Confidence)
	assert.Greater(t, result.ProcessingTime, 0.0)

	// Zero-valued generation knobs are filled from configuration.
	assert.Equal(t, "product_manager", got.AgentRole)
	assert.Equal(t, "plan the release", got.Task)
	assert.Equal(t, 500, got.MaxTokens)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, map[string]any{"project_name": "demo"}, got.Context)

	stats := e.Stats()
	assert.Equal(t, int64(1), stats.Requests)
	assert.Equal(t, int64(0), stats.Errors)
	assert.Greater(t, stats.AvgResponseTime, 0.0)
	assert.Equal(t, "closed", stats.CircuitState)
}

func TestHTTPExecutor_ExecuteKeepsCallerKnobs(t *testing.T) {
	var got Request
	srv := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"ok","confidence":0.5}`))
	}))

	e := newHTTPExecutor(srv.URL)
	_, err := e.Execute(context.Background(), &Request{
		AgentRole:   "qa_engineer",
		Task:        "test it",
		MaxTokens:   123,
		Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, 123, got.MaxTokens)
	assert.Equal(t, 0.2, got.Temperature)
}

func TestHTTPExecutor_BackendErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode cerr.Code
		wantMsg  string
	}{
		{
			name: "client error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no such agent", http.StatusNotFound)
			},
			wantCode: cerr.Internal,
			wantMsg:  "agent backend returned status 404",
		},
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
			wantCode: cerr.Unavailable,
			wantMsg:  "agent backend returned status 503",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			wantCode: cerr.Internal,
			wantMsg:  "malformed agent response",
		},
		{
			name: "missing fields",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"response":"partial"}`))
			},
			wantCode: cerr.Internal,
			wantMsg:  "agent response missing response or confidence",
		},
		{
			name: "confidence out of range",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"response":"sure","confidence":1.5}`))
			},
			wantCode: cerr.Internal,
			wantMsg:  "agent confidence out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newBackend(t, tt.handler)
			e := newHTTPExecutor(srv.URL)

			_, err := e.Execute(context.Background(), &Request{AgentRole: "writer", Task: "x"})
			require.Error(t, err)
			assert.True(t, cerr.IsCode(err, tt.wantCode), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			stats := e.Stats()
			assert.Equal(t, int64(1), stats.Requests)
			assert.Equal(t, int64(1), stats.Errors)
		})
	}
}

func TestHTTPExecutor_Timeout(t *testing.T) {
	srv := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))

	e := newHTTPExecutor(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.Execute(ctx, &Request{AgentRole: "writer", Task: "slow"})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.DeadlineExceeded), "got %v", err)
	assert.Contains(t, err.Error(), "agent backend timed out for writer")
}

func TestHTTPExecutor_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e := newHTTPExecutor(url)
	_, err := e.Execute(context.Background(), &Request{AgentRole: "writer", Task: "x"})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Unavailable), "got %v", err)
	assert.Contains(t, err.Error(), "agent backend unreachable for writer")
}

func TestHTTPExecutor_CircuitBreaker(t *testing.T) {
	var hits atomic.Int64
	srv := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	e := newHTTPExecutor(srv.URL)
	req := &Request{AgentRole: "writer", Task: "x"}

	// Three consecutive failures trip the breaker.
	for i := 0; i < 3; i++ {
		_, err := e.Execute(context.Background(), req)
		require.Error(t, err)
		assert.True(t, cerr.IsCode(err, cerr.Unavailable))
	}
	assert.Equal(t, int64(3), hits.Load())
	assert.Equal(t, "open", e.Stats().CircuitState)

	// Further calls are rejected without touching the backend.
	_, err := e.Execute(context.Background(), req)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Unavailable))
	assert.Contains(t, err.Error(), "agent backend circuit open for writer")
	assert.Equal(t, int64(3), hits.Load())

	// Health probes bypass the breaker so recovery stays observable.
	assert.NoError(t, e.Healthy(context.Background()))
}

func TestHTTPExecutor_Healthy(t *testing.T) {
	t.Run("healthy backend", func(t *testing.T) {
		srv := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/health", r.URL.Path)
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
		}))
		e := newHTTPExecutor(srv.URL)
		assert.NoError(t, e.Healthy(context.Background()))
	})

	t.Run("unhealthy status", func(t *testing.T) {
		srv := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		}))
		e := newHTTPExecutor(srv.URL)

		err := e.Healthy(context.Background())
		require.Error(t, err)
		assert.True(t, cerr.IsCode(err, cerr.Unavailable))
		assert.Contains(t, err.Error(), "agent backend unhealthy: status 500")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		e := newHTTPExecutor(url)
		err := e.Healthy(context.Background())
		require.Error(t, err)
		assert.True(t, cerr.IsCode(err, cerr.Unavailable))
	})
}

func TestHTTPExecutor_RecordAverages(t *testing.T) {
	e := &HTTPExecutor{}

	e.record(100*time.Millisecond, false)
	assert.Equal(t, int64(1), e.stats.Requests)
	assert.Equal(t, int64(0), e.stats.Errors)
	assert.InDelta(t, 0.01, e.stats.AvgResponseTime, 1e-9)

	e.record(100*time.Millisecond, true)
	assert.Equal(t, int64(2), e.stats.Requests)
	assert.Equal(t, int64(1), e.stats.Errors)
	assert.InDelta(t, 0.019, e.stats.AvgResponseTime, 1e-9)
}
