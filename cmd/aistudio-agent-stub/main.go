package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-chi/chi/v5"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/executor"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/clog"
)

// aistudio-agent-stub serves the agent backend wire protocol with the
// deterministic local executor, for development and integration testing
// without a model service.

var (
	app  = kingpin.New("aistudio-agent-stub", "Deterministic agent backend for local development")
	addr = app.Flag("addr", "Listen address").Default(":8001").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	handler := clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(slog.LevelDebug))
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	local := executor.NewLocalExecutor()

	r := chi.NewRouter()
	r.Use(clog.SlogChiMiddleware())
	r.Post("/agent/generate", func(w http.ResponseWriter, req *http.Request) {
		var agentReq executor.Request
		if err := json.NewDecoder(req.Body).Decode(&agentReq); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
			return
		}
		res, err := local.Execute(req.Context(), &agentReq)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"agent_type":      agentReq.AgentRole,
			"response":        res.Response,
			"confidence":      res.Confidence,
			"processing_time": res.ProcessingTime,
		})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "healthy",
			"service":   "agent-stub",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	srv := &http.Server{Addr: *addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		slog.Info("starting agent stub", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down agent stub")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
