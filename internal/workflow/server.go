package workflow

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/cerr"
)

// Server exposes the workflow API over HTTP. All handlers hand their
// response or error to the cerr response middleware for encoding.
type Server struct {
	service *Service
}

func NewServer(service *Service) *Server {
	return &Server{service: service}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/workflow/create", s.create)
	r.Post("/workflow/sdlc", s.createSDLC)
	r.Get("/workflow/{workflowID}", s.get)
	r.Get("/workflow/{workflowID}/results", s.results)
	r.Post("/workflow/{workflowID}/pause", s.pause)
	r.Post("/workflow/{workflowID}/resume", s.resume)
	r.Get("/workflows", s.list)
	r.Get("/presets", s.presets)
	r.Get("/system/status", s.systemStatus)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}

	wf, err := s.service.CreateWorkflow(ctx, &req)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, wf)
}

// createSDLC takes project_name and requirements as query parameters,
// matching the original orchestrator endpoint.
func (s *Server) createSDLC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	wf, err := s.service.CreateFromPreset(ctx, "sdlc", q.Get("project_name"), q.Get("requirements"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, wf)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wf, err := s.service.GetWorkflow(ctx, chi.URLParam(r, "workflowID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, wf)
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := s.service.GetWorkflowResults(ctx, chi.URLParam(r, "workflowID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, view)
}

type actionResponse struct {
	Message    string `json:"message"`
	WorkflowID string `json:"workflow_id"`
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "workflowID")

	if err := s.service.PauseWorkflow(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, actionResponse{Message: "Workflow paused", WorkflowID: id})
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "workflowID")

	if err := s.service.ResumeWorkflow(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, actionResponse{Message: "Workflow resumed", WorkflowID: id})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summaries, err := s.service.ListWorkflows(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"workflows": summaries})
}

func (s *Server) presets(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), map[string]any{"presets": s.service.Presets().List()})
}

func (s *Server) systemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := s.service.SystemStatus(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, status)
}
