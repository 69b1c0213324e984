package task

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/changepilot/changepilot/internal/eventbus"
	"github.com/changepilot/changepilot/internal/intent"
	"github.com/changepilot/changepilot/pkg/cerr"
)

type Server struct {
	repo     Repository
	cfg      *intent.Config
	eventBus *eventbus.Bus
}

func NewServer(repo Repository, cfg *intent.Config, eventBus *eventbus.Bus) *Server {
	if cfg == nil {
		cfg = intent.DefaultConfig()
	}
	return &Server{
		repo:     repo,
		cfg:      cfg,
		eventBus: eventBus,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/tasks", s.createTask)
	r.Get("/tasks", s.listTasks)
	r.Get("/tasks/{id}", s.getTask)
	r.Delete("/tasks/{id}", s.deleteTask)
	r.Post("/webhook/task-completed", s.completeTask)
}

// createTaskRequest is a direct structured descriptor, bypassing message
// classification. The auto-commit decision still derives from the type.
type createTaskRequest struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Scope       []string `json:"scope"`
	Rules       []string `json:"rules"`
	TargetRepo  string   `json:"target_repo"`
	Sender      string   `json:"sender"`
}

func (s *Server) createTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	taskType := intent.Type(req.Type)
	if !taskType.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("invalid task type: %s", req.Type), nil)
		return
	}
	if req.Description == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "description is required", nil)
		return
	}
	if len(req.Scope) == 0 {
		req.Scope = []string{s.cfg.DefaultScope}
	}
	if len(req.Rules) == 0 {
		req.Rules = intent.RulesFor(taskType)
	}

	t := New(&intent.Descriptor{
		Type:        taskType,
		Description: req.Description,
		Scope:       req.Scope,
		Rules:       req.Rules,
		AutoCommit:  intent.AutoCommitAllowed(taskType),
		TargetRepo:  req.TargetRepo,
	}, Source{
		Message:   req.Description,
		Sender:    req.Sender,
		Timestamp: time.Now().UTC(),
	})

	if err := s.repo.Create(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.TypeTaskCreated, t.ID, map[string]string{"type": t.Type})

	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, t)
}

func (s *Server) listTasks(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("invalid status: %s", status), nil)
		return
	}

	tasks, err := s.repo.List(ctx, status)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

func (s *Server) getTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) deleteTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	if err := s.repo.Delete(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"deleted": id})
}

type completeTaskRequest struct {
	TaskID  string         `json:"task_id"`
	Status  Status         `json:"status"`
	Details string         `json:"details"`
	Data    map[string]any `json:"data"`
}

// completeTask is the callback the workflow driver (or an external watcher)
// posts when it finishes working on a task.
func (s *Server) completeTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req completeTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.TaskID == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "task_id is required", nil)
		return
	}

	var result *Result
	if req.Status.Terminal() {
		result = &Result{Status: req.Status, Details: req.Details, Data: req.Data}
	}
	t, err := s.repo.UpdateStatus(ctx, req.TaskID, req.Status, result)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.TypeTaskStatusChanged, t.ID, map[string]string{"status": string(t.Status)})

	cerr.SetJSONResponse(ctx, t)
}
