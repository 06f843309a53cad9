package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/linkpilot/internal/httpx/response"
	"github.com/vadim/linkpilot/internal/scheduler"
)

// TaskScheduler exposes the state of the automation scheduler
type TaskScheduler interface {
	IsRunning() bool
	Status() []scheduler.TaskStatus
	Trigger(name string) error
}

// SchedulerHandler handles HTTP requests for the scheduler
type SchedulerHandler struct {
	scheduler TaskScheduler
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(s TaskScheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s}
}

// RegisterRoutes registers scheduler routes
func (h *SchedulerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/scheduler", func(r chi.Router) {
		r.Get("/", h.Status())
		r.Post("/tasks/{name}/run", h.Trigger())
	})
}

// StatusResponse describes the scheduler
type StatusResponse struct {
	Running bool                   `json:"running"`
	Tasks   []scheduler.TaskStatus `json:"tasks"`
}

// Status handles GET /scheduler
func (h *SchedulerHandler) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, StatusResponse{
			Running: h.scheduler.IsRunning(),
			Tasks:   h.scheduler.Status(),
		})
	}
}

// Trigger handles POST /scheduler/tasks/{name}/run
func (h *SchedulerHandler) Trigger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := h.scheduler.Trigger(name); err != nil {
			handleDomainError(w, err)
			return
		}
		response.Accepted(w, map[string]string{"task": name, "status": "queued"})
	}
}
