package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/linkpilot/internal/domain/rule/engine"
	"github.com/vadim/linkpilot/internal/domain/rule/entity"
	"github.com/vadim/linkpilot/internal/domain/rule/service"
	"github.com/vadim/linkpilot/internal/httpx/response"
)

// RuleService defines the rule management operations
type RuleService interface {
	Create(ctx context.Context, in service.CreateInput) (*entity.Rule, error)
	Get(ctx context.Context, id string) (*entity.Rule, error)
	Update(ctx context.Context, in service.UpdateInput) (*entity.Rule, error)
	List(ctx context.Context, in service.ListInput) ([]entity.Rule, error)
	Activate(ctx context.Context, id string) (*entity.Rule, error)
	Deactivate(ctx context.Context, id string) (*entity.Rule, error)
	SetupAutoFollow(ctx context.Context, userID string, categories []entity.Category, dailyLimit int) ([]entity.Rule, error)
}

// RuleRunner executes a rule on demand
type RuleRunner interface {
	RunRuleByID(ctx context.Context, id string) (*engine.Outcome, error)
}

// RuleHandler handles HTTP requests for automation rules
type RuleHandler struct {
	rules  RuleService
	runner RuleRunner
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(rules RuleService, runner RuleRunner) *RuleHandler {
	return &RuleHandler{rules: rules, runner: runner}
}

// RegisterRoutes registers rule routes
func (h *RuleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Post("/", h.Create())
		r.Get("/", h.List())
		r.Post("/auto-follow", h.SetupAutoFollow())
		r.Get("/{id}", h.Get())
		r.Put("/{id}", h.Update())
		r.Post("/{id}/activate", h.Activate())
		r.Post("/{id}/deactivate", h.Deactivate())
		r.Post("/{id}/run", h.Run())
	})
}

// CreateRuleRequest represents the request body for creating a rule
type CreateRuleRequest struct {
	UserID          string                `json:"user_id"`
	Name            string                `json:"name"`
	Type            string                `json:"rule_type"`
	Category        string                `json:"category,omitempty"`
	Criteria        entity.TargetCriteria `json:"target_criteria"`
	MessageTemplate string                `json:"message_template,omitempty"`
	DailyLimit      int                   `json:"daily_limit"`
	Active          *bool                 `json:"is_active,omitempty"`
}

// Create handles POST /rules
func (h *RuleHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		ruleType, err := entity.ParseRuleType(req.Type)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}

		active := true
		if req.Active != nil {
			active = *req.Active
		}

		rule, err := h.rules.Create(r.Context(), service.CreateInput{
			UserID:          req.UserID,
			Name:            req.Name,
			Type:            ruleType,
			Criteria:        req.Criteria,
			Category:        entity.Category(req.Category),
			MessageTemplate: req.MessageTemplate,
			DailyLimit:      req.DailyLimit,
			Active:          active,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.Created(w, rule)
	}
}

// UpdateRuleRequest represents the request body for editing a rule
type UpdateRuleRequest struct {
	Name            *string                `json:"name,omitempty"`
	Criteria        *entity.TargetCriteria `json:"target_criteria,omitempty"`
	MessageTemplate *string                `json:"message_template,omitempty"`
	DailyLimit      *int                   `json:"daily_limit,omitempty"`
}

// Update handles PUT /rules/{id}
func (h *RuleHandler) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		rule, err := h.rules.Update(r.Context(), service.UpdateInput{
			ID:              chi.URLParam(r, "id"),
			Name:            req.Name,
			Criteria:        req.Criteria,
			MessageTemplate: req.MessageTemplate,
			DailyLimit:      req.DailyLimit,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, rule)
	}
}

// Get handles GET /rules/{id}
func (h *RuleHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, err := h.rules.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, rule)
	}
}

// List handles GET /rules?user_id=&type=auto_follow,auto_like&active=true
func (h *RuleHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		in := service.ListInput{
			UserID:     q.Get("user_id"),
			ActiveOnly: q.Get("active") == "true",
		}

		if s := q.Get("type"); s != "" {
			for _, part := range strings.Split(s, ",") {
				t, err := entity.ParseRuleType(strings.TrimSpace(part))
				if err != nil {
					response.BadRequest(w, err.Error())
					return
				}
				in.Types = append(in.Types, t)
			}
		}

		rules, err := h.rules.List(r.Context(), in)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, response.List[entity.Rule]{Items: rules, Total: int64(len(rules))})
	}
}

// Activate handles POST /rules/{id}/activate
func (h *RuleHandler) Activate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, err := h.rules.Activate(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, rule)
	}
}

// Deactivate handles POST /rules/{id}/deactivate
func (h *RuleHandler) Deactivate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, err := h.rules.Deactivate(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, rule)
	}
}

// Run handles POST /rules/{id}/run
func (h *RuleHandler) Run() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.runner.RunRuleByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, out)
	}
}

// AutoFollowRequest represents the request body for the auto-follow setup
type AutoFollowRequest struct {
	UserID     string   `json:"user_id"`
	Categories []string `json:"categories"`
	DailyLimit int      `json:"daily_limit"`
}

// SetupAutoFollow handles POST /rules/auto-follow
func (h *RuleHandler) SetupAutoFollow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AutoFollowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		categories := make([]entity.Category, len(req.Categories))
		for i, c := range req.Categories {
			categories[i] = entity.Category(c)
		}

		rules, err := h.rules.SetupAutoFollow(r.Context(), req.UserID, categories, req.DailyLimit)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.Created(w, response.List[entity.Rule]{Items: rules, Total: int64(len(rules))})
	}
}
