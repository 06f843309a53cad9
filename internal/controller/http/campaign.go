package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/linkpilot/internal/domain/campaign/entity"
	"github.com/vadim/linkpilot/internal/domain/campaign/service"
	"github.com/vadim/linkpilot/internal/httpx/response"
)

// CampaignPolicy defines the interface for campaign operations
type CampaignPolicy interface {
	CreateCampaign(ctx context.Context, in service.CreateInput) (*entity.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*entity.Campaign, error)
	ListCampaigns(ctx context.Context, in service.ListInput) (*service.ListOutput, error)
	ActivateCampaign(ctx context.Context, id string) (*entity.Campaign, error)
}

// CampaignHandler handles HTTP requests for campaigns
type CampaignHandler struct {
	policy CampaignPolicy
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(p CampaignPolicy) *CampaignHandler {
	return &CampaignHandler{policy: p}
}

// RegisterRoutes registers campaign routes
func (h *CampaignHandler) RegisterRoutes(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", h.Create())
		r.Get("/", h.List())
		r.Get("/{id}", h.Get())
		r.Post("/{id}/activate", h.Activate())
	})
}

// CreateCampaignRequest represents the request body for creating a campaign
type CreateCampaignRequest struct {
	UserID         string          `json:"user_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	StartAt        *string         `json:"start_at,omitempty"` // RFC3339
	EndAt          *string         `json:"end_at,omitempty"`   // RFC3339
	Audience       entity.Audience `json:"audience"`
	Themes         []string        `json:"themes"`
	DailyPostLimit int             `json:"daily_post_limit,omitempty"`
}

// Create handles POST /campaigns
func (h *CampaignHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateCampaignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		startAt, err := parseOptionalTime(req.StartAt)
		if err != nil {
			response.BadRequest(w, "invalid start_at format, use RFC3339")
			return
		}
		endAt, err := parseOptionalTime(req.EndAt)
		if err != nil {
			response.BadRequest(w, "invalid end_at format, use RFC3339")
			return
		}

		c, err := h.policy.CreateCampaign(r.Context(), service.CreateInput{
			UserID:         req.UserID,
			Name:           req.Name,
			Description:    req.Description,
			StartAt:        startAt,
			EndAt:          endAt,
			Audience:       req.Audience,
			Themes:         req.Themes,
			DailyPostLimit: req.DailyPostLimit,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.Created(w, c)
	}
}

// Get handles GET /campaigns/{id}
func (h *CampaignHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := h.policy.GetCampaign(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, c)
	}
}

// List handles GET /campaigns?user_id=&status=&limit=&offset=
func (h *CampaignHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		in := service.ListInput{UserID: q.Get("user_id")}

		if s := q.Get("status"); s != "" {
			status, err := entity.ParseStatus(s)
			if err != nil {
				response.BadRequest(w, err.Error())
				return
			}
			in.Status = &status
		}

		var err error
		if in.Limit, in.Offset, err = parsePaging(q); err != nil {
			response.BadRequest(w, err.Error())
			return
		}

		out, err := h.policy.ListCampaigns(r.Context(), in)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.OK(w, response.List[entity.Campaign]{Items: out.Campaigns, Total: out.Total})
	}
}

// Activate handles POST /campaigns/{id}/activate
func (h *CampaignHandler) Activate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := h.policy.ActivateCampaign(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, c)
	}
}
