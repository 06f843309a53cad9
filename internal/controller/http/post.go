package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/linkpilot/internal/domain/post/entity"
	"github.com/vadim/linkpilot/internal/domain/post/policy"
	"github.com/vadim/linkpilot/internal/domain/post/service"
	"github.com/vadim/linkpilot/internal/httpx/response"
)

// PostPolicy defines the interface for post operations
// Interface is defined by consumer (handler), not provider (policy)
type PostPolicy interface {
	CreatePost(ctx context.Context, in policy.CreatePostInput) (*entity.Post, error)
	UpdatePost(ctx context.Context, in service.UpdateInput) (*entity.Post, error)
	GetPost(ctx context.Context, id string) (*entity.Post, error)
	ListPosts(ctx context.Context, in service.ListInput) (*service.ListOutput, error)
	SchedulePost(ctx context.Context, id string, at time.Time) (*entity.Post, error)
	SaveAsDraft(ctx context.Context, id string) (*entity.Post, error)
	PublishNow(ctx context.Context, id string) (*entity.Post, error)
	GetStatistics(ctx context.Context, userID, campaignID string) (*entity.Statistics, error)
}

// PostHandler handles HTTP requests for posts
type PostHandler struct {
	policy PostPolicy
}

// NewPostHandler creates a new post handler
func NewPostHandler(p PostPolicy) *PostHandler {
	return &PostHandler{policy: p}
}

// RegisterRoutes registers post routes
func (h *PostHandler) RegisterRoutes(r chi.Router) {
	r.Route("/posts", func(r chi.Router) {
		r.Post("/", h.Create())
		r.Get("/", h.List())
		r.Get("/statistics", h.Statistics())
		r.Get("/{id}", h.Get())
		r.Put("/{id}", h.Update())
		r.Post("/{id}/publish", h.PublishNow())
		r.Post("/{id}/schedule", h.Schedule())
		r.Post("/{id}/draft", h.SaveAsDraft())
	})
}

// CreatePostRequest represents the request body for creating a post
type CreatePostRequest struct {
	UserID      string   `json:"user_id"`
	CampaignID  string   `json:"campaign_id,omitempty"`
	Content     string   `json:"content"`
	Hashtags    []string `json:"hashtags,omitempty"`
	MediaURLs   []string `json:"media_urls,omitempty"`
	ScheduledAt *string  `json:"scheduled_at,omitempty"` // RFC3339
	PublishNow  bool     `json:"publish_now,omitempty"`
}

// Create handles POST /posts
func (h *PostHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		scheduledAt, err := parseOptionalTime(req.ScheduledAt)
		if err != nil {
			response.BadRequest(w, "invalid scheduled_at format, use RFC3339")
			return
		}

		post, err := h.policy.CreatePost(r.Context(), policy.CreatePostInput{
			UserID:      req.UserID,
			CampaignID:  req.CampaignID,
			Content:     req.Content,
			Hashtags:    req.Hashtags,
			MediaURLs:   req.MediaURLs,
			ScheduledAt: scheduledAt,
			PublishNow:  req.PublishNow,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.Created(w, post)
	}
}

// UpdatePostRequest represents the request body for editing a post
type UpdatePostRequest struct {
	Content   *string  `json:"content,omitempty"`
	Hashtags  []string `json:"hashtags,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// Update handles PUT /posts/{id}
func (h *PostHandler) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		post, err := h.policy.UpdatePost(r.Context(), service.UpdateInput{
			ID:        chi.URLParam(r, "id"),
			Content:   req.Content,
			Hashtags:  req.Hashtags,
			MediaURLs: req.MediaURLs,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.OK(w, post)
	}
}

// Get handles GET /posts/{id}
func (h *PostHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := h.policy.GetPost(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, post)
	}
}

// List handles GET /posts?user_id=&campaign_id=&status=&limit=&offset=
func (h *PostHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		in := service.ListInput{
			UserID:     q.Get("user_id"),
			CampaignID: q.Get("campaign_id"),
		}

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

		out, err := h.policy.ListPosts(r.Context(), in)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.OK(w, response.List[entity.Post]{Items: out.Posts, Total: out.Total})
	}
}

// Statistics handles GET /posts/statistics?user_id=&campaign_id=
func (h *PostHandler) Statistics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		stats, err := h.policy.GetStatistics(r.Context(), q.Get("user_id"), q.Get("campaign_id"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, stats)
	}
}

// PublishNow handles POST /posts/{id}/publish
func (h *PostHandler) PublishNow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := h.policy.PublishNow(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, post)
	}
}

// ScheduleRequest represents the request body for scheduling
type ScheduleRequest struct {
	ScheduledAt string `json:"scheduled_at"` // RFC3339
}

// Schedule handles POST /posts/{id}/schedule
func (h *PostHandler) Schedule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		at, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			response.BadRequest(w, "invalid scheduled_at format, use RFC3339")
			return
		}

		post, err := h.policy.SchedulePost(r.Context(), chi.URLParam(r, "id"), at)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, post)
	}
}

// SaveAsDraft handles POST /posts/{id}/draft
func (h *PostHandler) SaveAsDraft() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := h.policy.SaveAsDraft(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, post)
	}
}
