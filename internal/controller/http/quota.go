package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/linkpilot/internal/domain/ledger/entity"
	"github.com/vadim/linkpilot/internal/domain/ledger/service"
	"github.com/vadim/linkpilot/internal/httpx/response"
)

// QuotaReader reports today's usage against the daily limits
type QuotaReader interface {
	Usage(ctx context.Context, userID string) ([]entity.DailyUsage, error)
}

// ActionLog lists recorded actions
type ActionLog interface {
	List(ctx context.Context, in service.ListInput) ([]entity.Entry, error)
}

// ActivityHandler serves per-user quota and action history
type ActivityHandler struct {
	quota QuotaReader
	log   ActionLog
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(quota QuotaReader, log ActionLog) *ActivityHandler {
	return &ActivityHandler{quota: quota, log: log}
}

// RegisterRoutes registers activity routes
func (h *ActivityHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/quota", h.Quota())
		r.Get("/actions", h.Actions())
	})
}

// Quota handles GET /users/{userID}/quota
func (h *ActivityHandler) Quota() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usage, err := h.quota.Usage(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, map[string]any{"usage": usage})
	}
}

// Actions handles GET /users/{userID}/actions?action_type=&rule_id=&since=&limit=&offset=
func (h *ActivityHandler) Actions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		in := service.ListInput{
			UserID: chi.URLParam(r, "userID"),
			RuleID: q.Get("rule_id"),
		}

		if s := q.Get("action_type"); s != "" {
			t, err := entity.ParseActionType(s)
			if err != nil {
				response.BadRequest(w, err.Error())
				return
			}
			in.ActionType = &t
		}
		if s := q.Get("since"); s != "" {
			since, err := time.Parse(time.RFC3339, s)
			if err != nil {
				response.BadRequest(w, "invalid since format, use RFC3339")
				return
			}
			in.Since = &since
		}

		var err error
		if in.Limit, in.Offset, err = parsePaging(q); err != nil {
			response.BadRequest(w, err.Error())
			return
		}

		entries, err := h.log.List(r.Context(), in)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, response.List[entity.Entry]{Items: entries, Total: int64(len(entries))})
	}
}
