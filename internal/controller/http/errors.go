package http

import (
	"errors"
	"log/slog"
	"net/http"

	campaign "github.com/vadim/linkpilot/internal/domain/campaign/entity"
	ledger "github.com/vadim/linkpilot/internal/domain/ledger/entity"
	post "github.com/vadim/linkpilot/internal/domain/post/entity"
	rule "github.com/vadim/linkpilot/internal/domain/rule/entity"
	"github.com/vadim/linkpilot/internal/httpx/response"
	"github.com/vadim/linkpilot/internal/scheduler"
)

var (
	notFoundErrors = []error{
		post.ErrPostNotFound,
		campaign.ErrCampaignNotFound,
		rule.ErrRuleNotFound,
		scheduler.ErrUnknownTask,
	}

	conflictErrors = []error{
		post.ErrPostNotEditable,
		post.ErrInvalidTransition,
		post.ErrAlreadyClaimed,
		campaign.ErrInvalidTransition,
		campaign.ErrCampaignEnded,
		rule.ErrRuleInactive,
		scheduler.ErrNotRunning,
		scheduler.ErrTriggerBusy,
		scheduler.ErrLockNotAcquired,
	}

	validationErrors = []error{
		post.ErrEmptyUserID, post.ErrEmptyContent, post.ErrContentTooLong,
		post.ErrScheduledTimeInPast, post.ErrInvalidStatus,
		campaign.ErrEmptyUserID, campaign.ErrEmptyName, campaign.ErrNoThemes,
		campaign.ErrInvalidDailyPostLimit, campaign.ErrInvalidDateRange, campaign.ErrInvalidStatus,
		rule.ErrEmptyUserID, rule.ErrEmptyName, rule.ErrInvalidRuleType, rule.ErrInvalidDailyLimit,
		rule.ErrTemplateRequired, rule.ErrTemplateTooLong, rule.ErrUnknownCategory,
		ledger.ErrInvalidActionType,
	}
)

// handleDomainError maps domain sentinel errors to HTTP statuses
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case isAny(err, notFoundErrors):
		response.NotFound(w, err.Error())
	case isAny(err, conflictErrors):
		response.Conflict(w, err.Error())
	case isAny(err, validationErrors):
		response.BadRequest(w, err.Error())
	default:
		slog.Error("request failed", "error", err)
		response.InternalError(w, "internal server error")
	}
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
