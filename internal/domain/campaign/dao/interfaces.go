package dao

import (
	"context"
	"time"

	"github.com/vadim/linkpilot/internal/domain/campaign/entity"
)

// CampaignFilter contains filters for listing campaigns
type CampaignFilter struct {
	UserID string
	Status *entity.Status
}

// ListOptions contains pagination options
type ListOptions struct {
	Limit  int
	Offset int
}

// CampaignRepository defines the interface for campaign data access
type CampaignRepository interface {
	// Create inserts a new campaign
	Create(ctx context.Context, c *entity.Campaign) error

	// GetByID retrieves a campaign by ID, nil when absent
	GetByID(ctx context.Context, id string) (*entity.Campaign, error)

	// Update writes the configurable fields of a campaign
	Update(ctx context.Context, c *entity.Campaign) error

	// List retrieves campaigns ordered by creation time
	List(ctx context.Context, filter CampaignFilter, opts ListOptions) ([]entity.Campaign, error)

	// Count returns the number of campaigns matching the filter
	Count(ctx context.Context, filter CampaignFilter) (int64, error)

	// Transition moves a campaign to a new status only if it is still in from.
	// Returns false when the campaign was not in from.
	Transition(ctx context.Context, id string, from, to entity.Status, reason string, now time.Time) (bool, error)

	// UpdateMetrics stores aggregated post numbers
	UpdateMetrics(ctx context.Context, id string, m entity.Metrics, now time.Time) error

	// ArchiveEndedBefore archives completed and failed campaigns that ended before cutoff
	ArchiveEndedBefore(ctx context.Context, cutoff, now time.Time) (int64, error)
}
