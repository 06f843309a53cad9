package entity

// Statistics represents aggregated post numbers for a user or campaign
type Statistics struct {
	DraftCount      int   `json:"draft_count"`
	ScheduledCount  int   `json:"scheduled_count"`
	PublishingCount int   `json:"publishing_count"`
	PublishedCount  int   `json:"published_count"`
	FailedCount     int   `json:"failed_count"`
	TotalReach      int64 `json:"total_reach"`      // sum of impressions of published posts
	TotalEngagement int64 `json:"total_engagement"` // likes + comments + shares of published posts
}

// Performance summarises how published posts did over a window
type Performance struct {
	UserID            string   `json:"user_id"`
	PostCount         int      `json:"post_count"`
	AverageEngagement float64  `json:"average_engagement"`
	Underperforming   []string `json:"underperforming"` // post IDs below half the average
}
