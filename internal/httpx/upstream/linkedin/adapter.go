package linkedin

import (
	"context"
	"errors"
	"fmt"

	ledger "github.com/vadim/linkpilot/internal/domain/ledger/entity"
	postentity "github.com/vadim/linkpilot/internal/domain/post/entity"
	postpolicy "github.com/vadim/linkpilot/internal/domain/post/policy"
	"github.com/vadim/linkpilot/internal/domain/rule/engine"
	"github.com/vadim/linkpilot/internal/retry"
)

// ErrUnsupportedAction is returned for actions the API does not offer
var ErrUnsupportedAction = errors.New("action is not supported by the linkedin api")

// PostPublisher adapts the client to the post publishing ports
type PostPublisher struct {
	client *Client
}

// NewPostPublisher creates a publisher backed by the API client
func NewPostPublisher(client *Client) *PostPublisher {
	return &PostPublisher{client: client}
}

// CreatePost publishes the post text and media
func (p *PostPublisher) CreatePost(ctx context.Context, in postpolicy.PublishInput) (*postpolicy.PublishOutput, error) {
	out, err := p.client.CreatePost(ctx, CreatePostInput{Text: in.Text, MediaURLs: in.MediaURLs})
	if err != nil {
		return nil, err
	}
	return &postpolicy.PublishOutput{ExternalID: out.ID, URL: out.URL}, nil
}

// GetPostMetrics returns likes and comments; impressions need organization analytics and stay 0
func (p *PostPublisher) GetPostMetrics(ctx context.Context, externalID string) (postentity.Metrics, error) {
	activity, err := p.client.GetSocialActivity(ctx, externalID)
	if err != nil {
		return postentity.Metrics{}, err
	}
	return postentity.Metrics{Likes: activity.Likes, Comments: activity.Comments}, nil
}

// ActionExecutor performs automation actions through the API.
// Target IDs are profile URNs for connect and message, post URNs for like and comment.
type ActionExecutor struct {
	client *Client
}

// NewActionExecutor creates an executor backed by the API client
func NewActionExecutor(client *Client) *ActionExecutor {
	return &ActionExecutor{client: client}
}

// Execute performs one action
func (e *ActionExecutor) Execute(ctx context.Context, in engine.ActionInput) error {
	switch in.ActionType {
	case ledger.ActionConnect:
		return e.client.SendInvitation(ctx, in.Target.ID, in.Message)
	case ledger.ActionLike:
		return e.client.LikePost(ctx, in.Target.ID)
	case ledger.ActionComment:
		return e.client.CommentOnPost(ctx, in.Target.ID, in.Message)
	case ledger.ActionMessage:
		return e.client.SendMessage(ctx, in.Target.ID, in.Message)
	default:
		return retry.Terminal(fmt.Errorf("%w: %s", ErrUnsupportedAction, in.ActionType))
	}
}
