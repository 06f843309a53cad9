// Package linkedin talks to the LinkedIn REST API and provides a simulated
// account for local runs.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vadim/linkpilot/internal/retry"
)

const (
	defaultBaseURL = "https://api.linkedin.com"
	defaultTimeout = 30 * time.Second
	restliVersion  = "2.0.0"
	feedURLPrefix  = "https://www.linkedin.com/feed/update/"
)

var (
	// ErrMissingAccessToken is returned by every call when no token is configured
	ErrMissingAccessToken = errors.New("linkedin access token is not configured")

	// ErrMissingAuthor is returned when posting without an author URN
	ErrMissingAuthor = errors.New("linkedin author urn is not configured")
)

// Client is a LinkedIn REST API client
type Client struct {
	baseURL     string
	accessToken string
	authorURN   string
	httpClient  *http.Client
	breaker     *Breaker
}

// ClientOption is a function that configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithAccessToken sets the member access token
func WithAccessToken(token string) ClientOption {
	return func(c *Client) {
		c.accessToken = token
	}
}

// WithAuthorURN sets the member or organization posts are published as
func WithAuthorURN(urn string) ClientOption {
	return func(c *Client) {
		c.authorURN = urn
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBreaker routes every request through a circuit breaker
func WithBreaker(b *Breaker) ClientOption {
	return func(c *Client) {
		c.breaker = b
	}
}

// New creates a new LinkedIn API client
func New(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error from the LinkedIn API
type APIError struct {
	Status           int    `json:"status"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
	Code             string `json:"code"`
	Message          string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkedin API error: %s (status: %d, code: %d)", e.Message, e.Status, e.ServiceErrorCode)
}

// Retryable reports whether the request may succeed if sent again
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusRequestTimeout || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// CreatePostInput represents input for publishing a text post
type CreatePostInput struct {
	Text      string
	MediaURLs []string
}

// CreatePostOutput represents output from publishing
type CreatePostOutput struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type ugcPost struct {
	Author          string              `json:"author"`
	LifecycleState  string              `json:"lifecycleState"`
	SpecificContent map[string]ugcShare `json:"specificContent"`
	Visibility      map[string]string   `json:"visibility"`
}

type ugcShare struct {
	ShareCommentary    ugcText    `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcText struct {
	Text string `json:"text"`
}

type ugcMedia struct {
	Status      string `json:"status"`
	OriginalURL string `json:"originalUrl"`
}

// CreatePost publishes a post as the configured author
// POST /v2/ugcPosts
func (c *Client) CreatePost(ctx context.Context, in CreatePostInput) (*CreatePostOutput, error) {
	if c.authorURN == "" {
		return nil, retry.Terminal(ErrMissingAuthor)
	}

	share := ugcShare{
		ShareCommentary:    ugcText{Text: in.Text},
		ShareMediaCategory: "NONE",
	}
	if len(in.MediaURLs) > 0 {
		share.ShareMediaCategory = "ARTICLE"
		for _, u := range in.MediaURLs {
			share.Media = append(share.Media, ugcMedia{Status: "READY", OriginalURL: u})
		}
	}

	body := ugcPost{
		Author:          c.authorURN,
		LifecycleState:  "PUBLISHED",
		SpecificContent: map[string]ugcShare{"com.linkedin.ugc.ShareContent": share},
		Visibility:      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}

	var out struct {
		ID string `json:"id"`
	}
	header, err := c.send(ctx, http.MethodPost, "/v2/ugcPosts", body, &out)
	if err != nil {
		return nil, err
	}

	id := header.Get("X-RestLi-Id")
	if id == "" {
		id = out.ID
	}
	return &CreatePostOutput{ID: id, URL: PostURL(id)}, nil
}

// PostURL returns the public feed URL of a post URN
func PostURL(id string) string {
	if id == "" {
		return ""
	}
	return feedURLPrefix + id + "/"
}

// SocialActivity holds the like and comment totals of a post
type SocialActivity struct {
	Likes    int
	Comments int
}

// GetSocialActivity returns like and comment totals for a post
// GET /v2/socialActions/{urn}
func (c *Client) GetSocialActivity(ctx context.Context, postURN string) (*SocialActivity, error) {
	var out struct {
		LikesSummary struct {
			TotalLikes int `json:"totalLikes"`
		} `json:"likesSummary"`
		CommentsSummary struct {
			AggregatedTotalComments int `json:"aggregatedTotalComments"`
		} `json:"commentsSummary"`
	}
	if _, err := c.send(ctx, http.MethodGet, "/v2/socialActions/"+url.PathEscape(postURN), nil, &out); err != nil {
		return nil, err
	}
	return &SocialActivity{
		Likes:    out.LikesSummary.TotalLikes,
		Comments: out.CommentsSummary.AggregatedTotalComments,
	}, nil
}

// SendInvitation sends a connection request with an optional note
// POST /v2/invitations
func (c *Client) SendInvitation(ctx context.Context, profileURN, message string) error {
	body := map[string]any{
		"invitee": map[string]any{
			"com.linkedin.invitations.InviteeProfile": map[string]string{"profileId": profileURN},
		},
	}
	if message != "" {
		body["message"] = map[string]any{
			"com.linkedin.invitations.InvitationMessage": map[string]string{"body": message},
		}
	}
	_, err := c.send(ctx, http.MethodPost, "/v2/invitations", body, nil)
	return err
}

// LikePost likes a post as the configured author
// POST /v2/socialActions/{urn}/likes
func (c *Client) LikePost(ctx context.Context, postURN string) error {
	body := map[string]string{"actor": c.authorURN, "object": postURN}
	_, err := c.send(ctx, http.MethodPost, "/v2/socialActions/"+url.PathEscape(postURN)+"/likes", body, nil)
	return err
}

// CommentOnPost comments on a post as the configured author
// POST /v2/socialActions/{urn}/comments
func (c *Client) CommentOnPost(ctx context.Context, postURN, text string) error {
	body := map[string]any{
		"actor":   c.authorURN,
		"object":  postURN,
		"message": map[string]string{"text": text},
	}
	_, err := c.send(ctx, http.MethodPost, "/v2/socialActions/"+url.PathEscape(postURN)+"/comments", body, nil)
	return err
}

// SendMessage sends a direct message to a first-degree connection
// POST /v2/messages
func (c *Client) SendMessage(ctx context.Context, recipientURN, text string) error {
	body := map[string]any{
		"recipients": []string{recipientURN},
		"subject":    "",
		"body":       text,
	}
	_, err := c.send(ctx, http.MethodPost, "/v2/messages", body, nil)
	return err
}

// send builds an authenticated request and runs it through the breaker
func (c *Client) send(ctx context.Context, method, path string, in, out any) (http.Header, error) {
	if c.accessToken == "" {
		return nil, retry.Terminal(ErrMissingAccessToken)
	}

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, retry.Terminal(fmt.Errorf("encoding request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, retry.Terminal(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("X-Restli-Protocol-Version", restliVersion)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.breaker == nil {
		return c.do(req, out)
	}

	var header http.Header
	err = c.breaker.Execute(func() error {
		var doErr error
		header, doErr = c.do(req, out)
		return doErr
	})
	return header, err
}

func (c *Client) do(req *http.Request, out any) (http.Header, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = string(body)
		}
		apiErr.Status = resp.StatusCode
		if apiErr.Retryable() {
			return nil, apiErr
		}
		return nil, retry.Terminal(apiErr)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.Header, nil
}
