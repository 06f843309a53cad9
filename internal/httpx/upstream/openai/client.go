// Package openai generates post text and images for campaigns.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/vadim/linkpilot/internal/retry"
	"github.com/vadim/linkpilot/internal/storage"
)

const (
	defaultTextModel = goopenai.GPT4o
	defaultMaxTokens = 700

	systemPrompt = "You write engaging, professional LinkedIn posts. Keep posts under 1300 characters, " +
		"use short paragraphs and do not add hashtags."
)

var (
	// ErrMissingAPIKey is returned when the client is used without a key
	ErrMissingAPIKey = errors.New("openai api key is not configured")

	// ErrEmptyCompletion is returned when the model answers with no text
	ErrEmptyCompletion = errors.New("openai returned an empty completion")
)

// ImageStore persists generated images.
// This interface is defined here (consumer) not in the storage package (provider)
type ImageStore interface {
	UploadBytes(ctx context.Context, prefix string, data []byte, contentType string) (*storage.UploadOutput, error)
}

// Client wraps the OpenAI chat and image APIs
type Client struct {
	api        *goopenai.Client
	apiKey     string
	textModel  string
	imageModel string
	images     ImageStore
}

// Option configures the Client
type Option func(*Client)

// WithBaseURL points the client at a compatible endpoint
func WithBaseURL(url string) Option {
	return func(c *Client) {
		cfg := goopenai.DefaultConfig(c.apiKey)
		cfg.BaseURL = url
		c.api = goopenai.NewClientWithConfig(cfg)
	}
}

// WithTextModel sets the chat model
func WithTextModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.textModel = model
		}
	}
}

// WithImageModel sets the image model
func WithImageModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.imageModel = model
		}
	}
}

// WithImageStore uploads generated images instead of returning provider URLs
func WithImageStore(s ImageStore) Option {
	return func(c *Client) { c.images = s }
}

// New creates a new OpenAI client
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		api:        goopenai.NewClient(apiKey),
		apiKey:     apiKey,
		textModel:  defaultTextModel,
		imageModel: goopenai.CreateImageModelDallE3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateText returns a post body for the prompt
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", retry.Terminal(ErrMissingAPIKey)
	}

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.textModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", classify(fmt.Errorf("chat completion: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// GenerateImage returns a URL of an image for the prompt
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", retry.Terminal(ErrMissingAPIKey)
	}

	format := goopenai.CreateImageResponseFormatURL
	if c.images != nil {
		format = goopenai.CreateImageResponseFormatB64JSON
	}

	resp, err := c.api.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		N:              1,
		Size:           goopenai.CreateImageSize1024x1024,
		Quality:        goopenai.CreateImageQualityStandard,
		ResponseFormat: format,
	})
	if err != nil {
		return "", classify(fmt.Errorf("image generation: %w", err))
	}
	if len(resp.Data) == 0 {
		return "", errors.New("openai returned no image")
	}

	if c.images == nil {
		return resp.Data[0].URL, nil
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", retry.Terminal(fmt.Errorf("decoding image: %w", err))
	}
	out, err := c.images.UploadBytes(ctx, "generated", data, "image/png")
	if err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	return out.URL, nil
}

// classify marks client-side API failures as terminal; everything else may be retried
func classify(err error) error {
	status := 0

	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return retry.Terminal(err)
	default:
		return err
	}
}
