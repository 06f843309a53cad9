package openai

import (
	"context"
	"fmt"
	"strings"
)

// Fallback writes simple posts locally when no API key is configured
type Fallback struct{}

// GenerateText turns the first line of the prompt into a short post
func (Fallback) GenerateText(_ context.Context, prompt string) (string, error) {
	topic, _, _ := strings.Cut(prompt, "\n")
	topic = strings.TrimSpace(topic)
	topic = strings.TrimPrefix(topic, "Create a LinkedIn post about ")
	topic = strings.TrimSuffix(topic, ".")

	return fmt.Sprintf("A few thoughts on %s.\n\nHere is what we have been learning about this lately "+
		"and why it matters for teams like yours.", topic), nil
}

