// Package llm submits file contents to the quality-assessment provider and
// turns its free-form responses into structured analyses.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/repolens/internal/apperr"
)

// OverrideKeyPrefix is the format marker for caller-supplied provider
// credentials. Only the format is checked here; a bad key surfaces later
// as INVALID_CREDENTIAL from the provider itself.
const OverrideKeyPrefix = "sk-ant-"

// IsOverrideKey reports whether s looks like a provider API key.
func IsOverrideKey(s string) bool {
	return strings.HasPrefix(s, OverrideKeyPrefix)
}

// Client wraps the Anthropic API for per-file code analysis.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates a provider client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for one file.
func buildPrompt(path, content string) (system string, user string) {
	system = `You review source code quality. Return ONLY a JSON object with these fields:
- "overall": integer 0-100 rating the file's overall quality
- "categories": object with keys "structure", "naming", "errorHandling", "documentation", "testing", each an object with:
  - "score": integer 0-100
  - "issues": array of short strings describing concrete problems found
  - "recommendations": array of short strings with actionable improvements

Rules:
- Score strictly: 90+ means exemplary, 50 means serious problems
- Keep each issue and recommendation under 120 characters
- Report at most 5 issues and 5 recommendations per category
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Analyze this file: ")
	sb.WriteString(path)
	sb.WriteString("\n\n")
	sb.WriteString(content)
	user = sb.String()
	return
}

// Analyze sends one file to the provider and returns the raw response text.
// When overrideKey is non-empty a request-scoped client identity replaces
// the system credential for this call only.
func (c *Client) Analyze(ctx context.Context, path, content, overrideKey string) (string, error) {
	api := c.api
	if overrideKey != "" {
		scoped := anthropic.NewClient(option.WithAPIKey(overrideKey))
		api = &scoped
	}

	systemPrompt, userPrompt := buildPrompt(path, content)

	msg, err := api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", mapProviderError(err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", apperr.ErrProviderUnavailable.Wrap(fmt.Errorf("no text content in API response"))
	}
	return text, nil
}

// mapProviderError translates SDK failures into the stable taxonomy.
func mapProviderError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429:
			return apperr.ErrProviderRateLimited.Wrap(err)
		case 401, 403:
			return apperr.ErrInvalidCredential.Wrap(err)
		}
	}
	return apperr.ErrProviderUnavailable.Wrap(err)
}
