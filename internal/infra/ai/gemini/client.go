package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
)

// Client is a thin wrapper around the official genai client.
// It makes exactly one GenerateContent call per Complete.
type Client struct {
	cli       *genai.Client
	model     string
	forceJSON bool
}

func NewClient(ctx context.Context, apiKey, model string, forceJSON bool) (*Client, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &Client{cli: cli, model: model, forceJSON: forceJSON}, nil
}

func (c *Client) Name() string { return "gemini:" + c.model }

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if c.forceJSON {
		cfg = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}
	resp, err := c.cli.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		cfg,
	)
	if err != nil {
		return "", classify(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini returned no candidates", domain.ErrUpstreamUnavailable)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// classify maps genai failures onto the domain upstream errors. The Gemini
// API reports a bad key as 400 INVALID_ARGUMENT, so the message is checked too.
func classify(err error) error {
	code, status, msg := 0, "", err.Error()
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		code, status, msg = apiErr.Code, apiErr.Status, apiErr.Message
	}
	lower := strings.ToLower(msg)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden,
		status == "UNAUTHENTICATED" || status == "PERMISSION_DENIED",
		strings.Contains(lower, "api key not valid"),
		strings.Contains(lower, "api_key_invalid"):
		return fmt.Errorf("%w: gemini: %v", domain.ErrUpstreamAuth, err)
	case code == http.StatusTooManyRequests,
		status == "RESOURCE_EXHAUSTED",
		strings.Contains(lower, "quota"):
		return fmt.Errorf("%w: gemini: %v", domain.ErrUpstreamQuota, err)
	default:
		return fmt.Errorf("%w: gemini: %v", domain.ErrUpstreamUnavailable, err)
	}
}
