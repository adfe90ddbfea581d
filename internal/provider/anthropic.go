package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/recallmesh/recallmesh/internal/models"
)

const summarySystemPrompt = `You summarize text captured from web browsing into two or three sentences.
Keep concrete facts, names and conclusions. Drop navigation text, boilerplate and ads.
Reply with the summary only.`

// ClaudeSummarizer summarizes captures via the Anthropic API.
type ClaudeSummarizer struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewClaudeSummarizer creates a summarizer. If apiKey is empty,
// ANTHROPIC_API_KEY is used.
func NewClaudeSummarizer(apiKey, model string) *ClaudeSummarizer {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &ClaudeSummarizer{
		client:    anthropic.NewClient(apiKey),
		model:     model,
		maxTokens: 512,
	}
}

// Summarize produces a summary for captured text. Page metadata (title,
// URL) is prepended so the model can anchor the summary.
func (c *ClaudeSummarizer) Summarize(ctx context.Context, text string, meta models.Metadata) (string, error) {
	var sb strings.Builder
	if title := meta.StringValue("title"); title != "" {
		fmt.Fprintf(&sb, "Page title: %s\n", title)
	}
	if url := meta.StringValue("url"); url != "" {
		fmt.Fprintf(&sb, "Source URL: %s\n", url)
	}
	sb.WriteString("\n")
	sb.WriteString(text)

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    summarySystemPrompt,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(sb.String())},
			},
		},
	})
	if err != nil {
		return "", classifyAnthropic(err)
	}
	if len(resp.Content) == 0 {
		return "", &Error{Op: "summarize", Message: "empty completion", Transient: true}
	}

	summary := strings.TrimSpace(resp.Content[0].GetText())
	if summary == "" {
		return "", &Error{Op: "summarize", Message: "blank summary", Transient: true}
	}
	return summary, nil
}

// classifyAnthropic wraps an Anthropic SDK error with a retryability
// classification: 429/5xx and overload/rate-limit/quota messages are
// transient, everything else is fatal.
func classifyAnthropic(err error) error {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &Error{
			Op:        "summarize",
			Status:    reqErr.StatusCode,
			Message:   err.Error(),
			Transient: retryableStatus(reqErr.StatusCode),
		}
	}
	return &Error{
		Op:        "summarize",
		Message:   err.Error(),
		Transient: retryableMessage(err.Error()),
	}
}
