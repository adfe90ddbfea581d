// Package provider adapts the external AI summarization and embedding
// services and classifies their failures as retryable or fatal.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/recallmesh/recallmesh/internal/models"
)

// Summarizer produces a short summary for captured text.
type Summarizer interface {
	Summarize(ctx context.Context, text string, meta models.Metadata) (string, error)
}

// Embedder produces an embedding vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Error is a provider failure with a retryability classification.
type Error struct {
	Op        string
	Status    int
	Message   string
	Transient bool
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Transient reports whether err is a retryable provider condition.
func Transient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}

// retryableStatus marks the HTTP statuses eligible for backoff retry.
func retryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// retryableMessage catches provider errors that signal overload without a
// usable status code.
func retryableMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, frag := range []string{"rate limit", "rate_limit", "overloaded", "quota", "too many requests"} {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
