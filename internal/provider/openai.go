package provider

import (
	"context"
	"errors"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder generates embedding vectors via the OpenAI API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder. If apiKey is empty,
// OPENAI_API_KEY is used.
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Data) == 0 {
		return nil, &Error{Op: "embed", Message: "empty embedding response", Transient: true}
	}
	return resp.Data[0].Embedding, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{
			Op:        "embed",
			Status:    apiErr.HTTPStatusCode,
			Message:   apiErr.Message,
			Transient: retryableStatus(apiErr.HTTPStatusCode) || retryableMessage(apiErr.Message),
		}
	}
	return &Error{
		Op:        "embed",
		Message:   err.Error(),
		Transient: retryableMessage(err.Error()),
	}
}
