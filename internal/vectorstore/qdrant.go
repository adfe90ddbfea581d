// Package vectorstore talks to the external nearest-neighbor service
// (Qdrant) over its REST API. All memories live in one collection with the
// owner ID carried as payload, filtered at query time.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const collectionName = "recallmesh_memories"

// Client interfaces with the Qdrant REST API for vector operations.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dimension  int
}

func NewClient(baseURL string, dimension int) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dimension: dimension,
	}
}

// Hit is a single scored nearest-neighbor result.
type Hit struct {
	MemoryID string
	Score    float64
}

// HealthCheck verifies Qdrant connectivity.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant health check: status %d", resp.StatusCode)
	}
	return nil
}

// EnsureCollection creates the memories collection if it doesn't exist.
func (c *Client) EnsureCollection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/collections/"+collectionName, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.dimension,
			"distance": "Cosine",
		},
	}
	return c.put(ctx, "/collections/"+collectionName, body)
}

// Upsert inserts or updates a memory's embedding vector.
func (c *Client) Upsert(ctx context.Context, memoryID, ownerID string, vector []float32) error {
	body := map[string]any{
		"points": []map[string]any{
			{
				"id":     memoryID,
				"vector": vector,
				"payload": map[string]any{
					"owner_id": ownerID,
				},
			},
		},
	}
	return c.put(ctx, "/collections/"+collectionName+"/points", body)
}

// Query finds the owner's nearest memories to the given vector. IDs in
// exclude are filtered out (the triggering memory during graph linking).
func (c *Client) Query(ctx context.Context, ownerID string, vector []float32, limit int, exclude []string) ([]Hit, error) {
	filter := map[string]any{
		"must": []map[string]any{
			{"key": "owner_id", "match": map[string]any{"value": ownerID}},
		},
	}
	if len(exclude) > 0 {
		filter["must_not"] = []map[string]any{
			{"has_id": exclude},
		}
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": false,
		"filter":       filter,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/collections/"+collectionName+"/points/search", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qdrant search: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Result []struct {
			ID    string  `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		hits = append(hits, Hit{MemoryID: r.ID, Score: r.Score})
	}
	return hits, nil
}

// Delete removes a memory's vector.
func (c *Client) Delete(ctx context.Context, memoryID string) error {
	body := map[string]any{
		"points": []string{memoryID},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/collections/"+collectionName+"/points/delete", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant delete: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) put(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant put %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant put %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return nil
}
