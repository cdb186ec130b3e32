// Package embedding wraps the Azure OpenAI embeddings REST API behind the
// relevance.EmbeddingClient interface.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIVersion = "2024-06-01"

	// maxBatchSize bounds one REST call; larger inputs are chunked.
	maxBatchSize = 16
)

type AzureOpenAI struct {
	httpClient *http.Client
	endpoint   string
	deployment string
	apiVersion string
	apiKey     string
}

func NewAzureOpenAI(endpoint, deployment, apiKey string) (*AzureOpenAI, error) {
	if endpoint == "" || deployment == "" || apiKey == "" {
		return nil, errors.New("embedding: endpoint, deployment, and api key are required")
	}
	return &AzureOpenAI{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		deployment: deployment,
		apiVersion: defaultAPIVersion,
		apiKey:     apiKey,
	}, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *AzureOpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding: expected 1 vector, got %d", len(vectors))
	}
	return vectors[0], nil
}

func (c *AzureOpenAI) EmbedBatch(ctx context.Context, texts []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]

		vectors, err := c.call(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for i, vec := range vectors {
			if i < len(chunk) && len(vec) > 0 {
				out[chunk[i]] = vec
			}
		}
	}
	return out, nil
}

func (c *AzureOpenAI) call(ctx context.Context, input []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: input})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding: api returned %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(input))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}
