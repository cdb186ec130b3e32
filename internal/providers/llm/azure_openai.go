package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultAPIVersion = "2024-06-01"

type AzureOpenAI struct {
	httpClient *http.Client
	endpoint   string // https://<resource>.openai.azure.com
	deployment string
	apiVersion string
	apiKey     string
}

func NewAzureOpenAI(endpoint, deployment, apiKey string) (*AzureOpenAI, error) {
	if endpoint == "" || deployment == "" || apiKey == "" {
		return nil, errors.New("llm: endpoint, deployment, and api key are required")
	}
	return &AzureOpenAI{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		deployment: deployment,
		apiVersion: defaultAPIVersion,
		apiKey:     apiKey,
	}, nil
}

func (a *AzureOpenAI) Close() error { return nil }

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (a *AzureOpenAI) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		body, _ := json.Marshal(chatRequest{
			Messages: []chatMessage{{Role: "user", Content: prompt}},
			Stream:   true,
		})

		url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			a.endpoint, a.deployment, a.apiVersion)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", a.apiKey)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errs <- fmt.Errorf("llm: chat completions returned %d", resp.StatusCode)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				continue
			}

			var chunk chatChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue // tolerate malformed keep-alive frames
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					select {
					case out <- choice.Delta.Content:
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()

	return out, errs
}
