// Package devops is a thin adapter over the Azure DevOps work item tracking
// REST API.
package devops

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const apiVersion = "7.0"

type Client struct {
	httpClient   *http.Client
	baseURL      string // https://dev.azure.com/<organization>
	organization string
	pat          string
}

func NewClient(organization, pat string) (*Client, error) {
	if organization == "" || pat == "" {
		return nil, errors.New("devops: organization and PAT are required")
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      "https://dev.azure.com/" + organization,
		organization: organization,
		pat:          pat,
	}, nil
}

func (c *Client) Organization() string { return c.organization }

// WorkItem is the raw API shape; the work item service maps it onto the
// persisted model.
type WorkItem struct {
	ID     int            `json:"id"`
	Fields map[string]any `json:"fields"`
}

type wiqlRequest struct {
	Query string `json:"query"`
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

// QueryWorkItemIDs runs a WIQL query against a project and returns matching
// work item ids.
func (c *Client) QueryWorkItemIDs(ctx context.Context, project, wiql string) ([]int, error) {
	body, err := json.Marshal(wiqlRequest{Query: wiql})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/_apis/wit/wiql?api-version=%s", c.baseURL, project, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	var parsed wiqlResponse
	if err := c.do(req, &parsed); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(parsed.WorkItems))
	for _, wi := range parsed.WorkItems {
		ids = append(ids, wi.ID)
	}
	return ids, nil
}

type workItemsResponse struct {
	Value []WorkItem `json:"value"`
}

// GetWorkItems fetches work items by id, chunked to the API's 200-id limit.
func (c *Client) GetWorkItems(ctx context.Context, ids []int) ([]WorkItem, error) {
	const chunkSize = 200

	var out []WorkItem
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}

		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.Itoa(id))
		}

		url := fmt.Sprintf("%s/_apis/wit/workitems?ids=%s&api-version=%s",
			c.baseURL, strings.Join(parts, ","), apiVersion)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		c.authorize(req)

		var parsed workItemsResponse
		if err := c.do(req, &parsed); err != nil {
			return nil, err
		}
		out = append(out, parsed.Value...)
	}
	return out, nil
}

func (c *Client) authorize(req *http.Request) {
	// PAT auth: empty user, token as password
	req.SetBasicAuth("", c.pat)
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("devops: api returned %d: %s", resp.StatusCode, string(snippet))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// Field helpers: ADO field values arrive as loosely typed JSON.

func (w WorkItem) StringField(name string) string {
	if v, ok := w.Fields[name].(string); ok {
		return v
	}
	return ""
}

func (w WorkItem) IdentityField(name string) string {
	if m, ok := w.Fields[name].(map[string]any); ok {
		if s, ok := m["displayName"].(string); ok {
			return s
		}
	}
	return ""
}

func (w WorkItem) FieldsJSON() ([]byte, error) {
	return json.Marshal(w.Fields)
}

func (w WorkItem) TimeField(name string) time.Time {
	if s, ok := w.Fields[name].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
