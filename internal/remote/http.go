package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Client is the HTTP implementation of Publisher, StatusClient, and
// AssetClient against the production-tracking service's REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *log.Logger
}

// NewClient creates a client for the given server.
// If logger is nil, a default logger writing to stderr is used.
func NewClient(baseURL, apiKey string, logger *log.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}, nil
}

// Publish implements Publisher.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/notes", req, &resp); err != nil {
		return "", fmt.Errorf("publish %s: %w", req.EntityID, err)
	}
	return resp.ID, nil
}

// FetchStatusesForEntity implements StatusClient.
func (c *Client) FetchStatusesForEntity(ctx context.Context, entityType, entityID string) (*EntityStatus, error) {
	var resp EntityStatus
	path := fmt.Sprintf("/api/entities/%s/%s/statuses",
		url.PathEscape(entityType), url.PathEscape(entityID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch statuses for %s/%s: %w", entityType, entityID, err)
	}
	return &resp, nil
}

// UpdateEntityStatus implements StatusClient.
func (c *Client) UpdateEntityStatus(ctx context.Context, entityType, entityID, statusID string) error {
	body := map[string]string{"status_id": statusID}
	path := fmt.Sprintf("/api/entities/%s/%s/status",
		url.PathEscape(entityType), url.PathEscape(entityID))
	if err := c.doJSON(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("update status for %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

// FetchAsset implements AssetClient.
func (c *Client) FetchAsset(ctx context.Context, componentID string, opts AssetOptions) ([]byte, error) {
	u := fmt.Sprintf("%s/api/components/%s/thumbnail", c.baseURL, url.PathEscape(componentID))
	if opts.Size != "" {
		u += "?size=" + url.QueryEscape(opts.Size)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build asset request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset %s: %w", componentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch asset %s: server returned %s", componentID, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", componentID, err)
	}
	return data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
