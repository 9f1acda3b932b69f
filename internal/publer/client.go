// Package publer posts content through the Publer scheduling API.
package publer

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

	"github.com/jonesrussell/gopost/internal/logger"
)

const defaultBaseURL = "https://app.publer.io/api/v1"

// Client is the shared HTTP client behind every platform target.
type Client struct {
	baseURL     string
	apiKey      string
	workspaceID string
	client      *http.Client
	logger      logger.Logger
}

// NewClient creates a Publer API client.
func NewClient(baseURL, apiKey, workspaceID string, timeout time.Duration, log logger.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("publer api key is required")
	}
	if workspaceID == "" {
		return nil, errors.New("publer workspace id is required")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		workspaceID: workspaceID,
		client:      &http.Client{Timeout: timeout},
		logger:      log,
	}, nil
}

// postRequest is the wire payload for creating one post.
type postRequest struct {
	Network     string      `json:"network"`
	AccountID   string      `json:"account_id"`
	Text        string      `json:"text"`
	Media       []mediaItem `json:"media,omitempty"`
	ScheduledAt string      `json:"scheduled_at,omitempty"`
}

type mediaItem struct {
	URL string `json:"url"`
}

type postResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CreatePost sends one post to Publer and returns the external post ID.
// A future scheduledAt asks Publer to hold the post until then.
func (c *Client) CreatePost(ctx context.Context, network, accountID, text string, mediaURLs []string, scheduledAt *time.Time) (string, error) {
	req := postRequest{
		Network:   network,
		AccountID: accountID,
		Text:      text,
	}
	for _, url := range mediaURLs {
		req.Media = append(req.Media, mediaItem{URL: url})
	}
	if scheduledAt != nil && scheduledAt.After(time.Now()) {
		req.ScheduledAt = scheduledAt.UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal post payload: %w", err)
	}

	endpoint := c.baseURL + "/posts"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer-API "+c.apiKey)
	httpReq.Header.Set("Publer-Workspace-Id", c.workspaceID)

	started := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("publer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read publer response: %w", err)
	}

	var postResp postResponse
	if decodeErr := json.Unmarshal(body, &postResp); decodeErr != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("decode publer response: %w", decodeErr)
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// Publer rejected the post itself; retrying the same payload is futile.
		return "", &requestRejectedError{network: network, detail: postResp.Error}
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return "", fmt.Errorf("publer returned %d %s: %s", resp.StatusCode, resp.Status, truncate(string(body), 200))
	}

	if postResp.ID == "" {
		return "", errors.New("publer response has no post id")
	}

	c.logger.Debug("Post created",
		logger.String("network", network),
		logger.String("post_id", postResp.ID),
		logger.Duration("elapsed", time.Since(started)),
	)
	return postResp.ID, nil
}

// requestRejectedError marks a 422 from Publer; the targets translate it
// into a publish.ValidationError.
type requestRejectedError struct {
	network string
	detail  string
}

func (e *requestRejectedError) Error() string {
	if e.detail == "" {
		return fmt.Sprintf("%s post rejected", e.network)
	}
	return fmt.Sprintf("%s post rejected: %s", e.network, e.detail)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
