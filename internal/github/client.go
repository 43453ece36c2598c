package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rodrigomiquilino/wwm-review/internal/config"
	"github.com/rodrigomiquilino/wwm-review/pkg/log"
	"golang.org/x/time/rate"
)

// Client is a small GitHub REST client covering the calls this service
// needs: identity, collaborator permission, issue CRUD, comments and raw
// file content. Thread-safe for concurrent use.
//
// Reads work without a token at a reduced rate limit; writes require one.
type Client struct {
	config     config.GitHubConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	rawURL     string
}

// NewClient creates a client from the GitHub configuration section.
func NewClient(cfg config.GitHubConfig) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("github api url is required")
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		config:     cfg,
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		rawURL:     strings.TrimRight(cfg.RawURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// CurrentUser returns the identity behind the configured token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, "GET", "/user", nil, &user); err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	return &user, nil
}

// CollaboratorPermission returns the permission level ("admin", "write",
// "read", "none") that username holds on the hub repository.
func (c *Client) CollaboratorPermission(ctx context.Context, username string) (string, error) {
	var result struct {
		Permission string `json:"permission"`
	}
	path := fmt.Sprintf("/repos/%s/%s/collaborators/%s/permission",
		c.config.Owner, c.config.Repo, url.PathEscape(username))
	if err := c.do(ctx, "GET", path, nil, &result); err != nil {
		return "", fmt.Errorf("fetch collaborator permission: %w", err)
	}
	return result.Permission, nil
}

// ListIssues lists issues on the hub repository, filtered by opts.
func (c *Client) ListIssues(ctx context.Context, opts ListIssuesOptions) ([]Issue, error) {
	query := url.Values{}
	if opts.State != "" {
		query.Set("state", opts.State)
	}
	if opts.Labels != "" {
		query.Set("labels", opts.Labels)
	}
	if opts.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	path := fmt.Sprintf("/repos/%s/%s/issues", c.config.Owner, c.config.Repo)
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var issues []Issue
	if err := c.do(ctx, "GET", path, nil, &issues); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return issues, nil
}

// GetIssue fetches a single issue by number.
func (c *Client) GetIssue(ctx context.Context, number int) (*Issue, error) {
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", c.config.Owner, c.config.Repo, number)
	if err := c.do(ctx, "GET", path, nil, &issue); err != nil {
		return nil, fmt.Errorf("fetch issue #%d: %w", number, err)
	}
	return &issue, nil
}

// CreateIssue opens a new issue on the hub repository.
func (c *Client) CreateIssue(ctx context.Context, req CreateIssueRequest) (*Issue, error) {
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues", c.config.Owner, c.config.Repo)
	if err := c.do(ctx, "POST", path, req, &issue); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return &issue, nil
}

// UpdateIssue patches an existing issue. Only non-nil fields are sent.
func (c *Client) UpdateIssue(ctx context.Context, number int, req UpdateIssueRequest) (*Issue, error) {
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", c.config.Owner, c.config.Repo, number)
	if err := c.do(ctx, "PATCH", path, req, &issue); err != nil {
		return nil, fmt.Errorf("update issue #%d: %w", number, err)
	}
	return &issue, nil
}

// AddLabels appends labels to an issue without touching existing ones.
func (c *Client) AddLabels(ctx context.Context, number int, labels []string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", c.config.Owner, c.config.Repo, number)
	payload := map[string][]string{"labels": labels}
	if err := c.do(ctx, "POST", path, payload, nil); err != nil {
		return fmt.Errorf("add labels to issue #%d: %w", number, err)
	}
	return nil
}

// CreateComment posts a comment on an issue.
func (c *Client) CreateComment(ctx context.Context, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", c.config.Owner, c.config.Repo, number)
	payload := map[string]string{"body": body}
	if err := c.do(ctx, "POST", path, payload, nil); err != nil {
		return fmt.Errorf("comment on issue #%d: %w", number, err)
	}
	return nil
}

// FetchRawFile downloads a file from a repository branch via the raw
// content host. repo is in "owner/name" form.
func (c *Client) FetchRawFile(ctx context.Context, repo, branch, path string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	rawURL := fmt.Sprintf("%s/%s/%s/%s", c.rawURL, repo, branch, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return "", fmt.Errorf("raw fetch timed out: %w", err)
		}
		return "", fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("raw fetch %s", path)}
	}
	return string(body), nil
}

// do makes a raw HTTP request to the REST API and decodes the response
// into out (when out is non-nil).
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return fmt.Errorf("request timed out: %w", err)
		}
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	logRateLimit(resp, method, path)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFromResponse(resp, responseBody)
	}

	if out != nil {
		if err := json.Unmarshal(responseBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// logRateLimit surfaces quota headroom so operators can correlate 403s
// with exhaustion instead of permissions.
func logRateLimit(resp *http.Response, method, path string) {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return
	}
	if n, err := strconv.Atoi(remaining); err == nil && n <= 5 {
		log.Warn("github: rate limit nearly exhausted (%d left) after %s %s", n, method, path)
	}
}

func apiErrorFromResponse(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		apiErr.Message = parsed.Message
	}

	if resp.StatusCode == 403 && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
			if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
				apiErr.RateLimitReset = time.Unix(epoch, 0)
				log.Warn("github: rate limited until %s", apiErr.RateLimitReset.Format(time.RFC3339))
			}
		}
	}
	return apiErr
}
