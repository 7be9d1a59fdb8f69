// Package githost publishes pull requests for pushed branches against the
// GitHub REST API.
package githost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.github.com"

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome of a publish attempt. Host-level rejections land
// here; transport failures do not (they come back as *TransportError).
type Result struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	PullRequestURL string `json:"pull_request_url,omitempty"`
	ErrorDetail    string `json:"pull_request_error,omitempty"`
}

// TransportError is a network-level failure talking to the host, as opposed
// to the host rejecting the request.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client talks to one GitHub-compatible host.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (GitHub Enterprise,
// test servers).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// NewClient builds a client authenticating with the given token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseOwnerRepo extracts the owner and repository name from a github.com
// remote URL.
func ParseOwnerRepo(repoURL string) (owner, repo string, err error) {
	idx := strings.Index(repoURL, "github.com/")
	if idx < 0 {
		return "", "", fmt.Errorf("not a github.com URL: %s", repoURL)
	}
	path := strings.TrimSuffix(repoURL[idx+len("github.com/"):], ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("cannot extract owner/repo from %s", repoURL)
	}
	return parts[0], parts[1], nil
}

type pullRequestBody struct {
	Title               string `json:"title"`
	Body                string `json:"body"`
	Head                string `json:"head"`
	Base                string `json:"base"`
	MaintainerCanModify bool   `json:"maintainer_can_modify"`
}

type apiError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pullRequestResponse struct {
	HTMLURL string     `json:"html_url"`
	Message string     `json:"message"`
	Errors  []apiError `json:"errors"`
}

// CreatePullRequest publishes a PR for an already-pushed branch. It first
// verifies the branch is visible on the host; a missing branch yields an
// error result with no creation attempt. Creation targets base "main" and
// retries exactly once with "master" when the rejection names the base
// field.
func (c *Client) CreatePullRequest(ctx context.Context, repoURL, branch, instruction string) (Result, error) {
	owner, repoName, err := ParseOwnerRepo(repoURL)
	if err != nil {
		return Result{}, err
	}

	exists, err := c.branchExists(ctx, owner, repoName, branch)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("Branch %s does not exist or is not accessible", branch),
		}, nil
	}

	body := pullRequestBody{
		Title:               fmt.Sprintf("Automated changes %s", time.Now().Format("2006-01-02 15:04:05")),
		Body:                fmt.Sprintf("Automated pull request created by agent\n\nInstruction: %s", instruction),
		Head:                branch,
		Base:                "main",
		MaintainerCanModify: true,
	}

	status, resp, err := c.createPull(ctx, owner, repoName, body)
	if err != nil {
		return Result{}, err
	}
	if status != http.StatusCreated && mentionsBaseField(resp.Errors) {
		body.Base = "master"
		status, resp, err = c.createPull(ctx, owner, repoName, body)
		if err != nil {
			return Result{}, err
		}
	}

	result := Result{
		Status:  StatusError,
		Message: fmt.Sprintf("Repository ready on branch %s", branch),
	}
	if status == http.StatusCreated {
		result.Status = StatusSuccess
		result.PullRequestURL = resp.HTMLURL
		return result, nil
	}

	msg := resp.Message
	if msg == "" {
		msg = "Unknown error"
	}
	result.ErrorDetail = fmt.Sprintf("Failed to create PR: %s", msg)
	if details := joinErrorDetails(resp.Errors); details != "" {
		result.ErrorDetail += fmt.Sprintf(" - Details: %s", details)
	}
	return result, nil
}

func (c *Client) branchExists(ctx context.Context, owner, repo, branch string) (bool, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/branches/%s", c.baseURL, owner, repo, branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build branch request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &TransportError{Op: "verify branch", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}

func (c *Client) createPull(ctx context.Context, owner, repo string, body pullRequestBody) (int, pullRequestResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, pullRequestResponse{}, fmt.Errorf("marshal pull request: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/pulls", c.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, pullRequestResponse{}, fmt.Errorf("build pull request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, pullRequestResponse{}, &TransportError{Op: "create pull request", Err: err}
	}
	defer resp.Body.Close()

	var decoded pullRequestResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		return resp.StatusCode, pullRequestResponse{}, fmt.Errorf("decode pull request response: %w", err)
	}
	return resp.StatusCode, decoded, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}

func mentionsBaseField(errs []apiError) bool {
	for _, e := range errs {
		if e.Field == "base" || strings.Contains(e.Message, "base") {
			return true
		}
	}
	return false
}

func joinErrorDetails(errs []apiError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Message != "" {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, "; ")
}
