// Package bitbucket is a minimal Bitbucket Cloud 2.0 API client covering
// repository listing, pull request diffs and pull request comments.
package bitbucket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the Bitbucket Cloud API root
const DefaultBaseURL = "https://api.bitbucket.org/2.0"

// Client is a Bitbucket Cloud 2.0 API client. Bitbucket accepts the same
// Atlassian account email with an API token as basic auth.
type Client struct {
	baseURL    string
	email      string
	apiKey     string
	workspace  string
	httpClient *http.Client
}

// NewClient creates a Bitbucket client for one workspace
func NewClient(baseURL, email, apiKey, workspace string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		email:     email,
		apiKey:    apiKey,
		workspace: workspace,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Workspace returns the configured workspace slug
func (c *Client) Workspace() string {
	return c.workspace
}

func (c *Client) doRequest(method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.email, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// Repository is a workspace repository, trimmed to the fields requested in
// the list query
type Repository struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	FullName string `json:"full_name"`
	Links    struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
}

// ListRepositories returns up to pageSize repositories of the workspace
func (c *Client) ListRepositories(pageSize int) ([]Repository, error) {
	if pageSize <= 0 {
		pageSize = 50
	}

	query := url.Values{}
	query.Set("pagelen", strconv.Itoa(pageSize))
	query.Set("fields", "values.name,values.slug,values.full_name,values.links.html.href")

	path := "/repositories/" + url.PathEscape(c.workspace) + "?" + query.Encode()
	data, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories for %s: %w", c.workspace, err)
	}

	var resp struct {
		Values []Repository `json:"values"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse repository list: %w", err)
	}

	return resp.Values, nil
}

// GetPullRequestDiff returns the raw unified diff of a pull request
func (c *Client) GetPullRequestDiff(ref PullRequestRef) (string, error) {
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%s/diff",
		url.PathEscape(ref.Workspace), url.PathEscape(ref.Repository), url.PathEscape(ref.ID))

	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.email, c.apiKey)
	// The diff endpoint serves text/plain, not JSON

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return string(body), nil
}

// PullRequestComment is the response to posting a comment
type PullRequestComment struct {
	ID      int `json:"id"`
	Content struct {
		Raw string `json:"raw"`
	} `json:"content"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
}

// AddPullRequestComment posts a comment on a pull request
func (c *Client) AddPullRequestComment(ref PullRequestRef, text string) (*PullRequestComment, error) {
	path := fmt.Sprintf("/repositories/%s/%s/pullrequests/%s/comments",
		url.PathEscape(ref.Workspace), url.PathEscape(ref.Repository), url.PathEscape(ref.ID))

	body := map[string]any{
		"content": map[string]any{"raw": text},
	}

	data, err := c.doRequest("POST", path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment to pull request %s: %w", ref.ID, err)
	}

	var comment PullRequestComment
	if err := json.Unmarshal(data, &comment); err != nil {
		return nil, fmt.Errorf("failed to parse comment response: %w", err)
	}

	return &comment, nil
}
