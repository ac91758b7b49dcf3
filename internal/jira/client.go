package jira

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Client is a Jira Cloud REST API v3 client
type Client struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a new Jira client authenticated with email + API token
func NewClient(baseURL, email, apiToken string) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		email:    email,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest performs an HTTP request to the Jira API
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

	req.SetBasicAuth(c.email, c.apiToken)
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

// RawField is one entry from the /rest/api/3/field catalog endpoint
type RawField struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Custom      bool     `json:"custom"`
	Searchable  bool     `json:"searchable"`
	Navigable   bool     `json:"navigable"`
	Orderable   bool     `json:"orderable"`
	ClauseNames []string `json:"clauseNames"`
	Schema      struct {
		Type   string `json:"type"`
		Custom string `json:"custom"`
		System string `json:"system"`
	} `json:"schema"`
}

// ListFields returns the complete field catalog (system and custom fields)
func (c *Client) ListFields() ([]RawField, error) {
	data, err := c.doRequest("GET", "/rest/api/3/field", nil)
	if err != nil {
		return nil, err
	}

	var fields []RawField
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse field list: %w", err)
	}

	return fields, nil
}

// FieldContext is a configuration context for a custom field
type FieldContext struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetFieldContexts returns the contexts configured for a custom field
func (c *Client) GetFieldContexts(fieldID string) ([]FieldContext, error) {
	data, err := c.doRequest("GET", fmt.Sprintf("/rest/api/3/field/%s/context", url.PathEscape(fieldID)), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Values []FieldContext `json:"values"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse field contexts: %w", err)
	}

	return resp.Values, nil
}

// GetContextOptions returns the option list for a custom field in a context
func (c *Client) GetContextOptions(fieldID, contextID string) ([]Option, error) {
	path := fmt.Sprintf("/rest/api/3/field/%s/context/%s/option", url.PathEscape(fieldID), url.PathEscape(contextID))
	data, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Values []struct {
			ID       string `json:"id"`
			Value    string `json:"value"`
			Disabled bool   `json:"disabled"`
		} `json:"values"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse context options: %w", err)
	}

	options := make([]Option, len(resp.Values))
	for i, v := range resp.Values {
		options[i] = Option{ID: v.ID, Value: v.Value, Disabled: v.Disabled}
	}
	return options, nil
}

// Project is a Jira project reference
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// ListProjects returns all projects visible to the authenticated user
func (c *Client) ListProjects() ([]Project, error) {
	data, err := c.doRequest("GET", "/rest/api/3/project", nil)
	if err != nil {
		return nil, err
	}

	var projects []Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse project list: %w", err)
	}

	return projects, nil
}

// GetCreateMetaAllowedValues extracts the allowed values for a field from the
// create-metadata of the first issue type of a project. Used as the fallback
// option source when a field has no queryable context.
func (c *Client) GetCreateMetaAllowedValues(projectKey, fieldID string) ([]Option, error) {
	path := "/rest/api/3/issue/createmeta?projectKeys=" + url.QueryEscape(projectKey) +
		"&expand=projects.issuetypes.fields"
	data, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Projects []struct {
			IssueTypes []struct {
				Fields map[string]struct {
					AllowedValues []struct {
						ID    string `json:"id"`
						Value string `json:"value"`
						Name  string `json:"name"`
					} `json:"allowedValues"`
				} `json:"fields"`
			} `json:"issuetypes"`
		} `json:"projects"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse create metadata: %w", err)
	}

	if len(resp.Projects) == 0 || len(resp.Projects[0].IssueTypes) == 0 {
		return nil, nil
	}

	field, ok := resp.Projects[0].IssueTypes[0].Fields[fieldID]
	if !ok {
		return nil, nil
	}

	options := make([]Option, 0, len(field.AllowedValues))
	for _, av := range field.AllowedValues {
		opt := Option{ID: av.ID, Value: av.Value}
		if opt.Value == "" {
			opt.Value = av.Name
		}
		if opt.ID == "" {
			opt.ID = opt.Value
		}
		options = append(options, opt)
	}
	return options, nil
}

// Issue is a Jira issue with the field subset this server works with
type Issue struct {
	ID     string         `json:"id"`
	Key    string         `json:"key"`
	Fields map[string]any `json:"fields"`
}

// Summary returns the issue summary field, or "" when absent
func (i *Issue) Summary() string {
	s, _ := i.Fields["summary"].(string)
	return s
}

// GetIssue returns an issue by key
func (c *Client) GetIssue(issueKey string) (*Issue, error) {
	data, err := c.doRequest("GET", "/rest/api/3/issue/"+url.PathEscape(issueKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue %s: %w", issueKey, err)
	}

	var issue Issue
	if err := json.Unmarshal(data, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse issue: %w", err)
	}

	return &issue, nil
}

// GetIssueExpanded returns an issue with rendered fields, edit metadata and
// changelog expanded, for the summarize tool
func (c *Client) GetIssueExpanded(issueKey string) (*Issue, error) {
	path := "/rest/api/3/issue/" + url.PathEscape(issueKey) +
		"?expand=renderedFields,names,schema,transitions,editmeta,changelog"
	data, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue %s: %w", issueKey, err)
	}

	var issue Issue
	if err := json.Unmarshal(data, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse issue: %w", err)
	}

	return &issue, nil
}

// SearchResult is the response from the JQL search endpoint
type SearchResult struct {
	Issues     []Issue `json:"issues"`
	Total      int     `json:"total"`
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
}

// SearchIssues runs a JQL query
func (c *Client) SearchIssues(jql string, maxResults, startAt int) (*SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 50
	}

	query := url.Values{}
	query.Set("jql", jql)
	query.Set("maxResults", strconv.Itoa(maxResults))
	query.Set("startAt", strconv.Itoa(startAt))
	query.Set("fields", "summary,description,status,priority,assignee,reporter,created,updated")

	data, err := c.doRequest("GET", "/rest/api/3/search?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	var result SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search result: %w", err)
	}

	return &result, nil
}

// Comment is one issue comment
type Comment struct {
	ID     string `json:"id"`
	Author struct {
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"author"`
	Body    json.RawMessage `json:"body"`
	Created string          `json:"created"`
	Updated string          `json:"updated"`
}

// BodyText flattens the ADF comment body to plain text
func (c *Comment) BodyText() string {
	var doc ADFNode
	if err := json.Unmarshal(c.Body, &doc); err != nil {
		// Jira Server returns plain strings instead of ADF
		var s string
		if json.Unmarshal(c.Body, &s) == nil {
			return s
		}
		return ""
	}
	return doc.PlainText()
}

// GetComments returns the comments on an issue, newest first
func (c *Client) GetComments(issueKey string, maxResults int) ([]Comment, error) {
	if maxResults <= 0 {
		maxResults = 1000
	}

	path := fmt.Sprintf("/rest/api/3/issue/%s/comment?maxResults=%d&orderBy=-created",
		url.PathEscape(issueKey), maxResults)
	data, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments for %s: %w", issueKey, err)
	}

	var resp struct {
		Comments []Comment `json:"comments"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse comments: %w", err)
	}

	return resp.Comments, nil
}

// AddComment posts a plain-text comment, wrapped as an ADF document
func (c *Client) AddComment(issueKey, text string) error {
	body := map[string]any{
		"body": NewADFDocument(text),
	}
	_, err := c.doRequest("POST", "/rest/api/3/issue/"+url.PathEscape(issueKey)+"/comment", body)
	if err != nil {
		return fmt.Errorf("failed to add comment to %s: %w", issueKey, err)
	}
	return nil
}

// FieldRejectionError is an update rejection that names the offending fields,
// parsed from Jira's per-field "errors" object
type FieldRejectionError struct {
	IssueKey   string
	StatusCode int
	Fields     map[string]string // field ID → error message
}

func (e *FieldRejectionError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return fmt.Sprintf("update of %s rejected (status %d), failing fields: %s",
		e.IssueKey, e.StatusCode, strings.Join(names, ", "))
}

// FailedFields returns the rejected field IDs in sorted order
func (e *FieldRejectionError) FailedFields() []string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// UpdateIssueFields submits a field update. When Jira rejects the update and
// names the offending fields, the error is a *FieldRejectionError so callers
// can strip and retry.
func (c *Client) UpdateIssueFields(issueKey string, fields map[string]any) error {
	body := map[string]any{"fields": fields}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal update body: %w", err)
	}

	req, err := http.NewRequest("PUT", c.baseURL+"/rest/api/3/issue/"+url.PathEscape(issueKey), bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var parsed struct {
			Errors        map[string]string `json:"errors"`
			ErrorMessages []string          `json:"errorMessages"`
		}
		if json.Unmarshal(respBody, &parsed) == nil && len(parsed.Errors) > 0 {
			return &FieldRejectionError{
				IssueKey:   issueKey,
				StatusCode: resp.StatusCode,
				Fields:     parsed.Errors,
			}
		}
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// PullRequest is one entry from the dev-status integration API
type PullRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Status       string `json:"status"`
	Repository   string `json:"repositoryName"`
	SourceBranch string `json:"sourceBranch"`
	TargetBranch string `json:"targetBranch"`
	Author       string `json:"author"`
	LastUpdate   string `json:"lastUpdate"`
}

// GetPullRequestsForIssue queries the dev-status API for Bitbucket pull
// requests linked to an issue, addressed by its numeric remote ID
func (c *Client) GetPullRequestsForIssue(remoteID string) ([]PullRequest, error) {
	query := url.Values{}
	query.Set("issueId", remoteID)
	query.Set("applicationType", "bitbucket")
	query.Set("dataType", "pullrequest")

	data, err := c.doRequest("GET", "/rest/dev-status/latest/issue/detail?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull requests: %w", err)
	}

	var resp struct {
		Detail []struct {
			PullRequests []struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				URL    string `json:"url"`
				Status string `json:"status"`
				Author struct {
					Name string `json:"name"`
				} `json:"author"`
				Source struct {
					Branch string `json:"branch"`
				} `json:"source"`
				Destination struct {
					Branch string `json:"branch"`
				} `json:"destination"`
				RepositoryName string `json:"repositoryName"`
				LastUpdate     string `json:"lastUpdate"`
			} `json:"pullRequests"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse dev-status response: %w", err)
	}

	var prs []PullRequest
	for _, d := range resp.Detail {
		for _, pr := range d.PullRequests {
			prs = append(prs, PullRequest{
				ID:           pr.ID,
				Name:         pr.Name,
				URL:          pr.URL,
				Status:       pr.Status,
				Repository:   pr.RepositoryName,
				SourceBranch: pr.Source.Branch,
				TargetBranch: pr.Destination.Branch,
				Author:       pr.Author.Name,
				LastUpdate:   pr.LastUpdate,
			})
		}
	}

	// Newest first
	sort.SliceStable(prs, func(i, j int) bool {
		return prs[i].LastUpdate > prs[j].LastUpdate
	})

	return prs, nil
}
