package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/achou/atlassian-mcp-server/internal/bitbucket"
	"github.com/achou/atlassian-mcp-server/internal/jira"
)

// ToolHandlers contains all MCP tool handlers
type ToolHandlers struct {
	jira      *jira.Client
	catalog   *jira.FieldCatalog
	updater   *jira.Updater
	directory *jira.IssueDirectory

	// bitbucket is nil when the workspace is not configured; the Bitbucket
	// tools then answer with a configuration hint instead of failing hard.
	bitbucket *bitbucket.Client
	repos     *bitbucket.RepoCache

	readOnly bool
}

// NewToolHandlers creates new tool handlers. bbClient may be nil.
func NewToolHandlers(jiraClient *jira.Client, bbClient *bitbucket.Client) *ToolHandlers {
	readOnly := os.Getenv("ATLASSIAN_MCP_READ_ONLY") == "true"
	if readOnly {
		slog.Info("read-only mode enabled - all write operations will be blocked")
	}

	catalog := jira.NewFieldCatalog(jiraClient)
	h := &ToolHandlers{
		jira:      jiraClient,
		catalog:   catalog,
		updater:   jira.NewUpdater(jiraClient, catalog),
		directory: jira.NewIssueDirectory(jiraClient),
		readOnly:  readOnly,
	}
	if bbClient != nil {
		h.bitbucket = bbClient
		h.repos = bitbucket.NewRepoCache(bbClient)
	}
	return h
}

// checkReadOnly returns an error if the server is in read-only mode.
func (h *ToolHandlers) checkReadOnly() error {
	if h.readOnly {
		return fmt.Errorf("server is in read-only mode - write operations are disabled")
	}
	return nil
}

// McpServer interface for registering tools
type McpServer interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// RegisterTools registers all MCP tools on the server
func (h *ToolHandlers) RegisterTools(s McpServer) {
	// Jira issues
	s.AddTool(mcp.NewTool("search_issues",
		mcp.WithDescription("Search Jira issues with a JQL query"),
		mcp.WithString("jql",
			mcp.Required(),
			mcp.Description("JQL query string (e.g. 'project = DEMO AND status = Open ORDER BY created DESC')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of results to return (default: 50)"),
		),
		mcp.WithNumber("startAt",
			mcp.Description("Pagination offset (default: 0)"),
		),
	), h.handleSearchIssues)

	s.AddTool(mcp.NewTool("get_issue",
		mcp.WithDescription("Get a Jira issue by key"),
		mcp.WithString("issueKey",
			mcp.Required(),
			mcp.Description("Issue key (e.g. DEMO-123)"),
		),
	), h.handleGetIssue)

	s.AddTool(mcp.NewTool("summarize_ticket",
		mcp.WithDescription("Comprehensive ticket summary: basic info, versions, steps to reproduce, root cause, solution and discussion analysis"),
		mcp.WithString("issueKey",
			mcp.Required(),
			mcp.Description("Issue key (e.g. DEMO-123)"),
		),
	), h.handleSummarizeTicket)

	s.AddTool(mcp.NewTool("add_comment",
		mcp.WithDescription("Add a plain-text comment to a Jira issue"),
		mcp.WithString("issueKey",
			mcp.Required(),
			mcp.Description("Issue key (e.g. DEMO-123)"),
		),
		mcp.WithString("comment",
			mcp.Required(),
			mcp.Description("Comment text"),
		),
	), h.handleAddComment)

	s.AddTool(mcp.NewTool("enhanced_jira_update",
		mcp.WithDescription("Unified issue update: standard fields, custom fields by ID or name, dropdown validation, dry run and partial-failure recovery"),
		mcp.WithString("issueKey",
			mcp.Required(),
			mcp.Description("Issue key (e.g. DEMO-123)"),
		),
		mcp.WithObject("fields",
			mcp.Description("Standard fields as a bulk map (summary, description, priority, ...)"),
		),
		mcp.WithString("summary", mcp.Description("Issue summary")),
		mcp.WithString("description", mcp.Description("Issue description (plain text)")),
		mcp.WithString("priority", mcp.Description("Priority name")),
		mcp.WithString("assignee", mcp.Description("Assignee name")),
		mcp.WithString("status", mcp.Description("Status name")),
		mcp.WithArray("labels", mcp.Description("Labels to set")),
		mcp.WithArray("components", mcp.Description("Component names")),
		mcp.WithArray("fixVersions", mcp.Description("Fix version names")),
		mcp.WithObject("customFields",
			mcp.Description("Custom fields keyed by field ID (customfield_xxxxx)"),
		),
		mcp.WithObject("customFieldsByName",
			mcp.Description("Custom fields keyed by display name; unresolvable names are recorded as a comment"),
		),
		mcp.WithBoolean("validateDropdowns",
			mcp.Description("Validate dropdown values against the field's options (default: true)"),
		),
		mcp.WithBoolean("addComment",
			mcp.Description("Add an audit comment describing the update (default: true)"),
		),
		mcp.WithBoolean("allowPartialUpdates",
			mcp.Description("On per-field rejection, retry once with the rejected fields stripped (default: false)"),
		),
		mcp.WithBoolean("dryRun",
			mcp.Description("Preview the computed payload without updating anything (default: false)"),
		),
	), h.handleEnhancedUpdate)

	// Custom field catalog
	s.AddTool(mcp.NewTool("list_custom_fields",
		mcp.WithDescription("List all custom fields with their types and dropdown options"),
	), h.handleListCustomFields)

	s.AddTool(mcp.NewTool("get_custom_field_by_name",
		mcp.WithDescription("Find a custom field by display name (case-insensitive partial match)"),
		mcp.WithString("fieldName",
			mcp.Required(),
			mcp.Description("Field display name or fragment (e.g. 'Severity')"),
		),
	), h.handleGetCustomFieldByName)

	s.AddTool(mcp.NewTool("get_custom_field_by_id",
		mcp.WithDescription("Get a custom field's details by its ID"),
		mcp.WithString("fieldId",
			mcp.Required(),
			mcp.Description("Field ID (e.g. customfield_10001)"),
		),
	), h.handleGetCustomFieldByID)

	s.AddTool(mcp.NewTool("get_custom_field_mappings",
		mcp.WithDescription("Get the full field ID to name mapping table"),
	), h.handleGetCustomFieldMappings)

	s.AddTool(mcp.NewTool("clear_custom_field_cache",
		mcp.WithDescription("Drop the cached custom field catalog so the next access refetches"),
	), h.handleClearCustomFieldCache)

	// Bitbucket
	s.AddTool(mcp.NewTool("get_bitbucket_repositories",
		mcp.WithDescription("List repositories in the configured Bitbucket workspace (cached)"),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of repositories to return (default: 50)"),
		),
	), h.handleGetRepositories)

	s.AddTool(mcp.NewTool("get_pull_requests_for_issue",
		mcp.WithDescription("List Bitbucket pull requests linked to a Jira issue"),
		mcp.WithString("issueKey",
			mcp.Required(),
			mcp.Description("Issue key (e.g. DEMO-123)"),
		),
	), h.handleGetPullRequestsForIssue)

	s.AddTool(mcp.NewTool("get_pr_diff",
		mcp.WithDescription("Get per-file change statistics for a Bitbucket pull request"),
		mcp.WithString("prUrl",
			mcp.Required(),
			mcp.Description("Pull request URL (e.g. https://bitbucket.org/workspace/repo/pull-requests/123)"),
		),
	), h.handleGetPrDiff)

	s.AddTool(mcp.NewTool("add_bitbucket_comment",
		mcp.WithDescription("Add a comment to a Bitbucket pull request"),
		mcp.WithString("prUrl",
			mcp.Required(),
			mcp.Description("Pull request URL"),
		),
		mcp.WithString("comment",
			mcp.Required(),
			mcp.Description("Comment text"),
		),
	), h.handleAddBitbucketComment)

	// Caches
	s.AddTool(mcp.NewTool("reset_mcp_server_cache",
		mcp.WithDescription("Clear server caches (issue identities, custom fields, repositories) with before/after statistics"),
		mcp.WithBoolean("clearAll",
			mcp.Description("Clear every cache (default when no other flag is set)"),
		),
		mcp.WithBoolean("clearIssueCache",
			mcp.Description("Clear the issue identity cache"),
		),
		mcp.WithBoolean("clearFieldCache",
			mcp.Description("Clear the custom field catalog"),
		),
		mcp.WithBoolean("clearRepositoryCache",
			mcp.Description("Clear the repository list cache"),
		),
		mcp.WithString("issueKey",
			mcp.Description("Clear only this issue's identity entry"),
		),
	), h.handleResetCache)

	// Export
	s.AddTool(mcp.NewTool("issues_export_excel",
		mcp.WithDescription("Export a JQL search result as an XLSX workbook (base64-encoded)"),
		mcp.WithString("jql",
			mcp.Required(),
			mcp.Description("JQL query string"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of issues to export (default: 100)"),
		),
	), h.handleIssuesExportExcel)
}

// Handler implementations

func (h *ToolHandlers) handleSearchIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jql, err := req.RequireString("jql")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxResults := req.GetInt("maxResults", 50)
	startAt := req.GetInt("startAt", 0)

	result, err := h.jira.SearchIssues(jql, maxResults, startAt)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search issues: %v", err)), nil
	}

	issues := make([]map[string]any, len(result.Issues))
	for i, issue := range result.Issues {
		issues[i] = formatIssue(issue)
	}

	return jsonResult(map[string]any{
		"issues":     issues,
		"total":      result.Total,
		"startAt":    result.StartAt,
		"maxResults": result.MaxResults,
	})
}

func (h *ToolHandlers) handleGetIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, err := req.RequireString("issueKey")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issue, err := h.jira.GetIssue(issueKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get issue: %v", err)), nil
	}

	return jsonResult(formatIssueDetail(issue))
}

func (h *ToolHandlers) handleSummarizeTicket(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, err := req.RequireString("issueKey")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, err := jira.Summarize(h.jira, h.catalog, issueKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to summarize ticket %s: %v", issueKey, err)), nil
	}

	return jsonResult(summary)
}

func (h *ToolHandlers) handleAddComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.checkReadOnly(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issueKey, err := req.RequireString("issueKey")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comment, err := req.RequireString("comment")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := h.jira.AddComment(issueKey, comment); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add comment: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"issueKey": issueKey,
		"message":  fmt.Sprintf("comment added to %s", issueKey),
	})
}

func (h *ToolHandlers) handleEnhancedUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, err := req.RequireString("issueKey")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	update := jira.UpdateRequest{
		IssueKey:            issueKey,
		Fields:              getMapArg(req, "fields"),
		Summary:             req.GetString("summary", ""),
		Description:         req.GetString("description", ""),
		Priority:            req.GetString("priority", ""),
		Assignee:            req.GetString("assignee", ""),
		Status:              req.GetString("status", ""),
		Labels:              stringSlice(getArrayArg(req, "labels")),
		Components:          stringSlice(getArrayArg(req, "components")),
		FixVersions:         stringSlice(getArrayArg(req, "fixVersions")),
		CustomFields:        getMapArg(req, "customFields"),
		CustomFieldsByName:  getMapArg(req, "customFieldsByName"),
		ValidateDropdowns:   req.GetBool("validateDropdowns", true),
		AddComment:          req.GetBool("addComment", true),
		AllowPartialUpdates: req.GetBool("allowPartialUpdates", false),
		DryRun:              req.GetBool("dryRun", false),
	}

	// Dry runs never mutate, so read-only mode still allows them
	if !update.DryRun {
		if err := h.checkReadOnly(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	result, err := h.updater.Apply(update)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update issue: %v", err)), nil
	}

	return jsonResult(result)
}

func (h *ToolHandlers) handleListCustomFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	descriptors, err := h.catalog.ListDescriptors()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list custom fields: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"fields": descriptors,
		"count":  len(descriptors),
	})
}

func (h *ToolHandlers) handleGetCustomFieldByName(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fieldName, err := req.RequireString("fieldName")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fd, err := h.catalog.ResolveByName(fieldName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve custom field: %v", err)), nil
	}
	if fd == nil {
		return mcp.NewToolResultError(fmt.Sprintf("No custom field matching %q", fieldName)), nil
	}

	return jsonResult(fd)
}

func (h *ToolHandlers) handleGetCustomFieldByID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fieldID, err := req.RequireString("fieldId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fd, err := h.catalog.ResolveByID(fieldID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve custom field: %v", err)), nil
	}
	if fd == nil {
		return mcp.NewToolResultError(fmt.Sprintf("No custom field with ID %q", fieldID)), nil
	}

	return jsonResult(fd)
}

func (h *ToolHandlers) handleGetCustomFieldMappings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	descriptors, err := h.catalog.ListDescriptors()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get custom field mappings: %v", err)), nil
	}

	mappings := make(map[string]any, len(descriptors))
	for _, fd := range descriptors {
		mappings[fd.ID] = map[string]any{
			"name":           fd.Name,
			"type":           fd.KindName,
			"isDropdown":     fd.IsDropdown,
			"allowsMultiple": fd.AllowsMultiple,
			"optionCount":    len(fd.Options),
		}
	}

	return jsonResult(map[string]any{
		"mappings":  mappings,
		"count":     len(mappings),
		"cacheAge":  h.catalog.Age().String(),
		"cacheSize": h.catalog.Size(),
	})
}

func (h *ToolHandlers) handleClearCustomFieldCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	size := h.catalog.Size()
	h.catalog.Invalidate()

	return jsonResult(map[string]any{
		"message":        "custom field cache cleared",
		"clearedEntries": size,
	})
}

func (h *ToolHandlers) handleGetRepositories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.repos == nil {
		return mcp.NewToolResultError(bitbucketNotConfigured), nil
	}

	maxResults := req.GetInt("maxResults", 50)

	listing, err := h.repos.List(maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get Bitbucket repositories: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"values": listing.Repositories,
		"cached": listing.Cached,
		"size":   len(listing.Repositories),
	})
}

func (h *ToolHandlers) handleGetPullRequestsForIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, err := req.RequireString("issueKey")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	identity, err := h.directory.Lookup(issueKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve issue %s: %v", issueKey, err)), nil
	}

	prs, err := h.jira.GetPullRequestsForIssue(identity.RemoteID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get pull requests: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"issueKey":     issueKey,
		"issueSummary": identity.Summary,
		"cached":       identity.Cached,
		"pullRequests": prs,
		"count":        len(prs),
	})
}

func (h *ToolHandlers) handleGetPrDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.bitbucket == nil {
		return mcp.NewToolResultError(bitbucketNotConfigured), nil
	}

	prURL, err := req.RequireString("prUrl")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ref, err := bitbucket.ParsePullRequestURL(prURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	diff, err := h.bitbucket.GetPullRequestDiff(*ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get pull request diff: %v", err)), nil
	}

	stats := bitbucket.ParseDiff(diff)

	return jsonResult(map[string]any{
		"table": map[string]any{
			"headers": stats.Table()[0],
			"rows":    stats.Table()[1:],
		},
		"summary": map[string]any{
			"prUrl":          prURL,
			"workspace":      ref.Workspace,
			"repository":     ref.Repository,
			"prId":           ref.ID,
			"totalFiles":     stats.TotalFiles,
			"totalAdditions": stats.TotalAdditions,
			"totalDeletions": stats.TotalDeletions,
			"totalChanges":   stats.TotalChanges,
		},
	})
}

func (h *ToolHandlers) handleAddBitbucketComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.checkReadOnly(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if h.bitbucket == nil {
		return mcp.NewToolResultError(bitbucketNotConfigured), nil
	}

	prURL, err := req.RequireString("prUrl")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("comment")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ref, err := bitbucket.ParsePullRequestURL(prURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	comment, err := h.bitbucket.AddPullRequestComment(*ref, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add comment to pull request: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"id":         comment.ID,
		"prUrl":      prURL,
		"workspace":  ref.Workspace,
		"repository": ref.Repository,
		"prId":       ref.ID,
		"link":       comment.Links.HTML.Href,
	})
}

func (h *ToolHandlers) handleResetCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clearAll := req.GetBool("clearAll", false)
	clearIssues := req.GetBool("clearIssueCache", false)
	clearFields := req.GetBool("clearFieldCache", false)
	clearRepos := req.GetBool("clearRepositoryCache", false)
	issueKey := req.GetString("issueKey", "")

	// Nothing selected means everything
	if !clearIssues && !clearFields && !clearRepos && issueKey == "" {
		clearAll = true
	}

	before := h.cacheStats()
	var cleared []string

	if issueKey != "" {
		h.directory.Clear(issueKey)
		cleared = append(cleared, fmt.Sprintf("issue %s", issueKey))
	}
	if clearAll || clearIssues {
		h.directory.Clear("")
		cleared = append(cleared, "issues")
	}
	if clearAll || clearFields {
		h.catalog.Invalidate()
		cleared = append(cleared, "fields")
	}
	if (clearAll || clearRepos) && h.repos != nil {
		h.repos.Clear()
		cleared = append(cleared, "repositories")
	}

	return jsonResult(map[string]any{
		"cleared": cleared,
		"before":  before,
		"after":   h.cacheStats(),
	})
}

// cacheStats aggregates all cache statistics for the reset/stats surfaces
func (h *ToolHandlers) cacheStats() map[string]any {
	stats := map[string]any{
		"issues": h.directory.Stats(),
		"fields": map[string]any{
			"size": h.catalog.Size(),
			"age":  h.catalog.Age().String(),
		},
	}
	if h.repos != nil {
		stats["repositories"] = h.repos.Stats()
	}
	return stats
}

const bitbucketNotConfigured = "Bitbucket API not configured. Set BITBUCKET_WORKSPACE and BITBUCKET_API_KEY environment variables."

// formatIssue renders the compact search-result view of an issue
func formatIssue(issue jira.Issue) map[string]any {
	return map[string]any{
		"id":       issue.ID,
		"key":      issue.Key,
		"summary":  issue.Summary(),
		"status":   nestedString(issue.Fields, "status", "name"),
		"priority": nestedString(issue.Fields, "priority", "name"),
		"assignee": nestedString(issue.Fields, "assignee", "displayName"),
		"reporter": nestedString(issue.Fields, "reporter", "displayName"),
		"created":  stringField(issue.Fields, "created"),
		"updated":  stringField(issue.Fields, "updated"),
	}
}

// formatIssueDetail renders the full view, with the description flattened
// from ADF and non-empty custom fields included
func formatIssueDetail(issue *jira.Issue) map[string]any {
	detail := formatIssue(*issue)
	detail["description"] = jira.FlattenADF(issue.Fields["description"])

	customFields := make(map[string]any)
	for key, value := range issue.Fields {
		if strings.HasPrefix(key, "customfield_") && value != nil {
			customFields[key] = value
		}
	}
	if len(customFields) > 0 {
		detail["customFields"] = customFields
	}

	return detail
}

func nestedString(fields map[string]any, key, sub string) string {
	if m, ok := fields[key].(map[string]any); ok {
		if s, ok := m[sub].(string); ok {
			return s
		}
	}
	return ""
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func getMapArg(req mcp.CallToolRequest, key string) map[string]any {
	args := req.GetArguments()
	if v, ok := args[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
		// MCP clients sometimes stringify objects
		if s, ok := v.(string); ok && strings.HasPrefix(s, "{") {
			var m map[string]any
			if err := json.Unmarshal([]byte(s), &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func getArrayArg(req mcp.CallToolRequest, key string) []any {
	args := req.GetArguments()
	if v, ok := args[key]; ok {
		if arr, ok := v.([]any); ok {
			return arr
		}
		// MCP clients sometimes stringify arrays
		if s, ok := v.(string); ok && strings.HasPrefix(s, "[") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return arr
			}
		}
	}
	return nil
}

func stringSlice(values []any) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}
