package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/achou/atlassian-mcp-server/internal/jira"
)

// @title Atlassian MCP Server API
// @version 1.0
// @description REST API for Jira and Bitbucket integration with AI assistants
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey JiraEmail
// @in header
// @name X-Jira-Email
// @securityDefinitions.apikey JiraToken
// @in header
// @name X-Jira-API-Token

type contextKey string

const sessionContextKey contextKey = "atlassianSession"

func withSession(ctx context.Context, sess *session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

func getSession(ctx context.Context) *session {
	return ctx.Value(sessionContextKey).(*session)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// @Summary Search issues
// @Description Searches Jira issues with a JQL query
// @Tags Issues
// @Accept json
// @Produce json
// @Security JiraEmail
// @Security JiraToken
// @Param jql query string true "JQL query string"
// @Param maxResults query int false "Maximum results" default(50)
// @Param startAt query int false "Pagination offset" default(0)
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /issues [get]
func (s *Server) handleSearchIssues(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r.Context())

	jql := r.URL.Query().Get("jql")
	if jql == "" {
		writeError(w, http.StatusBadRequest, "missing required query parameter: jql")
		return
	}

	result, err := sess.jira.SearchIssues(jql, queryInt(r, "maxResults", 50), queryInt(r, "startAt", 0))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	issues := make([]map[string]any, len(result.Issues))
	for i, issue := range result.Issues {
		issues[i] = issueSummary(issue)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"issues":     issues,
		"total":      result.Total,
		"startAt":    result.StartAt,
		"maxResults": result.MaxResults,
	})
}

// @Summary Get issue details
// @Description Returns an issue with its description and custom field values
// @Tags Issues
// @Accept json
// @Produce json
// @Security JiraEmail
// @Security JiraToken
// @Param key path string true "Issue key"
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /issues/{key} [get]
func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r.Context())
	key := chi.URLParam(r, "key")

	issue, err := sess.jira.GetIssueExpanded(key)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	detail := issueSummary(*issue)
	detail["description"] = jira.FlattenADF(issue.Fields["description"])
	detail["customFields"] = customFieldValues(issue.Fields)

	writeJSON(w, http.StatusOK, detail)
}

// @Summary Summarize a ticket
// @Description Aggregates an issue, its comments and custom fields into a structured summary
// @Tags Issues
// @Accept json
// @Produce json
// @Security JiraEmail
// @Security JiraToken
// @Param key path string true "Issue key"
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /issues/{key}/summary [get]
func (s *Server) handleGetIssueSummary(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r.Context())
	key := chi.URLParam(r, "key")

	summary, err := jira.Summarize(sess.jira, sess.catalog, key)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// @Summary Add a comment
// @Description Adds a comment to an issue
// @Tags Issues
// @Accept json
// @Produce json
// @Security JiraEmail
// @Security JiraToken
// @Param key path string true "Issue key"
// @Param body body object true "Comment body"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /issues/{key}/comments [post]
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	if s.readOnly {
		writeError(w, http.StatusForbidden, "server is in read-only mode - write operations are disabled")
		return
	}

	sess := getSession(r.Context())
	key := chi.URLParam(r, "key")

	var body struct {
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Comment == "" {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a non-empty 'comment' field")
		return
	}

	if err := sess.jira.AddComment(key, body.Comment); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"issueKey": key,
		"message":  "comment added",
	})
}

// updateBody is the request body for the unified update endpoint
type updateBody struct {
	Fields              map[string]any `json:"fields"`
	Summary             string         `json:"summary"`
	Description         string         `json:"description"`
	Priority            string         `json:"priority"`
	Assignee            string         `json:"assignee"`
	Status              string         `json:"status"`
	Labels              []string       `json:"labels"`
	Components          []string       `json:"components"`
	FixVersions         []string       `json:"fixVersions"`
	CustomFields        map[string]any `json:"customFields"`
	CustomFieldsByName  map[string]any `json:"customFieldsByName"`
	ValidateDropdowns   *bool          `json:"validateDropdowns"`
	AddComment          *bool          `json:"addComment"`
	AllowPartialUpdates bool           `json:"allowPartialUpdates"`
	DryRun              bool           `json:"dryRun"`
}

// @Summary Update issue fields
// @Description Updates standard and custom fields in one call, resolving custom field names and validating dropdown values
// @Tags Issues
// @Accept json
// @Produce json
// @Security JiraEmail
// @Security JiraToken
// @Param key path string true "Issue key"
// @Param body body updateBody true "Fields to update"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 422 {object} map[string]any
// @Router /issues/{key}/update [post]
func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r.Context())
	key := chi.URLParam(r, "key")

	var body updateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	// Dry runs never mutate, so read-only mode still allows them
	if s.readOnly && !body.DryRun {
		writeError(w, http.StatusForbidden, "server is in read-only mode - write operations are disabled")
		return
	}

	update := jira.UpdateRequest{
		IssueKey:            key,
		Fields:              body.Fields,
		Summary:             body.Summary,
		Description:         body.Description,
		Priority:            body.Priority,
		Assignee:            body.Assignee,
		Status:              body.Status,
		Labels:              body.Labels,
		Components:          body.Components,
		FixVersions:         body.FixVersions,
		CustomFields:        body.CustomFields,
		CustomFieldsByName:  body.CustomFieldsByName,
		ValidateDropdowns:   body.ValidateDropdowns == nil || *body.ValidateDropdowns,
		AddComment:          body.AddComment == nil || *body.AddComment,
		AllowPartialUpdates: body.AllowPartialUpdates,
		DryRun:              body.DryRun,
	}

	result, err := sess.updater.Apply(update)
	if err != nil {
		var invalid *jira.InvalidOptionError
		var rejection *jira.FieldRejectionError
		switch {
		case errors.As(err, &invalid):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":       err.Error(),
				"fieldId":     invalid.FieldID,
				"fieldName":   invalid.FieldName,
				"suggestions": invalid.Suggestions,
			})
		case errors.As(err, &rejection):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":        err.Error(),
				"failedFields": rejection.FailedFields(),
			})
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// @Summary List custom fields
// @Description Returns the cached custom field catalog with dropdown options
// @Tags Custom Fields
// @Accept json
// @Produce json
// @Security JiraEmail
// @Security JiraToken
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /fields [get]
func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r.Context())

	descriptors, err := sess.catalog.ListDescriptors()
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fields": descriptors,
		"count":  len(descriptors),
	})
}

// @Summary List field options
// @Description Returns the dropdown options for one custom field
// @Tags Custom Fields
// @Accept json
// @Produce json
// @Security JiraEmail
// @Security JiraToken
// @Param id path string true "Field ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /fields/{id}/options [get]
func (s *Server) handleFieldOptions(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r.Context())
	fieldID := chi.URLParam(r, "id")

	fd, err := sess.catalog.ResolveByID(fieldID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if fd == nil {
		writeError(w, http.StatusNotFound, "unknown custom field: "+fieldID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fieldId":    fd.ID,
		"fieldName":  fd.Name,
		"isDropdown": fd.IsDropdown,
		"options":    fd.Options,
		"count":      len(fd.Options),
	})
}

// @Summary List Bitbucket repositories
// @Description Returns the repositories of the configured workspace
// @Tags Bitbucket
// @Accept json
// @Produce json
// @Security JiraEmail
// @Security JiraToken
// @Param maxResults query int false "Page size" default(50)
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /repositories [get]
func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r.Context())
	if sess.repos == nil {
		writeError(w, http.StatusBadRequest,
			"Bitbucket API not configured. Set BITBUCKET_WORKSPACE and send X-Bitbucket-API-Key.")
		return
	}

	listing, err := sess.repos.List(queryInt(r, "maxResults", 50))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// @Summary Cache statistics
// @Description Returns statistics for the issue, field and repository caches
// @Tags Cache
// @Accept json
// @Produce json
// @Security JiraEmail
// @Security JiraToken
// @Success 200 {object} map[string]any
// @Router /cache/stats [get]
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r.Context())
	writeJSON(w, http.StatusOK, sess.cacheStats())
}

// @Summary Clear caches
// @Description Clears the issue, field and repository caches
// @Tags Cache
// @Accept json
// @Produce json
// @Security JiraEmail
// @Security JiraToken
// @Success 200 {object} map[string]any
// @Router /cache [delete]
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r.Context())

	before := sess.cacheStats()
	sess.directory.Clear("")
	sess.catalog.Invalidate()
	if sess.repos != nil {
		sess.repos.Clear()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "caches cleared",
		"before":  before,
		"after":   sess.cacheStats(),
	})
}

func (sess *session) cacheStats() map[string]any {
	stats := map[string]any{
		"issues": sess.directory.Stats(),
		"fields": map[string]any{
			"size": sess.catalog.Size(),
			"age":  sess.catalog.Age().String(),
		},
	}
	if sess.repos != nil {
		stats["repositories"] = sess.repos.Stats()
	}
	return stats
}

// issueSummary renders the compact list view of an issue
func issueSummary(issue jira.Issue) map[string]any {
	return map[string]any{
		"id":       issue.ID,
		"key":      issue.Key,
		"summary":  issue.Summary(),
		"status":   fieldName(issue.Fields, "status", "name"),
		"priority": fieldName(issue.Fields, "priority", "name"),
		"assignee": fieldName(issue.Fields, "assignee", "displayName"),
		"reporter": fieldName(issue.Fields, "reporter", "displayName"),
		"created":  issue.Fields["created"],
		"updated":  issue.Fields["updated"],
	}
}

func fieldName(fields map[string]any, key, sub string) string {
	if m, ok := fields[key].(map[string]any); ok {
		if s, ok := m[sub].(string); ok {
			return s
		}
	}
	return ""
}

func customFieldValues(fields map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range fields {
		if value == nil {
			continue
		}
		if strings.HasPrefix(key, "customfield_") {
			out[key] = value
		}
	}
	return out
}
