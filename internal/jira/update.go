package jira

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// UpdateRequest carries one unified field update. Standard fields may arrive
// through direct parameters or the legacy Fields map; direct parameters win.
// Custom fields arrive addressed by ID or by display name.
type UpdateRequest struct {
	IssueKey string

	// Legacy bulk standard fields
	Fields map[string]any

	// Direct standard-field parameters
	Summary     string
	Description string
	Priority    string
	Assignee    string
	Status      string
	Labels      []string
	Components  []string
	FixVersions []string

	CustomFields       map[string]any // field ID → value
	CustomFieldsByName map[string]any // display name → value

	ValidateDropdowns   bool
	AddComment          bool
	AllowPartialUpdates bool
	DryRun              bool
}

// UpdateResult reports what an update did (or, for a dry run, would do)
type UpdateResult struct {
	IssueKey      string         `json:"issueKey"`
	DryRun        bool           `json:"dryRun,omitempty"`
	PartialUpdate bool           `json:"partialUpdate,omitempty"`
	Payload       map[string]any `json:"previewFields,omitempty"`
	UpdatedFields []string       `json:"updatedFields,omitempty"`
	FailedFields  []string       `json:"failedFields,omitempty"`
	FieldCount    int            `json:"fieldCount"`

	// CommentFields holds name-addressed inputs that matched no catalog
	// field; they were recorded as a comment instead of silently dropped.
	CommentFields map[string]any `json:"commentFields,omitempty"`

	Message string `json:"message"`
}

// Updater composes the catalog, resolver, validator and formatter into the
// unified update flow.
type Updater struct {
	client  *Client
	catalog *FieldCatalog
}

// NewUpdater creates an updater on top of a shared field catalog
func NewUpdater(client *Client, catalog *FieldCatalog) *Updater {
	return &Updater{client: client, catalog: catalog}
}

// standardFields merges the legacy bulk map with the direct parameters,
// direct parameters taking precedence.
func (r *UpdateRequest) standardFields() map[string]any {
	merged := make(map[string]any)
	for k, v := range r.Fields {
		merged[k] = v
	}
	if r.Summary != "" {
		merged["summary"] = r.Summary
	}
	if r.Description != "" {
		merged["description"] = r.Description
	}
	if r.Priority != "" {
		merged["priority"] = r.Priority
	}
	if r.Assignee != "" {
		merged["assignee"] = r.Assignee
	}
	if r.Status != "" {
		merged["status"] = r.Status
	}
	if r.Labels != nil {
		merged["labels"] = r.Labels
	}
	if r.Components != nil {
		merged["components"] = r.Components
	}
	if r.FixVersions != nil {
		merged["fixVersions"] = r.FixVersions
	}
	return merged
}

// Apply runs the unified update: merge standard fields, resolve name-addressed
// custom fields, validate dropdowns, format everything and submit. Dry runs
// return the computed payload without any remote mutation. With
// AllowPartialUpdates, a rejection naming specific fields triggers exactly one
// retry with those fields stripped.
func (u *Updater) Apply(req UpdateRequest) (*UpdateResult, error) {
	payload := make(map[string]any)

	standard := req.standardFields()
	for name, value := range standard {
		if value == nil {
			continue
		}
		payload[name] = FormatSystemValue(name, value)
	}

	// Resolve name-addressed fields: matches join the ID bucket, misses go
	// to the comment bucket. Never silently dropped.
	resolvedByName := make(map[string]any)
	commentFields := make(map[string]any)
	for name, value := range req.CustomFieldsByName {
		fd, err := u.catalog.ResolveByName(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve custom field %q for %s: %w", name, req.IssueKey, err)
		}
		if fd != nil {
			resolvedByName[fd.ID] = value
		} else {
			commentFields[name] = value
		}
	}

	allCustom := make(map[string]any)
	for id, value := range req.CustomFields {
		allCustom[id] = value
	}
	for id, value := range resolvedByName {
		allCustom[id] = value
	}

	for fieldID, value := range allCustom {
		fd, err := u.catalog.ResolveByID(fieldID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve custom field %s for %s: %w", fieldID, req.IssueKey, err)
		}

		formatted, err := FormatValue(fd, value, req.ValidateDropdowns)
		if err != nil {
			// Invalid dropdown value aborts the whole request
			return nil, fmt.Errorf("update of %s aborted: %w", req.IssueKey, err)
		}
		payload[fieldID] = formatted
	}

	updatedFields := sortedKeys(payload)

	if req.DryRun {
		return &UpdateResult{
			IssueKey:      req.IssueKey,
			DryRun:        true,
			Payload:       payload,
			UpdatedFields: updatedFields,
			FieldCount:    len(payload),
			CommentFields: commentFields,
			Message:       fmt.Sprintf("DRY RUN: would update %d fields for issue %s", len(payload), req.IssueKey),
		}, nil
	}

	result := &UpdateResult{
		IssueKey:      req.IssueKey,
		UpdatedFields: updatedFields,
		FieldCount:    len(payload),
		CommentFields: commentFields,
	}

	if err := u.client.UpdateIssueFields(req.IssueKey, payload); err != nil {
		var rejection *FieldRejectionError
		if req.AllowPartialUpdates && errors.As(err, &rejection) {
			retryPayload := make(map[string]any)
			for field, value := range payload {
				if _, failed := rejection.Fields[field]; !failed {
					retryPayload[field] = value
				}
			}
			if len(retryPayload) == 0 {
				return nil, fmt.Errorf("failed to update issue %s (fields: %s): %w",
					req.IssueKey, strings.Join(updatedFields, ", "), err)
			}

			slog.Info("retrying update with rejected fields stripped",
				"issue", req.IssueKey,
				"failed_fields", rejection.FailedFields(),
			)
			if retryErr := u.client.UpdateIssueFields(req.IssueKey, retryPayload); retryErr != nil {
				return nil, fmt.Errorf("failed to update issue %s (fields: %s): %w",
					req.IssueKey, strings.Join(updatedFields, ", "), retryErr)
			}

			result.PartialUpdate = true
			result.UpdatedFields = sortedKeys(retryPayload)
			result.FailedFields = rejection.FailedFields()
			result.FieldCount = len(retryPayload)
			result.Message = fmt.Sprintf("partially updated %d fields for issue %s (%d rejected)",
				len(retryPayload), req.IssueKey, len(rejection.Fields))
		} else {
			return nil, fmt.Errorf("failed to update issue %s (fields: %s): %w",
				req.IssueKey, strings.Join(updatedFields, ", "), err)
		}
	} else {
		result.Message = fmt.Sprintf("successfully updated %d fields for issue %s", len(payload), req.IssueKey)
	}

	// The primary mutation succeeded; comments are best effort from here on
	if len(commentFields) > 0 {
		if err := u.client.AddComment(req.IssueKey, unmappedFieldsComment(commentFields)); err != nil {
			slog.Warn("failed to add comment for unmapped fields", "issue", req.IssueKey, "error", err)
		}
	}

	if req.AddComment {
		text := u.auditComment(standard, req.CustomFields, req.CustomFieldsByName, result.UpdatedFields)
		if text != "" {
			if err := u.client.AddComment(req.IssueKey, text); err != nil {
				slog.Warn("failed to add audit comment", "issue", req.IssueKey, "error", err)
			}
		}
	}

	return result, nil
}

// unmappedFieldsComment renders the annotation bucket as a comment body
func unmappedFieldsComment(commentFields map[string]any) string {
	var b strings.Builder
	b.WriteString("Fields that could not be mapped to Jira custom fields, recorded as a comment:\n\n")
	for _, name := range sortedKeys(commentFields) {
		fmt.Fprintf(&b, "- %s: %s\n", name, stringifyValue(commentFields[name]))
	}
	return b.String()
}

// auditComment summarizes what the update actually changed. Only fields in
// applied are listed, so a partial update does not report fields Jira
// rejected and stripped from the retry.
func (u *Updater) auditComment(standard, byID, byName map[string]any, applied []string) string {
	appliedSet := make(map[string]bool, len(applied))
	for _, field := range applied {
		appliedSet[field] = true
	}

	var sections []string

	if len(standard) > 0 {
		lines := make([]string, 0, len(standard))
		for _, name := range sortedKeys(standard) {
			if !appliedSet[name] {
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", name, stringifyValue(standard[name])))
		}
		if len(lines) > 0 {
			sections = append(sections, "Standard fields updated:\n"+strings.Join(lines, "\n"))
		}
	}

	if len(byID) > 0 {
		lines := make([]string, 0, len(byID))
		for _, fieldID := range sortedKeys(byID) {
			if !appliedSet[fieldID] {
				continue
			}
			label := fieldID
			if fd, err := u.catalog.ResolveByID(fieldID); err == nil && fd != nil {
				label = fmt.Sprintf("%s (%s)", fd.Name, fieldID)
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", label, stringifyValue(byID[fieldID])))
		}
		if len(lines) > 0 {
			sections = append(sections, "Custom fields updated (by ID):\n"+strings.Join(lines, "\n"))
		}
	}

	if len(byName) > 0 {
		lines := make([]string, 0, len(byName))
		for _, name := range sortedKeys(byName) {
			fd, err := u.catalog.ResolveByName(name)
			if err != nil || fd == nil || !appliedSet[fd.ID] {
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", name, stringifyValue(byName[name])))
		}
		if len(lines) > 0 {
			sections = append(sections, "Custom fields updated (by name):\n"+strings.Join(lines, "\n"))
		}
	}

	if len(sections) == 0 {
		return ""
	}
	return "Issue updated through the atlassian-mcp-server unified update tool.\n\n" + strings.Join(sections, "\n\n")
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
