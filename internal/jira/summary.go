package jira

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SummaryField is a non-empty custom field value, labeled with the display
// name from the catalog when it is known
type SummaryField struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Summarize aggregates an issue into a structured summary: basic info,
// versions, description, steps to reproduce, root cause, solution and a
// discussion analysis of the comments.
func Summarize(client *Client, catalog *FieldCatalog, issueKey string) (map[string]any, error) {
	issue, err := client.GetIssueExpanded(issueKey)
	if err != nil {
		return nil, err
	}
	fields := issue.Fields

	comments, err := client.GetComments(issueKey, 1000)
	if err != nil {
		return nil, err
	}

	description := FlattenADF(fields["description"])
	customFields := collectCustomFields(catalog, fields)

	rootCause, solution := extractRootCauseAndSolution(description, comments)

	summary := map[string]any{
		"issueKey": issueKey,
		"basicInfo": map[string]any{
			"summary":   issue.Summary(),
			"status":    nestedName(fields, "status", "name"),
			"priority":  nestedName(fields, "priority", "name"),
			"assignee":  displayNameOr(fields, "assignee", "Unassigned"),
			"reporter":  nestedName(fields, "reporter", "displayName"),
			"created":   plainString(fields["created"]),
			"updated":   plainString(fields["updated"]),
			"issueType": nestedName(fields, "issuetype", "name"),
			"project":   nestedName(fields, "project", "name"),
		},
		"versions": map[string]any{
			"fixVersions":      versionList(fields["fixVersions"]),
			"affectedVersions": versionList(fields["versions"]),
		},
		"description":       description,
		"stepsToReproduce":  extractStepsToReproduce(description, customFields),
		"rootCause":         rootCause,
		"solution":          solution,
		"discussionSummary": analyzeComments(comments),
		"attachments":       attachmentList(fields["attachment"]),
		"customFields":      customFields,
		"comments":          commentList(comments),
		"metadata": map[string]any{
			"totalComments": len(comments),
			"lastUpdated":   plainString(fields["updated"]),
		},
	}

	if resolution := nestedName(fields, "resolution", "name"); resolution != "" {
		summary["basicInfo"].(map[string]any)["resolution"] = resolution
	}

	return summary, nil
}

func collectCustomFields(catalog *FieldCatalog, fields map[string]any) []SummaryField {
	var out []SummaryField
	for key, value := range fields {
		if !strings.HasPrefix(key, "customfield_") || value == nil {
			continue
		}
		name := key
		if fd, err := catalog.ResolveByID(key); err == nil && fd != nil {
			name = fd.Name
		}
		out = append(out, SummaryField{ID: key, Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var (
	stepsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)steps?\s*to\s*reproduce[:\s]+(.+?)(?:\n\n|\n[A-Z]|\z)`),
		regexp.MustCompile(`(?is)reproduction\s*steps?[:\s]+(.+?)(?:\n\n|\n[A-Z]|\z)`),
		regexp.MustCompile(`(?is)how\s*to\s*reproduce[:\s]+(.+?)(?:\n\n|\n[A-Z]|\z)`),
	}
	rootCausePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)root\s*cause[:\s]+(.+?)(?:\n\n|\n[A-Z]|\z)`),
		regexp.MustCompile(`(?is)caused\s*by[:\s]+(.+?)(?:\n\n|\n[A-Z]|\z)`),
	}
	solutionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)solution[:\s]+(.+?)(?:\n\n|\n[A-Z]|\z)`),
		regexp.MustCompile(`(?is)resolution[:\s]+(.+?)(?:\n\n|\n[A-Z]|\z)`),
		regexp.MustCompile(`(?is)fixed\s*by[:\s]+(.+?)(?:\n\n|\n[A-Z]|\z)`),
	}
)

const (
	noRootCause = "Root cause not explicitly documented."
	noSolution  = "Solution not explicitly documented."
	noSteps     = "Steps to reproduce not found in ticket."
)

func matchFirst(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// extractStepsToReproduce looks in the description first, then in custom
// fields whose names suggest reproduction steps
func extractStepsToReproduce(description string, customFields []SummaryField) string {
	if steps := matchFirst(stepsPatterns, description); steps != "" {
		return steps
	}

	for _, field := range customFields {
		name := strings.ToLower(field.Name)
		if strings.Contains(name, "steps") || strings.Contains(name, "reproduce") || strings.Contains(name, "reproduction") {
			if s := FlattenADF(field.Value); s != "" {
				return s
			}
		}
	}

	return noSteps
}

// extractRootCauseAndSolution scans the description, then falls back to the
// comments, newest first
func extractRootCauseAndSolution(description string, comments []Comment) (rootCause, solution string) {
	rootCause = matchFirst(rootCausePatterns, description)
	solution = matchFirst(solutionPatterns, description)

	for _, comment := range comments {
		if rootCause != "" && solution != "" {
			break
		}
		body := comment.BodyText()
		lower := strings.ToLower(body)

		if rootCause == "" && strings.Contains(lower, "root cause") {
			rootCause = fmt.Sprintf("Root cause mentioned in comment by %s: %s",
				comment.Author.DisplayName, truncate(body, 200))
		}
		if solution == "" && (strings.Contains(lower, "solution") || strings.Contains(lower, "fix")) {
			solution = fmt.Sprintf("Solution mentioned in comment by %s: %s",
				comment.Author.DisplayName, truncate(body, 200))
		}
	}

	if rootCause == "" {
		rootCause = noRootCause
	}
	if solution == "" {
		solution = noSolution
	}
	return rootCause, solution
}

// analyzeComments produces a short discussion overview: volume, participants
// and which discussion themes appeared
func analyzeComments(comments []Comment) string {
	if len(comments) == 0 {
		return "No comments found."
	}

	seen := make(map[string]bool)
	var participants []string
	var points []string

	for _, comment := range comments {
		author := comment.Author.DisplayName
		if author != "" && !seen[author] {
			seen[author] = true
			participants = append(participants, author)
		}

		lower := strings.ToLower(comment.BodyText())
		if strings.Contains(lower, "root cause") || strings.Contains(lower, "cause") {
			points = append(points, fmt.Sprintf("Root cause discussed by %s", author))
		}
		if strings.Contains(lower, "solution") || strings.Contains(lower, "fix") || strings.Contains(lower, "resolution") {
			points = append(points, fmt.Sprintf("Solution discussed by %s", author))
		}
		if strings.Contains(lower, "investigation") || strings.Contains(lower, "analysis") {
			points = append(points, fmt.Sprintf("Investigation/analysis by %s", author))
		}
	}

	discussion := "General discussion"
	if len(points) > 0 {
		discussion = strings.Join(points, "; ")
	}

	return strings.Join([]string{
		fmt.Sprintf("Total comments: %d", len(comments)),
		fmt.Sprintf("Participants: %s", strings.Join(participants, ", ")),
		fmt.Sprintf("Key discussion points: %s", discussion),
	}, "\n")
}

func nestedName(fields map[string]any, key, sub string) string {
	if m, ok := fields[key].(map[string]any); ok {
		if s, ok := m[sub].(string); ok {
			return s
		}
	}
	return ""
}

func plainString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func displayNameOr(fields map[string]any, key, fallback string) string {
	if name := nestedName(fields, key, "displayName"); name != "" {
		return name
	}
	return fallback
}

func versionList(value any) []map[string]any {
	arr, ok := value.([]any)
	if !ok {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"name":        m["name"],
			"description": m["description"],
			"released":    m["released"],
			"releaseDate": m["releaseDate"],
		})
	}
	return out
}

func attachmentList(value any) []map[string]any {
	arr, ok := value.([]any)
	if !ok {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"filename": m["filename"],
			"size":     m["size"],
			"mimeType": m["mimeType"],
			"created":  m["created"],
		})
	}
	return out
}

func commentList(comments []Comment) []map[string]any {
	out := make([]map[string]any, len(comments))
	for i, c := range comments {
		out[i] = map[string]any{
			"author":  c.Author.DisplayName,
			"body":    c.BodyText(),
			"created": c.Created,
			"updated": c.Updated,
		}
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
