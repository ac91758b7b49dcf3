package jira

import "strings"

// ADFNode is a node of an Atlassian Document Format tree. Only the pieces
// this server reads or writes are modeled.
type ADFNode struct {
	Type    string    `json:"type"`
	Version int       `json:"version,omitempty"`
	Text    string    `json:"text,omitempty"`
	Content []ADFNode `json:"content,omitempty"`
}

// NewADFDocument wraps plain text into a minimal one-paragraph ADF document,
// the shape Jira Cloud requires for rich-text fields and comments. Blank-line
// separated input becomes separate paragraphs.
func NewADFDocument(text string) map[string]any {
	paragraphs := strings.Split(text, "\n\n")
	content := make([]any, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p == "" {
			continue
		}
		content = append(content, map[string]any{
			"type": "paragraph",
			"content": []any{
				map[string]any{"type": "text", "text": p},
			},
		})
	}
	if len(content) == 0 {
		content = append(content, map[string]any{"type": "paragraph", "content": []any{}})
	}

	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": content,
	}
}

// PlainText flattens the node tree to plain text, with newlines between paragraphs
func (n ADFNode) PlainText() string {
	var b strings.Builder
	n.appendText(&b)
	return strings.TrimSpace(b.String())
}

func (n ADFNode) appendText(b *strings.Builder) {
	if n.Type == "text" {
		b.WriteString(n.Text)
	}
	for _, child := range n.Content {
		child.appendText(b)
	}
	if n.Type == "paragraph" {
		b.WriteString("\n")
	}
}

// FlattenADF extracts plain text from a decoded ADF value (as found in issue
// field maps). Plain strings pass through for Jira Server compatibility.
func FlattenADF(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		return flattenADFMap(v)
	default:
		return ""
	}
}

func flattenADFMap(node map[string]any) string {
	var b strings.Builder
	var walk func(map[string]any)
	walk = func(n map[string]any) {
		if t, _ := n["type"].(string); t == "text" {
			if s, _ := n["text"].(string); s != "" {
				b.WriteString(s)
			}
		}
		if content, ok := n["content"].([]any); ok {
			for _, c := range content {
				if child, ok := c.(map[string]any); ok {
					walk(child)
				}
			}
		}
		if t, _ := n["type"].(string); t == "paragraph" {
			b.WriteString("\n")
		}
	}
	walk(node)
	return strings.TrimSpace(b.String())
}
