package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{"Key", "Summary", "Status", "Priority", "Assignee", "Reporter", "Created", "Updated"}

func (h *ToolHandlers) handleIssuesExportExcel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jql, err := req.RequireString("jql")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxResults := req.GetInt("maxResults", 100)

	result, err := h.jira.SearchIssues(jql, maxResults, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search issues: %v", err)), nil
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Issues"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to build workbook: %v", err)), nil
	}

	for col, header := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to build workbook: %v", err)), nil
		}
	}

	for row, issue := range result.Issues {
		values := []string{
			issue.Key,
			issue.Summary(),
			nestedString(issue.Fields, "status", "name"),
			nestedString(issue.Fields, "priority", "name"),
			nestedString(issue.Fields, "assignee", "displayName"),
			nestedString(issue.Fields, "reporter", "displayName"),
			stringField(issue.Fields, "created"),
			stringField(issue.Fields, "updated"),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to build workbook: %v", err)), nil
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to write workbook: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"filename":      fmt.Sprintf("issues-%s.xlsx", time.Now().Format("2006-01-02")),
		"contentBase64": base64.StdEncoding.EncodeToString(buf.Bytes()),
		"issueCount":    len(result.Issues),
		"jql":           jql,
	})
}
