package bitbucket

import (
	"sort"
	"strconv"
	"strings"
)

// FileChange is the per-file change count extracted from a unified diff
type FileChange struct {
	File      string `json:"file"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}

// DiffStats summarizes a pull request diff
type DiffStats struct {
	Files          []FileChange `json:"files"`
	TotalFiles     int          `json:"totalFiles"`
	TotalAdditions int          `json:"totalAdditions"`
	TotalDeletions int          `json:"totalDeletions"`
	TotalChanges   int          `json:"totalChanges"`
}

// ParseDiff computes per-file addition/deletion counts from raw unified diff
// text. Files sort by total churn, most changed first; ties keep diff order.
func ParseDiff(diff string) *DiffStats {
	stats := &DiffStats{}

	var current *FileChange
	flush := func() {
		if current != nil {
			current.Changes = current.Additions + current.Deletions
			stats.Files = append(stats.Files, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			current = &FileChange{
				File:   fileFromDiffHeader(line),
				Status: "modified",
			}

		case current == nil:
			// Preamble before the first file header

		case strings.HasPrefix(line, "new file"):
			current.Status = "added"

		case strings.HasPrefix(line, "deleted file"):
			current.Status = "removed"

		case strings.HasPrefix(line, "rename from"):
			current.Status = "renamed"

		case strings.HasPrefix(line, "+++ "):
			// Prefer the post-image path; /dev/null means the file was removed
			if path := strings.TrimPrefix(line, "+++ "); path != "/dev/null" {
				current.File = strings.TrimPrefix(path, "b/")
			}

		case strings.HasPrefix(line, "--- "):
			if current.File == "" {
				if path := strings.TrimPrefix(line, "--- "); path != "/dev/null" {
					current.File = strings.TrimPrefix(path, "a/")
				}
			}

		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			// Marker line without a path; never a content line

		case strings.HasPrefix(line, "+"):
			current.Additions++

		case strings.HasPrefix(line, "-"):
			current.Deletions++
		}
	}
	flush()

	sort.SliceStable(stats.Files, func(i, j int) bool {
		return stats.Files[i].Changes > stats.Files[j].Changes
	})

	stats.TotalFiles = len(stats.Files)
	for _, f := range stats.Files {
		stats.TotalAdditions += f.Additions
		stats.TotalDeletions += f.Deletions
	}
	stats.TotalChanges = stats.TotalAdditions + stats.TotalDeletions

	return stats
}

// fileFromDiffHeader extracts the post-image path from a
// "diff --git a/x b/y" line
func fileFromDiffHeader(line string) string {
	parts := strings.Fields(line)
	if len(parts) < 4 {
		return ""
	}
	return strings.TrimPrefix(parts[len(parts)-1], "b/")
}

// Table renders the stats as a header row plus data rows, with a leading
// summary row, for tool output.
func (s *DiffStats) Table() [][]string {
	rows := make([][]string, 0, len(s.Files)+2)
	rows = append(rows, []string{"File", "Status", "Additions", "Deletions", "Changes"})
	rows = append(rows, []string{
		"Total (" + strconv.Itoa(s.TotalFiles) + " files)", "",
		strconv.Itoa(s.TotalAdditions), strconv.Itoa(s.TotalDeletions), strconv.Itoa(s.TotalChanges),
	})
	for _, f := range s.Files {
		rows = append(rows, []string{
			f.File, f.Status,
			strconv.Itoa(f.Additions), strconv.Itoa(f.Deletions), strconv.Itoa(f.Changes),
		})
	}
	return rows
}
