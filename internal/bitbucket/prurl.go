package bitbucket

import (
	"fmt"
	"net/url"
	"strings"
)

// PullRequestRef addresses one pull request within a workspace
type PullRequestRef struct {
	Workspace  string `json:"workspace"`
	Repository string `json:"repository"`
	ID         string `json:"prId"`
}

// ParsePullRequestURL extracts the workspace, repository and PR ID from a
// Bitbucket pull request URL of the form
// https://bitbucket.org/<workspace>/<repo>/pull-requests/<id>[/...].
// UUID-based workspace and repository segments are accepted as-is.
func ParsePullRequestURL(rawURL string) (*PullRequestRef, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pull request URL %q: %w", rawURL, err)
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	if len(segments) < 4 || segments[2] != "pull-requests" {
		return nil, fmt.Errorf("invalid pull request URL %q: expected .../<workspace>/<repo>/pull-requests/<id>", rawURL)
	}

	ref := &PullRequestRef{
		Workspace:  segments[0],
		Repository: segments[1],
		ID:         segments[3],
	}
	if ref.Workspace == "" || ref.Repository == "" || ref.ID == "" {
		return nil, fmt.Errorf("invalid pull request URL %q: missing workspace, repository or id", rawURL)
	}

	return ref, nil
}
