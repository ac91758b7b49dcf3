package jira

import (
	"fmt"
	"sync"
	"time"
)

// DefaultIssueTTL is how long a cached issue-key → remote-ID mapping stays
// valid. Much shorter than the field catalog TTL: issues move.
const DefaultIssueTTL = 5 * time.Minute

// IssueIdentity maps a human-facing issue key to its remote numeric identity
type IssueIdentity struct {
	IssueKey string `json:"issueKey"`
	RemoteID string `json:"remoteId"`
	Summary  string `json:"summary"`
	Cached   bool   `json:"cached"`
}

type issueEntry struct {
	remoteID string
	summary  string
	cachedAt time.Time
}

// IssueDirectory caches issue-key → remote-ID lookups with a TTL
type IssueDirectory struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]issueEntry
}

// NewIssueDirectory creates an issue identity cache with the default TTL
func NewIssueDirectory(client *Client) *IssueDirectory {
	return &IssueDirectory{
		client:  client,
		ttl:     DefaultIssueTTL,
		now:     time.Now,
		entries: make(map[string]issueEntry),
	}
}

// Lookup resolves an issue key to its remote ID, from cache when fresh
func (d *IssueDirectory) Lookup(issueKey string) (*IssueIdentity, error) {
	d.mu.Lock()
	entry, ok := d.entries[issueKey]
	fresh := ok && d.now().Sub(entry.cachedAt) < d.ttl
	d.mu.Unlock()

	if fresh {
		return &IssueIdentity{
			IssueKey: issueKey,
			RemoteID: entry.remoteID,
			Summary:  entry.summary,
			Cached:   true,
		}, nil
	}

	issue, err := d.client.GetIssue(issueKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue details for %s: %w", issueKey, err)
	}

	d.mu.Lock()
	d.entries[issueKey] = issueEntry{
		remoteID: issue.ID,
		summary:  issue.Summary(),
		cachedAt: d.now(),
	}
	d.mu.Unlock()

	return &IssueIdentity{
		IssueKey: issueKey,
		RemoteID: issue.ID,
		Summary:  issue.Summary(),
		Cached:   false,
	}, nil
}

// Clear removes one key, or every entry when issueKey is empty
func (d *IssueDirectory) Clear(issueKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if issueKey == "" {
		d.entries = make(map[string]issueEntry)
		return
	}
	delete(d.entries, issueKey)
}

// DirectoryStats summarizes the issue identity cache
type DirectoryStats struct {
	TotalEntries   int           `json:"totalEntries"`
	ValidEntries   int           `json:"validEntries"`
	ExpiredEntries int           `json:"expiredEntries"`
	TTL            time.Duration `json:"cacheTTL"`
}

// Stats reports entry counts split by freshness
func (d *IssueDirectory) Stats() DirectoryStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	valid := 0
	for _, entry := range d.entries {
		if now.Sub(entry.cachedAt) < d.ttl {
			valid++
		}
	}

	return DirectoryStats{
		TotalEntries:   len(d.entries),
		ValidEntries:   valid,
		ExpiredEntries: len(d.entries) - valid,
		TTL:            d.ttl,
	}
}
