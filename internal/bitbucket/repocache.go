package bitbucket

import (
	"fmt"
	"sync"
	"time"
)

// DefaultRepoTTL is how long a cached repository listing stays valid
const DefaultRepoTTL = 10 * time.Minute

type repoEntry struct {
	repositories []Repository
	cachedAt     time.Time
}

// RepoCache caches workspace repository listings keyed by page size
type RepoCache struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]repoEntry
}

// NewRepoCache creates a repository list cache with the default TTL
func NewRepoCache(client *Client) *RepoCache {
	return &RepoCache{
		client:  client,
		ttl:     DefaultRepoTTL,
		now:     time.Now,
		entries: make(map[string]repoEntry),
	}
}

// RepoListing is a repository listing with its cache provenance
type RepoListing struct {
	Repositories []Repository `json:"values"`
	Cached       bool         `json:"cached"`
}

// List returns the workspace repositories, from cache when fresh. Listings
// are cached per page size: a 10-repository page and a 100-repository page
// are different entries.
func (c *RepoCache) List(pageSize int) (*RepoListing, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	key := fmt.Sprintf("%s_%d", c.client.Workspace(), pageSize)

	c.mu.Lock()
	entry, ok := c.entries[key]
	fresh := ok && c.now().Sub(entry.cachedAt) < c.ttl
	c.mu.Unlock()

	if fresh {
		return &RepoListing{Repositories: entry.repositories, Cached: true}, nil
	}

	repositories, err := c.client.ListRepositories(pageSize)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = repoEntry{repositories: repositories, cachedAt: c.now()}
	c.mu.Unlock()

	return &RepoListing{Repositories: repositories, Cached: false}, nil
}

// Clear drops every cached listing
func (c *RepoCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]repoEntry)
}

// CacheStats summarizes the repository cache
type CacheStats struct {
	TotalEntries   int           `json:"totalEntries"`
	ValidEntries   int           `json:"validEntries"`
	ExpiredEntries int           `json:"expiredEntries"`
	TTL            time.Duration `json:"cacheTTL"`
}

// Stats reports entry counts split by freshness
func (c *RepoCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	valid := 0
	for _, entry := range c.entries {
		if now.Sub(entry.cachedAt) < c.ttl {
			valid++
		}
	}

	return CacheStats{
		TotalEntries:   len(c.entries),
		ValidEntries:   valid,
		ExpiredEntries: len(c.entries) - valid,
		TTL:            c.ttl,
	}
}
