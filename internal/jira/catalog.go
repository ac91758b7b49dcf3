package jira

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Custom field IDs carry this prefix; everything else is a system field.
const customFieldPrefix = "customfield_"

// DefaultCatalogTTL is how long a field catalog snapshot stays valid. Field
// definitions change far less often than issues, hence the long TTL.
const DefaultCatalogTTL = 24 * time.Hour

// Option is one permitted value of a dropdown-kind field
type Option struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled"`
}

// FieldDescriptor is one catalog entry for a custom field
type FieldDescriptor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        FieldKind `json:"-"`
	KindName    string    `json:"type"`
	Searchable  bool      `json:"searchable"`
	Navigable   bool      `json:"navigable"`
	Orderable   bool      `json:"orderable"`
	ClauseNames []string  `json:"clauseNames"`

	IsDropdown     bool `json:"isDropdown"`
	AllowsMultiple bool `json:"allowMultiple"`

	// Options is populated only for dropdown kinds. OptionsFetched
	// distinguishes "fetched, none defined" from "never fetched".
	Options        []Option `json:"options,omitempty"`
	OptionsFetched bool     `json:"-"`
}

// CatalogSnapshot is an immutable view of the custom field catalog. A new
// snapshot replaces the old one wholesale on refresh; no in-place mutation.
type CatalogSnapshot struct {
	Fields    map[string]FieldDescriptor
	FetchedAt time.Time
}

// IDs returns the field IDs in deterministic (sorted) order. Name resolution
// iterates in this order, so first-match-wins behavior is stable.
func (s *CatalogSnapshot) IDs() []string {
	ids := make([]string, 0, len(s.Fields))
	for id := range s.Fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FieldCatalog caches the custom field catalog with a TTL. One instance per
// process; handed to every consumer rather than accessed as a global.
type FieldCatalog struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	snapshot *CatalogSnapshot
}

// NewFieldCatalog creates a field catalog cache with the default TTL
func NewFieldCatalog(client *Client) *FieldCatalog {
	return &FieldCatalog{
		client: client,
		ttl:    DefaultCatalogTTL,
		now:    time.Now,
	}
}

// Snapshot returns the current catalog, fetching from Jira on first use or
// after expiry. A field-list fetch failure is fatal; option-list failures for
// individual dropdown fields degrade to an empty option list.
func (c *FieldCatalog) Snapshot() (*CatalogSnapshot, error) {
	c.mu.Lock()
	if c.snapshot != nil && c.now().Sub(c.snapshot.FetchedAt) < c.ttl {
		snap := c.snapshot
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	snap, err := c.fetch()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	return snap, nil
}

// Invalidate drops the cached snapshot so the next Snapshot call refetches
func (c *FieldCatalog) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}

// Age returns how old the current snapshot is, or a negative duration when
// no snapshot is cached.
func (c *FieldCatalog) Age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return -1
	}
	return c.now().Sub(c.snapshot.FetchedAt)
}

// Size returns the number of fields in the current snapshot (0 when empty)
func (c *FieldCatalog) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return 0
	}
	return len(c.snapshot.Fields)
}

func (c *FieldCatalog) fetch() (*CatalogSnapshot, error) {
	raw, err := c.client.ListFields()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch field catalog: %w", err)
	}

	fields := make(map[string]FieldDescriptor)
	for _, rf := range raw {
		if !strings.HasPrefix(rf.ID, customFieldPrefix) {
			continue
		}
		kind := KindFromField(rf)
		fields[rf.ID] = FieldDescriptor{
			ID:             rf.ID,
			Name:           rf.Name,
			Kind:           kind,
			KindName:       kind.String(),
			Searchable:     rf.Searchable,
			Navigable:      rf.Navigable,
			Orderable:      rf.Orderable,
			ClauseNames:    rf.ClauseNames,
			IsDropdown:     kind.IsDropdown(),
			AllowsMultiple: kind.AllowsMultiple(),
		}
	}

	// Fan out option fetches for all dropdown fields and join before
	// publishing the snapshot. No concurrency cap, matching the number of
	// dropdown fields discovered.
	var wg sync.WaitGroup
	var mu sync.Mutex
	dropdownCount := 0
	for id, fd := range fields {
		if !fd.IsDropdown {
			continue
		}
		dropdownCount++
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			options := c.fetchOptions(id)
			mu.Lock()
			fd := fields[id]
			fd.Options = options
			fd.OptionsFetched = true
			fields[id] = fd
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	snap := &CatalogSnapshot{
		Fields:    fields,
		FetchedAt: c.now(),
	}

	slog.Info("refreshed custom field catalog",
		"fields", len(fields),
		"dropdown_fields", dropdownCount,
	)

	return snap, nil
}

// fetchOptions resolves the option list for one dropdown field. Strategy one
// queries the field's contexts; strategy two falls back to create-metadata
// allowed values. Both failing is not an error: a dropdown with no
// discoverable options is a valid state.
func (c *FieldCatalog) fetchOptions(fieldID string) []Option {
	contexts, err := c.client.GetFieldContexts(fieldID)
	if err == nil && len(contexts) > 0 {
		options, err := c.client.GetContextOptions(fieldID, contexts[0].ID)
		if err == nil {
			return options
		}
		slog.Debug("context option fetch failed, trying create metadata", "field", fieldID, "error", err)
	}

	projects, err := c.client.ListProjects()
	if err != nil || len(projects) == 0 {
		return nil
	}

	options, err := c.client.GetCreateMetaAllowedValues(projects[0].Key, fieldID)
	if err != nil {
		slog.Debug("create metadata option fetch failed", "field", fieldID, "error", err)
		return nil
	}
	return options
}
