package jira

import (
	"testing"
	"time"
)

// seededCatalog builds a catalog with a pre-populated snapshot so resolver
// behavior can be tested without a fake server.
func seededCatalog(fields map[string]FieldDescriptor) *FieldCatalog {
	return &FieldCatalog{
		ttl: DefaultCatalogTTL,
		now: time.Now,
		snapshot: &CatalogSnapshot{
			Fields:    fields,
			FetchedAt: time.Now(),
		},
	}
}

func TestResolveByID(t *testing.T) {
	catalog := seededCatalog(map[string]FieldDescriptor{
		"customfield_10001": {ID: "customfield_10001", Name: "Severity"},
	})

	fd, err := catalog.ResolveByID("customfield_10001")
	if err != nil {
		t.Fatalf("ResolveByID() error = %v", err)
	}
	if fd == nil || fd.Name != "Severity" {
		t.Errorf("ResolveByID() = %+v, want Severity", fd)
	}

	fd, err = catalog.ResolveByID("customfield_99999")
	if err != nil {
		t.Fatalf("ResolveByID() error = %v", err)
	}
	if fd != nil {
		t.Errorf("expected nil for unknown field, got %+v", fd)
	}
}

func TestResolveByName(t *testing.T) {
	catalog := seededCatalog(map[string]FieldDescriptor{
		"customfield_10001": {
			ID:          "customfield_10001",
			Name:        "Root Cause",
			ClauseNames: []string{"cf[10001]", "Root Cause"},
		},
		"customfield_10002": {
			ID:          "customfield_10002",
			Name:        "Root Cause Analysis",
			ClauseNames: []string{"cf[10002]"},
		},
		"customfield_10003": {
			ID:          "customfield_10003",
			Name:        "Severity",
			ClauseNames: []string{"cf[10003]", "Bug Severity"},
		},
	})

	tests := []struct {
		name   string
		query  string
		wantID string
	}{
		{"exact name", "Severity", "customfield_10003"},
		{"case insensitive", "severity", "customfield_10003"},
		{"substring", "cause", "customfield_10001"},
		// Both Root Cause fields contain "root cause"; the lower field ID
		// wins, so repeated runs resolve the same field.
		{"ambiguous picks lowest id", "Root Cause", "customfield_10001"},
		{"clause name match", "bug severity", "customfield_10003"},
		{"no match", "story points", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd, err := catalog.ResolveByName(tt.query)
			if err != nil {
				t.Fatalf("ResolveByName(%q) error = %v", tt.query, err)
			}
			if tt.wantID == "" {
				if fd != nil {
					t.Errorf("ResolveByName(%q) = %+v, want nil", tt.query, fd)
				}
				return
			}
			if fd == nil || fd.ID != tt.wantID {
				t.Errorf("ResolveByName(%q) = %+v, want ID %s", tt.query, fd, tt.wantID)
			}
		})
	}
}

func TestListDescriptorsOrder(t *testing.T) {
	catalog := seededCatalog(map[string]FieldDescriptor{
		"customfield_10003": {ID: "customfield_10003", Name: "C"},
		"customfield_10001": {ID: "customfield_10001", Name: "A"},
		"customfield_10002": {ID: "customfield_10002", Name: "B"},
	})

	descriptors, err := catalog.ListDescriptors()
	if err != nil {
		t.Fatalf("ListDescriptors() error = %v", err)
	}

	want := []string{"customfield_10001", "customfield_10002", "customfield_10003"}
	if len(descriptors) != len(want) {
		t.Fatalf("got %d descriptors, want %d", len(descriptors), len(want))
	}
	for i, id := range want {
		if descriptors[i].ID != id {
			t.Errorf("descriptors[%d].ID = %s, want %s", i, descriptors[i].ID, id)
		}
	}
}
