package jira

import "strings"

// ResolveByID looks a field up by its opaque ID. Returns nil (not an error)
// when the catalog has no such field.
func (c *FieldCatalog) ResolveByID(fieldID string) (*FieldDescriptor, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return nil, err
	}

	if fd, ok := snap.Fields[fieldID]; ok {
		return &fd, nil
	}
	return nil, nil
}

// ResolveByName finds a field whose display name or any clause name contains
// the query, case-insensitively. The first match in catalog iteration order
// wins; multiple matches are not disambiguated. Returns nil when nothing
// matches; callers treat that as "not a recognized field".
func (c *FieldCatalog) ResolveByName(name string) (*FieldDescriptor, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(name)
	for _, id := range snap.IDs() {
		fd := snap.Fields[id]
		if strings.Contains(strings.ToLower(fd.Name), query) {
			return &fd, nil
		}
		for _, clause := range fd.ClauseNames {
			if strings.Contains(strings.ToLower(clause), query) {
				return &fd, nil
			}
		}
	}
	return nil, nil
}

// ListDescriptors returns every field in the catalog in sorted-ID order
func (c *FieldCatalog) ListDescriptors() ([]FieldDescriptor, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return nil, err
	}

	descriptors := make([]FieldDescriptor, 0, len(snap.Fields))
	for _, id := range snap.IDs() {
		descriptors = append(descriptors, snap.Fields[id])
	}
	return descriptors, nil
}
