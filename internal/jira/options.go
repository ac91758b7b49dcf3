package jira

import (
	"fmt"
	"strings"
)

// maxSuggestions caps the suggestion list on a failed dropdown validation
const maxSuggestions = 5

// InvalidOptionError reports a dropdown value that matched no option,
// carrying ranked suggestions for the caller to surface.
type InvalidOptionError struct {
	FieldID     string
	FieldName   string
	Value       string
	Suggestions []Option
}

func (e *InvalidOptionError) Error() string {
	suggestions := "none"
	if len(e.Suggestions) > 0 {
		values := make([]string, len(e.Suggestions))
		for i, o := range e.Suggestions {
			values[i] = o.Value
		}
		suggestions = strings.Join(values, ", ")
	}
	return fmt.Sprintf("invalid dropdown value %q for field %q. Suggestions: %s. Use validateDropdowns: false to skip validation",
		e.Value, e.FieldName, suggestions)
}

// ValidationResult is the outcome of validating a candidate dropdown value
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Option      *Option  `json:"option,omitempty"`
	Suggestions []Option `json:"suggestions,omitempty"`
}

// ValidateOption checks a candidate value against a dropdown field's option
// list. On a miss it returns ranked suggestions instead of a match.
func (c *FieldCatalog) ValidateOption(fieldID, value string) (*ValidationResult, error) {
	fd, err := c.ResolveByID(fieldID)
	if err != nil {
		return nil, err
	}
	if fd == nil {
		return nil, fmt.Errorf("custom field %s not found", fieldID)
	}
	if !fd.IsDropdown {
		return nil, fmt.Errorf("field %s (%s) is not a dropdown field", fieldID, fd.Name)
	}

	return validateOption(fd.Options, value), nil
}

// FindOption is the permissive lookup used during formatting: option ID
// first, then exact value, then partial value. Returns nil only when no
// match of any kind exists.
func (c *FieldCatalog) FindOption(fieldID, valueOrID string) (*Option, error) {
	fd, err := c.ResolveByID(fieldID)
	if err != nil {
		return nil, err
	}
	if fd == nil {
		return nil, fmt.Errorf("custom field %s not found", fieldID)
	}
	if !fd.IsDropdown {
		return nil, fmt.Errorf("field %s (%s) is not a dropdown field", fieldID, fd.Name)
	}

	return findOption(fd.Options, valueOrID), nil
}

func validateOption(options []Option, value string) *ValidationResult {
	lower := strings.ToLower(value)

	for i := range options {
		if options[i].ID == value || strings.ToLower(options[i].Value) == lower {
			return &ValidationResult{Valid: true, Option: &options[i]}
		}
	}

	// Partial matches in either direction, catalog order preserved
	var suggestions []Option
	for _, o := range options {
		optLower := strings.ToLower(o.Value)
		if strings.Contains(optLower, lower) || strings.Contains(lower, optLower) {
			suggestions = append(suggestions, o)
			if len(suggestions) == maxSuggestions {
				break
			}
		}
	}

	return &ValidationResult{Valid: false, Suggestions: suggestions}
}

func findOption(options []Option, valueOrID string) *Option {
	for i := range options {
		if options[i].ID == valueOrID {
			return &options[i]
		}
	}

	lower := strings.ToLower(valueOrID)
	for i := range options {
		if strings.ToLower(options[i].Value) == lower {
			return &options[i]
		}
	}

	for i := range options {
		optLower := strings.ToLower(options[i].Value)
		if strings.Contains(optLower, lower) || strings.Contains(lower, optLower) {
			return &options[i]
		}
	}

	return nil
}
