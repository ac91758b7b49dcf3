package jira

import (
	"fmt"
	"strconv"
	"time"
)

// FormatSystemValue coerces a standard-field value into the wire shape the
// Jira update API expects. Unrecognized field names pass through unchanged.
func FormatSystemValue(fieldName string, value any) any {
	switch fieldName {
	case "summary":
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", value)

	case "description", "environment":
		if s, ok := value.(string); ok {
			return NewADFDocument(s)
		}
		return value

	case "assignee", "reporter", "priority", "status":
		if s, ok := value.(string); ok {
			return map[string]any{"name": s}
		}
		return value

	case "components", "fixVersions":
		return namedObjectList(value)

	case "labels":
		if arr, ok := value.([]any); ok {
			return arr
		}
		if arr, ok := value.([]string); ok {
			return arr
		}
		return []any{value}

	default:
		return value
	}
}

// namedObjectList normalizes a scalar or array into [{name: v}, ...]
func namedObjectList(value any) any {
	wrap := func(v any) any {
		if s, ok := v.(string); ok {
			return map[string]any{"name": s}
		}
		return v
	}

	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = wrap(item)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = wrap(item)
		}
		return out
	default:
		return []any{wrap(value)}
	}
}

// FormatValue coerces a raw value into the wire representation for the
// field's kind. A pure transformation: for non-dropdown kinds it never fails,
// returning either a coerced value or the original unchanged. Dropdown kinds
// with validation enabled fail with *InvalidOptionError when no option
// matches.
func FormatValue(fd *FieldDescriptor, value any, validateDropdowns bool) (any, error) {
	if fd == nil {
		return value, nil
	}

	if fd.IsDropdown {
		return formatDropdownValue(fd, value, validateDropdowns)
	}

	if fd.Kind == KindSystem {
		return FormatSystemValue(fd.Name, value), nil
	}

	return formatCustomValue(fd.Kind, value), nil
}

func formatDropdownValue(fd *FieldDescriptor, value any, validate bool) (any, error) {
	switch v := value.(type) {
	case string:
		if validate {
			// Strict match only: option ID or exact label. Partial
			// matches are suggestions, never silent coercions.
			result := validateOption(fd.Options, v)
			if !result.Valid {
				return nil, &InvalidOptionError{
					FieldID:     fd.ID,
					FieldName:   fd.Name,
					Value:       v,
					Suggestions: result.Suggestions,
				}
			}
			ref := map[string]any{"id": result.Option.ID}
			if fd.AllowsMultiple {
				return []any{ref}, nil
			}
			return ref, nil
		}
		// Unverified best effort
		ref := map[string]any{"value": v}
		if fd.AllowsMultiple {
			return []any{ref}, nil
		}
		return ref, nil

	case map[string]any:
		// Already in wire shape
		if fd.AllowsMultiple {
			return []any{v}, nil
		}
		return v, nil

	case []any:
		if !fd.AllowsMultiple {
			return value, nil
		}
		formatted := make([]any, 0, len(v))
		for _, item := range v {
			switch elem := item.(type) {
			case string:
				if validate {
					result := validateOption(fd.Options, elem)
					if !result.Valid {
						return nil, &InvalidOptionError{
							FieldID:     fd.ID,
							FieldName:   fd.Name,
							Value:       elem,
							Suggestions: result.Suggestions,
						}
					}
					formatted = append(formatted, map[string]any{"id": result.Option.ID})
				} else {
					formatted = append(formatted, map[string]any{"value": elem})
				}
			case map[string]any:
				formatted = append(formatted, elem)
			default:
				formatted = append(formatted, elem)
			}
		}
		return formatted, nil
	}

	return value, nil
}

func formatCustomValue(kind FieldKind, value any) any {
	switch kind {
	case KindTextField, KindTextArea, KindReadOnlyField:
		if s, ok := value.(string); ok {
			return NewADFDocument(s)
		}
		return value

	case KindNumber, KindFloat:
		return coerceNumber(value)

	case KindDatePicker:
		switch v := value.(type) {
		case string:
			return v // ISO date string
		case time.Time:
			return v.Format("2006-01-02")
		}
		return value

	case KindDateTime:
		switch v := value.(type) {
		case string:
			return v
		case time.Time:
			return v.Format(time.RFC3339)
		}
		return value

	case KindURL:
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", value)

	case KindUserPicker, KindGroupPicker, KindVersion:
		if s, ok := value.(string); ok {
			return map[string]any{"name": s}
		}
		return value

	case KindProject:
		if s, ok := value.(string); ok {
			return map[string]any{"key": s}
		}
		return value

	case KindCascadingSelect:
		if s, ok := value.(string); ok {
			return map[string]any{"value": s}
		}
		return value

	case KindLabels:
		if arr, ok := value.([]any); ok {
			return arr
		}
		return []any{value}

	default:
		return value
	}
}

func coerceNumber(value any) any {
	switch v := value.(type) {
	case float64, float32, int, int64:
		return v
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return value
}
