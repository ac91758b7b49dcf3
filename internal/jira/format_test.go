package jira

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestFormatSystemValue(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
		want  any
	}{
		{"summary passthrough", "summary", "New title", "New title"},
		{"priority wrapped", "priority", "High", map[string]any{"name": "High"}},
		{"status wrapped", "status", "In Progress", map[string]any{"name": "In Progress"}},
		{"assignee wrapped", "assignee", "jdoe", map[string]any{"name": "jdoe"}},
		{"labels string slice", "labels", []string{"backend", "urgent"}, []string{"backend", "urgent"}},
		{"labels scalar wrapped", "labels", "backend", []any{"backend"}},
		{
			"components named objects", "components", []string{"API", "UI"},
			[]any{map[string]any{"name": "API"}, map[string]any{"name": "UI"}},
		},
		{
			"fixVersions scalar", "fixVersions", "2.0",
			[]any{map[string]any{"name": "2.0"}},
		},
		{"unknown field passthrough", "duedate", "2026-01-01", "2026-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatSystemValue(tt.field, tt.value)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FormatSystemValue(%s, %v) = %#v, want %#v", tt.field, tt.value, got, tt.want)
			}
		})
	}
}

func TestFormatSystemValueDescriptionADF(t *testing.T) {
	got := FormatSystemValue("description", "line one\n\nline two")
	doc, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("description must format to an ADF document, got %T", got)
	}
	if doc["type"] != "doc" {
		t.Errorf("expected doc node, got %v", doc["type"])
	}
	content, _ := doc["content"].([]any)
	if len(content) != 2 {
		t.Errorf("expected 2 paragraphs, got %d", len(content))
	}
	if FlattenADF(doc) != "line one\nline two" {
		t.Errorf("FlattenADF() = %q", FlattenADF(doc))
	}
}

func TestFormatValueDropdown(t *testing.T) {
	single := &FieldDescriptor{
		ID: "customfield_10001", Name: "Severity",
		Kind: KindSelect, IsDropdown: true,
		Options: severityOptions, OptionsFetched: true,
	}
	multi := &FieldDescriptor{
		ID: "customfield_10003", Name: "Affected Teams",
		Kind: KindMultiSelect, IsDropdown: true, AllowsMultiple: true,
		Options: []Option{{ID: "7001", Value: "Platform"}, {ID: "7002", Value: "Mobile"}},
		OptionsFetched: true,
	}

	t.Run("validated string becomes id ref", func(t *testing.T) {
		got, err := FormatValue(single, "major", true)
		if err != nil {
			t.Fatalf("FormatValue() error = %v", err)
		}
		want := map[string]any{"id": "9002"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("unvalidated string becomes value ref", func(t *testing.T) {
		got, err := FormatValue(single, "Blocker", false)
		if err != nil {
			t.Fatalf("FormatValue() error = %v", err)
		}
		want := map[string]any{"value": "Blocker"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("invalid value fails with suggestions", func(t *testing.T) {
		_, err := FormatValue(single, "Crit", true)
		var invalid *InvalidOptionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected *InvalidOptionError, got %v", err)
		}
		if len(invalid.Suggestions) == 0 || invalid.Suggestions[0].Value != "Critical" {
			t.Errorf("expected Critical suggestion, got %+v", invalid.Suggestions)
		}
	})

	t.Run("multi select string wrapped in array", func(t *testing.T) {
		got, err := FormatValue(multi, "Platform", true)
		if err != nil {
			t.Fatalf("FormatValue() error = %v", err)
		}
		want := []any{map[string]any{"id": "7001"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("multi select array element wise", func(t *testing.T) {
		got, err := FormatValue(multi, []any{"Platform", "mobile"}, true)
		if err != nil {
			t.Fatalf("FormatValue() error = %v", err)
		}
		want := []any{map[string]any{"id": "7001"}, map[string]any{"id": "7002"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("multi select invalid element aborts", func(t *testing.T) {
		_, err := FormatValue(multi, []any{"Platform", "Web"}, true)
		var invalid *InvalidOptionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected *InvalidOptionError, got %v", err)
		}
		if invalid.Value != "Web" {
			t.Errorf("error should name the bad element, got %q", invalid.Value)
		}
	})

	t.Run("multi select partial element not coerced", func(t *testing.T) {
		_, err := FormatValue(multi, []any{"Plat"}, true)
		var invalid *InvalidOptionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected *InvalidOptionError, got %v", err)
		}
		if len(invalid.Suggestions) == 0 || invalid.Suggestions[0].Value != "Platform" {
			t.Errorf("expected Platform suggestion, got %+v", invalid.Suggestions)
		}
	})

	t.Run("map passthrough", func(t *testing.T) {
		wire := map[string]any{"id": "9001"}
		got, err := FormatValue(single, wire, true)
		if err != nil {
			t.Fatalf("FormatValue() error = %v", err)
		}
		if !reflect.DeepEqual(got, wire) {
			t.Errorf("got %#v, want %#v", got, wire)
		}
	})
}

// Non-dropdown formatting is total: every kind accepts every input and
// returns something, never an error.
func TestFormatValueNonDropdownNeverFails(t *testing.T) {
	kinds := []FieldKind{
		KindTextField, KindTextArea, KindReadOnlyField, KindNumber, KindFloat,
		KindDatePicker, KindDateTime, KindURL, KindUserPicker, KindGroupPicker,
		KindProject, KindVersion, KindCascadingSelect, KindLabels, KindUnknown,
	}
	values := []any{
		"text", 42, 3.14, true, nil,
		[]any{"a", "b"}, map[string]any{"key": "v"}, time.Now(),
	}

	for _, kind := range kinds {
		for _, value := range values {
			fd := &FieldDescriptor{ID: "customfield_1", Name: "F", Kind: kind}
			if _, err := FormatValue(fd, value, true); err != nil {
				t.Errorf("FormatValue(kind=%v, %v) error = %v", kind, value, err)
			}
		}
	}
}

func TestFormatCustomValueCoercions(t *testing.T) {
	tests := []struct {
		name  string
		kind  FieldKind
		value any
		want  any
	}{
		{"number from string", KindFloat, "3.5", 3.5},
		{"number passthrough", KindNumber, 7, 7},
		{"number bad string passthrough", KindFloat, "not a number", "not a number"},
		{"date from time", KindDatePicker, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), "2026-03-09"},
		{"date string passthrough", KindDatePicker, "2026-03-09", "2026-03-09"},
		{"user wrapped", KindUserPicker, "jdoe", map[string]any{"name": "jdoe"}},
		{"project wrapped", KindProject, "DEMO", map[string]any{"key": "DEMO"}},
		{"cascading wrapped", KindCascadingSelect, "Hardware", map[string]any{"value": "Hardware"}},
		{"labels array passthrough", KindLabels, []any{"a"}, []any{"a"}},
		{"labels scalar wrapped", KindLabels, "a", []any{"a"}},
		{"url passthrough", KindURL, "https://example.com", "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatCustomValue(tt.kind, tt.value)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("formatCustomValue(%v, %v) = %#v, want %#v", tt.kind, tt.value, got, tt.want)
			}
		})
	}
}

func TestFormatValueTextKindADF(t *testing.T) {
	fd := &FieldDescriptor{ID: "customfield_2", Name: "Notes", Kind: KindTextArea}
	got, err := FormatValue(fd, "hello", true)
	if err != nil {
		t.Fatalf("FormatValue() error = %v", err)
	}
	doc, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("text kinds must format to ADF, got %T", got)
	}
	if FlattenADF(doc) != "hello" {
		t.Errorf("FlattenADF() = %q, want hello", FlattenADF(doc))
	}
}
