package jira

// FieldKind classifies a field's wire type. Custom kinds map one-to-one onto
// the com.atlassian.jira.plugin.system.customfieldtypes identifiers; anything
// unrecognized is KindUnknown and formats as passthrough.
type FieldKind int

const (
	KindUnknown FieldKind = iota
	KindSystem

	// Dropdown kinds
	KindSelect
	KindMultiSelect
	KindRadioButtons
	KindCheckboxes

	// Non-dropdown custom kinds
	KindCascadingSelect
	KindTextField
	KindTextArea
	KindReadOnlyField
	KindNumber
	KindFloat
	KindDatePicker
	KindDateTime
	KindURL
	KindUserPicker
	KindGroupPicker
	KindProject
	KindVersion
	KindLabels
)

const customTypePrefix = "com.atlassian.jira.plugin.system.customfieldtypes:"

var customKinds = map[string]FieldKind{
	customTypePrefix + "select":          KindSelect,
	customTypePrefix + "multiselect":     KindMultiSelect,
	customTypePrefix + "radiobuttons":    KindRadioButtons,
	customTypePrefix + "multicheckboxes": KindCheckboxes,
	customTypePrefix + "cascadingselect": KindCascadingSelect,
	customTypePrefix + "textfield":       KindTextField,
	customTypePrefix + "textarea":        KindTextArea,
	customTypePrefix + "readonlyfield":   KindReadOnlyField,
	customTypePrefix + "number":          KindNumber,
	customTypePrefix + "float":           KindFloat,
	customTypePrefix + "datepicker":      KindDatePicker,
	customTypePrefix + "datetime":        KindDateTime,
	customTypePrefix + "url":             KindURL,
	customTypePrefix + "userpicker":      KindUserPicker,
	customTypePrefix + "grouppicker":     KindGroupPicker,
	customTypePrefix + "project":         KindProject,
	customTypePrefix + "version":         KindVersion,
	customTypePrefix + "labels":          KindLabels,
}

var kindNames = map[FieldKind]string{
	KindUnknown:         "unknown",
	KindSystem:          "system",
	KindSelect:          "select",
	KindMultiSelect:     "multiselect",
	KindRadioButtons:    "radiobuttons",
	KindCheckboxes:      "multicheckboxes",
	KindCascadingSelect: "cascadingselect",
	KindTextField:       "textfield",
	KindTextArea:        "textarea",
	KindReadOnlyField:   "readonlyfield",
	KindNumber:          "number",
	KindFloat:           "float",
	KindDatePicker:      "datepicker",
	KindDateTime:        "datetime",
	KindURL:             "url",
	KindUserPicker:      "userpicker",
	KindGroupPicker:     "grouppicker",
	KindProject:         "project",
	KindVersion:         "version",
	KindLabels:          "labels",
}

func (k FieldKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsDropdown reports whether the kind draws its values from an option list
func (k FieldKind) IsDropdown() bool {
	switch k {
	case KindSelect, KindMultiSelect, KindRadioButtons, KindCheckboxes:
		return true
	}
	return false
}

// AllowsMultiple reports whether the kind accepts more than one value
func (k FieldKind) AllowsMultiple() bool {
	return k == KindMultiSelect || k == KindCheckboxes
}

// KindFromField derives the kind from a catalog entry's schema
func KindFromField(f RawField) FieldKind {
	if f.Schema.System != "" {
		return KindSystem
	}
	if kind, ok := customKinds[f.Schema.Custom]; ok {
		return kind
	}
	if kind, ok := customKinds[f.Schema.Type]; ok {
		return kind
	}
	return KindUnknown
}
