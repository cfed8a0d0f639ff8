// Package aimerge reconciles AI/OCR document-analysis payloads into the
// report draft without clobbering user-entered values. Payload shapes are
// not guaranteed: the classifier dispatches between the comprehensive
// schema, the legacy per-document-type schema, and error/empty payloads.
package aimerge

import (
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
)

// PayloadKind discriminates the recognized payload shapes.
type PayloadKind string

const (
	PayloadComprehensive PayloadKind = "comprehensive"
	PayloadLegacy        PayloadKind = "legacy"
	PayloadError         PayloadKind = "error"
	PayloadEmpty         PayloadKind = "empty"
)

// Options are the merge policy knobs.
type Options struct {
	// PreserveUserData keeps any field the user already populated; the AI
	// value is dropped silently, not recorded as an error.
	PreserveUserData bool
	// OverwriteEmptyFields fills fields that are currently empty.
	OverwriteEmptyFields bool
	// ValidateData runs light type/range checks on AI values before
	// applying; failures divert into ValidationErrors instead of applying.
	ValidateData bool
	// LogChanges records a full audit entry per applied field.
	LogChanges bool
}

// DefaultOptions is the policy used by the upload flow.
func DefaultOptions() Options {
	return Options{
		PreserveUserData:     true,
		OverwriteEmptyFields: true,
		ValidateData:         true,
		LogChanges:           true,
	}
}

// Change is one audit entry for an applied field.
type Change struct {
	Step     string `json:"step"`
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// Result is the merge outcome. A zero FieldsUpdated with MergedData equal
// to the input draft is a valid non-error outcome.
type Result struct {
	MergedData       draft.Data  `json:"merged_data"`
	FieldsUpdated    int         `json:"fields_updated"`
	ChangesApplied   []Change    `json:"changes_applied"`
	ValidationErrors []string    `json:"validation_errors"`
	Source           PayloadKind `json:"source"`
}
