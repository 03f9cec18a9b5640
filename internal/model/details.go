package model

import (
	"time"
)

// Details is the type-specific payload of an entry. At most one variant may be
// set and it must match the entry's type.
type Details struct {
	ToolPattern     *ToolPatternDetails     `json:"tool_pattern,omitempty"`
	Workflow        *WorkflowDetails        `json:"workflow,omitempty"`
	ErrorLog        *ErrorLogDetails        `json:"error_log,omitempty"`
	TemporalEvent   *TemporalEventDetails   `json:"temporal_event,omitempty"`
	ExternalContext *ExternalContextDetails `json:"external_context,omitempty"`
	Collaboration   *CollaborationDetails   `json:"collaboration,omitempty"`
	MemoryBlock     *MemoryBlockDetails     `json:"memory_block,omitempty"`
}

// ToolPatternDetails records how a tool invocation went.
type ToolPatternDetails struct {
	ToolName   string            `json:"tool_name"`
	Succeeded  bool              `json:"succeeded"`
	DurationMS int64             `json:"duration_ms,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// WorkflowDetails records a multi-step workflow outcome.
type WorkflowDetails struct {
	Name    string   `json:"name"`
	Steps   []string `json:"steps,omitempty"`
	Outcome string   `json:"outcome,omitempty"`
}

// ErrorLogDetails records a failure.
type ErrorLogDetails struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message,omitempty"`
	Component string `json:"component,omitempty"`
}

// TemporalEventDetails records a dated event such as a deadline.
type TemporalEventDetails struct {
	OccursAt   time.Time `json:"occurs_at"`
	Recurrence string    `json:"recurrence,omitempty"`
}

// ExternalContextDetails points at a record in another system.
type ExternalContextDetails struct {
	SourceSystem string `json:"source_system"`
	RecordID     string `json:"record_id,omitempty"`
	URL          string `json:"url,omitempty"`
}

// CollaborationDetails records where a conversation happened.
type CollaborationDetails struct {
	Channel      string   `json:"channel"`
	Thread       string   `json:"thread,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// MemoryBlockDetails labels a pinned block of agent working memory.
type MemoryBlockDetails struct {
	Label string `json:"label"`
	Limit int    `json:"limit,omitempty"`
}

// variant returns the memory type of the single set variant, the number of set
// variants, and whether the set variant's required field is present.
func (d *Details) variant() (MemoryType, int, bool) {
	var (
		t     MemoryType
		n     int
		valid = true
	)
	if d.ToolPattern != nil {
		t, n, valid = TypeToolPattern, n+1, d.ToolPattern.ToolName != ""
	}
	if d.Workflow != nil {
		t, n, valid = TypeWorkflow, n+1, d.Workflow.Name != ""
	}
	if d.ErrorLog != nil {
		t, n, valid = TypeErrorLog, n+1, d.ErrorLog.ErrorType != ""
	}
	if d.TemporalEvent != nil {
		t, n, valid = TypeTemporalEvent, n+1, !d.TemporalEvent.OccursAt.IsZero()
	}
	if d.ExternalContext != nil {
		t, n, valid = TypeExternalContext, n+1, d.ExternalContext.SourceSystem != ""
	}
	if d.Collaboration != nil {
		t, n, valid = TypeCollaborationContext, n+1, d.Collaboration.Channel != ""
	}
	if d.MemoryBlock != nil {
		t, n, valid = TypeMemoryBlock, n+1, d.MemoryBlock.Label != ""
	}
	return t, n, valid
}

// ValidateFor checks that d is a well-formed payload for an entry of type t.
func (d *Details) ValidateFor(t MemoryType) error {
	if d == nil {
		return nil
	}
	vt, n, ok := d.variant()
	switch {
	case n == 0:
		return nil
	case n > 1:
		return newValidation("details must carry a single variant", "variants", n)
	case vt != t:
		return newValidation("details variant does not match memory type", "variant", vt)
	case !ok:
		return newValidation("details variant is missing its required field", "variant", vt)
	}
	return nil
}
