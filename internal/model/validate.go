package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidateScope checks a scope identifier such as "user:42" or "global".
func ValidateScope(scope string) error {
	if strings.TrimSpace(scope) == "" {
		return newValidation("scope is required", "scope", scope)
	}
	if len(scope) > MaxScopeLen {
		return newValidation("scope is too long", "length", len(scope))
	}
	for _, r := range scope {
		if unicode.IsControl(r) {
			return newValidation("scope contains a control character", "scope", scope)
		}
	}
	return nil
}

// Validate checks the invariants of a complete entry before it is written.
func (m *Memory) Validate() error {
	if m.ID == "" {
		return newValidation("id is required", "id", m.ID)
	}
	if err := m.Type.Validate(); err != nil {
		return err
	}
	if err := ValidateScope(m.Scope); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		return newValidation("created_at is required", "id", m.ID)
	}
	return m.validateMutable()
}

func (m *Memory) validateMutable() error {
	if strings.TrimSpace(m.Content) == "" {
		return newValidation("content is required", "id", m.ID)
	}
	if n := utf8.RuneCountInString(m.Content); n > MaxContentLen {
		return newValidation("content is too long", "length", n)
	}
	if n := utf8.RuneCountInString(m.Summary); n > MaxSummaryLen {
		return newValidation("summary is too long", "length", n)
	}
	if len(m.Tags) > MaxTags {
		return newValidation("too many tags", "count", len(m.Tags))
	}
	if len(m.Keywords) > MaxKeywords {
		return newValidation("too many keywords", "count", len(m.Keywords))
	}
	if len(m.OriginalEntryIDs) > MaxOriginalEntries {
		return newValidation("too many original entries", "count", len(m.OriginalEntryIDs))
	}
	if err := ValidateMetadata(m.Metadata); err != nil {
		return err
	}
	return m.Details.ValidateFor(m.Type)
}

// ValidateMetadata enforces the provenance map bounds.
func ValidateMetadata(md map[string]string) error {
	if len(md) > MaxMetadataKeys {
		return newValidation("too many metadata keys", "count", len(md))
	}
	for k, v := range md {
		if k == "" || len(k) > MaxMetadataKeyLen {
			return newValidation("invalid metadata key", "key", k)
		}
		if len(v) > MaxMetadataValLen {
			return newValidation("metadata value is too long", "key", k)
		}
	}
	return nil
}
