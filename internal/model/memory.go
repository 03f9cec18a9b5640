// Package model defines the core memory data types.
package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Field caps enforced on every write.
const (
	MaxContentLen      = 20000
	MaxSummaryLen      = 500
	MaxScopeLen        = 256
	MaxTags            = 25
	MaxKeywords        = 50
	MaxOriginalEntries = 20
	MaxMetadataKeys    = 32
	MaxMetadataKeyLen  = 64
	MaxMetadataValLen  = 1024
)

// GlobalScope is the scope shared by every subject.
const GlobalScope = "global"

// MemoryType is the taxonomy tag of an entry. It is immutable after creation.
type MemoryType string

const (
	TypeEpisodic             MemoryType = "EPISODIC"
	TypeSemantic             MemoryType = "SEMANTIC"
	TypeProcedural           MemoryType = "PROCEDURAL"
	TypeToolPattern          MemoryType = "TOOL_PATTERN"
	TypeWorkflow             MemoryType = "WORKFLOW"
	TypeContextPattern       MemoryType = "CONTEXT_PATTERN"
	TypeExternalContext      MemoryType = "EXTERNAL_CONTEXT"
	TypeCollaborationContext MemoryType = "COLLABORATION_CONTEXT"
	TypeTemporalEvent        MemoryType = "TEMPORAL_EVENT"
	TypeErrorLog             MemoryType = "ERROR_LOG"
	TypeMemoryBlock          MemoryType = "MEMORY_BLOCK"
)

// MemoryTypes lists every valid type in declaration order.
var MemoryTypes = []MemoryType{
	TypeEpisodic,
	TypeSemantic,
	TypeProcedural,
	TypeToolPattern,
	TypeWorkflow,
	TypeContextPattern,
	TypeExternalContext,
	TypeCollaborationContext,
	TypeTemporalEvent,
	TypeErrorLog,
	TypeMemoryBlock,
}

// Validate checks that t is one of the known memory types.
func (t MemoryType) Validate() error {
	for _, v := range MemoryTypes {
		if t == v {
			return nil
		}
	}
	return newValidation("invalid memory type", "type", t)
}

// ParseMemoryType accepts any casing, e.g. "episodic" or "tool_pattern".
func ParseMemoryType(s string) (MemoryType, error) {
	t := MemoryType(strings.ToUpper(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// Memory represents a stored memory entry.
type Memory struct {
	ID       string            `json:"id"`
	Type     MemoryType        `json:"type"`
	Scope    string            `json:"scope"`
	Content  string            `json:"content"`
	Tags     []string          `json:"tags,omitempty"`
	Keywords []string          `json:"keywords,omitempty"`
	Summary  string            `json:"summary,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Details  *Details          `json:"details,omitempty"`

	Compressed       bool     `json:"compressed,omitempty"`
	OriginalEntryIDs []string `json:"original_entry_ids,omitempty"`

	RelatedEntryIDs []string        `json:"related_entry_ids,omitempty"`
	Relations       map[string]Edge `json:"relations,omitempty"`

	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ExpiresAt      *int64     `json:"expires_at,omitempty"` // epoch seconds
}

// Key is the natural composite key of an entry.
type Key struct {
	Type      MemoryType `json:"type"`
	Scope     string     `json:"scope"`
	CreatedAt time.Time  `json:"created_at"`
	ID        string     `json:"id"`
}

// Key returns the composite key of m.
func (m *Memory) Key() Key {
	return Key{Type: m.Type, Scope: m.Scope, CreatedAt: m.CreatedAt, ID: m.ID}
}

// Expired reports whether m has an expiry at or before now.
func (m *Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && *m.ExpiresAt <= now.Unix()
}

// NewID returns a time-ordered unique identifier.
func NewID() string {
	return ulid.Make().String()
}

// Patch holds the fields an update may touch. Nil fields are left alone.
// Metadata is merged; a key mapped to "" is removed.
type Patch struct {
	Content   *string
	Tags      *[]string
	Keywords  *[]string
	Summary   *string
	Metadata  map[string]string
	Details   *Details
	ExpiresAt *int64
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.Content == nil && p.Tags == nil && p.Keywords == nil && p.Summary == nil &&
		p.Metadata == nil && p.Details == nil && p.ExpiresAt == nil
}

// Apply writes p onto m and bumps UpdatedAt. It does not validate.
func (p Patch) Apply(m *Memory, now time.Time) {
	if p.Content != nil {
		m.Content = strings.TrimSpace(*p.Content)
	}
	if p.Tags != nil {
		m.Tags = NormalizeTerms(*p.Tags, MaxTags)
	}
	if p.Keywords != nil {
		m.Keywords = NormalizeTerms(*p.Keywords, MaxKeywords)
	}
	if p.Summary != nil {
		m.Summary = strings.TrimSpace(*p.Summary)
	}
	if p.Metadata != nil {
		if m.Metadata == nil {
			m.Metadata = map[string]string{}
		}
		for k, v := range p.Metadata {
			if v == "" {
				delete(m.Metadata, k)
				continue
			}
			m.Metadata[k] = v
		}
	}
	if p.Details != nil {
		m.Details = p.Details
	}
	if p.ExpiresAt != nil {
		if *p.ExpiresAt <= 0 {
			m.ExpiresAt = nil
		} else {
			exp := *p.ExpiresAt
			m.ExpiresAt = &exp
		}
	}
	m.UpdatedAt = now
}

// NormalizeTerms lowercases, trims and dedupes terms, keeping first-seen order,
// and truncates to max entries.
func NormalizeTerms(terms []string, max int) []string {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == max {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
