package model

import (
	"time"
)

// RelationshipType labels an edge between two entries.
type RelationshipType string

const (
	RelRefersTo         RelationshipType = "refers_to"
	RelReferredBy       RelationshipType = "referred_by"
	RelDependsOn        RelationshipType = "depends_on"
	RelEnables          RelationshipType = "enables"
	RelContradicts      RelationshipType = "contradicts"
	RelReinforces       RelationshipType = "reinforces"
	RelTemporalSequence RelationshipType = "temporal_sequence"
	RelCauses           RelationshipType = "causes"
	RelCausedBy         RelationshipType = "caused_by"
	RelPartOf           RelationshipType = "part_of"
	RelContains         RelationshipType = "contains"
	RelRelated          RelationshipType = "related"
)

var reverseRel = map[RelationshipType]RelationshipType{
	RelDependsOn:  RelEnables,
	RelEnables:    RelDependsOn,
	RelCauses:     RelCausedBy,
	RelCausedBy:   RelCauses,
	RelPartOf:     RelContains,
	RelContains:   RelPartOf,
	RelRefersTo:   RelReferredBy,
	RelReferredBy: RelRefersTo,
}

var validRels = map[RelationshipType]bool{
	RelRefersTo:         true,
	RelReferredBy:       true,
	RelDependsOn:        true,
	RelEnables:          true,
	RelContradicts:      true,
	RelReinforces:       true,
	RelTemporalSequence: true,
	RelCauses:           true,
	RelCausedBy:         true,
	RelPartOf:           true,
	RelContains:         true,
	RelRelated:          true,
}

// Reverse returns the type written on the target side of a bidirectional edge.
// Symmetric types map to themselves.
func (r RelationshipType) Reverse() RelationshipType {
	if rev, ok := reverseRel[r]; ok {
		return rev
	}
	return r
}

// Validate checks that r is a known relationship type.
func (r RelationshipType) Validate() error {
	if !validRels[r] {
		return newValidation("invalid relationship type", "relationship", r)
	}
	return nil
}

// OrDefault returns RelRelated when r is empty.
func (r RelationshipType) OrDefault() RelationshipType {
	if r == "" {
		return RelRelated
	}
	return r
}

// Edge is one outgoing relationship stored on the source entry. The target's
// type, scope and creation time are cached so the target can be loaded by key.
type Edge struct {
	TargetID        string           `json:"target_id"`
	TargetType      MemoryType       `json:"target_type"`
	TargetScope     string           `json:"target_scope"`
	TargetCreatedAt time.Time        `json:"target_created_at"`
	Type            RelationshipType `json:"relationship_type"`
	CreatedAt       time.Time        `json:"created_at"`
}

// TargetKey returns the cached key of the edge target.
func (e Edge) TargetKey() Key {
	return Key{Type: e.TargetType, Scope: e.TargetScope, CreatedAt: e.TargetCreatedAt, ID: e.TargetID}
}

// SetEdge records e on m, replacing any edge to the same target, and keeps
// RelatedEntryIDs in sync.
func (m *Memory) SetEdge(e Edge) {
	if m.Relations == nil {
		m.Relations = map[string]Edge{}
	}
	if _, exists := m.Relations[e.TargetID]; !exists {
		m.RelatedEntryIDs = append(m.RelatedEntryIDs, e.TargetID)
	}
	m.Relations[e.TargetID] = e
}

// RemoveEdge drops the edge to targetID. It reports whether one existed.
func (m *Memory) RemoveEdge(targetID string) bool {
	if _, ok := m.Relations[targetID]; !ok {
		return false
	}
	delete(m.Relations, targetID)
	ids := m.RelatedEntryIDs[:0]
	for _, id := range m.RelatedEntryIDs {
		if id != targetID {
			ids = append(ids, id)
		}
	}
	m.RelatedEntryIDs = ids
	return true
}

// Edges returns outgoing edges in RelatedEntryIDs order.
func (m *Memory) Edges() []Edge {
	edges := make([]Edge, 0, len(m.Relations))
	for _, id := range m.RelatedEntryIDs {
		if e, ok := m.Relations[id]; ok {
			edges = append(edges, e)
		}
	}
	return edges
}
