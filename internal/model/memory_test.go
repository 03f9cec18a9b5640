package model_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

func newMemory() *model.Memory {
	return &model.Memory{
		ID:        model.NewID(),
		Type:      model.TypeEpisodic,
		Scope:     "user:42",
		Content:   "User asked about pricing",
		CreatedAt: time.Now().UTC(),
	}
}

func TestParseMemoryType(t *testing.T) {
	got, err := model.ParseMemoryType("tool_pattern")
	gt.NoError(t, err)
	gt.Equal(t, got, model.TypeToolPattern)

	_, err = model.ParseMemoryType("dream")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestReverseRelationship(t *testing.T) {
	testCases := []struct {
		rel  model.RelationshipType
		want model.RelationshipType
	}{
		{model.RelDependsOn, model.RelEnables},
		{model.RelEnables, model.RelDependsOn},
		{model.RelCauses, model.RelCausedBy},
		{model.RelPartOf, model.RelContains},
		{model.RelRefersTo, model.RelReferredBy},
		{model.RelContradicts, model.RelContradicts},
		{model.RelRelated, model.RelRelated},
		{model.RelTemporalSequence, model.RelTemporalSequence},
	}
	for _, tc := range testCases {
		t.Run(string(tc.rel), func(t *testing.T) {
			gt.Equal(t, tc.rel.Reverse(), tc.want)
		})
	}
}

func TestValidate(t *testing.T) {
	gt.NoError(t, newMemory().Validate())
	gt.NoError(t, model.ValidateScope("channel:#general"))

	testCases := map[string]func(m *model.Memory){
		"empty content":   func(m *model.Memory) { m.Content = "   " },
		"empty scope":     func(m *model.Memory) { m.Scope = "" },
		"control scope":   func(m *model.Memory) { m.Scope = "user\n1" },
		"bad type":        func(m *model.Memory) { m.Type = "NOPE" },
		"oversize body":   func(m *model.Memory) { m.Content = strings.Repeat("a", model.MaxContentLen+1) },
		"oversize sum":    func(m *model.Memory) { m.Summary = strings.Repeat("a", model.MaxSummaryLen+1) },
		"too many tags":   func(m *model.Memory) { m.Tags = make([]string, model.MaxTags+1) },
		"long meta value": func(m *model.Memory) { m.Metadata = map[string]string{"k": strings.Repeat("v", 2000)} },
		"wrong variant": func(m *model.Memory) {
			m.Details = &model.Details{ErrorLog: &model.ErrorLogDetails{ErrorType: "timeout"}}
		},
	}
	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			m := newMemory()
			mutate(m)
			err := m.Validate()
			gt.Error(t, err)
			gt.True(t, errors.Is(err, model.ErrValidation))
		})
	}
}

func TestDetailsVariant(t *testing.T) {
	d := &model.Details{ToolPattern: &model.ToolPatternDetails{ToolName: "search", Succeeded: true}}
	gt.NoError(t, d.ValidateFor(model.TypeToolPattern))
	gt.Error(t, d.ValidateFor(model.TypeEpisodic))

	two := &model.Details{
		ToolPattern: &model.ToolPatternDetails{ToolName: "search"},
		Workflow:    &model.WorkflowDetails{Name: "submit"},
	}
	gt.Error(t, two.ValidateFor(model.TypeToolPattern))

	missing := &model.Details{Workflow: &model.WorkflowDetails{}}
	gt.Error(t, missing.ValidateFor(model.TypeWorkflow))
}

func TestPatchApply(t *testing.T) {
	m := newMemory()
	m.Metadata = map[string]string{"channel": "C1", "thread_ts": "1.2"}
	before := m.UpdatedAt

	content := "  new content  "
	tags := []string{"Deadline", "deadline", " pricing "}
	model.Patch{
		Content:  &content,
		Tags:     &tags,
		Metadata: map[string]string{"thread_ts": "", "source_system": "crm"},
	}.Apply(m, time.Now())

	gt.Equal(t, m.Content, "new content")
	gt.A(t, m.Tags).Length(2)
	gt.Equal(t, m.Tags[0], "deadline")
	gt.Equal(t, m.Metadata["channel"], "C1")
	gt.Equal(t, m.Metadata["source_system"], "crm")
	_, hasThread := m.Metadata["thread_ts"]
	gt.False(t, hasThread)
	gt.True(t, m.UpdatedAt.After(before))
}

func TestEdges(t *testing.T) {
	m := newMemory()
	m.SetEdge(model.Edge{TargetID: "b", Type: model.RelRelated})
	m.SetEdge(model.Edge{TargetID: "c", Type: model.RelCauses})
	m.SetEdge(model.Edge{TargetID: "b", Type: model.RelDependsOn})

	edges := m.Edges()
	gt.A(t, edges).Length(2)
	gt.Equal(t, edges[0].Type, model.RelDependsOn)
	gt.A(t, m.RelatedEntryIDs).Length(2)

	gt.True(t, m.RemoveEdge("b"))
	gt.False(t, m.RemoveEdge("b"))
	gt.A(t, m.RelatedEntryIDs).Length(1)
	gt.Equal(t, m.RelatedEntryIDs[0], "c")
}

func TestExpired(t *testing.T) {
	now := time.Now()
	m := newMemory()
	gt.False(t, m.Expired(now))

	past := now.Add(-time.Minute).Unix()
	m.ExpiresAt = &past
	gt.True(t, m.Expired(now))

	future := now.Add(time.Hour).Unix()
	m.ExpiresAt = &future
	gt.False(t, m.Expired(now))
}
