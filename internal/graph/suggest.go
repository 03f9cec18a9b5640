package graph

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/retrieval"
)

const (
	MaxSuggestions             = 5
	DefaultSimilarityThreshold = 0.1
	temporalWindow             = time.Hour
	suggestCandidates          = 20
)

// Similarity scores how alike two entries are, in [0,1].
type Similarity func(a, b *model.Memory) float64

// Jaccard compares the keyword and tag sets of two entries.
func Jaccard(a, b *model.Memory) float64 {
	sa, sb := termSet(a), termSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for t := range sa {
		if sb[t] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func termSet(m *model.Memory) map[string]bool {
	set := make(map[string]bool, len(m.Keywords)+len(m.Tags))
	for _, k := range m.Keywords {
		set[strings.ToLower(k)] = true
	}
	for _, t := range m.Tags {
		set[strings.ToLower(t)] = true
	}
	return set
}

// Suggestion is a proposed edge for the caller to commit with AddRelationship.
type Suggestion struct {
	From   model.Key              `json:"from"`
	To     model.Key              `json:"to"`
	Type   model.RelationshipType `json:"relationship_type"`
	Score  float64                `json:"score"`
	Reason string                 `json:"reason"`
}

// Params returns the LinkParams that commit s.
func (s Suggestion) Params() LinkParams {
	return LinkParams{From: s.From, To: s.To, Type: s.Type}
}

// Suggest proposes up to MaxSuggestions edges between m and similar entries in
// the same scope and type. Entries tied to the same external record are
// related; entries created within an hour of each other form a temporal
// sequence from earlier to later; otherwise content similarity above the
// threshold marks them related. Nothing is written.
func (g *Manager) Suggest(ctx context.Context, m *model.Memory) ([]Suggestion, error) {
	if g.finder == nil {
		return nil, goerr.Wrap(model.ErrValidation, "relationship suggestions need a finder")
	}

	text := strings.Join(m.Keywords, " ")
	if text == "" {
		text = m.Content
	}
	results, err := g.finder.Retrieve(ctx, retrieval.Query{
		Scope: m.Scope,
		Types: []model.MemoryType{m.Type},
		Text:  text,
		Limit: suggestCandidates,
		Peek:  true,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "find similar entries", goerr.V("id", m.ID))
	}

	var out []Suggestion
	for _, r := range results {
		c := r.Memory
		if c.ID == m.ID {
			continue
		}
		if _, linked := m.Relations[c.ID]; linked {
			continue
		}
		if s, ok := g.classify(m, c); ok {
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out, nil
}

func (g *Manager) classify(m, c *model.Memory) (Suggestion, bool) {
	if record := sharedRecord(m, c); record != "" {
		return Suggestion{From: m.Key(), To: c.Key(), Type: model.RelRelated, Score: 1, Reason: "shared record " + record}, true
	}

	gap := m.CreatedAt.Sub(c.CreatedAt)
	if gap < 0 {
		gap = -gap
	}
	if gap <= temporalWindow && !m.CreatedAt.Equal(c.CreatedAt) {
		earlier, later := c, m
		if m.CreatedAt.Before(c.CreatedAt) {
			earlier, later = m, c
		}
		score := 1 - gap.Seconds()/temporalWindow.Seconds()
		return Suggestion{From: earlier.Key(), To: later.Key(), Type: model.RelTemporalSequence, Score: score, Reason: "created within an hour"}, true
	}

	if sim := g.similarity(m, c); sim >= g.threshold && sim > 0 {
		return Suggestion{From: m.Key(), To: c.Key(), Type: model.RelRelated, Score: sim, Reason: "similar content"}, true
	}
	return Suggestion{}, false
}

// sharedRecord returns an external record id both entries point at.
func sharedRecord(a, b *model.Memory) string {
	ra, rb := records(a), records(b)
	for r := range ra {
		if rb[r] {
			return r
		}
	}
	return ""
}

// records collects "<key>=<value>" for every *_id provenance key and the
// external context record, if any.
func records(m *model.Memory) map[string]bool {
	set := map[string]bool{}
	for k, v := range m.Metadata {
		if v != "" && strings.HasSuffix(k, "_id") {
			set[k+"="+v] = true
		}
	}
	if m.Details != nil && m.Details.ExternalContext != nil && m.Details.ExternalContext.RecordID != "" {
		ec := m.Details.ExternalContext
		set[ec.SourceSystem+"_record="+ec.RecordID] = true
	}
	return set
}
