package retrieval

import (
	"math"
	"unicode/utf8"
)

// DefaultBudget is the context budget in tokens when none is given.
const DefaultBudget = 4000

// minExcerpt is the smallest remaining budget, in characters, worth filling
// with a truncated entry.
const minExcerpt = 100

// ContextMemory is a ranked entry packed into a prompt context.
type ContextMemory struct {
	ID      string  `json:"id"`
	Scope   string  `json:"scope"`
	Type    string  `json:"type"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Excerpt bool    `json:"excerpt,omitempty"`
}

// ContextResult is the assembled context.
type ContextResult struct {
	Budget   int             `json:"budget"`
	Used     int             `json:"used"`
	Memories []ContextMemory `json:"memories"`
}

// Assemble packs ranked results into a token budget, greedily in rank order.
// One token is taken as four characters. The first entry that does not fit is
// excerpted when enough budget remains, and packing stops there.
func Assemble(results []Result, budget int) *ContextResult {
	if budget <= 0 {
		budget = DefaultBudget
	}
	charBudget := budget * 4

	out := &ContextResult{Budget: budget, Memories: []ContextMemory{}}
	used := 0
	for _, r := range results {
		m := r.Memory
		cm := ContextMemory{
			ID:      m.ID,
			Scope:   m.Scope,
			Type:    string(m.Type),
			Content: m.Content,
			Score:   math.Round(r.Score*100) / 100,
		}
		n := utf8.RuneCountInString(m.Content)
		if used+n <= charBudget {
			out.Memories = append(out.Memories, cm)
			used += n
			continue
		}
		if remaining := charBudget - used; remaining >= minExcerpt {
			cm.Content = string([]rune(m.Content)[:remaining]) + "..."
			cm.Excerpt = true
			out.Memories = append(out.Memories, cm)
			used += remaining
		}
		break
	}
	out.Used = used / 4
	return out
}
