// Package scoring computes the relevance of a memory entry to a query.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// Weights configures the scorer. Keyword, Recency, Access and Scope should sum
// to 1 so the weighted sum stays in [0,1] before clamping.
type Weights struct {
	Keyword            float64 `yaml:"keyword" json:"keyword"`
	Recency            float64 `yaml:"recency" json:"recency"`
	Access             float64 `yaml:"access" json:"access"`
	Scope              float64 `yaml:"scope" json:"scope"`
	RecencyHorizonDays float64 `yaml:"recency_horizon_days" json:"recency_horizon_days"`
	AccessSaturation   int     `yaml:"access_saturation" json:"access_saturation"`
	TypeMismatch       float64 `yaml:"type_mismatch" json:"type_mismatch"`
}

// DefaultWeights returns the standard signal weights.
func DefaultWeights() Weights {
	return Weights{
		Keyword:            0.4,
		Recency:            0.3,
		Access:             0.2,
		Scope:              0.1,
		RecencyHorizonDays: 90,
		AccessSaturation:   100,
		TypeMismatch:       0.5,
	}
}

// Validate rejects weights that cannot produce a bounded score.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"keyword": w.Keyword, "recency": w.Recency, "access": w.Access,
		"scope": w.Scope, "type_mismatch": w.TypeMismatch,
	} {
		if v < 0 || math.IsNaN(v) {
			return goerr.Wrap(model.ErrValidation, "scoring weight must be non-negative", goerr.V("weight", name), goerr.V("value", v))
		}
	}
	if w.TypeMismatch > 1 {
		return goerr.Wrap(model.ErrValidation, "type mismatch factor must be at most 1", goerr.V("value", w.TypeMismatch))
	}
	if w.RecencyHorizonDays <= 0 {
		return goerr.Wrap(model.ErrValidation, "recency horizon must be positive", goerr.V("value", w.RecencyHorizonDays))
	}
	if w.AccessSaturation <= 0 {
		return goerr.Wrap(model.ErrValidation, "access saturation must be positive", goerr.V("value", w.AccessSaturation))
	}
	return nil
}

// Query is the context an entry is scored against. Scope and Type are
// optional; an empty Type means no type filter was requested.
type Query struct {
	Keywords []string
	Scope    string
	Type     model.MemoryType
	Now      time.Time
}

// Breakdown holds each normalized signal and the final score.
type Breakdown struct {
	Keyword    float64 `json:"keyword"`
	Recency    float64 `json:"recency"`
	Access     float64 `json:"access"`
	Scope      float64 `json:"scope"`
	TypeFactor float64 `json:"type_factor"`
	Score      float64 `json:"score"`
}

// Scorer is safe for concurrent use.
type Scorer struct {
	w Weights
}

// New returns a Scorer using w.
func New(w Weights) *Scorer {
	return &Scorer{w: w}
}

// Weights returns the configured weights.
func (s *Scorer) Weights() Weights {
	return s.w
}

// Score returns the relevance of m to q in [0,1].
func (s *Scorer) Score(m *model.Memory, q Query) float64 {
	return s.Explain(m, q).Score
}

// Explain returns every signal behind Score.
func (s *Scorer) Explain(m *model.Memory, q Query) Breakdown {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	b := Breakdown{
		Keyword:    keywordOverlap(m, q.Keywords),
		Recency:    s.recency(m.CreatedAt, now),
		Access:     s.access(m.AccessCount),
		TypeFactor: 1.0,
	}
	if q.Scope != "" && q.Scope == m.Scope {
		b.Scope = 1.0
	}
	if q.Type != "" && q.Type != m.Type {
		b.TypeFactor = s.w.TypeMismatch
	}

	sum := b.Keyword*s.w.Keyword + b.Recency*s.w.Recency + b.Access*s.w.Access + b.Scope*s.w.Scope
	b.Score = clamp(sum * b.TypeFactor)
	return b
}

// keywordOverlap counts query keywords found in the entry's keywords or tags.
func keywordOverlap(m *model.Memory, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	terms := make(map[string]struct{}, len(m.Keywords)+len(m.Tags))
	for _, k := range m.Keywords {
		terms[strings.ToLower(k)] = struct{}{}
	}
	for _, t := range m.Tags {
		terms[strings.ToLower(t)] = struct{}{}
	}

	seen := map[string]struct{}{}
	matches := 0
	for _, k := range keywords {
		k = strings.ToLower(k)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := terms[k]; ok {
			matches++
		}
	}
	return math.Min(float64(matches)/float64(len(seen)), 1.0)
}

// recency decays linearly to 0 at the horizon. An unknown creation time scores 0.5.
func (s *Scorer) recency(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0.5
	}
	days := now.Sub(createdAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Max(0, 1-days/s.w.RecencyHorizonDays)
}

func (s *Scorer) access(count int) float64 {
	if count <= 0 {
		return 0
	}
	return math.Min(float64(count)/float64(s.w.AccessSaturation), 1.0)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
