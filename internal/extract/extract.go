// Package extract turns raw text into keywords, category tags and entity
// mentions. Everything here is pure and deterministic.
package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// MinKeywordLen is the shortest token kept as a keyword, in runes.
const MinKeywordLen = 3

var (
	wordRegex   = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	recordRegex = regexp.MustCompile(`\b[a-z][a-z0-9]*_[a-z0-9]{3,}\b`)
	emailRegex  = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
)

var stopwords = toSet(
	// English function words
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had",
	"her", "was", "one", "our", "out", "has", "have", "his", "how", "its", "may",
	"new", "now", "old", "see", "two", "way", "who", "did", "get", "got", "let",
	"say", "she", "too", "use", "with", "this", "that", "from", "they", "them",
	"then", "than", "there", "their", "what", "when", "where", "which", "while",
	"will", "would", "could", "should", "about", "above", "after", "again",
	"also", "been", "being", "before", "below", "between", "both", "does",
	"doing", "down", "during", "each", "few", "further", "here", "into", "just",
	"more", "most", "much", "must", "only", "other", "over", "same", "some",
	"such", "very", "were", "your", "yours", "ours", "these", "those", "through",
	"under", "until", "upon", "why", "off", "own", "each", "because", "like",
	"want", "need", "please", "thanks", "thank", "yes", "okay",
	// conversational filler common in captured interactions
	"user", "users", "asked", "asks", "ask", "said", "says", "told", "tell",
	"agent", "assistant", "bot",
	// domain nouns present in nearly every entry
	"rfp", "rfps",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopword reports whether w is dropped during keyword extraction.
func IsStopword(w string) bool {
	_, ok := stopwords[strings.ToLower(w)]
	return ok
}

// Keywords tokenizes text into alphanumeric runs of at least MinKeywordLen
// runes, lowercases them, drops stopwords and ranks the rest by frequency
// descending then alphabetically. At most max keywords are returned; max <= 0
// means model.MaxKeywords.
func Keywords(text string, max int) []string {
	if max <= 0 || max > model.MaxKeywords {
		max = model.MaxKeywords
	}

	counts := map[string]int{}
	for _, tok := range wordRegex.FindAllString(strings.ToLower(text), -1) {
		tok = strings.Trim(tok, "_")
		if utf8.RuneCountInString(tok) < MinKeywordLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		counts[tok]++
	}
	if len(counts) == 0 {
		return nil
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > max {
		words = words[:max]
	}
	return words
}

// Entities returns structured identifiers found in text: record ids such as
// "rfp_abc123" and email addresses. Results are lowercased and deduped in
// first-seen order.
func Entities(text string) []string {
	lower := strings.ToLower(text)
	seen := map[string]struct{}{}
	var out []string
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, e := range emailRegex.FindAllString(lower, -1) {
		add(e)
	}
	for _, r := range recordRegex.FindAllString(lower, -1) {
		add(r)
	}
	return out
}

// Result is the combined output of Extract.
type Result struct {
	Keywords []string `json:"keywords"`
	Tags     []string `json:"tags"`
	Entities []string `json:"entities,omitempty"`
}

// Extract runs every extractor. Entities are appended to the frequency ranked
// keywords when not already present; the merged list is capped at maxKeywords.
func Extract(text string, metadata map[string]string, maxKeywords int) Result {
	if maxKeywords <= 0 || maxKeywords > model.MaxKeywords {
		maxKeywords = model.MaxKeywords
	}
	entities := Entities(text)
	keywords := Keywords(text, maxKeywords)
	merged := model.NormalizeTerms(append(keywords, entities...), maxKeywords)

	return Result{
		Keywords: merged,
		Tags:     Tags(text, metadata),
		Entities: entities,
	}
}
