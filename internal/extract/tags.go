package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

type category struct {
	tag     string
	pattern *regexp.Regexp
}

// categories is matched against lowercased text.
var categories = []category{
	{"deadline", regexp.MustCompile(`\b(deadline|due date|due by|due on|submission date|cutoff)\b`)},
	{"pricing", regexp.MustCompile(`\b(price|prices|pricing|cost|costs|budget|quote|quotes|rate card|fee|fees)\b`)},
	{"compliance", regexp.MustCompile(`\b(compliance|compliant|requirement|requirements|regulation|certification|soc ?2|iso ?27001|gdpr|hipaa)\b`)},
	{"question", regexp.MustCompile(`\?|\b(question|questions|asked|ask|clarify|clarification)\b`)},
	{"decision", regexp.MustCompile(`\b(decided|decision|approved|rejected|chose|selected|go/no-go)\b`)},
	{"error", regexp.MustCompile(`\b(error|errors|failed|failure|exception|timeout|crash)\b`)},
	{"meeting", regexp.MustCompile(`\b(meeting|call|sync|standup|demo|kickoff)\b`)},
	{"preference", regexp.MustCompile(`\b(prefer|prefers|preferred|preference|likes|dislikes|always|never)\b`)},
	{"action_item", regexp.MustCompile(`\b(todo|to-do|action item|follow up|follow-up|next step|next steps)\b`)},
	{"contract", regexp.MustCompile(`\b(contract|agreement|terms|sow|msa|nda)\b`)},
}

// metadataTags maps provenance keys to the tag they contribute.
var metadataTags = map[string]string{
	"channel":       "collaboration",
	"thread_ts":     "collaboration",
	"source_system": "external",
}

// Tags matches text against the fixed category table and adds tags implied by
// metadata: "<domain>_id" keys contribute "<domain>_related". The result is
// sorted, deduped and capped at model.MaxTags.
func Tags(text string, metadata map[string]string) []string {
	lower := strings.ToLower(text)
	set := map[string]struct{}{}

	for _, c := range categories {
		if c.pattern.MatchString(lower) {
			set[c.tag] = struct{}{}
		}
	}

	for k, v := range metadata {
		if strings.TrimSpace(v) == "" {
			continue
		}
		k = strings.ToLower(k)
		if tag, ok := metadataTags[k]; ok {
			set[tag] = struct{}{}
			continue
		}
		if domain, ok := strings.CutSuffix(k, "_id"); ok && domain != "" {
			set[domain+"_related"] = struct{}{}
		}
	}

	if len(set) == 0 {
		return nil
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	if len(tags) > model.MaxTags {
		tags = tags[:model.MaxTags]
	}
	return tags
}
