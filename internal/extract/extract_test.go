package extract_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/extract"
)

func TestKeywords(t *testing.T) {
	testCases := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{"record id and topic", "User asked about RFP rfp_abc123 pricing", 10, []string{"pricing", "rfp_abc123"}},
		{"frequency then alpha", "beta alpha beta gamma alpha beta", 10, []string{"beta", "alpha", "gamma"}},
		{"short tokens dropped", "go is ok but rust fine", 10, []string{"fine", "rust"}},
		{"truncated", "delta charlie bravo", 2, []string{"bravo", "charlie"}},
		{"empty", "   ", 10, nil},
		{"unicode", "Café prices café", 10, []string{"café", "prices"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, extract.Keywords(tc.text, tc.max), tc.want)
		})
	}
}

func TestKeywordsDeterministic(t *testing.T) {
	text := "zeta eta theta iota kappa lambda"
	first := extract.Keywords(text, 3)
	for i := 0; i < 20; i++ {
		gt.Equal(t, extract.Keywords(text, 3), first)
	}
}

func TestKeywordsCap(t *testing.T) {
	var words []string
	for i := 0; i < 80; i++ {
		words = append(words, fmt.Sprintf("word%03d", i))
	}
	gt.A(t, extract.Keywords(strings.Join(words, " "), 0)).Length(50)
}

func TestTags(t *testing.T) {
	got := extract.Tags("What is the pricing? The deadline is Friday.", nil)
	gt.Equal(t, got, []string{"deadline", "pricing", "question"})

	got = extract.Tags("Notes", map[string]string{
		"rfp_id":        "rfp_abc123",
		"proposal_id":   "p1",
		"channel":       "C123",
		"thread_ts":     "1700000000.1",
		"source_system": "salesforce",
		"tenant_id":     "",
	})
	gt.Equal(t, got, []string{"collaboration", "external", "proposal_related", "rfp_related"})

	gt.Equal(t, extract.Tags("nothing interesting", nil), []string(nil))
}

func TestEntities(t *testing.T) {
	got := extract.Entities("Send rfp_abc123 to Jane.Doe@Example.com and cc ops@example.com about rfp_abc123")
	gt.Equal(t, got, []string{"jane.doe@example.com", "ops@example.com", "rfp_abc123"})
}

func TestExtract(t *testing.T) {
	res := extract.Extract("Customer asked about the deadline for proposal_x99", map[string]string{"rfp_id": "rfp_1"}, 10)
	gt.Equal(t, res.Keywords, []string{"customer", "deadline", "proposal_x99"})
	gt.Equal(t, res.Tags, []string{"deadline", "question", "rfp_related"})
	gt.Equal(t, res.Entities, []string{"proposal_x99"})
}
