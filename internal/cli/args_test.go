package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

func TestParseTTL(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"24h", 24 * time.Hour},
		{"30m", 30 * time.Minute},
		{"60s", 60 * time.Second},
		{"0s", 0},
	}
	for _, tt := range tests {
		got, err := parseTTL(tt.input)
		gt.NoError(t, err)
		gt.Equal(t, got, tt.want)
	}

	for _, bad := range []string{"", "7", "d", "1w", "-1h", "1.5h"} {
		_, err := parseTTL(bad)
		gt.True(t, errors.Is(err, model.ErrValidation))
	}
}

func TestSplitList(t *testing.T) {
	gt.Equal(t, splitList("a, b,,c ,"), []string{"a", "b", "c"})
	gt.A(t, splitList("")).Length(0)
}

func TestParseMeta(t *testing.T) {
	md, err := parseMeta(`{"rfp_id":"rfp_1","channel":"C01"}`)
	gt.NoError(t, err)
	gt.Equal(t, md, map[string]string{"rfp_id": "rfp_1", "channel": "C01"})

	md, err = parseMeta("")
	gt.NoError(t, err)
	gt.True(t, md == nil)

	_, err = parseMeta(`{"count":3}`)
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestParseDetails(t *testing.T) {
	d, err := parseDetails(`{"error_log":{"error_type":"timeout","component":"index"}}`)
	gt.NoError(t, err)
	gt.Equal(t, d.ErrorLog.ErrorType, "timeout")

	_, err = parseDetails("[1]")
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestParseTypesAndRel(t *testing.T) {
	types, err := parseTypes([]string{"episodic", "TOOL_PATTERN"})
	gt.NoError(t, err)
	gt.Equal(t, types, []model.MemoryType{model.TypeEpisodic, model.TypeToolPattern})

	_, err = parseTypes([]string{"dream"})
	gt.True(t, errors.Is(err, model.ErrValidation))

	rel, err := parseRel("Depends_On")
	gt.NoError(t, err)
	gt.Equal(t, rel, model.RelDependsOn)

	rel, err = parseRel("")
	gt.NoError(t, err)
	gt.Equal(t, rel, model.RelationshipType(""))

	_, err = parseRel("likes")
	gt.True(t, errors.Is(err, model.ErrValidation))
}
