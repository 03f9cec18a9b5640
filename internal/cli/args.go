package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/memory"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// readContent takes content from the positional args, or from stdin when it
// is piped.
func readContent(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	stat, err := os.Stdin.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", goerr.Wrap(err, "read stdin")
	}
	return string(b), nil
}

var ttlRegex = regexp.MustCompile(`^(\d+)([dhms])$`)

// parseTTL parses a TTL string like "7d", "24h", "30m" into a time.Duration.
func parseTTL(s string) (time.Duration, error) {
	m := ttlRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, goerr.Wrap(model.ErrValidation, "invalid ttl (use e.g. 7d, 24h, 30m, 60s)", goerr.V("ttl", s))
	}
	n, _ := strconv.Atoi(m[1])
	unit := map[string]time.Duration{"d": 24 * time.Hour, "h": time.Hour, "m": time.Minute, "s": time.Second}[m[2]]
	return time.Duration(n) * unit, nil
}

// parseMeta parses a JSON object of string values.
func parseMeta(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var md map[string]string
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return nil, goerr.Wrap(model.ErrValidation, "metadata must be a JSON object of strings", goerr.V("cause", err.Error()))
	}
	return md, nil
}

// parseDetails parses a JSON Details payload.
func parseDetails(s string) (*model.Details, error) {
	if s == "" {
		return nil, nil
	}
	var d model.Details
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, goerr.Wrap(model.ErrValidation, "details must be a JSON object", goerr.V("cause", err.Error()))
	}
	return &d, nil
}

func parseTypes(values []string) ([]model.MemoryType, error) {
	var types []model.MemoryType
	for _, v := range values {
		t, err := model.ParseMemoryType(v)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func parseRel(s string) (model.RelationshipType, error) {
	if s == "" {
		return "", nil
	}
	rel := model.RelationshipType(strings.ToLower(strings.TrimSpace(s)))
	if err := rel.Validate(); err != nil {
		return "", err
	}
	return rel, nil
}

// keyOf looks an entry up by id and returns its composite key.
func keyOf(ctx context.Context, svc *memory.Service, id string) (model.Key, error) {
	m, err := svc.Resolve(ctx, id)
	if err != nil {
		return model.Key{}, err
	}
	return m.Key(), nil
}
