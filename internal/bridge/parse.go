package bridge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tokenCostPattern matches the one-line usage summary the engine prints after
// a model reply, e.g. "Tokens: 2.5k sent, 180 received. Cost: $0.0042 message, $0.0191 session."
var tokenCostPattern = regexp.MustCompile(
	`Tokens:\s*([\d\.kKmM]+)\s*sent,\s*([\d\.kKmM]+)\s*received\. Cost:\s*\$([\d\.]+)\s*message,\s*\$([\d\.]+)\s*session\.`,
)

// TokenCostSummary is the structured form of the usage summary line.
type TokenCostSummary struct {
	TokensSent     int64
	TokensReceived int64
	CostMessage    string
	CostSession    string
}

// ParseTokenCost extracts a token/cost summary from free-form tool output.
// The second return is false when the message carries no summary.
func ParseTokenCost(message string) (TokenCostSummary, bool) {
	m := tokenCostPattern.FindStringSubmatch(message)
	if m == nil {
		return TokenCostSummary{}, false
	}
	sent, err := parseTokenCount(m[1])
	if err != nil {
		return TokenCostSummary{}, false
	}
	received, err := parseTokenCount(m[2])
	if err != nil {
		return TokenCostSummary{}, false
	}
	return TokenCostSummary{
		TokensSent:     sent,
		TokensReceived: received,
		CostMessage:    m[3],
		CostSession:    m[4],
	}, true
}

// parseTokenCount expands the engine's abbreviated counts: a trailing "k"
// multiplies by 1,000 and "m" by 1,000,000.
func parseTokenCount(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "k"):
		mult = 1_000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult = 1_000_000
		s = strings.TrimSuffix(s, "m")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("token count %q: %w", s, err)
	}
	return int64(f * float64(mult)), nil
}
