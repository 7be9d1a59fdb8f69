package agentloop

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Command is one parsed instruction from the directing model: either a
// message for the coding assistant or a pass-through research turn.
type Command struct {
	Type    string
	Content string
}

// Command types the loop understands.
const (
	CommandAider      = "aider"
	CommandPerplexity = "perplexity"
)

// ExtractCommand pulls the single JSON object out of a model reply. It first
// tries the outermost brace-delimited substring, then the whole reply. The
// second return is false when neither parses to an object with a type field;
// the caller skips the turn and leaves the raw reply in the transcript.
func ExtractCommand(reply string) (Command, bool) {
	if start := strings.Index(reply, "{"); start >= 0 {
		if end := strings.LastIndex(reply, "}"); end > start {
			if cmd, ok := parseCommand(reply[start : end+1]); ok {
				return cmd, true
			}
		}
	}
	return parseCommand(reply)
}

func parseCommand(raw string) (Command, bool) {
	if !gjson.Valid(raw) {
		return Command{}, false
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return Command{}, false
	}
	typ := parsed.Get("type")
	if !typ.Exists() || typ.String() == "" {
		return Command{}, false
	}
	return Command{
		Type:    typ.String(),
		Content: parsed.Get("content").String(),
	}, true
}
