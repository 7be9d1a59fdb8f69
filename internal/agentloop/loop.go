// Package agentloop runs the bounded conversation between a directing LLM
// and the bridged coding assistant. The loop alternates one chat-completion
// call with at most one dispatched command, capped at a fixed number of
// round trips, and never waits on a human.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"agentd/internal/bridge"
	"agentd/internal/chat"
	"agentd/internal/contextmgr"
)

// DefaultMaxIterations bounds the loop when no explicit cap is configured.
const DefaultMaxIterations = 5

// quitCommand ends the conversation when the model sends it to the assistant.
const quitCommand = "/quit"

// ChatClient is the LLM side of the loop.
type ChatClient interface {
	Chat(ctx context.Context, messages []chat.Message) (string, error)
}

// Dispatcher is the coding-assistant side of the loop. The bridge session
// satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, message string) bridge.DispatchResult
}

// Summary reports what a finished loop did. The transcript includes the
// system prompt, every raw model reply (parsable or not), and the serialized
// response of every dispatch.
type Summary struct {
	Transcript       []chat.Message
	LLMCalls         int
	Dispatches       int
	ProtocolSkips    int
	TranscriptTokens int
	Quit             bool
}

// Loop owns one bounded conversation.
type Loop struct {
	llm           ChatClient
	dispatcher    Dispatcher
	tokenizer     *contextmgr.Tokenizer
	logw          io.Writer
	maxIterations int
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations overrides the iteration cap.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithLogWriter sets the iteration trace destination.
func WithLogWriter(w io.Writer) Option {
	return func(l *Loop) {
		l.logw = w
	}
}

// WithTokenizer sets the tokenizer used for the transcript accounting in the
// summary.
func WithTokenizer(t *contextmgr.Tokenizer) Option {
	return func(l *Loop) {
		l.tokenizer = t
	}
}

// New builds a loop over the given model client and dispatcher.
func New(llm ChatClient, dispatcher Dispatcher, opts ...Option) *Loop {
	l := &Loop{
		llm:           llm,
		dispatcher:    dispatcher,
		maxIterations: DefaultMaxIterations,
		logw:          io.Discard,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tokenizer == nil {
		l.tokenizer = contextmgr.DefaultTokenizer()
	}
	return l
}

// Run drives the conversation for the given instruction until the model
// quits or the iteration cap is reached. Model transport failures abort the
// run; malformed replies only skip their own turn.
func (l *Loop) Run(ctx context.Context, instruction string) (summary Summary, err error) {
	summary.Transcript = []chat.Message{chat.System(SystemPrompt(instruction))}
	defer func() {
		summary.TranscriptTokens = l.tokenizer.Count(summary.Transcript)
	}()

	for i := 0; i < l.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		fmt.Fprintf(l.logw, "Iteration %d\n", i)

		reply, err := l.llm.Chat(ctx, summary.Transcript)
		if err != nil {
			return summary, fmt.Errorf("chat completion: %w", err)
		}
		summary.LLMCalls++
		// The raw reply stays in the transcript even when unparsable, as
		// context for the next call.
		summary.Transcript = append(summary.Transcript, chat.Assistant(reply))

		cmd, ok := ExtractCommand(reply)
		if !ok {
			fmt.Fprintf(l.logw, "Failed to parse response as JSON, skipping turn\n")
			summary.ProtocolSkips++
			continue
		}

		switch cmd.Type {
		case CommandAider:
			if cmd.Content == quitCommand {
				summary.Quit = true
				return summary, nil
			}
			res := l.dispatcher.Dispatch(ctx, cmd.Content)
			summary.Dispatches++
			payload, err := json.Marshal(res)
			if err != nil {
				return summary, fmt.Errorf("serialize dispatch result: %w", err)
			}
			summary.Transcript = append(summary.Transcript, chat.User(string(payload)))
		case CommandPerplexity:
			// Reserved research turn type: pass the content through as the
			// next user message without dispatching.
			summary.Transcript = append(summary.Transcript, chat.User(cmd.Content))
		default:
			summary.ProtocolSkips++
		}
	}
	return summary, nil
}
