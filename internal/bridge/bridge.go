package bridge

import (
	"strconv"
	"strings"
	"time"

	"agentd/internal/engine"
	"agentd/internal/history"
	"agentd/internal/render"
)

// maxFilesPerChat caps how many file-add confirmations are auto-approved
// within one input cycle.
const maxFilesPerChat = 4

// fileLimitWarning is emitted when the cap is hit. Kept stable: clients
// match on the "File limit of 4 files" prefix.
const fileLimitWarning = "File limit of 4 files per chat session exceeded. Rejecting additional file."

// IO adapts the engine's interactive capability surface to request/response
// use. Every report call appends to the collector; every ask call is answered
// from policy or from the single-slot input queue. One IO serves one session
// and at most one in-flight dispatch at a time.
type IO struct {
	collector *Collector
	input     chan string
	hist      history.Store
	renderer  *render.Renderer

	engine engine.Engine

	currentEditFormat string
	filesAddedInChat  int
}

// NewIO builds the bridge IO. hist may be nil; renderer may be nil.
func NewIO(hist history.Store, renderer *render.Renderer) *IO {
	if hist == nil {
		hist = history.Nop{}
	}
	return &IO{
		collector: &Collector{},
		input:     make(chan string, 1),
		hist:      hist,
		renderer:  renderer,
	}
}

// Bind attaches the engine instance once it has been constructed. The engine
// is needed for file snapshots taken outside GetInput.
func (b *IO) Bind(eng engine.Engine) {
	b.engine = eng
}

// Collector exposes the per-dispatch event buffer.
func (b *IO) Collector() *Collector {
	return b.collector
}

// Offer places a value on the input queue without blocking. It reports false
// when the slot is already occupied.
func (b *IO) Offer(value string) bool {
	select {
	case b.input <- value:
		return true
	default:
		return false
	}
}

// GetInput implements engine.IO. It resets the file-add counter, snapshots
// the engine's file set, then blocks until a value arrives on the input
// queue. This is the bridge's only suspension point.
func (b *IO) GetInput(root string, editableRel []string, readOnlyAbs []string, editFormat string) string {
	b.filesAddedInChat = 0
	b.currentEditFormat = editFormat

	b.collector.Append(Event{
		Type:  EventFilesStatus,
		Files: NewFilesSnapshot(root, editableRel, readOnlyAbs, editFormat),
	})

	return <-b.input
}

// ToolOutput implements engine.IO. Non-log-only output is buffered; output
// carrying a token/cost summary gains the parsed figures and is followed by
// a files_status snapshot.
func (b *IO) ToolOutput(message string, logOnly bool) {
	if !logOnly {
		ev := Event{Type: EventToolOutput, Message: message}
		if sum, ok := ParseTokenCost(message); ok {
			ev.TokensSent = formatCount(sum.TokensSent)
			ev.TokensReceived = formatCount(sum.TokensReceived)
			ev.CostMessage = sum.CostMessage
			ev.CostSession = sum.CostSession
			b.collector.Append(ev)
			b.appendEngineFilesStatus()
		} else {
			b.collector.Append(ev)
		}
		b.renderer.Line(EventToolOutput, message)
	}
	_ = b.hist.Append(EventToolOutput, message)
}

// ToolError implements engine.IO.
func (b *IO) ToolError(message string) {
	b.collector.Append(Event{Type: EventError, Message: message})
	b.renderer.Line(EventError, message)
	_ = b.hist.Append(EventError, message)
}

// ToolWarning implements engine.IO.
func (b *IO) ToolWarning(message string) {
	b.collector.Append(Event{Type: EventWarning, Message: message})
	b.renderer.Line(EventWarning, message)
	_ = b.hist.Append(EventWarning, message)
}

// AssistantOutput implements engine.IO. The event carries the append-time
// timestamp.
func (b *IO) AssistantOutput(message string) {
	b.collector.Append(Event{
		Type:      EventAssistant,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	b.renderer.Assistant(message)
	_ = b.hist.Append(EventAssistant, message)
}

// ConfirmAsk implements engine.IO. It never suspends: file-add questions are
// approved up to the per-cycle cap and rejected with a warning beyond it;
// everything else is approved.
func (b *IO) ConfirmAsk(question, subject string) bool {
	answer := true
	if isFileAddQuestion(question) {
		if b.filesAddedInChat >= maxFilesPerChat {
			answer = false
		} else {
			b.filesAddedInChat++
		}
	}

	b.collector.Append(Event{
		Type:     EventConfirm,
		Question: question,
		Subject:  subject,
		Answer:   yesNo(answer),
	})
	if !answer {
		b.ToolWarning(fileLimitWarning)
	}
	return answer
}

// PromptAsk implements engine.IO. It records the prompt and returns the
// default without suspending.
func (b *IO) PromptAsk(question, defaultValue, subject string) string {
	b.collector.Append(Event{
		Type:     EventPrompt,
		Question: question,
		Subject:  subject,
	})
	return defaultValue
}

// appendEngineFilesStatus snapshots the bound engine's file set. No engine,
// no snapshot.
func (b *IO) appendEngineFilesStatus() {
	if b.engine == nil {
		return
	}
	b.collector.Append(Event{
		Type: EventFilesStatus,
		Files: NewFilesSnapshot(
			b.engine.Root(),
			b.engine.EditableFiles(),
			b.engine.ReadOnlyFiles(),
			b.currentEditFormat,
		),
	})
}

// isFileAddQuestion recognizes the engine's file creation and file-add
// confirmations.
func isFileAddQuestion(question string) bool {
	if strings.Contains(question, "Do you want to create") {
		return true
	}
	return strings.Contains(question, "Add") && strings.Contains(question, "to the chat")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// formatCount serializes a count as a string to match the wire shape
// clients expect.
func formatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}
