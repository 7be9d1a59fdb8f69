package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"agentd/internal/bridge"
	"agentd/internal/chat"
)

type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []chat.Message) (string, error) {
	if s.calls >= len(s.replies) {
		return "", errors.New("script exhausted")
	}
	reply := s.replies[s.calls]
	s.calls++
	return reply, nil
}

type recordingDispatcher struct {
	messages []string
	result   bridge.DispatchResult
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, message string) bridge.DispatchResult {
	d.messages = append(d.messages, message)
	return d.result
}

func aiderReply(content string) string {
	b, _ := json.Marshal(map[string]string{"type": "aider", "content": content})
	return string(b)
}

func TestQuitEndsLoopImmediately(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		aiderReply("/add main.go"),
		aiderReply("/quit"),
	}}
	disp := &recordingDispatcher{result: bridge.DispatchResult{Status: bridge.StatusSuccess}}

	summary, err := New(llm, disp).Run(context.Background(), "fix the bug")
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Quit {
		t.Fatal("quit not recorded")
	}
	if summary.LLMCalls != 2 {
		t.Fatalf("llm calls=%d", summary.LLMCalls)
	}
	if len(disp.messages) != 1 || disp.messages[0] != "/add main.go" {
		t.Fatalf("dispatched=%v", disp.messages)
	}
}

func TestIterationCapNeverExceeded(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		aiderReply("one"), aiderReply("two"), aiderReply("three"),
		aiderReply("four"), aiderReply("five"), aiderReply("six"),
	}}
	disp := &recordingDispatcher{result: bridge.DispatchResult{Status: bridge.StatusSuccess}}

	summary, err := New(llm, disp).Run(context.Background(), "keep going forever")
	if err != nil {
		t.Fatal(err)
	}
	if summary.LLMCalls != DefaultMaxIterations {
		t.Fatalf("llm calls=%d", summary.LLMCalls)
	}
	if llm.calls != DefaultMaxIterations {
		t.Fatalf("scripted calls=%d", llm.calls)
	}
}

func TestMalformedReplySkipsDispatchOnly(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		"I think I should add the file first.",
		aiderReply("/quit"),
	}}
	disp := &recordingDispatcher{result: bridge.DispatchResult{Status: bridge.StatusSuccess}}

	summary, err := New(llm, disp).Run(context.Background(), "task")
	if err != nil {
		t.Fatal(err)
	}
	if summary.ProtocolSkips != 1 {
		t.Fatalf("skips=%d", summary.ProtocolSkips)
	}
	if len(disp.messages) != 0 {
		t.Fatalf("dispatched=%v", disp.messages)
	}
	// The malformed turn stays in the transcript as context.
	if summary.Transcript[1].Content != "I think I should add the file first." {
		t.Fatalf("transcript[1]=%q", summary.Transcript[1].Content)
	}
}

func TestDispatchResultSerializedIntoTranscript(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		aiderReply("/add main.go"),
		aiderReply("/quit"),
	}}
	disp := &recordingDispatcher{result: bridge.DispatchResult{
		Status: bridge.StatusSuccess,
		Responses: []bridge.Event{
			{Type: bridge.EventToolOutput, Message: "Added main.go to the chat"},
		},
	}}

	summary, err := New(llm, disp).Run(context.Background(), "task")
	if err != nil {
		t.Fatal(err)
	}
	// system, assistant, serialized dispatch, assistant(/quit)
	if len(summary.Transcript) != 4 {
		t.Fatalf("transcript len=%d", len(summary.Transcript))
	}
	turn := summary.Transcript[2]
	if turn.Role != chat.RoleUser {
		t.Fatalf("role=%q", turn.Role)
	}
	if !strings.Contains(turn.Content, "Added main.go to the chat") {
		t.Fatalf("content=%q", turn.Content)
	}
}

func TestPerplexityTurnPassesThrough(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`{"type":"perplexity","content":"latest htmx docs"}`,
		aiderReply("/quit"),
	}}
	disp := &recordingDispatcher{}

	summary, err := New(llm, disp).Run(context.Background(), "task")
	if err != nil {
		t.Fatal(err)
	}
	if len(disp.messages) != 0 {
		t.Fatalf("dispatched=%v", disp.messages)
	}
	if summary.Transcript[2].Content != "latest htmx docs" {
		t.Fatalf("transcript[2]=%q", summary.Transcript[2].Content)
	}
}

func TestLLMFailureAbortsRun(t *testing.T) {
	llm := &scriptedLLM{} // empty script errors on first call
	disp := &recordingDispatcher{}

	_, err := New(llm, disp).Run(context.Background(), "task")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSystemPromptCarriesInstruction(t *testing.T) {
	llm := &scriptedLLM{replies: []string{aiderReply("/quit")}}
	summary, err := New(llm, &recordingDispatcher{}).Run(context.Background(), "add a healthcheck endpoint")
	if err != nil {
		t.Fatal(err)
	}
	sys := summary.Transcript[0]
	if sys.Role != chat.RoleSystem {
		t.Fatalf("role=%q", sys.Role)
	}
	if !strings.Contains(sys.Content, "add a healthcheck endpoint") {
		t.Fatal("instruction missing from system prompt")
	}
	if summary.TranscriptTokens == 0 {
		t.Fatal("transcript tokens not counted")
	}
}
