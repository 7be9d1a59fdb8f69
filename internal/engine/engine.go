// Package engine defines the contract between agentd and the wrapped
// interactive coding assistant. The assistant itself is an external
// collaborator: it drives the IO callbacks while a message runs, and agentd
// never looks inside it beyond this surface.
package engine

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by deployments that have no concrete engine
// adapter linked in.
var ErrNotConfigured = errors.New("no engine adapter configured")

// IO is the capability surface the engine expects from its host. An
// interactive terminal implements this by prompting a human; the bridge
// implements it by buffering events and answering from policy.
type IO interface {
	// GetInput blocks until the host supplies the next user message.
	// The engine reports its current file set and edit format on each call.
	GetInput(root string, editableRel []string, readOnlyAbs []string, editFormat string) string

	// ToolOutput reports engine progress. logOnly output goes to the chat
	// history but is not surfaced to the host.
	ToolOutput(message string, logOnly bool)

	ToolError(message string)
	ToolWarning(message string)

	// AssistantOutput reports a model-authored message.
	AssistantOutput(message string)

	// ConfirmAsk asks a yes/no question. subject optionally names the thing
	// the question is about (a file path, a URL).
	ConfirmAsk(question, subject string) bool

	// PromptAsk asks a free-text question with a default answer.
	PromptAsk(question, defaultValue, subject string) string
}

// Engine is one initialized instance of the wrapped coding assistant.
type Engine interface {
	// Run processes one user message to completion, calling back into the
	// IO it was constructed with. It returns only when the turn is done.
	Run(ctx context.Context, message string) error

	// Root is the working directory the engine operates in.
	Root() string

	// EditableFiles lists in-chat files as paths relative to Root.
	EditableFiles() []string

	// ReadOnlyFiles lists read-only reference files as absolute paths.
	ReadOnlyFiles() []string

	// EditFormat names the active edit format, empty if none.
	EditFormat() string
}

// Factory constructs an engine bound to the given IO in the given working
// directory. Deployments link in a concrete adapter; tests use fakes.
type Factory func(workDir string, io IO, pretty bool) (Engine, error)
