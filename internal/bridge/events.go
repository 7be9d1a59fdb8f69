package bridge

import (
	"path/filepath"
	"sort"
)

// Event types appended by the bridge during one dispatch.
const (
	EventToolOutput  = "tool_output"
	EventError       = "error"
	EventWarning     = "warning"
	EventAssistant   = "assistant"
	EventConfirm     = "confirm"
	EventPrompt      = "prompt"
	EventFilesStatus = "files_status"
)

// Event is one entry in the per-dispatch response buffer. The buffer is
// insertion-ordered and events never mutate after being appended.
type Event struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	Question string `json:"question,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Answer   string `json:"answer,omitempty"`

	// Set on tool_output events whose message matched the token/cost summary.
	TokensSent     string `json:"tokens_sent,omitempty"`
	TokensReceived string `json:"tokens_received,omitempty"`
	CostMessage    string `json:"cost_message,omitempty"`
	CostSession    string `json:"cost_session,omitempty"`

	// Set on assistant events.
	Timestamp string `json:"timestamp,omitempty"`

	// Set on files_status events.
	Files *FilesSnapshot `json:"files,omitempty"`
}

// FilesSnapshot describes the engine's current file set.
type FilesSnapshot struct {
	ReadOnlyFiles []string `json:"read_only_files"`
	EditableFiles []string `json:"editable_files"`
	EditFormat    string   `json:"edit_format,omitempty"`
}

// NewFilesSnapshot builds a snapshot from the engine's editable (relative)
// and read-only (absolute) file lists. A file present in both lists is
// reported as read-only only. Read-only paths use the shorter of their
// absolute or root-relative form.
func NewFilesSnapshot(root string, editableRel, readOnlyAbs []string, editFormat string) *FilesSnapshot {
	readOnlyRel := make([]string, 0, len(readOnlyAbs))
	readOnlySet := make(map[string]struct{}, len(readOnlyAbs))
	for _, abs := range readOnlyAbs {
		rel := relTo(root, abs)
		readOnlyRel = append(readOnlyRel, rel)
		readOnlySet[rel] = struct{}{}
	}
	sort.Strings(readOnlyRel)

	editable := make([]string, 0, len(editableRel))
	for _, f := range editableRel {
		if _, dup := readOnlySet[f]; dup {
			continue
		}
		editable = append(editable, f)
	}
	sort.Strings(editable)

	roPaths := make([]string, 0, len(readOnlyRel))
	for _, rel := range readOnlyRel {
		abs, err := filepath.Abs(filepath.Join(root, rel))
		if err == nil && len(abs) < len(rel) {
			roPaths = append(roPaths, abs)
			continue
		}
		roPaths = append(roPaths, rel)
	}

	return &FilesSnapshot{
		ReadOnlyFiles: roPaths,
		EditableFiles: editable,
		EditFormat:    editFormat,
	}
}

func relTo(root, abs string) string {
	if root == "" {
		return abs
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}
	return rel
}
