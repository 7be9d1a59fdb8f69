package bridge

import (
	"path/filepath"
	"testing"
)

func TestFilesSnapshotExcludesReadOnlyFromEditable(t *testing.T) {
	root := t.TempDir()
	snap := NewFilesSnapshot(
		root,
		[]string{"main.go", "docs/spec.txt", "util.go"},
		[]string{filepath.Join(root, "docs/spec.txt")},
		"diff",
	)

	for _, f := range snap.EditableFiles {
		for _, ro := range snap.ReadOnlyFiles {
			if f == ro {
				t.Fatalf("%q listed as both editable and read-only", f)
			}
		}
	}
	if len(snap.EditableFiles) != 2 {
		t.Fatalf("editable=%v", snap.EditableFiles)
	}
	if len(snap.ReadOnlyFiles) != 1 || snap.ReadOnlyFiles[0] != "docs/spec.txt" {
		t.Fatalf("read_only=%v", snap.ReadOnlyFiles)
	}
	if snap.EditFormat != "diff" {
		t.Fatalf("edit_format=%q", snap.EditFormat)
	}
}

func TestFilesSnapshotSorted(t *testing.T) {
	snap := NewFilesSnapshot(t.TempDir(), []string{"z.go", "a.go", "m.go"}, nil, "")
	want := []string{"a.go", "m.go", "z.go"}
	for i, f := range snap.EditableFiles {
		if f != want[i] {
			t.Fatalf("editable=%v", snap.EditableFiles)
		}
	}
}

func TestFilesSnapshotShorterPathForReadOnly(t *testing.T) {
	// A read-only file far outside the root yields a long relative path
	// (../../..), so the absolute form wins.
	snap := NewFilesSnapshot(
		"/very/deeply/nested/work/space/root",
		nil,
		[]string{"/e/f.txt"},
		"",
	)
	if len(snap.ReadOnlyFiles) != 1 {
		t.Fatalf("read_only=%v", snap.ReadOnlyFiles)
	}
	if snap.ReadOnlyFiles[0] != "/e/f.txt" {
		t.Fatalf("path=%q, want absolute form", snap.ReadOnlyFiles[0])
	}
}
