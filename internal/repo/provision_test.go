package repo

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}

// newRemote creates a bare repository with one commit on defaultBranch and
// returns its path, usable as a fetch/push target.
func newRemote(t *testing.T, defaultBranch string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	bare := filepath.Join(t.TempDir(), "remote.git")
	if err := exec.Command("git", "init", "--bare", bare).Run(); err != nil {
		t.Skip("git not available")
	}

	seed := t.TempDir()
	gitCmd(t, seed, "init")
	gitCmd(t, seed, "config", "user.email", "test@test.com")
	gitCmd(t, seed, "config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(seed, "README.md"), []byte("seed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, seed, "add", ".")
	gitCmd(t, seed, "commit", "-m", "seed")
	gitCmd(t, seed, "branch", "-M", defaultBranch)
	gitCmd(t, seed, "push", bare, defaultBranch)
	return bare
}

func configureUser(t *testing.T, dir string) {
	t.Helper()
	gitCmd(t, dir, "config", "user.email", "test@test.com")
	gitCmd(t, dir, "config", "user.name", "Test")
}

func TestProvisionFreshFromMain(t *testing.T) {
	remote := newRemote(t, "main")
	wc := filepath.Join(t.TempDir(), "wc")
	task := Task{WorkDir: wc, RemoteURL: remote, Branch: "cool-agent-fresh"}

	if err := New(nil).Provision(context.Background(), task); err != nil {
		t.Fatal(err)
	}

	head := strings.TrimSpace(gitCmd(t, wc, "rev-parse", "--abbrev-ref", "HEAD"))
	if head != task.Branch {
		t.Fatalf("HEAD=%q", head)
	}
	heads := gitCmd(t, wc, "ls-remote", "--heads", "origin")
	if !strings.Contains(heads, "refs/heads/"+task.Branch) {
		t.Fatalf("branch not pushed:\n%s", heads)
	}
}

func TestProvisionFallsBackToMaster(t *testing.T) {
	remote := newRemote(t, "master")
	wc := filepath.Join(t.TempDir(), "wc")
	task := Task{WorkDir: wc, RemoteURL: remote, Branch: "cool-agent-fallback"}

	if err := New(nil).Provision(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	head := strings.TrimSpace(gitCmd(t, wc, "rev-parse", "--abbrev-ref", "HEAD"))
	if head != task.Branch {
		t.Fatalf("HEAD=%q", head)
	}
}

func TestProvisionNoDefaultBranchIsGitError(t *testing.T) {
	remote := newRemote(t, "trunk")
	wc := filepath.Join(t.TempDir(), "wc")
	task := Task{WorkDir: wc, RemoteURL: remote, Branch: "cool-agent-nodefault"}

	err := New(nil).Provision(context.Background(), task)
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		t.Fatalf("err=%v", err)
	}
	if gitErr.Output == "" {
		t.Fatal("git error lost command output")
	}
}

func TestProvisionReuseCreatesDistinctBranches(t *testing.T) {
	remote := newRemote(t, "main")
	wc := filepath.Join(t.TempDir(), "wc")

	first := Task{WorkDir: wc, RemoteURL: remote, Branch: "cool-agent-run1"}
	if err := New(nil).Provision(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	second := Task{WorkDir: wc, RemoteURL: remote, Branch: "cool-agent-run2"}
	if err := New(nil).Provision(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	heads := gitCmd(t, wc, "ls-remote", "--heads", "origin")
	for _, b := range []string{"cool-agent-run1", "cool-agent-run2"} {
		if !strings.Contains(heads, "refs/heads/"+b) {
			t.Fatalf("missing %s:\n%s", b, heads)
		}
	}
	remotes := strings.Fields(gitCmd(t, wc, "remote"))
	if len(remotes) != 1 || remotes[0] != "origin" {
		t.Fatalf("remotes=%v", remotes)
	}
}

func TestProvisionCommitsDirtyTree(t *testing.T) {
	remote := newRemote(t, "main")
	wc := filepath.Join(t.TempDir(), "wc")
	task := Task{WorkDir: wc, RemoteURL: remote, Branch: "cool-agent-dirty"}

	prov := New(nil)
	if err := prov.Provision(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	configureUser(t, wc)
	if err := os.WriteFile(filepath.Join(wc, "new.txt"), []byte("work\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := prov.Push(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	if status := strings.TrimSpace(gitCmd(t, wc, "status", "--porcelain")); status != "" {
		t.Fatalf("tree still dirty:\n%s", status)
	}
	subject := strings.TrimSpace(gitCmd(t, wc, "log", "-1", "--format=%s"))
	if subject != "Initial commit" {
		t.Fatalf("subject=%q", subject)
	}
}

func TestProvisionCleanDiscardsDirectory(t *testing.T) {
	remote := newRemote(t, "main")
	wc := filepath.Join(t.TempDir(), "wc")

	if err := os.MkdirAll(wc, 0o755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(wc, "stale.txt")
	if err := os.WriteFile(marker, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	task := Task{WorkDir: wc, RemoteURL: remote, Branch: "cool-agent-clean"}
	if err := New(nil).ProvisionClean(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatal("stale file survived clean provisioning")
	}
	head := strings.TrimSpace(gitCmd(t, wc, "rev-parse", "--abbrev-ref", "HEAD"))
	if head != task.Branch {
		t.Fatalf("HEAD=%q", head)
	}
}
