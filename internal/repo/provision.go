// Package repo provisions the agent's working copy: an idempotent march from
// an absent directory to a pushed, verified feature branch, driven by git
// subprocesses.
package repo

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitError is a failed git command, carrying the captured combined
// stdout/stderr so callers can surface the underlying cause.
type GitError struct {
	Args   []string
	Output string
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), strings.TrimSpace(e.Output))
}

// Provisioner runs the working-copy state machine. The zero value is usable;
// Logw defaults to discard.
type Provisioner struct {
	logw io.Writer
}

// New builds a provisioner that traces stage transitions to w.
func New(w io.Writer) *Provisioner {
	if w == nil {
		w = io.Discard
	}
	return &Provisioner{logw: w}
}

// Provision brings the task's working directory to a pushed feature branch,
// reusing an existing repository when one is present. Fresh directories are
// initialized, attached to the remote, and branched from the remote default
// branch (main, then master). Pre-existing repositories only fetch and
// branch from their current state; the remote is never re-registered.
func (p *Provisioner) Provision(ctx context.Context, task Task) error {
	if err := os.MkdirAll(task.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	_, statErr := os.Stat(filepath.Join(task.WorkDir, ".git"))
	existing := statErr == nil

	if existing {
		fmt.Fprintf(p.logw, "reusing repository in %s\n", task.WorkDir)
		if _, err := p.git(ctx, task.WorkDir, "fetch", "origin"); err != nil {
			return err
		}
		// Branch from the currently checked-out state.
		if _, err := p.git(ctx, task.WorkDir, "checkout", "-b", task.Branch); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(p.logw, "initializing repository in %s\n", task.WorkDir)
		if _, err := p.git(ctx, task.WorkDir, "init"); err != nil {
			return err
		}
		if _, err := p.git(ctx, task.WorkDir, "remote", "add", "origin", task.RemoteURL); err != nil {
			return err
		}
		if _, err := p.git(ctx, task.WorkDir, "fetch", "origin"); err != nil {
			return err
		}
		if err := p.branchFromDefault(ctx, task); err != nil {
			return err
		}
	}

	return p.Push(ctx, task)
}

// ProvisionClean discards any existing working directory and provisions from
// scratch. Used when an automated multi-turn session needs a reproducible
// checkout; there is no reuse fork in this mode.
func (p *Provisioner) ProvisionClean(ctx context.Context, task Task) error {
	fmt.Fprintf(p.logw, "recreating %s\n", task.WorkDir)
	if err := os.RemoveAll(task.WorkDir); err != nil {
		return fmt.Errorf("remove work dir: %w", err)
	}
	if err := os.MkdirAll(task.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	if _, err := p.git(ctx, task.WorkDir, "init"); err != nil {
		return err
	}
	if _, err := p.git(ctx, task.WorkDir, "remote", "add", "origin", task.RemoteURL); err != nil {
		return err
	}
	if _, err := p.git(ctx, task.WorkDir, "fetch", "origin"); err != nil {
		return err
	}
	if err := p.branchFromDefault(ctx, task); err != nil {
		return err
	}
	return p.Push(ctx, task)
}

// branchFromDefault creates the feature branch from origin/main, retrying
// from origin/master when main does not exist.
func (p *Provisioner) branchFromDefault(ctx context.Context, task Task) error {
	fmt.Fprintf(p.logw, "creating branch %s from origin/main\n", task.Branch)
	if _, err := p.git(ctx, task.WorkDir, "checkout", "-b", task.Branch, "origin/main"); err != nil {
		fmt.Fprintf(p.logw, "origin/main unavailable, trying origin/master\n")
		if _, err := p.git(ctx, task.WorkDir, "checkout", "-b", task.Branch, "origin/master"); err != nil {
			return err
		}
	}
	return nil
}

// Push commits pending changes if the worktree is dirty, pushes the branch
// upstream, and best-effort verifies it appeared on the remote.
func (p *Provisioner) Push(ctx context.Context, task Task) error {
	dirty, err := p.isDirty(ctx, task.WorkDir)
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(p.logw, "committing uncommitted changes\n")
		if _, err := p.git(ctx, task.WorkDir, "add", "."); err != nil {
			return err
		}
		if _, err := p.git(ctx, task.WorkDir, "commit", "-m", "Initial commit"); err != nil {
			return err
		}
	}

	before, _ := p.remoteHeads(ctx, task.WorkDir)

	fmt.Fprintf(p.logw, "pushing %s to origin\n", task.Branch)
	if _, err := p.git(ctx, task.WorkDir, "push", "--set-upstream", "origin", task.Branch); err != nil {
		return err
	}

	// Verification is advisory: a failed re-fetch or a ref list that does
	// not show the branch is logged, not fatal.
	after, err := p.remoteHeads(ctx, task.WorkDir)
	if err != nil {
		fmt.Fprintf(p.logw, "push verification failed: %v\n", err)
		return nil
	}
	if !strings.Contains(after, "refs/heads/"+task.Branch) {
		fmt.Fprintf(p.logw, "push verification: branch %s not visible (heads before: %d bytes, after: %d bytes)\n",
			task.Branch, len(before), len(after))
	}
	return nil
}

func (p *Provisioner) isDirty(ctx context.Context, dir string) (bool, error) {
	out, err := p.git(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (p *Provisioner) remoteHeads(ctx context.Context, dir string) (string, error) {
	if _, err := p.git(ctx, dir, "fetch", "origin"); err != nil {
		return "", err
	}
	return p.git(ctx, dir, "ls-remote", "--heads", "origin")
}

// git runs one git command in dir and returns its combined output. Failures
// come back as *GitError with the output attached.
func (p *Provisioner) git(ctx context.Context, dir string, args ...string) (string, error) {
	full := append([]string{"-C", dir}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &GitError{Args: args, Output: string(out)}
	}
	return string(out), nil
}
