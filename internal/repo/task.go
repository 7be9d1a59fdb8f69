package repo

import (
	"strings"
	"time"
)

// branchPrefix is the fixed prefix for generated automation branches.
const branchPrefix = "cool-agent-"

// Task describes one provisioning run: the local working copy, the remote it
// tracks, and the branch the run owns. One Task owns its working directory
// exclusively for the run's lifetime.
type Task struct {
	WorkDir   string
	RemoteURL string
	Branch    string
}

// NewTask builds a task with a freshly generated branch name and the access
// token interpolated into the remote URL.
func NewTask(workDir, repoURL, token string) Task {
	return Task{
		WorkDir:   workDir,
		RemoteURL: URLWithToken(repoURL, token),
		Branch:    BranchName(time.Now()),
	}
}

// BranchName derives a branch name from the given time at second resolution.
// Two runs starting within the same second collide; that is a known,
// accepted limitation.
func BranchName(now time.Time) string {
	return branchPrefix + now.Format("20060102-150405")
}

// URLWithToken embeds an access token into an https remote URL. An empty
// token leaves the URL untouched.
func URLWithToken(repoURL, token string) string {
	if token == "" {
		return repoURL
	}
	return strings.Replace(repoURL, "https://", "https://"+token+"@", 1)
}
