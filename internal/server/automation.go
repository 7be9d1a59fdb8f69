package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"agentd/internal/agentloop"
	"agentd/internal/config"
	"agentd/internal/contextmgr"
	"agentd/internal/githost"
	"agentd/internal/repo"
)

// handleInstruction runs the full automation flow against the configured
// working directory with a clean, reproducible checkout.
func (s *Server) handleInstruction(w http.ResponseWriter, r *http.Request) {
	s.runInstruction(w, r, s.cfg.Repo.WorkDir, true)
}

// handleInstructionTest runs the same flow against a throwaway local
// directory, reusing the checkout when one is already there.
func (s *Server) handleInstructionTest(w http.ResponseWriter, r *http.Request) {
	s.runInstruction(w, r, "./temp", false)
}

// runInstruction sequences Provisioner -> session + loop -> push ->
// Publisher. Component errors are mapped to the client here; the components
// themselves stay transport-agnostic.
func (s *Server) runInstruction(w http.ResponseWriter, r *http.Request, workDir string, clean bool) {
	var req instructionRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.cfg.ValidateAutomation(); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.llm == nil {
		writeDetail(w, http.StatusInternalServerError, "no LLM client configured")
		return
	}

	ctx := r.Context()
	task := repo.NewTask(workDir, s.cfg.Repo.URL, s.cfg.Repo.Token)

	var err error
	if clean {
		err = s.provisioner.ProvisionClean(ctx, task)
	} else {
		err = s.provisioner.Provision(ctx, task)
	}
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}

	sess, err := s.startSession(workDir, false)
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}

	loop := agentloop.New(s.llm, sess,
		agentloop.WithMaxIterations(s.cfg.Loop.MaxIterations),
		agentloop.WithLogWriter(s.logw),
		agentloop.WithTokenizer(contextmgr.DefaultTokenizer()),
	)
	summary, err := loop.Run(ctx, req.Instruction)
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}
	fmt.Fprintf(s.logw, "conversation done: %d llm calls, %d dispatches, %d skips, %d transcript tokens\n",
		summary.LLMCalls, summary.Dispatches, summary.ProtocolSkips, summary.TranscriptTokens)

	if err := s.provisioner.Push(ctx, task); err != nil {
		s.writeAutomationError(w, err)
		return
	}

	if s.cfg.Repo.Token != "" && strings.Contains(s.cfg.Repo.URL, "github.com") {
		result, err := s.publisher.CreatePullRequest(ctx, s.cfg.Repo.URL, task.Branch, req.Instruction)
		if err != nil {
			s.writeAutomationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Repository ready on branch %s", task.Branch),
	})
}

// writeAutomationError maps component error kinds to HTTP responses:
// missing configuration is the client's fault, git and transport failures
// are server-side with the underlying detail preserved.
func (s *Server) writeAutomationError(w http.ResponseWriter, err error) {
	if errors.Is(err, config.ErrMissingRepoURL) {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	var gitErr *repo.GitError
	if errors.As(err, &gitErr) {
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("Git operation failed: %v", gitErr))
		return
	}
	var transportErr *githost.TransportError
	if errors.As(err, &transportErr) {
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("Host unreachable: %v", transportErr))
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("Operation failed: %v", err))
}
