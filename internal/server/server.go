// Package server is the thin HTTP layer over the bridge and the repository
// automation flow. Handlers validate, delegate, and serialize; all real
// behavior lives in the packages they call.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"agentd/internal/agentloop"
	"agentd/internal/bridge"
	"agentd/internal/config"
	"agentd/internal/engine"
	"agentd/internal/githost"
	"agentd/internal/history"
	"agentd/internal/render"
	"agentd/internal/repo"

	"github.com/google/uuid"
)

// Server wires the session lifecycle and the automation entry points.
type Server struct {
	cfg           config.Config
	engineFactory engine.Factory
	llm           agentloop.ChatClient
	publisher     *githost.Client
	provisioner   *repo.Provisioner
	logw          io.Writer

	mu      sync.Mutex
	session *bridge.Session
}

// Option configures a Server.
type Option func(*Server)

// WithEngineFactory links in the concrete engine adapter.
func WithEngineFactory(f engine.Factory) Option {
	return func(s *Server) { s.engineFactory = f }
}

// WithChatClient sets the LLM client used by the automation loop.
func WithChatClient(c agentloop.ChatClient) Option {
	return func(s *Server) { s.llm = c }
}

// WithPublisher sets the PR publisher.
func WithPublisher(p *githost.Client) Option {
	return func(s *Server) { s.publisher = p }
}

// WithLogWriter sets the trace destination.
func WithLogWriter(w io.Writer) Option {
	return func(s *Server) { s.logw = w }
}

// New builds a server from config plus options.
func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:  cfg,
		logw: os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.provisioner == nil {
		s.provisioner = repo.New(s.logw)
	}
	if s.publisher == nil {
		s.publisher = githost.NewClient(cfg.Repo.Token)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /init", s.handleInit)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("POST /agent/instruction", s.handleInstruction)
	mux.HandleFunc("POST /agent/instruction-test", s.handleInstructionTest)
	return mux
}

// ListenAndServe runs the server on the configured address.
func (s *Server) ListenAndServe() error {
	fmt.Fprintf(s.logw, "agentd listening on %s\n", s.cfg.Server.Addr)
	return http.ListenAndServe(s.cfg.Server.Addr, s.Handler())
}

type initRequest struct {
	Pretty bool `json:"pretty"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type instructionRequest struct {
	Instruction string `json:"instruction"`
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.startSession(s.cfg.Repo.WorkDir, req.Pretty)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("initialize engine: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "initialized",
		"message": "Engine initialized successfully",
		"session": sess.ID,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		writeDetail(w, http.StatusBadRequest, "Engine not initialized")
		return
	}

	writeJSON(w, http.StatusOK, sess.Dispatch(r.Context(), req.Content))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.session != nil {
		s.session.Stop()
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// startSession replaces the active session with a fresh one rooted in
// workDir. The history database lives outside the worktree so the
// provisioner's stage-everything commit never picks it up.
func (s *Server) startSession(workDir string, pretty bool) (*bridge.Session, error) {
	id := uuid.NewString()
	hist, err := history.NewSQLiteStore(filepath.Join(os.TempDir(), "agentd", "history.db"), id)
	if err != nil {
		return nil, err
	}
	renderer := render.New(s.logw, pretty)

	sess, err := bridge.NewSession(id, s.engineFactory, workDir, pretty, hist, renderer)
	if err != nil {
		_ = hist.Close()
		return nil, err
	}

	s.mu.Lock()
	old := s.session
	s.session = sess
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return sess, nil
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
