package bridge

import (
	"context"
	"fmt"

	"agentd/internal/engine"
	"agentd/internal/history"
	"agentd/internal/render"

	"github.com/google/uuid"
)

// Result statuses returned by Dispatch.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// stopSentinel is the value Stop enqueues to release a pending GetInput.
const stopSentinel = "exit"

// DispatchResult is the structured outcome of one dispatch: the final status
// plus every event collected before the engine returned (or failed).
type DispatchResult struct {
	Status    string  `json:"status"`
	Responses []Event `json:"responses"`
	Error     string  `json:"error,omitempty"`
}

// Session is one initialized bridge instance: the IO mediator, the engine it
// drives, and the session-scoped history log. A session spans dispatches
// until it is replaced or stopped. At most one dispatch may be in flight.
type Session struct {
	ID     string
	io     *IO
	engine engine.Engine
	hist   history.Store
}

// NewSession constructs the mediator, builds the engine through the factory,
// and binds the two together. An empty id gets a generated one.
func NewSession(id string, factory engine.Factory, workDir string, pretty bool, hist history.Store, renderer *render.Renderer) (*Session, error) {
	if factory == nil {
		return nil, engine.ErrNotConfigured
	}
	if id == "" {
		id = uuid.NewString()
	}
	io := NewIO(hist, renderer)
	eng, err := factory(workDir, io, pretty)
	if err != nil {
		return nil, fmt.Errorf("construct engine: %w", err)
	}
	io.Bind(eng)
	return &Session{
		ID:     id,
		io:     io,
		engine: eng,
		hist:   hist,
	}, nil
}

// IO exposes the session's mediator, mainly for tests.
func (s *Session) IO() *IO {
	return s.io
}

// Dispatch runs one full cycle: clear the previous buffer, prime the input
// queue with the message, run the engine, and return everything collected.
// Engine failures are caught here; already-collected events are preserved in
// the error result.
func (s *Session) Dispatch(ctx context.Context, message string) DispatchResult {
	s.io.Collector().Reset()
	s.io.Offer(message)

	if err := s.engine.Run(ctx, message); err != nil {
		return DispatchResult{
			Status:    StatusError,
			Error:     err.Error(),
			Responses: s.io.Collector().Events(),
		}
	}
	return DispatchResult{
		Status:    StatusSuccess,
		Responses: s.io.Collector().Events(),
	}
}

// Stop enqueues the exit sentinel so a pending GetInput (or the next one)
// returns immediately. It does not tear down the engine.
func (s *Session) Stop() {
	s.io.Offer(stopSentinel)
}

// Close releases session resources.
func (s *Session) Close() error {
	if s.hist == nil {
		return nil
	}
	return s.hist.Close()
}
