package core

import (
	"context"
	"fmt"

	"github.com/lucasXiaofan/med-deepresearch/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked by a run: the calling session, the run and
// function call identifiers, the session store and a logger.
type ToolContext struct {
	ctx            context.Context
	sessionID      string
	runID          string
	functionCallID string
	store          SessionStore
	logger         logging.Logger
}

// ToolContextOptions carries the values bound into a ToolContext.
type ToolContextOptions struct {
	SessionID      string
	RunID          string
	FunctionCallID string
	Store          SessionStore
	Logger         logging.Logger
}

// NewToolContext constructs a tool context for one function call.
func NewToolContext(ctx context.Context, opts ToolContextOptions) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:            ctx,
		sessionID:      opts.SessionID,
		runID:          opts.RunID,
		functionCallID: opts.FunctionCallID,
		store:          opts.Store,
		logger:         logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session ID of the calling run.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// RunID returns the run ID of the calling run.
func (tc *ToolContext) RunID() string { return tc.runID }

// FunctionCallID returns the function call ID being answered.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the invocation logger. It is never nil.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// Store returns the session store, or nil when none is configured.
func (tc *ToolContext) Store() SessionStore { return tc.store }

// AppendRecord appends a record of the given kind to the calling session.
func (tc *ToolContext) AppendRecord(kind string, v any) error {
	if tc.store == nil {
		return fmt.Errorf("session store not configured")
	}
	if tc.sessionID == "" {
		return fmt.Errorf("tool context has no session")
	}
	return AppendJSON(tc.ctx, tc.store, tc.sessionID, kind, v)
}

// LoadRecords returns the committed records of the calling session.
func (tc *ToolContext) LoadRecords() ([]Record, error) {
	if tc.store == nil {
		return nil, fmt.Errorf("session store not configured")
	}
	return tc.store.Load(tc.ctx, tc.sessionID)
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.sessionID == "" || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
