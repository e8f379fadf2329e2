package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/logging"
	"github.com/lucasXiaofan/med-deepresearch/model"
	"github.com/lucasXiaofan/med-deepresearch/session"
	"github.com/lucasXiaofan/med-deepresearch/tool"
)

// DefaultMaxTurns is the turn budget used when Options.MaxTurns is not positive.
const DefaultMaxTurns = 15

// SynthesisPrompt is appended as a user message when the turn budget is spent.
const SynthesisPrompt = "You have reached the maximum number of turns. Tools are no longer available. " +
	"Based on everything gathered in the previous turns, write your best final conclusion now."

const skippedResult = "Skipped: a final result was already submitted in this turn."

var (
	// ErrAlreadyRun is returned by Run on a Runner that has already run.
	ErrAlreadyRun = errors.New("runner has already run")
	// ErrEmptyInput is returned when Input has neither a message nor history.
	ErrEmptyInput = errors.New("runner input is empty")
	// ErrPersist wraps failures writing the trajectory or run record.
	ErrPersist = errors.New("failed to persist run")
)

// Options configures a Runner.
type Options struct {
	// MaxTurns is the turn budget T. Defaults to DefaultMaxTurns.
	MaxTurns int
	// Tools offered to the model. Nil means no tools.
	Tools tool.Toolset
	// Store receives the trajectory and run records. Nil disables persistence.
	Store core.SessionStore
	// SessionID names the session the run belongs to.
	SessionID string
	// RunID overrides the generated run identifier.
	RunID string
	// SystemPrompt seeds the conversation.
	SystemPrompt string
	// SessionContext appends the session's recent notes and runs to the
	// system prompt.
	SessionContext bool
	// Stream requests streaming completions.
	Stream bool
	Logger logging.Logger
}

// WithSessionContext enables the session context block in the system prompt.
func WithSessionContext() func(o *Options) {
	return func(o *Options) { o.SessionContext = true }
}

// Input is the starting point of a run.
type Input struct {
	// Message is appended as the user message.
	Message string
	// History holds prior messages placed after the system prompt and before
	// Message. It must satisfy the tool pairing invariant.
	History core.Conversation
}

// Result describes a finished run.
type Result struct {
	RunID     string
	SessionID string
	Outcome   core.Outcome
	// Text is the final answer. For submitted runs it is the JSON payload.
	Text string
	// Payload is the parsed final-result object of a submitted run.
	Payload map[string]any
	// Turns is the number of real turns taken (synthesis excluded).
	Turns int
	// BudgetExhausted reports that the run went through synthesis.
	BudgetExhausted bool
	// Err carries the error text of a failed run.
	Err          string
	Conversation core.Conversation
	Trajectory   *Trajectory
}

// Runner executes one turn-bounded tool-calling run against a model.
//
// Each turn sends the conversation to the model and executes the returned
// tool calls in request order. Tool results carry a turn annotation so the
// model can pace itself. A tool result holding a valid final-result block
// ends the run as submitted. When the budget is spent without an answer, one
// more request with tools disabled asks the model to synthesize one.
//
// A Runner runs once. Later calls to Run return ErrAlreadyRun, including
// concurrent ones.
type Runner struct {
	model   model.Model
	opts    Options
	started atomic.Bool
}

// New creates a Runner for m.
func New(m model.Model, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxTurns: DefaultMaxTurns,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTurns < 1 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Runner{model: m, opts: opts}
}

// MaxTurns returns the turn budget of the runner.
func (r *Runner) MaxTurns() int { return r.opts.MaxTurns }

type runState struct {
	runID     string
	sessionID string
	logger    logging.Logger
	budget    *core.TurnBudget
	conv      core.Conversation
	traj      *Trajectory
	result    *Result
}

// Run drives the conversation to a terminal outcome. On a failed outcome both
// the Result (with Outcome failed, Err and the Conversation) and the error
// are returned. Errors are *core.ServiceError or *core.ProtocolError, joined
// with ErrPersist when the session store rejects the records.
func (r *Runner) Run(ctx context.Context, input Input) (*Result, error) {
	if input.Message == "" && len(input.History) == 0 {
		return nil, ErrEmptyInput
	}
	if r.model == nil {
		return nil, fmt.Errorf("runner model is nil")
	}
	if !r.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	run := r.newRunState(input)
	run.logger.Info("runner.run.start", "model", r.model.Info().Name, "max_turns", r.opts.MaxTurns)

	r.seed(ctx, run, input)

	runErr := r.loop(ctx, run)
	if runErr != nil {
		run.result.Outcome = core.OutcomeFailed
		run.result.Err = runErr.Error()
		run.logger.Error("runner.run.failed", "reason", run.traj.TerminationReason, "error", runErr.Error())
	}

	r.finish(run)

	if err := r.persist(ctx, run); err != nil {
		run.logger.Error("runner.persist.failed", "error", err.Error())
		runErr = errors.Join(runErr, err)
	}

	run.logger.Info("runner.run.finished",
		"outcome", string(run.result.Outcome),
		"turns", run.result.Turns,
		"reason", run.traj.TerminationReason,
	)

	return run.result, runErr
}

func (r *Runner) newRunState(input Input) *runState {
	runID := r.opts.RunID
	if runID == "" {
		runID = NewRunID()
	}
	return &runState{
		runID:     runID,
		sessionID: r.opts.SessionID,
		logger:    logging.With(r.opts.Logger, "run_id", runID, "session_id", r.opts.SessionID),
		budget:    core.NewTurnBudget(r.opts.MaxTurns),
		traj: &Trajectory{
			RunID:     runID,
			SessionID: r.opts.SessionID,
			Model:     r.model.Info().Name,
			Input:     input.Message,
			MaxTurns:  r.opts.MaxTurns,
			Turns:     []TurnRecord{},
			StartedAt: time.Now().UTC(),
		},
		result: &Result{RunID: runID, SessionID: r.opts.SessionID},
	}
}

// seed builds the initial conversation: system prompt (plus session context),
// history, then the user message.
func (r *Runner) seed(ctx context.Context, run *runState, input Input) {
	system := r.opts.SystemPrompt
	if r.opts.SessionContext && r.opts.Store != nil && run.sessionID != "" {
		records, err := r.opts.Store.Load(ctx, run.sessionID)
		if err != nil {
			run.logger.Warn("runner.session_context.load_failed", "error", err.Error())
		} else if block := session.ContextPrompt(run.sessionID, records); block != "" {
			if system != "" {
				system += "\n\n"
			}
			system += block
		}
	}

	if system != "" {
		run.conv.Append(core.NewTextContent(core.RoleSystem, system))
	}
	run.conv.Append(input.History...)
	if input.Message != "" {
		run.conv.Append(core.NewTextContent(core.RoleUser, input.Message))
	}
}

func (r *Runner) loop(ctx context.Context, run *runState) error {
	var defs []model.ToolDefinition
	if r.opts.Tools != nil {
		defs = r.opts.Tools.Definitions()
	}

	for !run.budget.Exhausted() {
		turn, err := run.budget.Next()
		if err != nil {
			break
		}
		run.logger.Debug("runner.turn.start", "turn", turn)
		rec := TurnRecord{Kind: EntryTurn, Turn: turn, ToolCalls: []ToolCallRecord{}}

		if err := run.conv.CheckPairing(); err != nil {
			run.traj.TerminationReason = ReasonProtocolError
			rec.Error = err.Error()
			run.traj.Turns = append(run.traj.Turns, rec)
			return err
		}

		resp, err := r.generate(ctx, run, model.Request{Tools: defs})
		if err != nil {
			run.traj.TerminationReason = ReasonModelError
			rec.Error = err.Error()
			run.traj.Turns = append(run.traj.Turns, rec)
			return err
		}

		rec.Content = resp.Content.Text()
		calls := resp.Content.FunctionCalls()
		run.conv.Append(core.Content{Role: core.RoleAssistant, Parts: resp.Content.Parts})

		if len(calls) == 0 {
			rec.Final = true
			run.traj.Turns = append(run.traj.Turns, rec)
			run.traj.TerminationReason = ReasonModelComplete
			run.result.Outcome = core.OutcomeCompleted
			run.result.Text = rec.Content
			return nil
		}

		if err := validateCallIDs(calls); err != nil {
			run.traj.TerminationReason = ReasonProtocolError
			rec.Error = err.Error()
			run.traj.Turns = append(run.traj.Turns, rec)
			return err
		}

		if r.executeTurn(ctx, run, calls, &rec) {
			run.traj.Turns = append(run.traj.Turns, rec)
			run.traj.TerminationReason = ReasonFinalResult
			return nil
		}

		annotation, kind := BudgetAnnotation(turn, run.budget.Max())
		rec.Annotated = run.conv.AnnotateLastToolResult(annotation)
		if rec.Annotated {
			rec.Annotation = kind
		}
		run.traj.Turns = append(run.traj.Turns, rec)
	}

	run.result.BudgetExhausted = true
	run.traj.TerminationReason = ReasonMaxTurns
	run.logger.Info("runner.budget.exhausted", "turns", run.budget.Turn())

	return r.synthesize(ctx, run)
}

// executeTurn runs calls in request order and reports whether one of them
// submitted a final result. Calls after the submitting one are not executed;
// they are answered with a skip notice so the conversation stays paired.
func (r *Runner) executeTurn(ctx context.Context, run *runState, calls []core.FunctionCall, rec *TurnRecord) bool {
	for i, fc := range calls {
		res := r.executeCall(ctx, fc, run)
		run.conv.Append(toolResult(fc, res.text, res.isError))

		callRec := ToolCallRecord{
			ID:         fc.ID,
			Name:       fc.Name,
			Args:       res.args,
			Result:     truncateOutput(res.text),
			IsError:    res.isError,
			DurationMS: res.dur.Milliseconds(),
		}

		payload, ok := ParseFinalResult(res.text)
		if !ok {
			rec.ToolCalls = append(rec.ToolCalls, callRec)
			continue
		}

		callRec.IsFinal = true
		rec.ToolCalls = append(rec.ToolCalls, callRec)
		rec.MarkerDetected = true
		rec.Final = true

		for _, rest := range calls[i+1:] {
			run.conv.Append(toolResult(rest, skippedResult, false))
			rec.ToolCalls = append(rec.ToolCalls, ToolCallRecord{ID: rest.ID, Name: rest.Name, Result: skippedResult, Skipped: true})
		}

		run.logger.Info("runner.final_result.detected", "tool", fc.Name, "fc_id", fc.ID, "turn", rec.Turn)
		run.result.Outcome = core.OutcomeSubmitted
		run.result.Payload = payload
		run.traj.FinalResultData = payload
		if text, err := encodePayload(payload); err == nil {
			run.result.Text = text
		}
		return true
	}
	return false
}

func (r *Runner) synthesize(ctx context.Context, run *runState) error {
	run.logger.Info("runner.synthesis.start")
	run.conv.Append(core.NewTextContent(core.RoleUser, SynthesisPrompt))
	rec := TurnRecord{Kind: EntrySynthesis, ToolCalls: []ToolCallRecord{}}

	// Tools stay declared but cannot be called; tool calls in the response
	// are dropped.
	var defs []model.ToolDefinition
	if r.opts.Tools != nil {
		defs = r.opts.Tools.Definitions()
	}
	resp, err := r.generate(ctx, run, model.Request{Tools: defs, DisableTools: true})
	if err != nil {
		rec.Error = err.Error()
		run.traj.Turns = append(run.traj.Turns, rec)
		return err
	}

	text := resp.Content.Text()
	run.conv.Append(core.NewTextContent(core.RoleAssistant, text))
	rec.Content = text
	rec.Final = true
	run.traj.Turns = append(run.traj.Turns, rec)

	run.result.Outcome = core.OutcomeSynthesized
	run.result.Text = text
	return nil
}

// generate sends the conversation with the tool settings of req.
func (r *Runner) generate(ctx context.Context, run *runState, req model.Request) (model.Response, error) {
	info := r.model.Info()
	start := time.Now()

	req.Contents = run.conv.Clone()
	req.Stream = r.opts.Stream
	resp, err := model.Complete(ctx, r.model, req)

	tokens := 0
	if err == nil && resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
		run.traj.Tokens.Input += resp.Usage.PromptTokens
		run.traj.Tokens.Output += resp.Usage.CompletionTokens
	}
	logging.LogModelCall(run.logger, info.Name, tokens, time.Since(start), err)

	if err != nil {
		return model.Response{}, &core.ServiceError{Provider: info.Provider, Err: err}
	}
	return resp, nil
}

func (r *Runner) finish(run *runState) {
	run.result.Turns = run.budget.Turn()
	run.result.Conversation = run.conv
	run.result.Trajectory = run.traj

	run.traj.FinishedAt = time.Now().UTC()
	run.traj.Outcome = run.result.Outcome
	run.traj.Output = run.result.Text
	run.traj.TotalTurns = run.result.Turns
	run.traj.Error = run.result.Err
}

// persist writes the trajectory record followed by the run summary.
func (r *Runner) persist(ctx context.Context, run *runState) error {
	if r.opts.Store == nil || run.sessionID == "" {
		return nil
	}

	// Persistence must happen even when the run was canceled.
	ctx = context.WithoutCancel(ctx)

	if err := core.AppendJSON(ctx, r.opts.Store, run.sessionID, core.RecordTrajectory, run.traj); err != nil {
		return fmt.Errorf("%w: trajectory: %w", ErrPersist, err)
	}

	summary := core.RunSummary{
		RunID:         run.runID,
		SessionID:     run.sessionID,
		Outcome:       run.result.Outcome,
		Turns:         run.result.Turns,
		MaxTurns:      run.budget.Max(),
		OutputSummary: truncateRunes(run.result.Text, 500),
		Error:         run.result.Err,
		TotalTokens:   run.traj.Tokens.Input + run.traj.Tokens.Output,
	}
	if err := core.AppendJSON(ctx, r.opts.Store, run.sessionID, core.RecordRun, summary); err != nil {
		return fmt.Errorf("%w: run summary: %w", ErrPersist, err)
	}
	return nil
}

// validateCallIDs requires non-empty IDs unique within one response.
func validateCallIDs(calls []core.FunctionCall) error {
	seen := make(map[string]bool, len(calls))
	for _, fc := range calls {
		if fc.ID == "" {
			return &core.ProtocolError{Message: fmt.Sprintf("tool request %q has no id", fc.Name)}
		}
		if seen[fc.ID] {
			return &core.ProtocolError{Message: fmt.Sprintf("duplicate tool request id %q", fc.ID)}
		}
		seen[fc.ID] = true
	}
	return nil
}

func toolResult(fc core.FunctionCall, text string, isError bool) core.Content {
	c := core.NewToolResultContent(fc.ID, fc.Name, text)
	if isError {
		part := c.Parts[0].(core.FunctionResponsePart)
		part.FunctionResponse.Error = text
		c.Parts[0] = part
	}
	return c
}
