// Package deepresearch wires the research agent: a top-level Runner that can
// fan out to a bounded batch of leaf sub-task runners sharing one session
// store.
package deepresearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/lucasXiaofan/med-deepresearch/config"
	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/fanout"
	"github.com/lucasXiaofan/med-deepresearch/logging"
	"github.com/lucasXiaofan/med-deepresearch/model"
	"github.com/lucasXiaofan/med-deepresearch/model/anthropic"
	"github.com/lucasXiaofan/med-deepresearch/model/openai"
	"github.com/lucasXiaofan/med-deepresearch/runner"
	"github.com/lucasXiaofan/med-deepresearch/session"
	"github.com/lucasXiaofan/med-deepresearch/tool"
)

// ResearchPrompt is the default system prompt of the top-level runner.
var ResearchPrompt = `You are a research agent. Answer the user's question using the available tools.

Guidelines:
- Break broad questions into independent sub-questions and delegate them with ` + fanout.ToolName + ` (at most ` +
	fmt.Sprint(fanout.DefaultMaxSubTasks) + ` per call).
- Use bash to run helper scripts and inspect data. Use think to plan.
- Save findings worth keeping with session_store.
- To submit a structured answer, have a helper script print it as a JSON object between ` +
	runner.FinalResultStart + ` and ` + runner.FinalResultEnd + ` through bash.
  Markers are only read from tool output, never from your own replies.
- Otherwise finish with a concise, well supported answer.`

var (
	// ErrNoModel is returned by New when no model is given.
	ErrNoModel = errors.New("deepresearch: model is required")
	// ErrInvalidLimits is returned by New when the turn or fan-out limits are out of range.
	ErrInvalidLimits = errors.New("deepresearch: invalid limits")
)

// Options configures an Agent.
type Options struct {
	// Store holds every session. Nil opens a FileStore at SessionDir, or an
	// in-memory store when SessionDir is empty.
	Store core.SessionStore
	// SessionDir is the FileStore directory used when Store is nil.
	SessionDir string
	// MaxTurns is the turn budget of the top-level runner.
	MaxTurns int
	// SubTaskTurns is the turn budget of each sub-task.
	SubTaskTurns int
	// MaxSubTasks is the fan-out ceiling K.
	MaxSubTasks int
	// SystemPrompt overrides ResearchPrompt.
	SystemPrompt string
	// WorkDir is where bash commands run.
	WorkDir string
	// BashTimeout is the default bash timeout.
	BashTimeout time.Duration
	// Tools are extra leaf tools offered to every runner.
	Tools  []tool.Tool
	Logger logging.Logger
}

// Agent runs research questions and fan-out batches.
type Agent struct {
	model       model.Model
	opts        Options
	store       core.SessionStore
	coord       *fanout.Coordinator
	parentTools *tool.Registry
}

// New wires an Agent around m.
func New(m model.Model, optFns ...func(o *Options)) (*Agent, error) {
	if m == nil {
		return nil, ErrNoModel
	}
	opts := Options{
		MaxTurns:     runner.DefaultMaxTurns,
		SubTaskTurns: fanout.DefaultSubTaskTurns,
		MaxSubTasks:  fanout.DefaultMaxSubTasks,
		SystemPrompt: ResearchPrompt,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if err := opts.validateLimits(); err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		if opts.SessionDir != "" {
			fs, err := session.NewFileStore(opts.SessionDir, func(o *session.FileStoreOptions) { o.Logger = opts.Logger })
			if err != nil {
				return nil, err
			}
			store = fs
		} else {
			store = session.NewInMemoryStore()
		}
	}

	sessionDir := opts.SessionDir
	if fs, ok := store.(*session.FileStore); ok {
		sessionDir = fs.Dir()
	}
	leafTools := append([]tool.Tool{
		tool.NewBashTool(func(o *tool.BashOptions) {
			o.WorkDir = opts.WorkDir
			o.SessionDir = sessionDir
			if opts.BashTimeout > 0 {
				o.Timeout = opts.BashTimeout
			}
		}),
		tool.NewThinkTool(),
		tool.NewNoteTool(),
	}, opts.Tools...)
	leaf, err := tool.NewLeafRegistry(leafTools...)
	if err != nil {
		return nil, fmt.Errorf("build leaf tools: %w", err)
	}

	coord := fanout.New(m, leaf, func(o *fanout.Options) {
		o.MaxSubTasks = opts.MaxSubTasks
		o.SubTaskTurns = opts.SubTaskTurns
		o.Store = store
		o.Logger = opts.Logger
	})
	parentTools, err := leaf.With(fanout.NewTool(coord))
	if err != nil {
		return nil, fmt.Errorf("build parent tools: %w", err)
	}

	return &Agent{
		model:       m,
		opts:        opts,
		store:       store,
		coord:       coord,
		parentTools: parentTools,
	}, nil
}

// validateLimits applies the ranges config.Validate enforces on limits.
func (o Options) validateLimits() error {
	switch {
	case o.MaxTurns < 1:
		return fmt.Errorf("%w: max turns must be at least 1, got %d", ErrInvalidLimits, o.MaxTurns)
	case o.SubTaskTurns < 1 || o.SubTaskTurns >= o.MaxTurns:
		return fmt.Errorf("%w: sub-task turns must be between 1 and %d, got %d", ErrInvalidLimits, o.MaxTurns-1, o.SubTaskTurns)
	case o.MaxSubTasks < 1 || o.MaxSubTasks > config.MaxSubTasksCeiling:
		return fmt.Errorf("%w: max sub-tasks must be between 1 and %d, got %d", ErrInvalidLimits, config.MaxSubTasksCeiling, o.MaxSubTasks)
	}
	return nil
}

// NewFromConfig builds the model named modelName (the default model when
// empty) and wires an Agent from cfg. optFns are applied after cfg.
func NewFromConfig(cfg *config.Config, modelName string, optFns ...func(o *Options)) (*Agent, error) {
	mc, err := cfg.ModelConfig(modelName)
	if err != nil {
		return nil, err
	}
	m, err := NewModel(mc)
	if err != nil {
		return nil, err
	}
	fromCfg := func(o *Options) {
		o.SessionDir = cfg.Storage.SessionDir
		o.MaxTurns = cfg.Limits.ParentTurns
		o.SubTaskTurns = cfg.Limits.SubTaskTurns
		o.MaxSubTasks = cfg.Limits.MaxSubTasks
		o.WorkDir = cfg.Tools.WorkDir
		o.BashTimeout = cfg.BashTimeoutDuration()
	}
	return New(m, append([]func(o *Options){fromCfg}, optFns...)...)
}

// NewModel builds the completion client described by mc.
func NewModel(mc config.ModelConfig) (model.Model, error) {
	key, err := mc.APIKey()
	if err != nil {
		return nil, err
	}
	switch mc.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = mc.ModelID
			o.BaseURL = mc.BaseURL
			o.APIKey = key
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = mc.MaxTokens
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = sdk.Model(mc.ModelID)
			o.BaseURL = mc.BaseURL
			o.APIKey = key
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxTokens = mc.MaxTokens
			}
		}), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", mc.Provider)
	}
}

// Store returns the session store shared by every run.
func (a *Agent) Store() core.SessionStore { return a.store }

// Coordinator returns the fan-out coordinator.
func (a *Agent) Coordinator() *fanout.Coordinator { return a.coord }

// Research answers question in sessionID, creating a new session when the
// ID is empty. The session's notes and previous runs are put in front of
// the model.
func (a *Agent) Research(ctx context.Context, sessionID, question string) (*runner.Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, runner.ErrEmptyInput
	}
	if sessionID == "" {
		sessionID = session.NewID()
	} else if err := session.ValidateID(sessionID); err != nil {
		return nil, err
	}

	r := runner.New(a.model, func(o *runner.Options) {
		o.MaxTurns = a.opts.MaxTurns
		o.Tools = a.parentTools
		o.Store = a.store
		o.SessionID = sessionID
		o.SystemPrompt = a.opts.SystemPrompt
		o.Logger = a.opts.Logger
	}, runner.WithSessionContext())
	return r.Run(ctx, runner.Input{Message: question})
}

// Dispatch runs tasks as one fan-out batch under batchID, creating a new
// batch ID when empty.
func (a *Agent) Dispatch(ctx context.Context, batchID string, tasks []string) (*fanout.Report, error) {
	if batchID == "" {
		batchID = session.NewID()
	}
	return a.coord.Dispatch(ctx, batchID, tasks)
}

// Sessions lists the stored sessions, most recently updated first for a
// FileStore.
func (a *Agent) Sessions(ctx context.Context) ([]session.Summary, error) {
	switch s := a.store.(type) {
	case *session.FileStore:
		return s.List(ctx)
	case *session.InMemoryStore:
		var out []session.Summary
		for _, id := range s.Sessions() {
			records, err := s.Load(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, session.Summarize(id, records))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("session store %T cannot be listed", a.store)
	}
}
