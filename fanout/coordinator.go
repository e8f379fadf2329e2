package fanout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lucasXiaofan/med-deepresearch/core"
	"github.com/lucasXiaofan/med-deepresearch/logging"
	"github.com/lucasXiaofan/med-deepresearch/model"
	"github.com/lucasXiaofan/med-deepresearch/runner"
	"github.com/lucasXiaofan/med-deepresearch/session"
	"github.com/lucasXiaofan/med-deepresearch/tool"
)

const (
	// DefaultMaxSubTasks is the concurrency ceiling K and the batch size limit.
	DefaultMaxSubTasks = 5
	// DefaultSubTaskTurns is the turn budget of each sub-task runner.
	DefaultSubTaskTurns = 7
)

// SubTaskPrompt is the system prompt of every sub-task runner.
const SubTaskPrompt = `You are a research sub-agent working on exactly one delegated task.

Rules:
- Work only on the task in the user message.
- Use the available tools to gather evidence; you have a small turn budget.
- You cannot delegate: never try to spawn, start or coordinate other agents.
- Finish with a concise report of your findings, citing the evidence you used.`

var (
	// ErrNoSubTasks rejects an empty batch.
	ErrNoSubTasks = errors.New("no sub-tasks given")
	// ErrTooManySubTasks rejects a batch larger than the ceiling.
	ErrTooManySubTasks = errors.New("too many sub-tasks")
	// ErrEmptyInstruction rejects a batch containing a blank instruction.
	ErrEmptyInstruction = errors.New("sub-task instruction is empty")
)

// Options configures a Coordinator.
type Options struct {
	// MaxSubTasks is the batch size limit and worker pool size. Defaults to
	// DefaultMaxSubTasks.
	MaxSubTasks int
	// SubTaskTurns is the turn budget of each sub-task. Defaults to
	// DefaultSubTaskTurns.
	SubTaskTurns int
	// SystemPrompt overrides SubTaskPrompt.
	SystemPrompt string
	// Store receives the batch records and every sub-task's run records.
	Store  core.SessionStore
	Logger logging.Logger
}

// Coordinator dispatches batches of sub-tasks to fresh runners.
//
// A batch holds at most MaxSubTasks instructions. Every sub-task runs
// concurrently in its own session, derived from the batch ID, and sees only
// the leaf tools so it cannot spawn sub-tasks of its own. Dispatch waits for
// all of them; a failed sub-task is reported without cancelling its siblings.
//
// A Coordinator keeps no per-batch state and is safe for concurrent use.
type Coordinator struct {
	model model.Model
	tools *tool.LeafRegistry
	opts  Options
}

// New creates a Coordinator running sub-tasks on m with tools.
func New(m model.Model, tools *tool.LeafRegistry, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		MaxSubTasks:  DefaultMaxSubTasks,
		SubTaskTurns: DefaultSubTaskTurns,
		SystemPrompt: SubTaskPrompt,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSubTasks < 1 {
		opts.MaxSubTasks = DefaultMaxSubTasks
	}
	if opts.SubTaskTurns < 1 {
		opts.SubTaskTurns = DefaultSubTaskTurns
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Coordinator{model: m, tools: tools, opts: opts}
}

// MaxSubTasks returns the batch ceiling.
func (c *Coordinator) MaxSubTasks() int { return c.opts.MaxSubTasks }

// Plan validates a batch and assigns sub-task IDs without running anything.
func (c *Coordinator) Plan(batchID string, instructions []string) ([]SubTask, error) {
	if err := session.ValidateID(batchID); err != nil {
		return nil, fmt.Errorf("batch id: %w", err)
	}
	switch {
	case len(instructions) == 0:
		return nil, ErrNoSubTasks
	case len(instructions) > c.opts.MaxSubTasks:
		return nil, fmt.Errorf("%w: %d given, at most %d allowed", ErrTooManySubTasks, len(instructions), c.opts.MaxSubTasks)
	}

	tasks := make([]SubTask, len(instructions))
	for i, inst := range instructions {
		if strings.TrimSpace(inst) == "" {
			return nil, fmt.Errorf("%w: task %d", ErrEmptyInstruction, i+1)
		}
		tasks[i] = SubTask{
			ID:          SubTaskID(batchID, i+1),
			Ordinal:     i + 1,
			Instruction: inst,
		}
	}
	return tasks, nil
}

// SubTaskID names the session of the ordinal-th sub-task of a batch.
func SubTaskID(batchID string, ordinal int) string {
	return fmt.Sprintf("%s_sub%d", batchID, ordinal)
}

// Dispatch runs every instruction as an isolated sub-task, at most
// MaxSubTasks at a time, and returns once all have finished. A failing
// sub-task becomes a failed entry and never affects its siblings. Rejected
// batches return an error without running or recording anything. Errors
// writing the batch records are returned alongside the report.
func (c *Coordinator) Dispatch(ctx context.Context, batchID string, instructions []string) (*Report, error) {
	logger := logging.With(c.opts.Logger, "batch_id", batchID)

	tasks, err := c.Plan(batchID, instructions)
	if err != nil {
		logger.Warn("fanout.dispatch.rejected", "count", len(instructions), "error", err.Error())
		return nil, err
	}

	if c.opts.Store != nil {
		rec := spawnRecord{BatchID: batchID, NumAgents: len(tasks), Tasks: tasks}
		if err := core.AppendJSON(ctx, c.opts.Store, batchID, core.RecordSubagentSpawn, rec); err != nil {
			return nil, fmt.Errorf("record sub-agent spawn: %w", err)
		}
	}

	report := &Report{
		BatchID:   batchID,
		Entries:   make([]Entry, len(tasks)),
		StartedAt: time.Now().UTC(),
	}

	logger.Info("fanout.dispatch.start", "count", len(tasks), "limit", c.opts.MaxSubTasks, "subtask_turns", c.opts.SubTaskTurns)

	var g errgroup.Group
	g.SetLimit(c.opts.MaxSubTasks)
	for i, task := range tasks {
		g.Go(func() error {
			report.Entries[i] = c.runSubTask(ctx, logger, task)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	logger.Info("fanout.dispatch.finished",
		"successful", report.Successful(),
		"failed", report.Failed(),
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)

	if c.opts.Store != nil {
		rec := resultsRecord{
			BatchID:    batchID,
			NumAgents:  len(report.Entries),
			Successful: report.Successful(),
			Failed:     report.Failed(),
			Results:    report.Entries,
		}
		if err := core.AppendJSON(context.WithoutCancel(ctx), c.opts.Store, batchID, core.RecordSubagentResults, rec); err != nil {
			return report, fmt.Errorf("record sub-agent results: %w", err)
		}
	}

	return report, nil
}

// runSubTask runs one sub-task and converts every failure, including a
// panic, into a failed entry.
func (c *Coordinator) runSubTask(ctx context.Context, logger logging.Logger, task SubTask) (entry Entry) {
	logger = logging.With(logger, "subtask", task.Ordinal, "session_id", task.ID)
	start := time.Now()

	entry = Entry{
		TaskID:    task.Ordinal,
		Task:      task.Instruction,
		SessionID: task.ID,
		Status:    StatusError,
		Outcome:   core.OutcomeFailed,
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("fanout.subtask.panic", "recover", fmt.Sprint(rec))
			entry.Status = StatusError
			entry.Outcome = core.OutcomeFailed
			entry.Error = fmt.Sprintf("sub-task panicked: %v", rec)
		}
		logger.Info("fanout.subtask.finished",
			"outcome", string(entry.Outcome),
			"turns", entry.Turns,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	logger.Debug("fanout.subtask.start")

	r := runner.New(c.model, func(o *runner.Options) {
		o.MaxTurns = c.opts.SubTaskTurns
		if c.tools != nil {
			o.Tools = c.tools
		}
		o.Store = c.opts.Store
		o.SessionID = task.ID
		o.SystemPrompt = c.opts.SystemPrompt
		o.Logger = logger
	})

	res, err := r.Run(ctx, runner.Input{Message: task.Instruction})
	if res != nil {
		entry.RunID = res.RunID
		entry.Outcome = res.Outcome
		entry.Turns = res.Turns
		entry.Report = res.Text
		entry.Payload = res.Payload
		entry.Error = res.Err
		if res.Outcome.Succeeded() {
			entry.Status = StatusSuccess
		}
	}
	if err != nil && entry.Error == "" {
		entry.Error = err.Error()
	}
	return entry
}
