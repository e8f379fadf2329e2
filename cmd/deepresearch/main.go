// Command deepresearch runs research questions and fan-out batches from the
// command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	deepresearch "github.com/lucasXiaofan/med-deepresearch"
	"github.com/lucasXiaofan/med-deepresearch/config"
	"github.com/lucasXiaofan/med-deepresearch/logging"
	"github.com/lucasXiaofan/med-deepresearch/session"
)

type cliFlags struct {
	configPath   string
	sessionID    string
	modelName    string
	maxTurns     int
	subTaskTurns int
	verbose      bool
}

type app struct {
	flags  cliFlags
	cfg    *config.Config
	logger *logging.ZapAdapter
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "deepresearch",
		Short:        "Turn-bounded research agent with sub-task fan-out",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "path to agent_config.yaml (built-in defaults when empty)")
	pf.StringVar(&a.flags.modelName, "model", "", "model entry from the config (defaults.model when empty)")
	pf.IntVar(&a.flags.maxTurns, "max-turns", 0, "turn budget of the top-level run (config when 0)")
	pf.IntVar(&a.flags.subTaskTurns, "subtask-turns", 0, "turn budget of each sub-task (config when 0)")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run <question>",
		Short: "Answer a research question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runResearch(cmd, strings.Join(args, " "))
		},
	}
	runCmd.Flags().StringVarP(&a.flags.sessionID, "session", "s", "", "session to continue (new session when empty)")

	fanoutCmd := &cobra.Command{
		Use:   "fanout <task>...",
		Short: "Run independent sub-tasks concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFanout(cmd, args)
		},
	}
	fanoutCmd.Flags().StringVarP(&a.flags.sessionID, "session", "s", "", "batch id (new id when empty)")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE:  a.listSessions,
	}

	root.AddCommand(runCmd, fanoutCmd, sessionsCmd)
	return root
}

func (a *app) init(stderr io.Writer) error {
	cfg := config.Default()
	if a.flags.configPath != "" {
		loaded, err := config.Load(a.flags.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.flags.maxTurns > 0 {
		cfg.Limits.ParentTurns = a.flags.maxTurns
	}
	if a.flags.subTaskTurns > 0 {
		cfg.Limits.SubTaskTurns = a.flags.subTaskTurns
	}
	if a.flags.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	zl, err := newZapLogger(cfg.Logging, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logging.NewZapAdapter(zl)
	return nil
}

func newZapLogger(lc config.Logging, out io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if lc.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	zc := zapcore.NewCore(enc, zapcore.AddSync(out), zap.NewAtomicLevelAt(level))
	return zap.New(zc), nil
}

func (a *app) agent() (*deepresearch.Agent, error) {
	return deepresearch.NewFromConfig(a.cfg, a.flags.modelName, func(o *deepresearch.Options) {
		o.Logger = a.logger
	})
}

func (a *app) runResearch(cmd *cobra.Command, question string) error {
	agent, err := a.agent()
	if err != nil {
		return err
	}
	res, err := agent.Research(cmd.Context(), a.flags.sessionID, question)
	if res != nil {
		a.logger.Info("cli.run.finished",
			"session_id", res.SessionID,
			"run_id", res.RunID,
			"outcome", string(res.Outcome),
			"turns", res.Turns,
		)
		if res.Text != "" {
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		}
	}
	return err
}

func (a *app) runFanout(cmd *cobra.Command, tasks []string) error {
	agent, err := a.agent()
	if err != nil {
		return err
	}
	report, err := agent.Dispatch(cmd.Context(), a.flags.sessionID, tasks)
	if report == nil {
		return err
	}
	if werr := writeJSON(cmd.OutOrStdout(), report.Summary()); werr != nil {
		return werr
	}
	return err
}

func (a *app) listSessions(cmd *cobra.Command, _ []string) error {
	store, err := session.NewFileStore(a.cfg.Storage.SessionDir, func(o *session.FileStoreOptions) {
		o.Logger = a.logger
	})
	if err != nil {
		return err
	}
	summaries, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No saved sessions found.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "%s\t%s\truns=%d\tnotes=%d\n", s.ID, s.UpdatedAt.Format("2006-01-02 15:04:05"), s.Runs, s.Notes)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
