package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/huddlebot/huddle/internal/community"
	"github.com/huddlebot/huddle/internal/config"
	"github.com/huddlebot/huddle/internal/llm"
	"github.com/huddlebot/huddle/internal/platform"
	"github.com/huddlebot/huddle/internal/store"
	"github.com/huddlebot/huddle/internal/workflow"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the workflow engine",
		Long: `Start the huddle workflow engine.

The engine opens the SQLite database (creating it if it doesn't exist),
recovers any instances whose deadline elapsed while the process was
down, then arms live timers and the periodic recovery sweep.

Example:
  huddle serve --config ./huddle.yaml
  huddle serve --db /tmp/huddle.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	// Secrets come from the environment; a local .env is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Storage.Path = opts.Database
	}

	configureLogging(cfg, opts.Verbose)

	slog.Info("opening database", "path", cfg.Storage.Path)
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database ready")

	msgr := platform.NewConsoleMessenger()

	// Without an API key the engine runs with canned greetings and
	// fallback summaries instead of generated ones.
	var completer llm.Completer
	if os.Getenv("OPENAI_API_KEY") != "" {
		client, err := llm.NewOpenAIClient(cfg.LLM.Model)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create LLM client", err)
		}
		completer = client
		slog.Info("LLM client ready", "model", cfg.LLM.Model)
	} else {
		slog.Warn("OPENAI_API_KEY not set, running without generated text")
	}

	sched := workflow.NewScheduler(st, cfg.Scheduler.SweepInterval.Std())

	matches := workflow.NewMatchService(st, sched, msgr, completer, cfg.Match.OperatorChannel, cfg.Match.Duration.Std())
	polls := workflow.NewPollService(st, sched, msgr)
	evals := workflow.NewEvaluationService(st, msgr)

	sched.RegisterFinalizer(matches.Finalizer())
	sched.RegisterFinalizer(polls.Finalizer())
	sched.RegisterFinalizer(evals.Finalizer())

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Community.BirthdayChannel != "" {
		sweep := community.NewBirthdaySweep(st, msgr, cfg.Community.BirthdayChannel)
		err := sched.AddCronJob(cfg.Community.BirthdaySchedule, func() {
			if err := sweep.Run(ctx); err != nil {
				slog.Error("birthday sweep failed", "error", err)
			}
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to schedule birthday sweep", err)
		}
	}

	// Recovery must complete before new timers fire so a crash between
	// deadline and close is repaired exactly once.
	slog.Info("running startup recovery")
	if err := sched.RecoverOnStartup(ctx); err != nil {
		return WrapExitError(ExitFailure, "startup recovery failed", err)
	}

	if err := sched.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to start scheduler", err)
	}
	defer sched.Stop()

	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Press Ctrl-C to stop.")
	<-ctx.Done()

	slog.Info("engine stopped gracefully")
	return nil
}

// loadConfig resolves the config file flag, falling back to defaults
// when no file is given.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	return config.Load(opts.Config)
}

// configureLogging sets the default slog handler from the config level;
// --verbose forces debug.
func configureLogging(cfg *config.Config, verbose bool) {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
