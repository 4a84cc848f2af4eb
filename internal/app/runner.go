package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/bridgectl/internal/bridge"
	"github.com/ggonzalez94/bridgectl/internal/config"
	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/events"
	"github.com/ggonzalez94/bridgectl/internal/interpret"
	"github.com/ggonzalez94/bridgectl/internal/logging"
	"github.com/ggonzalez94/bridgectl/internal/metrics"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/out"
	"github.com/ggonzalez94/bridgectl/internal/policy"
	"github.com/ggonzalez94/bridgectl/internal/registry"
	"github.com/ggonzalez94/bridgectl/internal/storage"
	"github.com/ggonzalez94/bridgectl/internal/txlog"
	"github.com/ggonzalez94/bridgectl/internal/version"
	"github.com/ggonzalez94/bridgectl/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

// runtimeState holds what one invocation opened. Collaborators are built on
// first use so cheap commands never touch the store or the network.
type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	root        *cobra.Command
	log         zerolog.Logger
	lastCommand string
	lastData    any

	// approve answers wallet prompts; set by commands that take --yes.
	approve wallet.Approver

	metrics      *metrics.Metrics
	kv           storage.KV
	txlog        *txlog.Store
	interpreter  *interpret.Interpreter
	wallet       *wallet.Manager
	publisher    events.Publisher
	orchestrator *bridge.Orchestrator
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, log: zerolog.Nop()}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	state.close()
	if err == nil {
		return 0
	}
	state.renderError("", err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Bridge tokens to " + registry.Destination().Name + " from the command line",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = logging.New(settings.LogLevel, settings.LogFormat, s.runner.stderr)

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			return policy.CheckCommandAllowed(settings.EnableCommands, path)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	pf := cmd.PersistentFlags()
	pf.BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	pf.BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	pf.StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	pf.BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	pf.StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	pf.StringVar(&s.flags.Timeout, "timeout", "", "Request timeout for remote calls")
	pf.IntVar(&s.flags.Retries, "retries", -1, "Retries per remote request")
	pf.StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	pf.StringVar(&s.flags.EnvFile, "env-file", "", "Path to a .env file (default ./.env when present)")
	pf.StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug|info|warn|error|off)")
	pf.StringVar(&s.flags.LogFormat, "log-format", "", "Log format (console|json)")
	pf.StringVar(&s.flags.Store, "store", "", "Transaction store backend (sqlite|redis)")
	pf.StringVar(&s.flags.StorePath, "store-path", "", "SQLite database path")
	pf.StringVar(&s.flags.RedisAddr, "redis-addr", "", "Redis address for the redis store")
	pf.StringVar(&s.flags.Waiter, "waiter", "", "Phase waiter (simulated|live)")
	pf.StringVar(&s.flags.PhaseTimeout, "phase-timeout", "", "Maximum time for one bridge phase")
	pf.BoolVar(&s.flags.NoRemote, "no-remote", false, "Interpret with the local parser only")
	pf.StringVar(&s.flags.KeySource, "key-source", "", "Wallet key source (auto|env|file|keystore|ephemeral)")

	cmd.AddCommand(s.newChainsCommand())
	cmd.AddCommand(s.newTokensCommand())
	cmd.AddCommand(s.newInterpretCommand())
	cmd.AddCommand(s.newEstimateCommand())
	cmd.AddCommand(s.newStepsCommand())
	cmd.AddCommand(s.newRunCommand())
	cmd.AddCommand(s.newStatusCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(s.newServeCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newVersionCommand())
	return cmd
}

func (s *runtimeState) newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if long {
				return s.emitSuccess(trimRootPath(cmd.CommandPath()), model.VersionInfo{
					Version: version.CLIVersion,
					Commit:  version.Commit,
					Date:    version.BuildDate,
				}, nil, out.CacheBypass())
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, cacheStatus model.CacheStatus) error {
	env := out.Success(commandPath, data, warnings, cacheStatus, s.runner.now())
	return out.Render(s.runner.stdout, env, s.settings)
}

// failWith records partial data to be rendered with err.
func (s *runtimeState) failWith(err error, data any) error {
	s.lastData = data
	return err
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := out.Failure(commandPath, err, s.lastData, s.runner.now())
	_ = out.Render(s.runner.stderr, env, settings)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
