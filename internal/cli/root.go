// Package cli implements the ledgerforge command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ledgerforge/internal/compile"
	"ledgerforge/internal/config"
	"ledgerforge/internal/deploy"
	"ledgerforge/internal/registry"
	"ledgerforge/internal/report"
	"ledgerforge/internal/session"
)

const (
	OutputText = "text"
	OutputJSON = "json"
)

// Env is what a CLI invocation runs against.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	// Compilers and Chains default to the built-in driver registries.
	Compilers *registry.Registry[compile.Factory]
	Chains    *registry.Registry[deploy.Factory]

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// app holds the global flags and the state derived from them once parsed.
// It is created per invocation and handed to every subcommand.
type app struct {
	env Env

	configPath string
	workDir    string
	logLevel   string
	logFormat  string
	output     string
	debug      bool
	noColor    bool

	// started is set once flags parsed and a command began running.
	started bool
	cfg     *config.Config
	logger  *slog.Logger
}

func newApp(env Env) *app {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	if env.Compilers == nil {
		env.Compilers = compile.NewDriverRegistry()
	}
	if env.Chains == nil {
		env.Chains = deploy.NewDriverRegistry()
	}
	return &app{env: env}
}

func (a *app) now() time.Time {
	if a.env.Clock != nil {
		return a.env.Clock()
	}
	return time.Now()
}

// NewRootCommand builds the command tree for one invocation.
func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgerforge",
		Short: "Incremental contract builds and per-network deployment ledgers",
		Long: "ledgerforge compiles only the contracts whose content or dependencies changed,\n" +
			"and deploys only the contracts whose compiled identity differs from what the\n" +
			"network's deployment ledger last recorded.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetOut(a.env.Stdout)
	cmd.SetErr(a.env.Stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Configuration file (default ledgerforge.yaml in the work directory)")
	flags.StringVar(&a.workDir, "workdir", "", "Work directory relative paths resolve against (default current directory)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level. One of: (debug | info | warn | error)")
	flags.StringVar(&a.logFormat, "log-format", LogFormatText, "Log format. One of: (text | json)")
	flags.StringVarP(&a.output, "output", "o", OutputText, "Output format. One of: (text | json)")
	flags.BoolVar(&a.debug, "debug", false, "Set log level to debug")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newCompileCommand(a),
		newDeployCommand(a),
		newPlanCommand(a),
		newHistoryCommand(a),
		newCallCommand(a),
		newRunsCommand(a),
	)
	return cmd
}

// setup validates the global flags, loads the configuration and builds the
// logger. It runs before every subcommand.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.started = true

	switch a.output {
	case OutputText, OutputJSON:
	default:
		return invalidInvocationf("invalid --output %q (expected text|json)", a.output)
	}
	switch a.logFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return invalidInvocationf("invalid --log-format %q (expected text|json)", a.logFormat)
	}
	level, err := parseLogLevel(a.logLevel)
	if err != nil {
		return err
	}
	if a.debug {
		level = slog.LevelDebug
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		a.noColor = true
	}
	a.logger = newLogger(a.env.Stderr, a.logFormat, level, a.noColor || !isTerminal(a.env.Stderr))

	workDir := a.workDir
	if strings.TrimSpace(workDir) == "" {
		if workDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("determining work directory: %w", err)
		}
	}
	if workDir, err = filepath.Abs(workDir); err != nil {
		return invalidInvocationf("invalid --workdir: %v", err)
	}
	a.workDir = filepath.Clean(workDir)

	configPath := a.configPath
	if configPath == "" {
		configPath = config.DefaultFile
	}
	if configPath, err = resolveUnderWorkDir(a.workDir, configPath); err != nil {
		return err
	}
	if a.configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return &InvocationError{ExitCode: ExitConfigError, Message: fmt.Sprintf("config file: %v", err)}
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, config.ErrInvalid) {
			err = fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
		return err
	}
	cfg.ResolvePaths(a.workDir)
	a.cfg = cfg
	a.logger.Debug("configuration loaded", "path", configPath, "workdir", a.workDir)
	return nil
}

// openSession opens a session with the invocation's configuration, logger
// and driver registries filled into opts.
func (a *app) openSession(cmd *cobra.Command, opts session.Options) (*session.Session, error) {
	opts.Config = a.cfg
	opts.WorkDir = a.workDir
	opts.Logger = a.logger
	opts.Compilers = a.env.Compilers
	opts.Chains = a.env.Chains
	opts.Clock = a.env.Clock
	return session.Open(cmd.Context(), opts)
}

// finish records the end of a session's run and releases it. runErr is
// returned unchanged; bookkeeping failures are logged.
func (a *app) finish(s *session.Session, runErr error) error {
	if err := s.Finish(runErr); err != nil {
		a.logger.Warn("recording run", "err", err)
	}
	if err := s.Close(); err != nil {
		a.logger.Warn("releasing session", "err", err)
	}
	return runErr
}

func (a *app) textOptions() report.TextOptions {
	return report.TextOptions{Color: !a.noColor && isTerminal(a.env.Stdout)}
}

// writeReport renders the session's report in the selected output format.
func (a *app) writeReport(s *session.Session) error {
	rep := s.Report()
	if a.output == OutputJSON {
		return report.WriteJSON(a.env.Stdout, rep)
	}
	return report.WriteText(a.env.Stdout, rep, a.textOptions())
}

func (a *app) printf(format string, args ...any) {
	if a.output == OutputJSON {
		return
	}
	fmt.Fprintf(a.env.Stdout, format, args...)
}

func requireNetwork(network string) error {
	if strings.TrimSpace(network) == "" {
		return invalidInvocationf("--network is required")
	}
	return nil
}
