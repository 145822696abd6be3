// Package session owns everything one ledgerforge invocation acquires: the
// build cache, the network's ledger, the compiler and chain clients, an
// optional local node, metrics and the run report.
//
// A Session is opened once per invocation, passed explicitly to every
// operation, and closed when the invocation ends. Nothing is shared between
// sessions through package state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"ledgerforge/internal/compile"
	"ledgerforge/internal/config"
	"ledgerforge/internal/core"
	"ledgerforge/internal/deploy"
	"ledgerforge/internal/ledger"
	"ledgerforge/internal/metrics"
	"ledgerforge/internal/node"
	"ledgerforge/internal/registry"
	"ledgerforge/internal/report"
	"ledgerforge/internal/runlog"
	"ledgerforge/internal/store"
)

// Options configures Open.
type Options struct {
	// Config must already have its paths resolved.
	Config *config.Config

	// Command names the invocation in the run journal. An empty Command
	// disables the journal.
	Command string

	// Network selects the deployment target. Empty opens a compile-only
	// session without ledger or chain client.
	Network string

	// WorkDir is where external commands run.
	WorkDir string

	Logger *slog.Logger

	// Compilers and Chains default to the built-in driver registries.
	Compilers *registry.Registry[compile.Factory]
	Chains    *registry.Registry[deploy.Factory]

	// StartNode starts the network's configured node, if any.
	StartNode bool

	// Read-only commands skip building the clients they never use.
	SkipCompiler bool
	SkipChain    bool

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Session is the explicit context of one run.
type Session struct {
	RunID   string
	Config  *config.Config
	Network string
	Logger  *slog.Logger

	Cache    core.Cache
	Compiler compile.Compiler

	// Set only when the session has a network.
	NetworkConfig config.NetworkConfig
	Ledger        *ledger.Ledger
	Chain         deploy.ChainClient
	Node          *node.Handle

	Metrics  *metrics.Metrics
	Recorder *report.Recorder
	Journal  *runlog.Journal

	workDir string
	clock   func() time.Time
	order   []string
	dbs     map[string]*store.Store
	closers []func() error
	closed  bool
}

// Open acquires the session's resources. On error everything acquired so
// far is released before returning.
func Open(ctx context.Context, opts Options) (s *Session, err error) {
	if opts.Config == nil {
		return nil, errors.New("session: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	runID := runlog.NewRunID()

	s = &Session{
		RunID:    runID,
		Config:   opts.Config,
		Network:  opts.Network,
		Logger:   logger.With("run_id", runID),
		Metrics:  metrics.New(),
		Recorder: report.NewRecorder(),
		workDir:  opts.WorkDir,
		clock:    opts.Clock,
	}
	defer func() {
		if err != nil {
			_ = s.Close()
			s = nil
		}
	}()

	if err := s.openStorage(); err != nil {
		return s, err
	}

	if !opts.SkipCompiler {
		if err := s.openCompiler(opts); err != nil {
			return s, err
		}
	}

	if opts.Network != "" {
		if err := s.openNetwork(ctx, opts); err != nil {
			return s, err
		}
	}

	if opts.Command != "" {
		s.startJournal(opts.Command)
	}
	return s, nil
}

func (s *Session) openCompiler(opts Options) error {
	compilers := opts.Compilers
	if compilers == nil {
		compilers = compile.NewDriverRegistry()
	}
	newCompiler, err := compilers.Lookup(opts.Config.Compiler.Driver)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	if s.Compiler, err = newCompiler(opts.Config.Compiler, opts.WorkDir); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return nil
}

// openStorage selects the cache and ledger backends. Both sqlite backends
// share one database when they point at the same directory.
func (s *Session) openStorage() error {
	cfg := s.Config
	dbs := make(map[string]*store.Store)
	openDB := func(dir string) (*store.Store, error) {
		if db, ok := dbs[dir]; ok {
			return db, nil
		}
		db, err := store.Open(dir)
		if err != nil {
			return nil, core.Storagef(err, "opening store in %s", dir)
		}
		dbs[dir] = db
		s.closers = append(s.closers, db.Close)
		s.Logger.Debug("opened sqlite store", "path", db.DBPath())
		return db, nil
	}

	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		db, err := openDB(cfg.Cache.Dir)
		if err != nil {
			return err
		}
		s.Cache = db
	default:
		s.Cache = core.NewFileCache(cfg.Cache.Dir)
	}

	if cfg.Ledger.Backend == config.BackendSQLite {
		if _, err := openDB(cfg.Ledger.Dir); err != nil {
			return err
		}
	}
	s.dbs = dbs
	return nil
}

func (s *Session) ledgerBackend() (ledger.Backend, error) {
	if s.Config.Ledger.Backend == config.BackendSQLite {
		return s.dbs[s.Config.Ledger.Dir], nil
	}
	fs, err := ledger.NewFileStore(s.Config.Ledger.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return fs, nil
}

func (s *Session) openNetwork(ctx context.Context, opts Options) error {
	netCfg, err := s.Config.Network(opts.Network)
	if err != nil {
		return err
	}
	s.NetworkConfig = netCfg
	s.Logger = s.Logger.With("network", opts.Network)

	backend, err := s.ledgerBackend()
	if err != nil {
		return err
	}
	if s.Ledger, err = ledger.Open(backend, opts.Network); err != nil {
		return err
	}

	if opts.SkipChain {
		return nil
	}
	chains := opts.Chains
	if chains == nil {
		chains = deploy.NewDriverRegistry()
	}
	newClient, err := chains.Lookup(netCfg.Driver)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	if s.Chain, err = newClient(netCfg, opts.WorkDir); err != nil {
		return fmt.Errorf("%w: networks.%s: %w", config.ErrInvalid, opts.Network, err)
	}

	if opts.StartNode && netCfg.Node != nil {
		return s.startNode(ctx, *netCfg.Node)
	}
	return nil
}

func (s *Session) startNode(ctx context.Context, cfg config.NodeConfig) error {
	args, err := core.SplitCommand(cfg.Command)
	if err != nil {
		return fmt.Errorf("%w: node command: %w", config.ErrInvalid, err)
	}
	var ready *regexp.Regexp
	if cfg.Ready != "" {
		if ready, err = regexp.Compile(cfg.Ready); err != nil {
			return fmt.Errorf("%w: node ready pattern: %w", config.ErrInvalid, err)
		}
	}
	h, err := node.Start(ctx, node.Spec{
		Args:    args,
		Dir:     s.workDir,
		Ready:   ready,
		Timeout: cfg.Timeout,
		Logger:  s.Logger.With("component", "node"),
	})
	if err != nil {
		return err
	}
	s.Node = h
	s.closers = append(s.closers, h.Stop)
	return nil
}

func (s *Session) startJournal(command string) {
	rs, err := runlog.NewStore(s.Config.Runs.Dir)
	if err == nil {
		j := &runlog.Journal{Store: rs, Clock: s.clock}
		if err = j.Start(s.RunID, command, s.Network); err == nil {
			s.Journal = j
			return
		}
	}
	s.Logger.Warn("run journal disabled", "err", err)
}

// Report returns the run's outcome so far, in discovery order.
func (s *Session) Report() report.Report {
	return s.Recorder.Report(s.RunID, s.Network, s.order)
}

// Finish records the run's end: the journal entry and, when configured, the
// metrics textfile. runErr is the error the run ended with, if any.
func (s *Session) Finish(runErr error) error {
	var errs []error
	if err := s.Journal.Finish(s.Report(), runErr); err != nil {
		errs = append(errs, err)
	}
	if path := s.Config.Metrics.File; path != "" {
		if err := s.Metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics to %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every resource in reverse order of acquisition. It is safe
// to call more than once.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
