package session

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ledgerforge/internal/compile"
	"ledgerforge/internal/config"
	"ledgerforge/internal/core"
	"ledgerforge/internal/dag"
	"ledgerforge/internal/deploy"
)

var errNoNetwork = fmt.Errorf("%w: no network selected", config.ErrInvalid)

// Discover reads the source units and resolves their imports.
func (s *Session) Discover() (*dag.DependencyGraph, error) {
	src := s.Config.Sources
	if info, err := os.Stat(src.Root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: sources.root %s is not a readable directory", config.ErrInvalid, src.Root)
	}
	units, err := core.NewUnitStore(src.Root, src.Extension).Discover()
	if err != nil {
		return nil, err
	}
	g, err := dag.Resolve(units, src.Extension)
	if err != nil {
		return nil, err
	}
	s.order = g.Names()
	s.Logger.Debug("discovered units", "units", g.Len(), "root", src.Root)
	return g, nil
}

// CompilePlanner returns a Compile Planner over g wired to the session.
func (s *Session) CompilePlanner(g *dag.DependencyGraph) *compile.Planner {
	return &compile.Planner{
		Graph:    g,
		Cache:    s.Cache,
		Compiler: s.Compiler,
		Sink:     s.Recorder,
		Metrics:  s.Metrics,
		Logger:   s.Logger.With("phase", "compile"),
	}
}

// UpgradePlanner returns the Upgrade Planner of the session's network.
func (s *Session) UpgradePlanner() (*deploy.Planner, error) {
	if s.Ledger == nil {
		return nil, errNoNetwork
	}
	units := make(map[string]deploy.UnitConfig, len(s.NetworkConfig.Units))
	for name, uc := range s.NetworkConfig.Units {
		units[name] = deploy.UnitConfig{Args: uc.Args, Params: uc.Params}
	}
	return &deploy.Planner{
		Network:     s.Network,
		Ledger:      s.Ledger,
		Cache:       s.Cache,
		Client:      s.Chain,
		Account:     s.NetworkConfig.Account,
		Params:      s.NetworkConfig.Params,
		Units:       units,
		PersistEach: s.Config.Ledger.Persist == config.PersistEach,
		Clock:       s.clock,
		Sink:        s.Recorder,
		Metrics:     s.Metrics,
		Logger:      s.Logger.With("phase", "deploy"),
	}, nil
}

// Compile discovers, plans and compiles. The Outcome is nil only when
// discovery or planning failed.
func (s *Session) Compile(ctx context.Context, force bool) (*compile.Outcome, error) {
	if s.Compiler == nil {
		return nil, errors.New("session has no compiler")
	}
	g, err := s.Discover()
	if err != nil {
		return nil, err
	}
	planner := s.CompilePlanner(g)
	plan, err := planner.Plan(force)
	if err != nil {
		return nil, err
	}
	s.fingerprint(plan)
	return planner.Execute(ctx, plan)
}

// DeployOptions controls Deploy.
type DeployOptions struct {
	ForceCompile bool
	ForceDeploy  bool
}

// Deploy compiles and then deploys every stale unit to the session's network.
// Nothing is deployed when compilation fails.
func (s *Session) Deploy(ctx context.Context, opts DeployOptions) (*compile.Outcome, *deploy.Outcome, error) {
	dp, err := s.UpgradePlanner()
	if err != nil {
		return nil, nil, err
	}
	if s.Chain == nil {
		return nil, nil, errors.New("session has no chain client")
	}
	co, err := s.Compile(ctx, opts.ForceCompile)
	if err != nil {
		return co, nil, err
	}
	do, err := dp.Execute(ctx, dp.Plan(Targets(co.Plan), opts.ForceDeploy))
	return co, do, err
}

// Preview is what a run would do, computed without compiling, deploying or
// writing anything.
type Preview struct {
	Compile *compile.Plan
	Deploy  *deploy.Plan
}

// Preview plans compilation and, when the session has a network, deployment.
// Deploy planning assumes the compile plan succeeds.
func (s *Session) Preview(forceCompile, forceDeploy bool) (*Preview, error) {
	g, err := s.Discover()
	if err != nil {
		return nil, err
	}
	cp, err := s.CompilePlanner(g).Plan(forceCompile)
	if err != nil {
		return nil, err
	}
	s.fingerprint(cp)
	pv := &Preview{Compile: cp}
	if s.Ledger != nil {
		dp, err := s.UpgradePlanner()
		if err != nil {
			return nil, err
		}
		pv.Deploy = dp.Plan(Targets(cp), forceDeploy)
	}
	return pv, nil
}

// Dispatcher returns a call dispatcher for units deployed on the network.
func (s *Session) Dispatcher() (*deploy.Dispatcher, error) {
	if s.Ledger == nil {
		return nil, errNoNetwork
	}
	caller, _ := s.Chain.(deploy.Caller)
	d := deploy.NewDispatcher(s.Ledger, s.Cache, caller)
	d.Account = s.NetworkConfig.Account
	d.Params = s.NetworkConfig.Params
	return d, nil
}

// Targets lists every unit of plan at its current hash, in discovery order.
func Targets(plan *compile.Plan) []deploy.Target {
	targets := make([]deploy.Target, 0, len(plan.Order))
	for _, name := range plan.Order {
		targets = append(targets, deploy.Target{Unit: name, Hash: plan.Hashes[name]})
	}
	return targets
}

func (s *Session) fingerprint(plan *compile.Plan) {
	if err := s.Journal.SetFingerprint(plan.Hashes); err != nil {
		s.Logger.Warn("recording run fingerprint", "err", err)
	}
}
