package compile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"ledgerforge/internal/core"
	"ledgerforge/internal/dag"
	"ledgerforge/internal/metrics"
	"ledgerforge/internal/report"
)

// Reason explains why a unit was selected for compilation.
type Reason string

const (
	ReasonForced          Reason = "forced"
	ReasonCacheMiss       Reason = "cache miss"
	ReasonDependencyStale Reason = "dependency recompiled"
)

// Plan is the compile decision for one run.
type Plan struct {
	// Hashes holds the IdentityHash of every unit.
	Hashes map[string]core.IdentityHash

	// Order is discovery order; PostOrder lists dependencies before dependents.
	Order     []string
	PostOrder []string

	// Selected units in PostOrder, with the reason for each.
	Selected []string
	Reasons  map[string]Reason

	Force bool
}

// Empty reports whether there is nothing to compile.
func (p *Plan) Empty() bool { return len(p.Selected) == 0 }

// IsSelected reports whether name is part of the batch.
func (p *Plan) IsSelected(name string) bool {
	_, ok := p.Reasons[name]
	return ok
}

// Outcome is the result of executing a Plan.
type Outcome struct {
	Plan        *Plan
	Compiled    []string
	Diagnostics []Diagnostic
}

// NothingToCompile reports whether every unit was served from the cache.
func (o *Outcome) NothingToCompile() bool { return o.Plan.Empty() }

// Planner decides which units to compile and compiles them.
type Planner struct {
	Graph    *dag.DependencyGraph
	Cache    core.Cache
	Compiler Compiler

	Sink    report.Sink
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (p *Planner) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Plan hashes every unit and selects the ones to compile.
//
// With force every unit is selected. Otherwise a unit is selected when its
// (name, hash) is missing from the cache or when any of its dependencies is
// selected. A cycle fails the plan before any cache access.
func (p *Planner) Plan(force bool) (*Plan, error) {
	hasher := dag.NewHasher(p.Graph)
	hashes, err := hasher.HashAll()
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Hashes:    hashes,
		Order:     p.Graph.Names(),
		PostOrder: hasher.Order(),
		Reasons:   make(map[string]Reason),
		Force:     force,
	}

	for _, name := range plan.PostOrder {
		var reason Reason
		if force {
			reason = ReasonForced
		} else {
			art, err := p.Cache.Lookup(name, hashes[name])
			if err != nil {
				return nil, err
			}
			p.Metrics.ObserveCacheLookup(art != nil)
			if art == nil {
				reason = ReasonCacheMiss
			} else {
				for _, dep := range p.Graph.Deps(name) {
					if plan.IsSelected(dep) {
						reason = ReasonDependencyStale
						break
					}
				}
			}
		}
		if reason == "" {
			continue
		}
		plan.Selected = append(plan.Selected, name)
		plan.Reasons[name] = reason
		p.logger().Debug("unit selected", "unit", name, "hash", hashes[name].Short(), "reason", string(reason))
	}
	return plan, nil
}

// Execute compiles the selected units in one batch and caches the results.
//
// Caching happens only after the whole batch succeeded: blocking diagnostics,
// a missing artifact, a compiler failure or cancellation leave the cache
// untouched. A cache write failure can leave earlier units of the batch
// stored; those entries are complete and keyed by their hash. Every unit gets
// a compile event on every path. The returned Outcome is non-nil whenever the
// plan was executed, even on error.
func (p *Planner) Execute(ctx context.Context, plan *Plan) (*Outcome, error) {
	out := &Outcome{Plan: plan}
	if plan.Empty() {
		p.logger().Info("nothing to compile", "units", len(plan.Order))
		p.recordAll(plan, report.StatusUnchanged, "", nil)
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		p.recordAll(plan, report.StatusCompileFailed, err.Error(), nil)
		return out, err
	}

	req := Request{Units: make([]SourceUnit, 0, len(plan.Selected))}
	for _, name := range plan.Selected {
		node, _ := p.Graph.Node(name)
		req.Units = append(req.Units, SourceUnit{Name: name, Path: node.Unit.Path, Source: string(node.Unit.Source)})
	}

	p.logger().Info("compiling", "units", len(req.Units))
	start := time.Now()
	res, err := p.Compiler.Compile(ctx, req)
	if err != nil {
		p.Metrics.ObserveCompileBatch(len(req.Units), time.Since(start), err)
		p.recordAll(plan, report.StatusCompileFailed, err.Error(), nil)
		if ctx.Err() != nil {
			return out, fmt.Errorf("running compiler: %w", err)
		}
		return out, fmt.Errorf("%w: running compiler: %w", ErrCompileFailed, err)
	}
	if res == nil {
		batchErr := &BatchError{Units: plan.Selected, Reason: "compiler returned no result"}
		p.Metrics.ObserveCompileBatch(len(req.Units), time.Since(start), batchErr)
		p.recordAll(plan, report.StatusCompileFailed, batchErr.Reason, nil)
		return out, batchErr
	}

	out.Diagnostics = res.Diagnostics
	var blocking []Diagnostic
	for _, d := range res.Diagnostics {
		if d.Severity.Blocking() {
			blocking = append(blocking, d)
			continue
		}
		p.logger().Warn("compiler "+string(d.Severity), "unit", d.Unit, "message", d.Message)
	}

	var batchErr *BatchError
	if len(blocking) > 0 {
		batchErr = &BatchError{Units: plan.Selected, Diagnostics: res.Diagnostics}
	} else {
		for _, name := range plan.Selected {
			if res.Artifacts[name] == nil {
				batchErr = &BatchError{Units: plan.Selected, Reason: fmt.Sprintf("compiler returned no artifact for %s", name)}
				break
			}
		}
	}
	if batchErr != nil {
		p.Metrics.ObserveCompileBatch(len(req.Units), time.Since(start), batchErr)
		p.recordAll(plan, report.StatusCompileFailed, "", blocking)
		return out, batchErr
	}
	p.Metrics.ObserveCompileBatch(len(req.Units), time.Since(start), nil)

	if err := ctx.Err(); err != nil {
		p.recordAll(plan, report.StatusCompileFailed, err.Error(), nil)
		return out, err
	}
	for _, name := range plan.Selected {
		if err := p.Cache.Store(name, plan.Hashes[name], res.Artifacts[name]); err != nil {
			p.recordAll(plan, report.StatusCompileFailed, err.Error(), nil)
			return out, err
		}
		out.Compiled = append(out.Compiled, name)
	}
	for name := range res.Artifacts {
		if !plan.IsSelected(name) {
			p.logger().Debug("ignoring artifact for unit outside batch", "unit", name)
		}
	}

	for _, name := range plan.Order {
		status, detail := report.StatusUnchanged, ""
		if plan.IsSelected(name) {
			status = report.StatusRecompiled
			detail = fmt.Sprintf("%s, bytecode %s", plan.Reasons[name], humanize.Bytes(uint64(len(res.Artifacts[name].Bytecode))))
		}
		p.record(name, plan.Hashes[name], status, detail)
	}
	p.logger().Info("compiled", "units", len(out.Compiled), "duration", time.Since(start))
	return out, nil
}

// Run plans and executes in one step. The Plan is nil only when planning
// failed.
func (p *Planner) Run(ctx context.Context, force bool) (*Outcome, error) {
	plan, err := p.Plan(force)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, plan)
}

// recordAll records status for every selected unit and "unchanged" for the
// rest. Units with a blocking diagnostic get it as their detail.
func (p *Planner) recordAll(plan *Plan, status report.Status, detail string, diags []Diagnostic) {
	perUnit := make(map[string]string)
	for _, d := range diags {
		if d.Unit != "" {
			if _, ok := perUnit[d.Unit]; !ok {
				perUnit[d.Unit] = d.Message
			}
		}
	}
	for _, name := range plan.Order {
		if !plan.IsSelected(name) {
			p.record(name, plan.Hashes[name], report.StatusUnchanged, "")
			continue
		}
		d := detail
		if msg, ok := perUnit[name]; ok {
			d = msg
		}
		p.record(name, plan.Hashes[name], status, d)
	}
}

func (p *Planner) record(name string, hash core.IdentityHash, status report.Status, detail string) {
	report.SafeRecord(p.Sink, report.Event{
		Phase:  report.PhaseCompile,
		Unit:   name,
		Status: status,
		Hash:   hash.String(),
		Detail: detail,
	})
}
