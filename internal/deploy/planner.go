package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerforge/internal/core"
	"ledgerforge/internal/ledger"
	"ledgerforge/internal/metrics"
	"ledgerforge/internal/report"
)

// Reason explains why a unit was selected for deployment.
type Reason string

const (
	ReasonForced        Reason = "forced"
	ReasonNeverDeployed Reason = "never deployed"
	ReasonStale         Reason = "hash changed"
)

// Target is a unit at its current, post-compilation IdentityHash.
type Target struct {
	Unit string
	Hash core.IdentityHash
}

// UnitConfig carries the externally supplied deployment configuration of one
// unit.
type UnitConfig struct {
	Args   []string
	Params map[string]string
}

// Plan is the deploy decision for one network.
type Plan struct {
	Network string

	// Targets in the order they were given (discovery order).
	Targets []Target

	// Selected targets, in Targets order, with the reason for each.
	Selected []Target
	Reasons  map[string]Reason

	// Deployed holds the latest ledger entry of every skipped unit.
	Deployed map[string]ledger.Entry

	Force bool
}

// Empty reports whether everything is already deployed.
func (p *Plan) Empty() bool { return len(p.Selected) == 0 }

// IsSelected reports whether unit will be deployed.
func (p *Plan) IsSelected(unit string) bool {
	_, ok := p.Reasons[unit]
	return ok
}

// Outcome is the result of executing a Plan.
type Outcome struct {
	Plan     *Plan
	Deployed []ledger.Entry

	// Failed is the unit whose deployment stopped the run; Aborted are the
	// selected units after it that were never attempted.
	Failed  string
	Aborted []string
}

// NothingToDeploy reports whether every unit was already deployed.
func (o *Outcome) NothingToDeploy() bool { return o.Plan.Empty() }

// Planner decides which units to deploy on one network and deploys them.
//
// Deployment is sequential and fail-fast: the first failure aborts the
// remaining units, while entries appended for earlier units stay in the
// ledger.
type Planner struct {
	Network string
	Ledger  *ledger.Ledger
	Cache   core.Cache
	Client  ChainClient

	Account string
	Params  map[string]string
	Units   map[string]UnitConfig

	// PersistEach flushes the ledger after every successful deployment.
	// Otherwise it is flushed once when Execute returns.
	PersistEach bool

	// Clock defaults to time.Now.
	Clock func() time.Time

	Sink    report.Sink
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (p *Planner) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger.With("network", p.Network)
	}
	return slog.New(slog.DiscardHandler)
}

func (p *Planner) now() time.Time {
	if p.Clock != nil {
		return p.Clock().UTC()
	}
	return time.Now().UTC()
}

// Plan selects the targets to deploy.
//
// A unit is selected when it was never deployed on the network, when force
// is set, or when its most recent ledger entry records a different hash.
// Dependents of a selected unit are not selected by this rule.
func (p *Planner) Plan(targets []Target, force bool) *Plan {
	plan := &Plan{
		Network:  p.Network,
		Targets:  append([]Target(nil), targets...),
		Reasons:  make(map[string]Reason),
		Deployed: make(map[string]ledger.Entry),
		Force:    force,
	}
	for _, t := range targets {
		latest, deployed := p.Ledger.Latest(t.Unit)
		var reason Reason
		switch {
		case force:
			reason = ReasonForced
		case !deployed:
			reason = ReasonNeverDeployed
		case latest.IdentityHash != t.Hash:
			reason = ReasonStale
		}
		if deployed {
			plan.Deployed[t.Unit] = latest
		}
		if reason == "" {
			continue
		}
		plan.Selected = append(plan.Selected, t)
		plan.Reasons[t.Unit] = reason
		p.logger().Debug("unit selected", "unit", t.Unit, "hash", t.Hash.Short(), "reason", string(reason))
	}
	return plan
}

// Execute deploys the selected targets in order.
//
// Each success is appended to the ledger strictly after the chain client
// answered. The ledger is flushed at least once whenever anything was
// appended, including when a later unit failed. Storage errors are returned
// as is; deployment failures are returned as *DeployError.
func (p *Planner) Execute(ctx context.Context, plan *Plan) (*Outcome, error) {
	out := &Outcome{Plan: plan}
	if plan.Empty() {
		p.logger().Info("everything already deployed", "units", len(plan.Targets))
		p.recordSkipped(plan)
		return out, nil
	}

	runErr := p.deployAll(ctx, plan, out)
	if p.Ledger.Pending() > 0 {
		if err := p.Ledger.Persist(); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	p.recordSkipped(plan)
	return out, runErr
}

func (p *Planner) deployAll(ctx context.Context, plan *Plan, out *Outcome) error {
	for i, t := range plan.Selected {
		entry, err := p.deployOne(ctx, t)
		if err != nil {
			out.Failed = t.Unit
			p.record(t, report.StatusDeployFailed, "", err.Error())
			for _, rest := range plan.Selected[i+1:] {
				out.Aborted = append(out.Aborted, rest.Unit)
				p.record(rest, report.StatusDeployFailed, "", fmt.Sprintf("aborted after %s failed", t.Unit))
			}
			if errors.Is(err, core.ErrStorage) {
				return err
			}
			return &DeployError{Unit: t.Unit, Err: err}
		}
		out.Deployed = append(out.Deployed, entry)
		p.record(t, report.StatusRedeployed, entry.Address, string(plan.Reasons[t.Unit]))

		if p.PersistEach {
			if err := p.Ledger.Persist(); err != nil {
				for _, rest := range plan.Selected[i+1:] {
					out.Aborted = append(out.Aborted, rest.Unit)
					p.record(rest, report.StatusDeployFailed, "", "aborted: ledger not persisted")
				}
				return err
			}
		}
	}
	return nil
}

func (p *Planner) deployOne(ctx context.Context, t Target) (ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Entry{}, err
	}
	art, err := p.Cache.Lookup(t.Unit, t.Hash)
	if err != nil {
		return ledger.Entry{}, err
	}
	if art == nil {
		return ledger.Entry{}, fmt.Errorf("%w: %s@%s", ErrNotCompiled, t.Unit, t.Hash.Short())
	}

	uc := p.Units[t.Unit]
	req := Request{
		Unit:     t.Unit,
		Artifact: art,
		Args:     uc.Args,
		Account:  p.Account,
		Params:   mergeParams(p.Params, uc.Params),
	}

	p.logger().Info("deploying", "unit", t.Unit, "hash", t.Hash.Short())
	start := time.Now()
	receipt, err := p.Client.Deploy(ctx, req)
	if err == nil && receipt == nil {
		err = errors.New("chain client returned no receipt")
	}
	p.Metrics.ObserveDeployment(p.Network, time.Since(start), err)
	if err != nil {
		return ledger.Entry{}, err
	}
	// The chain accepted the deployment; it is recorded even if ctx ended meanwhile.

	entry := ledger.Entry{
		UnitName:     t.Unit,
		IdentityHash: t.Hash,
		Address:      receipt.Address,
		DeployedAt:   p.now(),
		Metadata:     receiptMetadata(receipt),
	}
	if err := p.Ledger.Append(entry); err != nil {
		return ledger.Entry{}, err
	}
	p.logger().Info("deployed", "unit", t.Unit, "address", receipt.Address)
	return entry, nil
}

func (p *Planner) recordSkipped(plan *Plan) {
	for _, t := range plan.Targets {
		if plan.IsSelected(t.Unit) {
			continue
		}
		p.record(t, report.StatusAlreadyDeployed, plan.Deployed[t.Unit].Address, "")
	}
}

func (p *Planner) record(t Target, status report.Status, address, detail string) {
	report.SafeRecord(p.Sink, report.Event{
		Phase:   report.PhaseDeploy,
		Unit:    t.Unit,
		Status:  status,
		Hash:    t.Hash.String(),
		Address: address,
		Detail:  detail,
	})
}

func mergeParams(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func receiptMetadata(r *Receipt) map[string]string {
	if r.TxHash == "" && len(r.Metadata) == 0 {
		return nil
	}
	md := make(map[string]string, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		md[k] = v
	}
	if r.TxHash != "" {
		md["tx_hash"] = r.TxHash
	}
	return md
}
