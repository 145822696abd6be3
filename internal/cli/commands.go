package cli

import (
	"github.com/spf13/cobra"

	"ledgerforge/internal/report"
	"ledgerforge/internal/session"
)

// positional wraps a cobra argument validator so violations exit as invalid
// invocations.
func positional(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			_ = cmd.Usage()
			return invalidInvocationf("%v", err)
		}
		return nil
	}
}

// conclude prints whatever the run recorded, then records and releases the
// session. runErr is returned unchanged.
func (a *app) conclude(s *session.Session, runErr error) error {
	if len(s.Report().Events) > 0 {
		if err := a.writeReport(s); err != nil && runErr == nil {
			runErr = err
		}
	}
	return a.finish(s, runErr)
}

func newCompileCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the units whose content or dependencies changed",
		Args:  positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openSession(cmd, session.Options{Command: "compile"})
			if err != nil {
				return err
			}
			out, err := s.Compile(cmd.Context(), force)
			if err == nil && out.NothingToCompile() {
				defer a.printf("everything already compiled\n")
			}
			return a.conclude(s, err)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Recompile every unit")
	return cmd
}

func newDeployCommand(a *app) *cobra.Command {
	var (
		network      string
		force        bool
		forceCompile bool
		noNode       bool
	)
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Compile, then deploy every unit whose hash differs from the network's ledger",
		Args:  positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireNetwork(network); err != nil {
				return err
			}
			s, err := a.openSession(cmd, session.Options{Command: "deploy", Network: network, StartNode: !noNode})
			if err != nil {
				return err
			}
			co, do, err := s.Deploy(cmd.Context(), session.DeployOptions{
				ForceCompile: forceCompile,
				ForceDeploy:  force,
			})
			if err == nil {
				defer func() {
					if co.NothingToCompile() {
						a.printf("everything already compiled\n")
					}
					if do.NothingToDeploy() {
						a.printf("everything already deployed to %s\n", network)
					}
				}()
			}
			return a.conclude(s, err)
		},
	}
	cmd.Flags().StringVarP(&network, "network", "n", "", "Target network (required)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Redeploy every unit")
	cmd.Flags().BoolVar(&forceCompile, "force-compile", false, "Recompile every unit before deploying")
	cmd.Flags().BoolVar(&noNode, "no-node", false, "Do not start the network's configured node")
	return cmd
}

func newPlanCommand(a *app) *cobra.Command {
	var (
		network      string
		force        bool
		forceCompile bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what compile and deploy would do, without doing it",
		Args:  positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openSession(cmd, session.Options{Network: network, SkipCompiler: true, SkipChain: true})
			if err != nil {
				return err
			}
			defer s.Close()
			pv, err := s.Preview(forceCompile, force)
			if err != nil {
				return err
			}
			rows := planRows(pv)
			if a.output == OutputJSON {
				return a.encodeJSON(struct {
					Network string           `json:"network,omitempty"`
					Units   []report.PlanRow `json:"units"`
				}{network, rows})
			}
			return report.WritePlan(a.env.Stdout, network, rows, a.textOptions())
		},
	}
	cmd.Flags().StringVarP(&network, "network", "n", "", "Also plan deployment to this network")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Plan a redeploy of every unit")
	cmd.Flags().BoolVar(&forceCompile, "force-compile", false, "Plan a recompile of every unit")
	return cmd
}

func planRows(pv *session.Preview) []report.PlanRow {
	rows := make([]report.PlanRow, 0, len(pv.Compile.Order))
	for _, name := range pv.Compile.Order {
		row := report.PlanRow{Unit: name, Hash: pv.Compile.Hashes[name].String(), Compile: "cached"}
		if reason, ok := pv.Compile.Reasons[name]; ok {
			row.Compile = string(reason)
		}
		if pv.Deploy != nil {
			row.Deploy = "up to date"
			if reason, ok := pv.Deploy.Reasons[name]; ok {
				row.Deploy = string(reason)
			}
		}
		rows = append(rows, row)
	}
	return rows
}
