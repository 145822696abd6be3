package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ledgerforge/internal/ledger"
	"ledgerforge/internal/report"
	"ledgerforge/internal/runlog"
	"ledgerforge/internal/session"
)

func (a *app) encodeJSON(v any) error {
	enc := json.NewEncoder(a.env.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newHistoryCommand(a *app) *cobra.Command {
	var network string
	cmd := &cobra.Command{
		Use:   "history [unit...]",
		Short: "Show the deployment history of units on a network",
		Long: "Show every recorded deployment of the given units on a network, most recent\n" +
			"first. Without arguments every unit in the network's ledger is shown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireNetwork(network); err != nil {
				return err
			}
			s, err := a.openSession(cmd, session.Options{Network: network, SkipCompiler: true, SkipChain: true})
			if err != nil {
				return err
			}
			defer s.Close()

			units := args
			if len(units) == 0 {
				units = s.Ledger.Units()
			}
			if a.output == OutputJSON {
				out := make(map[string][]ledger.Entry, len(units))
				for _, u := range units {
					out[u] = s.Ledger.History(u)
				}
				return a.encodeJSON(struct {
					Network string                    `json:"network"`
					Units   map[string][]ledger.Entry `json:"units"`
				}{network, out})
			}
			if len(units) == 0 {
				a.printf("nothing deployed to %s\n", network)
				return nil
			}
			now := a.now()
			for i, u := range units {
				if i > 0 {
					a.printf("\n")
				}
				if err := report.WriteHistory(a.env.Stdout, u, s.Ledger.History(u), now, a.textOptions()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&network, "network", "n", "", "Network whose ledger to read (required)")
	return cmd
}

func newCallCommand(a *app) *cobra.Command {
	var network string
	cmd := &cobra.Command{
		Use:   "call <unit> <method> [args...]",
		Short: "Call a method on the deployed version of a unit",
		Args:  positional(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireNetwork(network); err != nil {
				return err
			}
			s, err := a.openSession(cmd, session.Options{Network: network, SkipCompiler: true})
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := s.Dispatcher()
			if err != nil {
				return err
			}
			res, err := d.Call(cmd.Context(), args[0], args[1], args[2:])
			if err != nil {
				return err
			}
			if a.output == OutputJSON {
				return a.encodeJSON(res)
			}
			if len(res.Output) > 0 {
				a.printf("%s\n", res.Output)
			}
			if res.TxHash != "" {
				a.printf("tx %s\n", res.TxHash)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&network, "network", "n", "", "Network the unit is deployed on (required)")
	return cmd
}

// runRow is one line of the runs listing.
type runRow struct {
	runlog.Run
	Failure *runlog.Failure `json:"failure,omitempty"`
}

func newRunsCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent compile and deploy runs",
		Args:  positional(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			if limit < 0 {
				return invalidInvocationf("--limit must be >= 0")
			}
			store, err := runlog.NewStore(a.cfg.Runs.Dir)
			if err != nil {
				return err
			}
			runs, err := store.Recent(limit)
			if err != nil {
				return err
			}
			rows := make([]runRow, 0, len(runs))
			for _, r := range runs {
				row := runRow{Run: r}
				f, ok, err := store.LoadFailure(r.RunID)
				if err != nil {
					a.logger.Warn("reading run failure", "run_id", r.RunID, "err", err)
				} else if ok {
					row.Failure = &f
				}
				rows = append(rows, row)
			}
			if a.output == OutputJSON {
				return a.encodeJSON(struct {
					Runs []runRow `json:"runs"`
				}{rows})
			}
			if len(rows) == 0 {
				a.printf("no runs recorded\n")
				return nil
			}
			return a.writeRuns(rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show (0 for all)")
	return cmd
}

func (a *app) writeRuns(rows []runRow) error {
	now := a.now()
	tbl := a.textOptions().Table(a.env.Stdout, "Run", "Command", "Network", "Status", "Started", "Duration", "Failure")
	for _, r := range rows {
		duration := "-"
		if r.EndTime != nil {
			duration = r.Duration().Round(time.Millisecond).String()
		}
		failure := ""
		if r.Failure != nil {
			failure = r.Failure.ErrorCode
			if r.Failure.Unit != nil {
				failure = fmt.Sprintf("%s (%s)", failure, *r.Failure.Unit)
			}
		}
		network := r.Network
		if network == "" {
			network = "-"
		}
		tbl.AddRow(shortRunID(r.RunID), r.Command, network, string(r.Status),
			humanize.RelTime(r.StartTime, now, "ago", "from now"), duration, failure)
	}
	tbl.Print()
	return nil
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
