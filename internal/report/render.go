package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/rodaine/table"

	"ledgerforge/internal/core"
	"ledgerforge/internal/ledger"
)

// TextOptions controls human-readable rendering.
type TextOptions struct {
	Color bool
}

// Table starts a table on w, with colored headers when enabled.
func (o TextOptions) Table(w io.Writer, headers ...interface{}) table.Table {
	tbl := table.New(headers...).WithWriter(w)
	if o.Color {
		headerFmt := Colorizer(color.FgGreen, color.Bold).SprintfFunc()
		columnFmt := Colorizer(color.FgYellow).SprintfFunc()
		tbl = tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
	}
	return tbl
}

// Colorizer returns a color that always emits escapes, whatever color.NoColor
// says. Callers decide per writer whether to use it.
func Colorizer(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

func (o TextOptions) status(s Status) string {
	if !o.Color {
		return string(s)
	}
	switch s {
	case StatusRecompiled, StatusRedeployed:
		return Colorizer(color.FgGreen).Sprint(string(s))
	case StatusCompileFailed, StatusDeployFailed:
		return Colorizer(color.FgRed).Sprint(string(s))
	default:
		return string(s)
	}
}

// WriteText renders rep as one table per phase followed by a summary line.
func WriteText(w io.Writer, rep Report, opts TextOptions) error {
	for _, phase := range []Phase{PhaseCompile, PhaseDeploy} {
		events := rep.Phase(phase)
		if len(events) == 0 {
			continue
		}
		title := strings.ToUpper(string(phase))
		if phase == PhaseDeploy && rep.Network != "" {
			title += " " + rep.Network
		}
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
		tbl := opts.Table(w, "Unit", "Status", "Hash", "Detail")
		for _, e := range events {
			detail := e.Detail
			if e.Address != "" {
				detail = strings.TrimSpace(e.Address + " " + detail)
			}
			tbl.AddRow(e.Unit, opts.status(e.Status), core.IdentityHash(e.Hash).Short(), detail)
		}
		tbl.Print()
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, Summary(rep))
	return err
}

// Summary returns a one-line count of outcomes, e.g.
// "2 units: 1 recompiled, 1 unchanged — skipped".
func Summary(rep Report) string {
	counts := rep.Counts()
	units := make(map[string]struct{})
	for _, e := range rep.Events {
		units[e.Unit] = struct{}{}
	}
	var parts []string
	for _, s := range Statuses {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "0 units"
	}
	noun := "units"
	if len(units) == 1 {
		noun = "unit"
	}
	return fmt.Sprintf("%d %s: %s", len(units), noun, strings.Join(parts, ", "))
}

// WriteJSON renders rep as indented JSON.
func WriteJSON(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteHistory renders the deployment history of one unit, most recent first.
// Ages are relative to now.
func WriteHistory(w io.Writer, unit string, entries []ledger.Entry, now time.Time, opts TextOptions) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintf(w, "%s: never deployed\n", unit)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s: %s\n", unit, english.Plural(len(entries), "deployment", "deployments")); err != nil {
		return err
	}
	tbl := opts.Table(w, "#", "Address", "Hash", "Deployed")
	for i, e := range entries {
		when := fmt.Sprintf("%s (%s)", e.DeployedAt.UTC().Format(time.RFC3339), humanize.RelTime(e.DeployedAt, now, "ago", "from now"))
		tbl.AddRow(len(entries)-i, e.Address, e.IdentityHash.Short(), when)
	}
	tbl.Print()
	return nil
}

// PlanRow is one unit of a dry-run preview.
type PlanRow struct {
	Unit    string `json:"unit"`
	Hash    string `json:"hash"`
	Compile string `json:"compile"`
	Deploy  string `json:"deploy,omitempty"`
}

// WritePlan renders a preview. The Deploy column is shown only when network
// is set.
func WritePlan(w io.Writer, network string, rows []PlanRow, opts TextOptions) error {
	headers := []interface{}{"Unit", "Hash", "Compile"}
	if network != "" {
		headers = append(headers, "Deploy "+network)
	}
	tbl := opts.Table(w, headers...)
	for _, r := range rows {
		cells := []interface{}{r.Unit, core.IdentityHash(r.Hash).Short(), r.Compile}
		if network != "" {
			cells = append(cells, r.Deploy)
		}
		tbl.AddRow(cells...)
	}
	tbl.Print()
	return nil
}
