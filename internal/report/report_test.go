package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"

	"ledgerforge/internal/core"
	"ledgerforge/internal/ledger"
)

type panickySink struct{}

func (panickySink) Record(Event) { panic("boom") }

func TestSafeRecord_SwallowsPanics(t *testing.T) {
	SafeRecord(panickySink{}, Event{Unit: "A"})
	SafeRecord(nil, Event{Unit: "A"})
	SafeRecord(NopSink{}, Event{Unit: "A"})
}

func TestRecorder_ConcurrentRecordAndCanonicalOrder(t *testing.T) {
	r := NewRecorder()
	order := []string{"A", "B", "C"}

	var wg sync.WaitGroup
	for _, unit := range []string{"C", "A", "B"} {
		wg.Add(2)
		go func(u string) {
			defer wg.Done()
			r.Record(Event{Phase: PhaseDeploy, Unit: u, Status: StatusRedeployed})
		}(unit)
		go func(u string) {
			defer wg.Done()
			r.Record(Event{Phase: PhaseCompile, Unit: u, Status: StatusRecompiled})
		}(unit)
	}
	wg.Wait()

	rep := r.Report("run-1", "local", order)
	if err := rep.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	var got []string
	for _, e := range rep.Events {
		got = append(got, string(e.Phase)+":"+e.Unit)
	}
	want := "compile:A compile:B compile:C deploy:A deploy:B deploy:C"
	if strings.Join(got, " ") != want {
		t.Fatalf("order = %v, want %s", got, want)
	}
}

func TestCanonicalize_UnknownUnitsSortLastByName(t *testing.T) {
	rep := Report{Events: []Event{
		{Phase: PhaseCompile, Unit: "Z", Status: StatusRecompiled},
		{Phase: PhaseCompile, Unit: "Y", Status: StatusRecompiled},
		{Phase: PhaseCompile, Unit: "B", Status: StatusRecompiled},
	}}
	rep.Canonicalize([]string{"B"})
	if rep.Events[0].Unit != "B" || rep.Events[1].Unit != "Y" || rep.Events[2].Unit != "Z" {
		t.Fatalf("unexpected order: %+v", rep.Events)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	rep := &Report{Events: []Event{{Phase: "link"}}}
	err := rep.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"unit is required", "phase \"link\"", "status is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err)
		}
	}
	var nilReport *Report
	if nilReport.Validate() == nil {
		t.Error("expected error for nil report")
	}
}

func TestSummaryAndFailed(t *testing.T) {
	rep := Report{Events: []Event{
		{Phase: PhaseCompile, Unit: "A", Status: StatusUnchanged},
		{Phase: PhaseCompile, Unit: "B", Status: StatusRecompiled},
		{Phase: PhaseDeploy, Unit: "A", Status: StatusAlreadyDeployed},
		{Phase: PhaseDeploy, Unit: "B", Status: StatusDeployFailed},
	}}
	want := "2 units: 1 unchanged — skipped, 1 recompiled, 1 already deployed, 1 deploy failed"
	if got := Summary(rep); got != want {
		t.Fatalf("Summary = %q, want %q", got, want)
	}
	if !rep.Failed() {
		t.Error("expected report to be failed")
	}
	if got := Summary(Report{}); got != "0 units" {
		t.Errorf("empty Summary = %q", got)
	}
	if got := Summary(Report{Events: rep.Events[:1]}); got != "1 unit: 1 unchanged — skipped" {
		t.Errorf("single Summary = %q", got)
	}
}

func TestWriteJSON_EmptyEventsIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Report{RunID: "r"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded["events"]) != "[]" {
		t.Fatalf("events = %s, want []", decoded["events"])
	}
	if _, ok := decoded["network"]; ok {
		t.Error("empty network should be omitted")
	}
}

func TestWriteText(t *testing.T) {
	hash := core.IdentityHash("0123456789abcdef0123")
	rep := Report{Network: "local", Events: []Event{
		{Phase: PhaseCompile, Unit: "A", Status: StatusRecompiled, Hash: string(hash), Detail: "120 B"},
		{Phase: PhaseDeploy, Unit: "A", Status: StatusRedeployed, Hash: string(hash), Address: "0xbeef"},
	}}
	var buf bytes.Buffer
	if err := WriteText(&buf, rep, TextOptions{}); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"COMPILE", "DEPLOY local", "0123456789ab", "0xbeef", "120 B", "1 unit: 1 recompiled, 1 redeployed"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, string(hash)) {
		t.Error("expected hashes to be shortened")
	}
}

func TestWriteHistory(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []ledger.Entry{
		{UnitName: "A", IdentityHash: "bbbbbbbbbbbbbbbb", Address: "0x02", DeployedAt: now.Add(-time.Hour)},
		{UnitName: "A", IdentityHash: "aaaaaaaaaaaaaaaa", Address: "0x01", DeployedAt: now.Add(-48 * time.Hour)},
	}
	var buf bytes.Buffer
	if err := WriteHistory(&buf, "A", entries, now, TextOptions{}); err != nil {
		t.Fatalf("WriteHistory: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"A: 2 deployments", "0x02", "1 hour ago", "2 days ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "0x02") > strings.Index(out, "0x01") {
		t.Error("expected most recent deployment first")
	}

	buf.Reset()
	if err := WriteHistory(&buf, "B", nil, now, TextOptions{}); err != nil {
		t.Fatalf("WriteHistory: %v", err)
	}
	if buf.String() != "B: never deployed\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWritePlan_DeployColumnOnlyWithNetwork(t *testing.T) {
	rows := []PlanRow{{Unit: "A", Hash: "0123456789abcdef", Compile: "cached", Deploy: "up to date"}}

	var buf bytes.Buffer
	if err := WritePlan(&buf, "", rows, TextOptions{}); err != nil {
		t.Fatalf("WritePlan: %v", err)
	}
	if strings.Contains(buf.String(), "Deploy") || strings.Contains(buf.String(), "up to date") {
		t.Errorf("unexpected deploy column:\n%s", buf.String())
	}

	buf.Reset()
	if err := WritePlan(&buf, "testnet", rows, TextOptions{}); err != nil {
		t.Fatalf("WritePlan: %v", err)
	}
	for _, want := range []string{"Deploy testnet", "up to date", "0123456789ab"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in:\n%s", want, buf.String())
		}
	}
}

func TestWriteText_ColorIgnoresPackageDefault(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })

	rep := Report{Events: []Event{{Phase: PhaseCompile, Unit: "A", Status: StatusRecompiled}}}
	var on, off bytes.Buffer
	if err := WriteText(&on, rep, TextOptions{Color: true}); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if err := WriteText(&off, rep, TextOptions{}); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if !strings.Contains(on.String(), "\x1b[") {
		t.Errorf("expected escapes with color on:\n%q", on.String())
	}
	if strings.Contains(off.String(), "\x1b[") {
		t.Errorf("unexpected escapes with color off:\n%q", off.String())
	}
}
