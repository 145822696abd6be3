package compile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerforge/internal/core"
	"ledgerforge/internal/dag"
	"ledgerforge/internal/metrics"
	"ledgerforge/internal/report"
)

// fakeCompiler records every batch and answers with one artifact per unit
// whose bytecode is the unit source.
type fakeCompiler struct {
	mu       sync.Mutex
	batches  [][]string
	diags    []Diagnostic
	drop     string
	err      error
	artifact func(SourceUnit) *core.Artifact
}

func (f *fakeCompiler) Compile(_ context.Context, req Request) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, u := range req.Units {
		names = append(names, u.Name)
	}
	f.batches = append(f.batches, names)
	if f.err != nil {
		return nil, f.err
	}
	res := &Result{Artifacts: map[string]*core.Artifact{}, Diagnostics: f.diags}
	for _, u := range req.Units {
		if u.Name == f.drop {
			continue
		}
		res.Artifacts[u.Name] = &core.Artifact{ABI: []byte(`[]`), Bytecode: []byte(u.Source)}
	}
	return res, nil
}

// countingCache counts lookups on top of a MemoryCache.
type countingCache struct {
	*core.MemoryCache
	lookups int
	err     error
}

func (c *countingCache) Lookup(name string, hash core.IdentityHash) (*core.Artifact, error) {
	c.lookups++
	if c.err != nil {
		return nil, c.err
	}
	return c.MemoryCache.Lookup(name, hash)
}

func unit(name, source string, imports ...string) core.Unit {
	return core.Unit{Name: name, Path: name + ".sol", Source: []byte(source), Imports: imports}
}

func graphOf(t *testing.T, units ...core.Unit) *dag.DependencyGraph {
	t.Helper()
	g, err := dag.Resolve(units, ".sol")
	require.NoError(t, err)
	return g
}

func newPlanner(t *testing.T, g *dag.DependencyGraph, cache core.Cache, c Compiler) (*Planner, *report.Recorder) {
	t.Helper()
	rec := report.NewRecorder()
	return &Planner{Graph: g, Cache: cache, Compiler: c, Sink: rec, Metrics: metrics.New()}, rec
}

func statuses(rec *report.Recorder) map[string]report.Status {
	out := make(map[string]report.Status)
	for _, e := range rec.Snapshot() {
		out[e.Unit] = e.Status
	}
	return out
}

func TestPlanner_FirstRunCompilesEverythingInPostOrder(t *testing.T) {
	g := graphOf(t, unit("B", "contract B {}", "A.sol"), unit("A", "contract A {}"))
	cache := core.NewMemoryCache()
	fc := &fakeCompiler{}
	p, rec := newPlanner(t, g, cache, fc)

	out, err := p.Run(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, out.NothingToCompile())
	assert.Equal(t, [][]string{{"A", "B"}}, fc.batches)
	assert.Equal(t, []string{"A", "B"}, out.Compiled)
	assert.Equal(t, ReasonCacheMiss, out.Plan.Reasons["A"])
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, map[string]report.Status{"A": report.StatusRecompiled, "B": report.StatusRecompiled}, statuses(rec))

	art, err := cache.Lookup("B", out.Plan.Hashes["B"])
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, "contract B {}", string(art.Bytecode))
}

func TestPlanner_UnchangedSecondRunSkipsCompiler(t *testing.T) {
	units := []core.Unit{unit("A", "contract A {}"), unit("B", "contract B {}", "A.sol")}
	cache := core.NewMemoryCache()
	fc := &fakeCompiler{}

	p, _ := newPlanner(t, graphOf(t, units...), cache, fc)
	_, err := p.Run(context.Background(), false)
	require.NoError(t, err)

	p2, rec := newPlanner(t, graphOf(t, units...), cache, fc)
	out, err := p2.Run(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, out.NothingToCompile())
	assert.Len(t, fc.batches, 1)
	assert.Equal(t, map[string]report.Status{"A": report.StatusUnchanged, "B": report.StatusUnchanged}, statuses(rec))
}

func TestPlanner_ChangeCascadesToDependents(t *testing.T) {
	cache := core.NewMemoryCache()
	fc := &fakeCompiler{}

	p, _ := newPlanner(t, graphOf(t, unit("A", "v1"), unit("B", "b", "A.sol"), unit("C", "c")), cache, fc)
	_, err := p.Run(context.Background(), false)
	require.NoError(t, err)

	p2, rec := newPlanner(t, graphOf(t, unit("A", "v2"), unit("B", "b", "A.sol"), unit("C", "c")), cache, fc)
	out, err := p2.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, out.Plan.Selected)
	assert.Equal(t, []string{"A", "B"}, fc.batches[1])
	assert.Equal(t, report.StatusUnchanged, statuses(rec)["C"])
}

func TestPlanner_ChangeInDependentOnlyRecompilesDependent(t *testing.T) {
	cache := core.NewMemoryCache()
	fc := &fakeCompiler{}

	p, _ := newPlanner(t, graphOf(t, unit("A", "a"), unit("B", "b1", "A.sol")), cache, fc)
	_, err := p.Run(context.Background(), false)
	require.NoError(t, err)

	p2, _ := newPlanner(t, graphOf(t, unit("A", "a"), unit("B", "b2", "A.sol")), cache, fc)
	out, err := p2.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, out.Plan.Selected)
}

func TestPlanner_CachedDependentOfMissingDependencyIsSelected(t *testing.T) {
	g := graphOf(t, unit("A", "a"), unit("B", "b", "A.sol"))
	cache := core.NewMemoryCache()

	planOnly, _ := newPlanner(t, g, cache, &fakeCompiler{})
	plan, err := planOnly.Plan(false)
	require.NoError(t, err)
	require.NoError(t, cache.Store("B", plan.Hashes["B"], &core.Artifact{ABI: []byte(`[]`)}))

	fc := &fakeCompiler{}
	p, _ := newPlanner(t, g, cache, fc)
	out, err := p.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, out.Plan.Selected)
	assert.Equal(t, ReasonDependencyStale, out.Plan.Reasons["B"])
}

func TestPlanner_ForceSelectsAllWithoutLookups(t *testing.T) {
	cache := &countingCache{MemoryCache: core.NewMemoryCache()}
	fc := &fakeCompiler{}
	p, _ := newPlanner(t, graphOf(t, unit("A", "a"), unit("B", "b")), cache, fc)

	out, err := p.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, out.Plan.Selected)
	assert.Equal(t, ReasonForced, out.Plan.Reasons["B"])
	assert.Equal(t, 0, cache.lookups)
}

func TestPlanner_BlockingDiagnosticCachesNothing(t *testing.T) {
	cache := core.NewMemoryCache()
	fc := &fakeCompiler{diags: []Diagnostic{
		{Unit: "B", Severity: SeverityError, Message: "undeclared identifier"},
		{Unit: "A", Severity: SeverityWarning, Message: "unused variable"},
	}}
	p, rec := newPlanner(t, graphOf(t, unit("A", "a"), unit("B", "b", "A.sol")), cache, fc)

	out, err := p.Run(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompileFailed)
	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Contains(t, be.Error(), "B: error: undeclared identifier")
	assert.Len(t, out.Diagnostics, 2)
	assert.Empty(t, out.Compiled)
	assert.Equal(t, 0, cache.Len())

	st := statuses(rec)
	assert.Equal(t, report.StatusCompileFailed, st["A"])
	assert.Equal(t, report.StatusCompileFailed, st["B"])
}

func TestPlanner_WarningsDoNotBlock(t *testing.T) {
	cache := core.NewMemoryCache()
	fc := &fakeCompiler{diags: []Diagnostic{{Unit: "A", Severity: SeverityWarning, Message: "shadowing"}}}
	p, _ := newPlanner(t, graphOf(t, unit("A", "a")), cache, fc)

	out, err := p.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, out.Compiled)
	assert.Equal(t, 1, cache.Len())
}

func TestPlanner_MissingArtifactIsBatchFailure(t *testing.T) {
	cache := core.NewMemoryCache()
	fc := &fakeCompiler{drop: "B"}
	p, _ := newPlanner(t, graphOf(t, unit("A", "a"), unit("B", "b")), cache, fc)

	_, err := p.Run(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompileFailed)
	assert.Contains(t, err.Error(), "no artifact for B")
	assert.Equal(t, 0, cache.Len())
}

func TestPlanner_CompilerErrorIsReported(t *testing.T) {
	cache := core.NewMemoryCache()
	fc := &fakeCompiler{err: errors.New("solc: not found")}
	p, rec := newPlanner(t, graphOf(t, unit("A", "a")), cache, fc)

	_, err := p.Run(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solc: not found")
	assert.ErrorIs(t, err, ErrCompileFailed)
	assert.Equal(t, report.StatusCompileFailed, statuses(rec)["A"])
	assert.Equal(t, 0, cache.Len())
}

func TestPlanner_CycleFailsBeforeCacheAccess(t *testing.T) {
	cache := &countingCache{MemoryCache: core.NewMemoryCache()}
	fc := &fakeCompiler{}
	p, _ := newPlanner(t, graphOf(t, unit("A", "a", "B.sol"), unit("B", "b", "A.sol")), cache, fc)

	out, err := p.Run(context.Background(), false)
	require.Error(t, err)
	assert.Nil(t, out)
	var cyc *dag.CyclicDependencyError
	require.True(t, errors.As(err, &cyc))
	assert.Equal(t, []string{"A", "B", "A"}, cyc.Path)
	assert.Equal(t, 0, cache.lookups)
	assert.Empty(t, fc.batches)
}

func TestPlanner_LookupStorageErrorIsFatal(t *testing.T) {
	cache := &countingCache{MemoryCache: core.NewMemoryCache(), err: core.Storagef(errors.New("EIO"), "reading")}
	fc := &fakeCompiler{}
	p, _ := newPlanner(t, graphOf(t, unit("A", "a")), cache, fc)

	_, err := p.Run(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.Empty(t, fc.batches)
}

func TestPlanner_CancelledContextSkipsCompiler(t *testing.T) {
	cache := core.NewMemoryCache()
	fc := &fakeCompiler{}
	p, _ := newPlanner(t, graphOf(t, unit("A", "a")), cache, fc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fc.batches)
	assert.Equal(t, 0, cache.Len())
}

// failingStoreCache fails the failAt-th Store (1-based).
type failingStoreCache struct {
	*core.MemoryCache
	stores int
	failAt int
}

func (c *failingStoreCache) Store(name string, hash core.IdentityHash, art *core.Artifact) error {
	c.stores++
	if c.stores == c.failAt {
		return core.Storagef(errors.New("disk full"), "writing %s", name)
	}
	return c.MemoryCache.Store(name, hash, art)
}

func TestPlanner_StoreFailureStillReportsEveryUnit(t *testing.T) {
	cache := &failingStoreCache{MemoryCache: core.NewMemoryCache(), failAt: 2}
	p, rec := newPlanner(t, graphOf(t, unit("A", "a"), unit("B", "b", "A.sol")), cache, &fakeCompiler{})

	_, err := p.Run(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.Equal(t, map[string]report.Status{
		"A": report.StatusCompileFailed,
		"B": report.StatusCompileFailed,
	}, statuses(rec))
	for _, e := range rec.Snapshot() {
		assert.Contains(t, e.Detail, "disk full")
	}
	// A was written before B failed; the entry is complete and reusable.
	assert.Equal(t, 1, cache.Len())
}

func TestPlanner_CancelDuringCompileStillReportsEveryUnit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fc := CompilerFunc(func(_ context.Context, req Request) (*Result, error) {
		cancel()
		res := &Result{Artifacts: map[string]*core.Artifact{}}
		for _, u := range req.Units {
			res.Artifacts[u.Name] = &core.Artifact{ABI: []byte(`[]`), Bytecode: []byte(u.Source)}
		}
		return res, nil
	})
	cache := core.NewMemoryCache()
	p, rec := newPlanner(t, graphOf(t, unit("A", "a"), unit("B", "b", "A.sol")), cache, fc)

	_, err := p.Run(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, map[string]report.Status{
		"A": report.StatusCompileFailed,
		"B": report.StatusCompileFailed,
	}, statuses(rec))
	assert.Equal(t, 0, cache.Len())
}

func TestPlanner_CancelledContextStillReportsEveryUnit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, rec := newPlanner(t, graphOf(t, unit("A", "a")), core.NewMemoryCache(), &fakeCompiler{})

	_, err := p.Run(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, report.StatusCompileFailed, statuses(rec)["A"])
}

func TestPlanner_NilResultIsBatchFailure(t *testing.T) {
	fc := CompilerFunc(func(context.Context, Request) (*Result, error) { return nil, nil })
	cache := core.NewMemoryCache()
	p, rec := newPlanner(t, graphOf(t, unit("A", "a")), cache, fc)

	_, err := p.Run(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompileFailed)
	assert.Equal(t, report.StatusCompileFailed, statuses(rec)["A"])
	assert.Equal(t, 0, cache.Len())
}
