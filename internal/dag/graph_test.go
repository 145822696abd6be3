package dag

import (
	"errors"
	"reflect"
	"testing"

	"ledgerforge/internal/core"
)

func unit(name string, imports ...string) core.Unit {
	return core.Unit{Name: name, Path: name + ".sol", Source: []byte("contract " + name), Imports: imports}
}

func TestResolve_SingleUnit(t *testing.T) {
	g, err := Resolve([]core.Unit{unit("A")}, ".sol")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 unit, got %d", g.Len())
	}
	if deps := g.Deps("A"); len(deps) != 0 {
		t.Fatalf("unexpected deps: %v", deps)
	}
}

func TestResolve_RelativeAndRootedImports(t *testing.T) {
	units := []core.Unit{
		{Name: "lib/Math", Path: "lib/Math.sol"},
		{Name: "lib/SafeMath", Path: "lib/SafeMath.sol", Imports: []string{"./Math.sol"}},
		{Name: "tokens/Token", Path: "tokens/Token.sol", Imports: []string{"../lib/SafeMath.sol", "lib/Math.sol"}},
	}
	g, err := Resolve(units, ".sol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Deps("lib/SafeMath"); !reflect.DeepEqual(got, []string{"lib/Math"}) {
		t.Errorf("SafeMath deps = %v", got)
	}
	if got := g.Deps("tokens/Token"); !reflect.DeepEqual(got, []string{"lib/SafeMath", "lib/Math"}) {
		t.Errorf("Token deps = %v", got)
	}
	if got := g.Dependents("lib/Math"); !reflect.DeepEqual(got, []string{"lib/SafeMath", "tokens/Token"}) {
		t.Errorf("Math dependents = %v", got)
	}
	if got := g.TransitiveDependents("lib/Math"); !reflect.DeepEqual(got, []string{"lib/SafeMath", "tokens/Token"}) {
		t.Errorf("Math transitive dependents = %v", got)
	}
}

func TestResolve_DuplicateImportKeepsFirstDeclaration(t *testing.T) {
	g, err := Resolve([]core.Unit{
		unit("A"),
		unit("B"),
		unit("C", "./B.sol", "./A.sol", "./B.sol"),
	}, ".sol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Deps("C"); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Fatalf("deps = %v", got)
	}
}

func TestResolve_MissingDependencyFailsWholeGraph(t *testing.T) {
	_, err := Resolve([]core.Unit{unit("A"), unit("B", "./A.sol", "./Missing.sol")}, ".sol")
	if !errors.Is(err, ErrDependencyNotFound) {
		t.Fatalf("expected dependency-not-found, got %v", err)
	}
	var dnf *DependencyNotFoundError
	if !errors.As(err, &dnf) {
		t.Fatalf("expected *DependencyNotFoundError, got %T", err)
	}
	if dnf.Unit != "B" || dnf.Ref != "./Missing.sol" {
		t.Fatalf("unexpected error fields: %+v", dnf)
	}
}

func TestResolve_ImportEscapingRootIsNotFound(t *testing.T) {
	_, err := Resolve([]core.Unit{unit("A", "../outside/X.sol")}, ".sol")
	if !errors.Is(err, ErrDependencyNotFound) {
		t.Fatalf("expected dependency-not-found, got %v", err)
	}
}

func TestResolve_DuplicateNameRejected(t *testing.T) {
	_, err := Resolve([]core.Unit{unit("A"), unit("A")}, ".sol")
	if !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected invalid graph, got %v", err)
	}
}
