package validate

import (
	"testing"

	"github.com/flexatone/fetter/internal/depspec"
	"github.com/flexatone/fetter/internal/manifest"
	"github.com/flexatone/fetter/internal/marker"
	"github.com/flexatone/fetter/internal/pkgrecord"
	"github.com/flexatone/fetter/internal/version"
)

func constraints(t *testing.T, lines ...string) *manifest.ConstraintSet {
	t.Helper()
	cs := manifest.NewConstraintSet()
	for _, l := range lines {
		d, err := depspec.FromString(l)
		if err != nil {
			t.Fatalf("bad fixture line %q: %v", l, err)
		}
		if err := cs.Insert(d); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	return cs
}

func TestRunMisdefined(t *testing.T) {
	cs := constraints(t, "requests>=3.0")
	pkgs := []pkgrecord.Package{pkgrecord.New("requests", version.Parse("2.31.0"), nil)}

	records, err := Run(pkgs, nil, cs, nil, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != Misdefined {
		t.Fatalf("got %+v", records)
	}
}

func TestRunUnrequired(t *testing.T) {
	cs := constraints(t, "requests>=2.0")
	pkgs := []pkgrecord.Package{
		pkgrecord.New("requests", version.Parse("2.31.0"), nil),
		pkgrecord.New("flask", version.Parse("2.0.0"), nil),
	}

	records, err := Run(pkgs, nil, cs, nil, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != Unrequired {
		t.Fatalf("expected one unrequired record, got %+v", records)
	}
}

func TestRunUnrequiredSuppressedBySuperset(t *testing.T) {
	cs := constraints(t, "requests>=2.0")
	pkgs := []pkgrecord.Package{
		pkgrecord.New("requests", version.Parse("2.31.0"), nil),
		pkgrecord.New("flask", version.Parse("2.0.0"), nil),
	}

	records, err := Run(pkgs, nil, cs, nil, false, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records under permitSuperset, got %+v", records)
	}
}

func TestRunMissing(t *testing.T) {
	cs := constraints(t, "requests>=2.0", "flask>=2.0")
	pkgs := []pkgrecord.Package{pkgrecord.New("requests", version.Parse("2.31.0"), nil)}

	records, err := Run(pkgs, nil, cs, nil, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != Missing || records[0].Spec.Key != "flask" {
		t.Fatalf("got %+v", records)
	}
}

func TestRunMissingSuppressedBySubset(t *testing.T) {
	cs := constraints(t, "requests>=2.0", "flask>=2.0")
	pkgs := []pkgrecord.Package{pkgrecord.New("requests", version.Parse("2.31.0"), nil)}

	records, err := Run(pkgs, nil, cs, nil, true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records under permitSubset, got %+v", records)
	}
}

func TestRunAllSatisfied(t *testing.T) {
	cs := constraints(t, "requests>=2.0")
	pkgs := []pkgrecord.Package{pkgrecord.New("requests", version.Parse("2.31.0"), nil)}

	records, err := Run(pkgs, nil, cs, nil, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records when fully satisfied, got %+v", records)
	}
}

func TestDisplayOrdersByKey(t *testing.T) {
	cs := constraints(t, "requests>=3.0", "aardvark>=3.0")
	pkgs := []pkgrecord.Package{
		pkgrecord.New("requests", version.Parse("2.31.0"), nil),
		pkgrecord.New("aardvark", version.Parse("1.0.0"), nil),
	}
	records, err := Run(pkgs, nil, cs, nil, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := Display(records, false)
	if out == "" {
		t.Fatalf("expected non-empty display")
	}
	aIdx := indexOf(out, "aardvark")
	rIdx := indexOf(out, "requests")
	if aIdx < 0 || rIdx < 0 || aIdx > rIdx {
		t.Fatalf("expected aardvark before requests in sorted display, got %q", out)
	}
}

func TestRunSelectsMarkerActiveVariantForInterpreter(t *testing.T) {
	cs := constraints(t,
		`foo==1.0; sys_platform == "win32"`,
		`foo==2.0; sys_platform == "linux"`,
	)
	pkgs := []pkgrecord.Package{pkgrecord.New("foo", version.Parse("2.0"), nil)}
	facts := []marker.Facts{{Platform: "linux"}}

	records, err := Run(pkgs, nil, cs, facts, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected foo==2.0 to satisfy the linux-active variant, got %+v", records)
	}
}

func TestRunRejectsVersionFromInactiveVariant(t *testing.T) {
	cs := constraints(t,
		`foo==1.0; sys_platform == "win32"`,
		`foo==2.0; sys_platform == "linux"`,
	)
	pkgs := []pkgrecord.Package{pkgrecord.New("foo", version.Parse("1.0"), nil)}
	facts := []marker.Facts{{Platform: "linux"}}

	records, err := Run(pkgs, nil, cs, facts, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != Misdefined {
		t.Fatalf("expected foo==1.0 to be misdefined under the linux-active 2.0 variant, got %+v", records)
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
