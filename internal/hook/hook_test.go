package hook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flexatone/fetter/internal/pathshared"
	"github.com/flexatone/fetter/internal/scanner"
)

func TestValidateCommandNoOptionsSubsetOnly(t *testing.T) {
	flags := Flags{PermitSubset: true, PermitSuperset: false}
	got := validateCommand("python3", "requirements.txt", nil, flags)
	want := []string{
		"fetter",
		"-b", "validate --bound requirements.txt --subset",
		"--cache-duration", "0",
		"-e", "python3",
		"validate",
		"--bound", "requirements.txt",
		"--subset",
		"display",
	}
	assertEqualSlices(t, got, want)
}

func TestValidateCommandWithOptionsBothFlags(t *testing.T) {
	flags := Flags{PermitSubset: true, PermitSuperset: true}
	got := validateCommand("python3", "requirements.txt", []string{"foo", "bar"}, flags)
	want := []string{
		"fetter",
		"-b", "validate --bound requirements.txt --bound_options foo bar --subset --superset",
		"--cache-duration", "0",
		"-e", "python3",
		"validate",
		"--bound", "requirements.txt",
		"--bound_options", "foo", "bar",
		"--subset",
		"--superset",
		"display",
	}
	assertEqualSlices(t, got, want)
}

func TestValidationModuleWithExitCode(t *testing.T) {
	flags := Flags{PermitSubset: true, PermitSuperset: false}
	code := 4
	got := validationModule("python3", "requirements.txt", nil, flags, &code)
	want := "import sys\nimport fetter\nfrom pathlib import Path\nrun = True\nif sys.argv:\n    name = Path(sys.argv[0]).name\n    run = not any(name.startswith(n) for n in ('fetter', 'pip', 'poetry', 'uv'))\nif run: fetter.run(['fetter', '-b', 'validate --bound requirements.txt --subset', '--cache-duration', '0', '-e', 'python3', 'validate', '--bound', 'requirements.txt', '--subset', 'display', '--code', '4'])"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestValidationModuleWithoutExitCode(t *testing.T) {
	flags := Flags{PermitSubset: true, PermitSuperset: false}
	got := validationModule("python3", "requirements.txt", nil, flags, nil)
	want := "import sys\nimport fetter\nfrom pathlib import Path\nrun = True\nif sys.argv:\n    name = Path(sys.argv[0]).name\n    run = not any(name.startswith(n) for n in ('fetter', 'pip', 'poetry', 'uv'))\nif run: fetter.run(['fetter', '-b', 'validate --bound requirements.txt --subset', '--cache-duration', '0', '-e', 'python3', 'validate', '--bound', 'requirements.txt', '--subset', 'display'])"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestInstallThenUninstallWritesAndRemovesBothFiles(t *testing.T) {
	dir := t.TempDir()
	site := pathshared.Intern(dir)
	flags := Flags{PermitSubset: true}

	if err := Install("python3", "requirements.txt", nil, flags, nil, site); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LauncherFilename)); err != nil {
		t.Fatalf("expected launcher file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ValidateFilename)); err != nil {
		t.Fatalf("expected validate module: %v", err)
	}

	if err := Uninstall(site); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LauncherFilename)); !os.IsNotExist(err) {
		t.Fatalf("expected launcher file removed, got err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ValidateFilename)); !os.IsNotExist(err) {
		t.Fatalf("expected validate module removed, got err=%v", err)
	}
}

func TestUninstallToleratesAlreadyAbsentFiles(t *testing.T) {
	dir := t.TempDir()
	site := pathshared.Intern(dir)
	if err := Uninstall(site); err != nil {
		t.Fatalf("expected uninstall of nonexistent files to succeed, got %v", err)
	}
}

func TestInstallForScanRejectsMultipleInterpreters(t *testing.T) {
	dir := t.TempDir()
	data := scanner.Data{
		ExeToSites: []scanner.ExeSitesEntry{
			{Exe: "/usr/bin/python3", Sites: []string{dir}},
			{Exe: "/usr/bin/python3.11", Sites: []string{dir}},
		},
	}
	scan := scanner.FromData(data)
	if err := InstallForScan(scan, "requirements.txt", nil, Flags{}, nil); err == nil {
		t.Fatalf("expected error for a scan with more than one interpreter")
	}
}

func TestInstallForScanAcceptsSingleInterpreter(t *testing.T) {
	dir := t.TempDir()
	data := scanner.Data{
		ExeToSites: []scanner.ExeSitesEntry{
			{Exe: "/usr/bin/python3", Sites: []string{dir}},
		},
	}
	scan := scanner.FromData(data)
	if err := InstallForScan(scan, "requirements.txt", nil, Flags{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LauncherFilename)); err != nil {
		t.Fatalf("expected launcher file: %v", err)
	}
}

func TestDefaultSiteSelectorPicksFirst(t *testing.T) {
	a := pathshared.Intern("/a")
	b := pathshared.Intern("/b")
	got, err := DefaultSiteSelector([]*pathshared.Path{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != a {
		t.Fatalf("expected the first site to be selected, got %v", got)
	}
}

func TestDefaultSiteSelectorRejectsEmpty(t *testing.T) {
	if _, err := DefaultSiteSelector(nil); err == nil {
		t.Fatal("expected an error for an interpreter with no sites")
	}
}

func TestInstallForScanOnlyWritesToFirstSiteOfMultiple(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	data := scanner.Data{
		ExeToSites: []scanner.ExeSitesEntry{
			{Exe: "/usr/bin/python3", Sites: []string{first, second}},
		},
	}
	scan := scanner.FromData(data)
	if err := InstallForScan(scan, "requirements.txt", nil, Flags{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(first, LauncherFilename)); err != nil {
		t.Fatalf("expected launcher in the first site: %v", err)
	}
	if _, err := os.Stat(filepath.Join(second, LauncherFilename)); !os.IsNotExist(err) {
		t.Fatalf("expected no launcher written to the second site, got err=%v", err)
	}
}

func assertEqualSlices(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
