// Package hook implements the install-hook launcher writer:
// synthesizing a small Python launcher pair in a site directory that
// invokes validation whenever the interpreter starts, with an argv[0]
// prefix guard against self-reentry, and the matching uninstall that
// removes both files.
package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flexatone/fetter/internal/ferrors"
	"github.com/flexatone/fetter/internal/pathshared"
	"github.com/flexatone/fetter/internal/scanner"
)

// LauncherFilename is the .pth file Python's site module loads on every
// interpreter startup (unless run with -S).
const LauncherFilename = "fetter_launcher.pth"

// ValidateFilename is the auxiliary module the launcher imports, which
// carries the actual validation invocation.
const ValidateFilename = "fetter_validate.py"

// selfReentryPrefixes names the argv[0] prefixes the generated launcher
// refuses to run under, so that fetter itself and common package
// managers never trigger a recursive validation pass.
var selfReentryPrefixes = []string{"fetter", "pip", "poetry", "uv"}

// Flags mirrors the two validation tolerances threaded through the
// generated validate command.
type Flags struct {
	PermitSubset   bool
	PermitSuperset bool
}

func validateArgs(bound string, boundOptions []string, flags Flags) []string {
	args := []string{"--bound", bound}
	if len(boundOptions) > 0 {
		args = append(args, "--bound_options")
		args = append(args, boundOptions...)
	}
	if flags.PermitSubset {
		args = append(args, "--subset")
	}
	if flags.PermitSuperset {
		args = append(args, "--superset")
	}
	return args
}

func validateCommand(executable, bound string, boundOptions []string, flags Flags) []string {
	validateArgs := validateArgs(bound, boundOptions, flags)
	banner := "validate " + strings.Join(validateArgs, " ")

	args := []string{
		"fetter",
		"-b", banner,
		"--cache-duration", "0",
		"-e", executable,
		"validate",
	}
	args = append(args, validateArgs...)
	args = append(args, "display")
	return args
}

// validationModule renders the Python source of fetter_validate.py:
// a self-reentry guard followed by a single fetter.run(argv) call,
// argv being the validate-then-display command built above plus an
// optional terminal "--code N" pair when exitCode is set.
func validationModule(executable, bound string, boundOptions []string, flags Flags, exitCode *int) string {
	cmdArgs := validateCommand(executable, bound, boundOptions, flags)
	if exitCode != nil {
		cmdArgs = append(cmdArgs, "--code", strconv.Itoa(*exitCode))
	}

	quoted := make([]string, len(cmdArgs))
	for i, a := range cmdArgs {
		quoted[i] = "'" + a + "'"
	}
	cmd := "[" + strings.Join(quoted, ", ") + "]"

	guard := make([]string, len(selfReentryPrefixes))
	for i, p := range selfReentryPrefixes {
		guard[i] = "'" + p + "'"
	}

	lines := []string{
		"import sys",
		"import fetter",
		"from pathlib import Path",
		"run = True",
		"if sys.argv:",
		"    name = Path(sys.argv[0]).name",
		fmt.Sprintf("    run = not any(name.startswith(n) for n in (%s))", strings.Join(guard, ", ")),
		fmt.Sprintf("if run: fetter.run(%s)", cmd),
	}
	return strings.Join(lines, "\n")
}

// Install writes the launcher and its auxiliary validate module into
// site, binding the generated validate command to executable, bound,
// boundOptions, and flags, with an optional process exit code on
// failure.
func Install(executable, bound string, boundOptions []string, flags Flags, exitCode *int, site *pathshared.Path) error {
	module := validationModule(executable, bound, boundOptions, flags, exitCode)

	validatePath := filepath.Join(site.String(), ValidateFilename)
	if err := os.WriteFile(validatePath, []byte(module+"\n"), 0o666); err != nil {
		return &ferrors.IOError{Context: "writing " + ValidateFilename, Err: err}
	}

	launcherPath := filepath.Join(site.String(), LauncherFilename)
	if err := os.WriteFile(launcherPath, []byte("import fetter_validate\n"), 0o666); err != nil {
		return &ferrors.IOError{Context: "writing " + LauncherFilename, Err: err}
	}
	return nil
}

// Uninstall removes both the launcher and its auxiliary module from
// site, tolerating either file already being absent.
func Uninstall(site *pathshared.Path) error {
	launcherPath := filepath.Join(site.String(), LauncherFilename)
	if err := os.Remove(launcherPath); err != nil && !os.IsNotExist(err) {
		return &ferrors.IOError{Context: "removing " + LauncherFilename, Err: err}
	}
	validatePath := filepath.Join(site.String(), ValidateFilename)
	if err := os.Remove(validatePath); err != nil && !os.IsNotExist(err) {
		return &ferrors.IOError{Context: "removing " + ValidateFilename, Err: err}
	}
	return nil
}

// SiteSelector picks the one site directory an install-hook operation
// applies to, out of every site directory a single resolved interpreter
// reports. Left open for a future "prefer user site" or "prefer venv
// site" policy.
type SiteSelector func([]*pathshared.Path) (*pathshared.Path, error)

// DefaultSiteSelector picks the first site in the list.
func DefaultSiteSelector(sites []*pathshared.Path) (*pathshared.Path, error) {
	if len(sites) == 0 {
		return nil, &ferrors.ConfigError{Reason: "interpreter has no site directories"}
	}
	return sites[0], nil
}

// InstallForScan installs into the site DefaultSiteSelector chooses from
// scan's single resolved interpreter. Rejects a scan that resolved to
// zero or more than one interpreter.
func InstallForScan(scan *scanner.Scan, bound string, boundOptions []string, flags Flags, exitCode *int) error {
	exe, sites, err := singleInterpreter(scan)
	if err != nil {
		return err
	}
	site, err := DefaultSiteSelector(sites)
	if err != nil {
		return err
	}
	return Install(exe, bound, boundOptions, flags, exitCode, site)
}

// UninstallForScan removes the hook from the site DefaultSiteSelector
// chooses from scan's single resolved interpreter.
func UninstallForScan(scan *scanner.Scan) error {
	_, sites, err := singleInterpreter(scan)
	if err != nil {
		return err
	}
	site, err := DefaultSiteSelector(sites)
	if err != nil {
		return err
	}
	return Uninstall(site)
}

func singleInterpreter(scan *scanner.Scan) (string, []*pathshared.Path, error) {
	if len(scan.ExeToSites) != 1 {
		return "", nil, &ferrors.ConfigError{
			Reason: fmt.Sprintf("install hook requires exactly one interpreter, got %d", len(scan.ExeToSites)),
		}
	}
	for exe, sites := range scan.ExeToSites {
		return exe, sites, nil
	}
	return "", nil, &ferrors.InternalError{Reason: "single-interpreter scan has no entries"}
}
