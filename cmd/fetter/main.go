// Command fetter audits a Python environment's installed packages
// against a bound dependency manifest. run(args) dispatches on a single
// switch over the first argument, one pflag.FlagSet per subcommand that
// takes flags, and
// returns a numeric exit code alongside any error rather than calling
// os.Exit from deep inside command handlers.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/flexatone/fetter/internal/hook"
	"github.com/flexatone/fetter/internal/manifest"
	"github.com/flexatone/fetter/internal/marker"
	"github.com/flexatone/fetter/internal/scancache"
	"github.com/flexatone/fetter/internal/scanner"
	"github.com/flexatone/fetter/internal/validate"
)

// Version identifies the build of fetter. Overridable by CI during release.
var Version = "dev"

const defaultHelp = `fetter audits installed Python packages against a bound manifest 🔒

Usage:

  fetter <command> [options]

The commands are:

  scan            scan one or more interpreters and list discovered packages
  validate        validate a scan against a bound manifest
  export          print the constraint set ingested from a manifest
  hook-install    install a validation launcher into an interpreter's site
  hook-uninstall  remove a previously installed validation launcher
  cache-clear     remove every entry from the persistent scan cache
  version         show fetter version
`

// httpFetcher implements manifest.HTTPFetcher over net/http for remote
// pyproject.toml / lock-file manifests.
type httpFetcher struct{ client *http.Client }

func (f *httpFetcher) Get(url string) (string, error) {
	resp, err := f.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	buf, err := io.ReadAll(resp.Body)
	return string(buf), err
}

// gitCloner implements manifest.GitCloner via a shallow `git clone`.
type gitCloner struct{}

func (gitCloner) ShallowClone(url, destDir string) error {
	cmd := exec.Command("git", "clone", "--depth", "1", url, destDir)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func loadManifest(path string, options []string) (*manifest.ConstraintSet, error) {
	return manifest.FromPathOrURL(path, &httpFetcher{client: &http.Client{Timeout: 30 * time.Second}}, gitCloner{}, options)
}

func exesFromFlag(exe *[]string) []string {
	if len(*exe) == 0 {
		return []string{"python3"}
	}
	return *exe
}

func cmdScan(args []string) (int, error) {
	flagSet := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	exe := flagSet.StringArrayP("exe", "e", nil, "interpreter to scan (repeatable); \"*\" discovers every interpreter on PATH")
	forceUsite := flagSet.Bool("force-usite", false, "always include the user site directory")
	cacheDuration := flagSet.Duration("cache-duration", 0, "reuse a cached scan younger than this duration; 0 disables cache reads")
	if err := flagSet.Parse(args); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 1, err
	}

	scan, err := resolveScan(exesFromFlag(exe), *forceUsite, *cacheDuration)
	if err != nil {
		return 1, err
	}

	for _, p := range scan.Packages() {
		fmt.Println(p.String())
	}
	return 0, nil
}

func cmdValidate(args []string) (int, error) {
	flagSet := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	exe := flagSet.StringArrayP("exe", "e", nil, "interpreter to scan (repeatable)")
	bound := flagSet.String("bound", "", "manifest path or URL to validate against")
	boundOptions := flagSet.StringArray("bound_options", nil, "dependency group name(s) to include")
	permitSubset := flagSet.Bool("subset", false, "do not report constraints with no matching package")
	permitSuperset := flagSet.Bool("superset", false, "do not report packages with no matching constraint")
	forceUsite := flagSet.Bool("force-usite", false, "always include the user site directory")
	cacheDuration := flagSet.Duration("cache-duration", 0, "reuse a cached scan younger than this duration; 0 disables cache reads")
	code := flagSet.Int("code", 3, "process exit code when the validation report is non-empty")
	includeSites := flagSet.Bool("sites", false, "include observed site directories in the display report")
	if err := flagSet.Parse(args); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 1, err
	}
	if *bound == "" {
		return 1, fmt.Errorf("validate: --bound is required")
	}

	scan, err := resolveScan(exesFromFlag(exe), *forceUsite, *cacheDuration)
	if err != nil {
		return 1, err
	}
	constraints, err := loadManifest(*bound, *boundOptions)
	if err != nil {
		return 1, err
	}

	if err := scan.PopulateFacts(); err != nil {
		return 1, err
	}
	facts := make([]marker.Facts, 0, len(scan.ExeFacts))
	for _, f := range scan.ExeFacts {
		facts = append(facts, f)
	}

	records, err := validate.Run(scan.Packages(), scan, constraints, facts, *permitSubset, *permitSuperset)
	if err != nil {
		return 1, err
	}
	if validate.Len(records) > 0 {
		fmt.Println(validate.Display(records, *includeSites))
		return *code, nil
	}
	return 0, nil
}

func cmdExport(args []string) (int, error) {
	flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
	boundOptions := flagSet.StringArray("bound_options", nil, "dependency group name(s) to include")
	if err := flagSet.Parse(args); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 1, err
	}
	if len(flagSet.Args()) == 0 {
		return 1, fmt.Errorf("export: manifest path or URL not provided")
	}

	constraints, err := loadManifest(flagSet.Args()[0], *boundOptions)
	if err != nil {
		return 1, err
	}
	for _, k := range constraints.Keys() {
		d, _ := constraints.Get(k)
		fmt.Println(d.Display())
	}
	return 0, nil
}

func cmdHookInstall(args []string) (int, error) {
	flagSet := pflag.NewFlagSet("hook-install", pflag.ContinueOnError)
	exe := flagSet.StringP("exe", "e", "", "the single interpreter to install the launcher for")
	bound := flagSet.String("bound", "", "manifest path bound by the generated launcher")
	boundOptions := flagSet.StringArray("bound_options", nil, "dependency group name(s) to include")
	permitSubset := flagSet.Bool("subset", false, "launcher tolerates constraints with no matching package")
	permitSuperset := flagSet.Bool("superset", false, "launcher tolerates packages with no matching constraint")
	exitCodeStr := flagSet.String("code", "", "exit code the launcher's interpreter should return on failure")
	if err := flagSet.Parse(args); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 1, err
	}
	if *exe == "" || *bound == "" {
		return 1, fmt.Errorf("hook-install: --exe and --bound are required")
	}

	scan, err := resolveScan([]string{*exe}, false, 0)
	if err != nil {
		return 1, err
	}

	var exitCode *int
	if *exitCodeStr != "" {
		n, err := strconv.Atoi(*exitCodeStr)
		if err != nil {
			return 1, fmt.Errorf("hook-install: --code must be an integer: %w", err)
		}
		exitCode = &n
	}

	flags := hook.Flags{PermitSubset: *permitSubset, PermitSuperset: *permitSuperset}
	if err := hook.InstallForScan(scan, *bound, *boundOptions, flags, exitCode); err != nil {
		return 1, err
	}
	return 0, nil
}

func cmdHookUninstall(args []string) (int, error) {
	flagSet := pflag.NewFlagSet("hook-uninstall", pflag.ContinueOnError)
	exe := flagSet.StringP("exe", "e", "", "the single interpreter to remove the launcher from")
	if err := flagSet.Parse(args); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 1, err
	}
	if *exe == "" {
		return 1, fmt.Errorf("hook-uninstall: --exe is required")
	}

	scan, err := resolveScan([]string{*exe}, false, 0)
	if err != nil {
		return 1, err
	}
	if err := hook.UninstallForScan(scan); err != nil {
		return 1, err
	}
	return 0, nil
}

func cmdCacheClear([]string) (int, error) {
	dir, err := scancache.Dir()
	if err != nil {
		return 1, err
	}
	if err := scancache.Clear(dir); err != nil {
		return 1, err
	}
	return 0, nil
}

// resolveScan loads a scan from the persistent cache when cacheDuration
// permits it, otherwise performs a fresh scan and writes it back. A
// cache write failure is logged and swallowed rather than aborting
// the command.
func resolveScan(exes []string, forceUsite bool, cacheDuration time.Duration) (*scanner.Scan, error) {
	if err := scanner.CheckPlatform(); err != nil {
		return nil, err
	}

	key := scanner.HashInputs(exes, forceUsite)
	dir, dirErr := scancache.Dir()
	if dirErr == nil && cacheDuration > 0 {
		if cached, err := scancache.Load(dir, key, cacheDuration); err == nil {
			return cached, nil
		}
	}

	scan, err := scanner.FromExes(context.Background(), exes, forceUsite)
	if err != nil {
		return nil, err
	}

	if dirErr == nil {
		if err := scancache.Save(dir, key, scan, cacheDuration); err != nil {
			logrus.WithError(err).Warn("failed to write scan cache entry")
		}
	}
	return scan, nil
}

func run(args []string) (int, error) {
	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}

	switch arg {
	case "", "help", "--help", "-h":
		fmt.Print(defaultHelp)
		return 2, nil
	case "version", "--version":
		fmt.Printf("fetter version: %s\n", Version)
		return 0, nil
	case "scan":
		return cmdScan(args[2:])
	case "validate":
		return cmdValidate(args[2:])
	case "export":
		return cmdExport(args[2:])
	case "hook-install":
		return cmdHookInstall(args[2:])
	case "hook-uninstall":
		return cmdHookUninstall(args[2:])
	case "cache-clear":
		return cmdCacheClear(args[2:])
	default:
		fmt.Printf("fetter %s: unknown command\n", arg)
		return 2, nil
	}
}

func main() {
	exitCode, err := run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode)
}
