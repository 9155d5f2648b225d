package scanner

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/flexatone/fetter/internal/ferrors"
)

// CheckPlatform rejects any host that is not macOS-like or Linux-like:
// interpreter/site interrogation below shells out to "-S -c <script>"
// in ways not exercised on Windows.
func CheckPlatform() error {
	switch runtime.GOOS {
	case "linux", "darwin":
		return nil
	default:
		return &ferrors.UnsupportedError{Reason: "unsupported host OS: " + runtime.GOOS}
	}
}

// interpreterNamePattern matches a bare interpreter filename such as
// "python", "python3", or "python3.11" — no path separators.
var interpreterNamePattern = regexp.MustCompile(`^python[0-9.]*$`)

// ResolveExe resolves a single (non-wildcard) interpreter input: a bare
// filename matching the interpreter-name pattern is resolved by invoking
// it and capturing sys.executable; anything else is normalized relative
// to "~" or the current working directory.
func ResolveExe(input string) (string, error) {
	if isBareInterpreterName(input) {
		return sysExecutable(input)
	}
	return normalizePath(input)
}

func isBareInterpreterName(input string) bool {
	if strings.ContainsRune(input, '/') || strings.ContainsRune(input, filepath.Separator) {
		return false
	}
	return interpreterNamePattern.MatchString(input)
}

func sysExecutable(name string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, "-c", "import sys;print(sys.executable)")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", &ferrors.IOError{Context: name, Err: err}
	}
	return strings.TrimSpace(out.String()), nil
}

func normalizePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", &ferrors.IOError{Context: "home directory", Err: err}
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", &ferrors.IOError{Context: "working directory", Err: err}
		}
		path = filepath.Join(cwd, path)
	}
	return filepath.Clean(path), nil
}

// DiscoverExes enumerates discoverable interpreter executables from the
// host's standard search directories ($PATH), filtering entries whose
// filename matches the interpreter-name pattern and carries an
// executable permission bit — the sentinel "*" input's expansion.
func DiscoverExes() []string {
	var found []string
	seen := make(map[string]bool)

	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !interpreterNamePattern.MatchString(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.Mode()&0o111 == 0 {
				continue
			}
			full := filepath.Join(dir, entry.Name())
			if seen[full] {
				continue
			}
			seen[full] = true
			found = append(found, full)
		}
	}
	return found
}
