package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flexatone/fetter/internal/ferrors"
)

// LockPriority is the directory-input dispatch order: the first file
// present wins.
var LockPriority = []string{
	"uv.lock",
	"poetry.lock",
	"Pipfile.lock",
	"requirements.lock",
	"requirements.txt",
	"pyproject.toml",
}

// HTTPFetcher is the narrow interface through which remote manifests are
// fetched; callers supply their own implementation.
type HTTPFetcher interface {
	Get(url string) (string, error)
}

// GitCloner is the narrow interface through which a manifest source
// repository is shallow-cloned.
type GitCloner interface {
	ShallowClone(url, destDir string) error
}

// FromPyProjectFile reads and ingests a pyproject.toml file.
func FromPyProjectFile(path string, options []string) (*ConstraintSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ferrors.IOError{Context: path, Err: err}
	}
	return FromPyProjectString(string(b), options)
}

// FromPath dispatches on path's suffix: a directory selects the first
// present file in LockPriority order, "pyproject.toml" gets the
// project-metadata parse, "requirements.txt" gets include-directive
// parsing, and anything else is read and auto-detected as a lock-file
// dialect.
func FromPath(path string, options []string) (*ConstraintSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ferrors.IOError{Context: path, Err: err}
	}
	if info.IsDir() {
		return FromDir(path, options)
	}

	base := filepath.Base(path)
	switch base {
	case "pyproject.toml":
		return FromPyProjectFile(path, options)
	case "requirements.txt":
		return FromRequirementsFile(path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ferrors.IOError{Context: path, Err: err}
	}
	return FromLockBody(string(b), options)
}

// FromDir selects the first file present in LockPriority order under
// dir and ingests it.
func FromDir(dir string, options []string) (*ConstraintSet, error) {
	for _, name := range LockPriority {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return FromPath(candidate, options)
		}
	}
	return nil, &ferrors.ConfigError{Reason: fmt.Sprintf("cannot find a lock file, requirements file, or pyproject.toml under %s", dir)}
}

// FromHTTP fetches url via fetcher and ingests the body: a URL ending in
// "pyproject.toml" gets the project-metadata parse, else the body is
// auto-detected as a lock-file dialect.
func FromHTTP(fetcher HTTPFetcher, url string, options []string) (*ConstraintSet, error) {
	body, err := fetcher.Get(url)
	if err != nil {
		return nil, &ferrors.NetworkError{Context: url, Err: err}
	}
	if strings.HasSuffix(url, "pyproject.toml") {
		return FromPyProjectString(body, options)
	}
	return FromLockBody(body, options)
}

// FromGitRepo shallow-clones url to a temporary directory via cloner and
// ingests the clone's root as a directory input.
func FromGitRepo(cloner GitCloner, url string, options []string) (*ConstraintSet, error) {
	tmpDir, err := os.MkdirTemp("", "fetter-manifest-*")
	if err != nil {
		return nil, &ferrors.IOError{Context: "git clone temp dir", Err: err}
	}
	defer os.RemoveAll(tmpDir)

	repoPath := filepath.Join(tmpDir, "repo")
	if err := cloner.ShallowClone(url, repoPath); err != nil {
		return nil, &ferrors.NetworkError{Context: url, Err: err}
	}
	return FromDir(repoPath, options)
}

// FromPathOrURL dispatches a manifest source string: a ".git" suffix
// shallow-clones and reads the repository, an "http" prefix fetches
// remotely, and anything else is treated as a local filesystem path.
func FromPathOrURL(input string, fetcher HTTPFetcher, cloner GitCloner, options []string) (*ConstraintSet, error) {
	switch {
	case strings.HasSuffix(input, ".git"):
		return FromGitRepo(cloner, input, options)
	case strings.HasPrefix(input, "http"):
		return FromHTTP(fetcher, input, options)
	default:
		return FromPath(input, options)
	}
}
