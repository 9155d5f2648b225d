// Package scancache implements the persistent scan cache: a hash-keyed
// JSON file per distinct (exe set, force-usite flag) under a
// host-appropriate cache directory, gated by file mtime against a
// caller-supplied freshness duration.
package scancache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/flexatone/fetter/internal/ferrors"
	"github.com/flexatone/fetter/internal/scanner"
)

// vendorID names the cache's root directory.
const vendorID = "io.fetter"

// Dir resolves the host-appropriate cache directory without creating it:
// LOCALAPPDATA on Windows, ~/Library/Caches on macOS, ~/.cache elsewhere.
// Deliberately not os.UserCacheDir: its Windows branch omits the
// trailing vendor "Cache" segment this layout requires, and its Linux
// branch honors XDG_CACHE_HOME where this layout always uses ~/.cache.
func Dir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			return "", &ferrors.CacheError{Reason: "LOCALAPPDATA is not set"}
		}
		return filepath.Join(base, vendorID, "Cache"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", &ferrors.CacheError{Reason: "resolving home directory", Err: err}
		}
		return filepath.Join(home, "Library", "Caches", vendorID), nil
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", &ferrors.CacheError{Reason: "resolving home directory", Err: err}
		}
		return filepath.Join(home, ".cache", vendorID), nil
	}
}

// pathForKey returns the cache file path for a given scan key within dir.
func pathForKey(dir, key string) string {
	return filepath.Join(dir, key+".json")
}

// Load reads the cached scan for key from dir, succeeding only if the
// file exists and its mtime is within maxAge of now. maxAge of zero
// disables reads outright, reported as its own CacheError reason,
// distinct from a miss or an expired entry.
func Load(dir, key string, maxAge time.Duration) (*scanner.Scan, error) {
	if maxAge <= 0 {
		return nil, &ferrors.CacheError{Reason: "reads disabled (zero duration)"}
	}

	path := pathForKey(dir, key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ferrors.CacheError{Reason: "miss"}
	}
	if err != nil {
		return nil, &ferrors.CacheError{Reason: "stat failed", Err: err}
	}

	if time.Since(info.ModTime()) > maxAge {
		return nil, &ferrors.CacheError{Reason: "expired"}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ferrors.CacheError{Reason: "read failed", Err: err}
	}

	var data scanner.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &ferrors.CacheError{Reason: "corrupt entry", Err: err}
	}

	return scanner.FromData(data), nil
}

// Save writes scan's cache entry for key into dir, creating dir if
// needed. If an entry already exists and is still within maxAge, Save is
// a no-op: a fresh-enough cache file is never rewritten. Serialization
// goes through Scan.ToData, whose two indexes are sorted by key so that
// two scans of identical inputs serialize byte-identically.
func Save(dir, key string, scan *scanner.Scan, maxAge time.Duration) error {
	path := pathForKey(dir, key)

	if maxAge > 0 {
		if info, err := os.Stat(path); err == nil && time.Since(info.ModTime()) <= maxAge {
			return nil
		}
	}

	if err := os.MkdirAll(dir, 0o777); err != nil {
		return &ferrors.CacheError{Reason: "creating cache directory", Err: err}
	}

	raw, err := json.Marshal(scan.ToData())
	if err != nil {
		return &ferrors.CacheError{Reason: "encoding scan", Err: err}
	}

	if err := os.WriteFile(path, raw, 0o666); err != nil {
		return &ferrors.CacheError{Reason: "writing cache entry", Err: err}
	}
	return nil
}

// Clear removes every cached entry under dir.
func Clear(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &ferrors.CacheError{Reason: "reading cache directory", Err: err}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return &ferrors.CacheError{Reason: "removing cache entry", Err: err}
		}
	}
	return nil
}
