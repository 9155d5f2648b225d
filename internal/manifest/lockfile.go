package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/flexatone/fetter/internal/depspec"
	"github.com/flexatone/fetter/internal/ferrors"
)

// lockDialect is one of the three lock-file dialects this system
// understands, or the requirements-style fallback. Detection inspects
// at most the first 20 non-comment lines before giving up.
type lockDialect int

const (
	lockUnknown lockDialect = iota
	lockJSON
	lockPoetry
	lockNative
	lockRequirements
)

func detectLockDialect(body string) lockDialect {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal([]byte(body), &probe); err == nil {
			_, hasMeta := probe["_meta"]
			_, hasDefault := probe["default"]
			if hasMeta && hasDefault {
				return lockJSON
			}
		}
	}

	nonComment := 0
	for _, line := range strings.Split(body, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		nonComment++
		if nonComment > 20 {
			break
		}
		if strings.HasPrefix(t, "[metadata]") || strings.HasPrefix(t, "[[package]]") {
			return lockPoetry
		}
		if strings.HasPrefix(t, "[[distribution]]") {
			return lockNative
		}
	}
	return lockRequirements
}

// FromLockBody ingests a lock-file body of any of the three recognized
// dialects (auto-detected), or the requirements-style fallback.
func FromLockBody(body string, options []string) (*ConstraintSet, error) {
	lines, err := lockDependencyLines(body, options)
	if err != nil {
		return nil, err
	}
	cs := NewConstraintSet()
	for _, line := range lines {
		if line == "" {
			continue
		}
		d, err := depspec.FromString(line)
		if err != nil {
			return nil, err
		}
		if err := cs.Insert(d); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

func lockDependencyLines(body string, options []string) ([]string, error) {
	switch detectLockDialect(body) {
	case lockJSON:
		return jsonLockDependencies(body, options)
	case lockPoetry:
		return poetryLockDependencies(body)
	case lockNative:
		return nativeLockDependencies(body)
	default:
		return requirementsStyleLines(body), nil
	}
}

// jsonLockDependencies extracts "name<version>" lines from a Pipfile.lock
// style document: every entry under "default" plus any additional group
// names the caller requests via options. Pipenv stores each entry's
// version already prefixed with its operator (commonly "=="), so this is
// a direct concatenation, not a synthesized "==".
func jsonLockDependencies(body string, options []string) ([]string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &ferrors.ParseError{Context: "lock-file", Err: err}
	}

	groups := append([]string{"default"}, options...)
	var lines []string
	for _, g := range groups {
		raw, ok := doc[g]
		if !ok {
			if g == "default" {
				continue
			}
			return nil, &ferrors.ConfigError{Reason: fmt.Sprintf("unknown lock-file group %q", g)}
		}
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, &ferrors.ParseError{Context: "lock-file", Err: err}
		}
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			var entry struct {
				Version string `json:"version"`
			}
			_ = json.Unmarshal(entries[name], &entry)
			lines = append(lines, name+entry.Version)
		}
	}
	return lines, nil
}

func poetryLockDependencies(body string) ([]string, error) {
	var doc struct {
		Package []struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"package"`
	}
	if err := toml.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &ferrors.ParseError{Context: "poetry.lock", Err: err}
	}
	lines := make([]string, 0, len(doc.Package))
	for _, p := range doc.Package {
		lines = append(lines, p.Name+"=="+p.Version)
	}
	return lines, nil
}

func nativeLockDependencies(body string) ([]string, error) {
	var doc struct {
		Distribution []struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"distribution"`
	}
	if err := toml.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &ferrors.ParseError{Context: "lock-file", Err: err}
	}
	lines := make([]string, 0, len(doc.Distribution))
	for _, p := range doc.Distribution {
		lines = append(lines, p.Name+"=="+p.Version)
	}
	return lines, nil
}

func requirementsStyleLines(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		lines = append(lines, t)
	}
	return lines
}
