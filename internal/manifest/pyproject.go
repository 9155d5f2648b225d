package manifest

import (
	"fmt"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/flexatone/fetter/internal/depspec"
	"github.com/flexatone/fetter/internal/ferrors"
)

// pyProjectInfo detects which of pyproject.toml's four overlapping
// dependency schemas are populated: [project].dependencies,
// [project].optional-dependencies, [tool.poetry].dependencies, and
// [tool.poetry.group.*].dependencies.
type pyProjectInfo struct {
	parsed                map[string]any
	hasProjectDep         bool
	hasProjectDepOptional bool
	hasPoetryDep          bool
	hasPoetryDepGroup     bool
}

func parsePyProjectInfo(content string) (*pyProjectInfo, error) {
	var parsed map[string]any
	if err := toml.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, &ferrors.ParseError{Context: "pyproject.toml", Err: err}
	}

	info := &pyProjectInfo{parsed: parsed}

	if project, ok := asTable(parsed["project"]); ok {
		_, info.hasProjectDep = project["dependencies"]
		_, info.hasProjectDepOptional = project["optional-dependencies"]
	}

	if tool, ok := asTable(parsed["tool"]); ok {
		if poetry, ok := asTable(tool["poetry"]); ok {
			_, info.hasPoetryDep = poetry["dependencies"]
			if group, ok := asTable(poetry["group"]); ok {
				for _, v := range group {
					if g, ok := asTable(v); ok {
						if _, ok := g["dependencies"]; ok {
							info.hasPoetryDepGroup = true
							break
						}
					}
				}
			}
		}
	}

	return info, nil
}

func asTable(v any) (map[string]any, bool) {
	t, ok := v.(map[string]any)
	return t, ok
}

// dependencies produces the raw dependency-specifier lines this
// pyproject.toml contributes, given the
// caller-requested optional groups (project optional-dependencies group
// names, or poetry dependency-group names — the two schemas are
// mutually exclusive per the ambiguity rule below).
func (info *pyProjectInfo) dependencies(options []string) ([]string, error) {
	if info.hasProjectDepOptional && info.hasPoetryDepGroup {
		return nil, &ferrors.ConfigError{Reason: "pyproject.toml has both [project].optional-dependencies and [tool.poetry.group.*.dependencies]: ambiguous group ownership"}
	}

	requested := make(map[string]bool, len(options))
	for _, o := range options {
		requested[o] = true
	}
	consumed := make(map[string]bool, len(options))

	var lines []string

	project, _ := asTable(info.parsed["project"])
	if info.hasProjectDep {
		deps, _ := project["dependencies"].([]any)
		for _, d := range deps {
			if s, ok := d.(string); ok {
				lines = append(lines, s)
			}
		}
	}
	if info.hasProjectDepOptional {
		groups, _ := asTable(project["optional-dependencies"])
		for name := range requested {
			group, ok := groups[name]
			if !ok {
				return nil, &ferrors.ConfigError{Reason: fmt.Sprintf("unknown optional-dependencies group %q", name)}
			}
			consumed[name] = true
			deps, _ := group.([]any)
			for _, d := range deps {
				if s, ok := d.(string); ok {
					lines = append(lines, s)
				}
			}
		}
	}

	tool, _ := asTable(info.parsed["tool"])
	poetry, _ := asTable(tool["poetry"])
	if info.hasPoetryDep {
		deps, _ := asTable(poetry["dependencies"])
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, name+poetryVersionString(deps[name]))
		}
	}
	if info.hasPoetryDepGroup {
		groupsTable, _ := asTable(poetry["group"])
		for name := range requested {
			groupEntry, ok := groupsTable[name]
			if !ok {
				return nil, &ferrors.ConfigError{Reason: fmt.Sprintf("unknown poetry dependency group %q", name)}
			}
			consumed[name] = true
			group, _ := asTable(groupEntry)
			deps, _ := asTable(group["dependencies"])
			names := make([]string, 0, len(deps))
			for n := range deps {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				lines = append(lines, n+poetryVersionString(deps[n]))
			}
		}
	}

	if !info.hasProjectDepOptional && !info.hasPoetryDepGroup {
		for _, o := range options {
			if !consumed[o] {
				return nil, &ferrors.ConfigError{Reason: fmt.Sprintf("options group %q applied to a pyproject.toml with no group dialect", o)}
			}
		}
	}

	return lines, nil
}

// poetryVersionString renders a poetry dependency value (a bare version
// string, or a table carrying a "version" key) for concatenation
// directly after the name. A value already carrying one of poetry's own
// "^"/"~"/bare-equality-style operator prefixes is passed through
// unchanged; a bare version with no recognized prefix (e.g. plain
// "2.31.0") gets an explicit "==" prepended, since depspec.FromString
// has no separator between a name and an un-prefixed version and would
// otherwise consume the whole string as the name. A missing version
// yields "".
func poetryVersionString(v any) string {
	switch val := v.(type) {
	case string:
		return withOperatorPrefix(val)
	case map[string]any:
		if s, ok := val["version"].(string); ok {
			return withOperatorPrefix(s)
		}
	}
	return ""
}

func withOperatorPrefix(v string) string {
	if v == "" || depspec.HasOperatorPrefix(v) {
		return v
	}
	return "==" + v
}

// FromPyProjectString builds a ConstraintSet from pyproject.toml content
// already read into memory.
func FromPyProjectString(content string, options []string) (*ConstraintSet, error) {
	info, err := parsePyProjectInfo(content)
	if err != nil {
		return nil, err
	}
	lines, err := info.dependencies(options)
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
