// Package depspec implements the dependency-specifier grammar: a bare
// package name, optionally decorated with extras, a comma-separated list
// of "<operator><version>" clauses, an "@ <url>" source pin, and a
// trailing "; <marker>" environment guard — or, in place of a name, a
// bare URL to a wheel artifact. The marker grammar (package marker) and
// version algebra (package version) used here are this system's own,
// generalized beyond PEP 440/508's narrower grammars.
package depspec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flexatone/fetter/internal/durl"
	"github.com/flexatone/fetter/internal/ferrors"
	"github.com/flexatone/fetter/internal/marker"
	"github.com/flexatone/fetter/internal/pkgrecord"
	"github.com/flexatone/fetter/internal/pyname"
	"github.com/flexatone/fetter/internal/version"
)

// operators recognized in a version clause, ordered longest-match-first
// so that "===" is never mistaken for a truncated "==".
var operators = []string{"===", "<=", ">=", "~=", "==", "!=", "<", ">", "^", "~"}

// DepSpec is a single dependency constraint as it appears in a manifest
// or lock file: a name (or, for a bare wheel-URL line, a name derived
// from the artifact filename), zero or more version clauses, an optional
// source URL, and an optional environment marker.
type DepSpec struct {
	Name      string
	Key       string
	Extras    []string
	Operators []string
	Versions  []version.Version
	URL       string
	Marker    string
}

func isNameStartRune(r rune, _ int) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '.'
}

func isNameRune(r rune, _ int) bool {
	return isNameStartRune(r, 0) || r == '-'
}

func isVersionRune(r rune, _ int) bool {
	return r != ',' && r != ';' && r != ' ' && r != '\t' && r != eof
}

func isURLRune(r rune, _ int) bool {
	return r != ';' && r != eof
}

// FromString parses a single dependency-specifier line.
func FromString(line string) (*DepSpec, error) {
	s := &scanner{s: strings.TrimSpace(line)}
	d := &DepSpec{}

	s.skipWhitespace()
	name := s.expectFunc(isNameRune)
	if name != "" && s.peek("://") {
		// what looked like a name was actually a URL scheme (e.g. "file",
		// "https"): this whole line is a bare URL, not a named clause.
		s.pos -= len(name)
		name = ""
	}

	if name == "" {
		// No leading name: the entire clause (up to an optional marker)
		// is a bare URL, typically to a wheel artifact.
		s.skipWhitespace()
		url := strings.TrimSpace(s.expectFunc(isURLRune))
		if url == "" {
			return nil, &ferrors.ParseError{Context: "depspec", Err: fmt.Errorf("empty dependency specifier")}
		}
		d.URL = url
	} else {
		d.Name = name
		s.skipWhitespace()

		if s.peek("[") {
			s.next()
			for {
				s.skipWhitespace()
				extra := s.expectFunc(isNameRune)
				if extra != "" {
					d.Extras = append(d.Extras, extra)
				}
				s.skipWhitespace()
				if s.peek(",") {
					s.next()
					continue
				}
				break
			}
			s.skipWhitespace()
			s.expect("]")
			s.skipWhitespace()
		}

		switch {
		case s.peek("@"):
			s.next()
			s.skipWhitespace()
			url := strings.TrimSpace(s.expectFunc(isURLRune))
			d.URL = url
		case s.peekOperator():
			for {
				s.skipWhitespace()
				op := s.expect(operators...)
				if op == "" {
					break
				}
				s.skipWhitespace()
				verStr := strings.TrimSpace(s.expectFunc(isVersionRune))
				if verStr == "" {
					return nil, &ferrors.ParseError{Context: "depspec", Err: fmt.Errorf("missing version after operator %q", op)}
				}
				d.Operators = append(d.Operators, op)
				d.Versions = append(d.Versions, version.Parse(verStr))
				s.skipWhitespace()
				if s.peek(",") {
					s.next()
					continue
				}
				break
			}
		}
	}

	s.skipWhitespace()
	if s.peek(";") {
		s.next()
		d.Marker = strings.TrimSpace(s.rest())
	}

	if d.URL != "" && strings.HasSuffix(d.URL, ".whl") {
		wheelName, wheelVersion, err := parseWheelName(wheelFilename(d.URL))
		if err != nil {
			return nil, err
		}
		if d.Name == "" {
			d.Name = wheelName
		} else if pyname.Key(d.Name) != pyname.Key(wheelName) {
			return nil, &ferrors.ParseError{Context: "depspec", Err: fmt.Errorf("wheel URL name %q does not match declared name %q", wheelName, d.Name)}
		}
		if len(d.Operators) == 0 {
			d.Operators = []string{"=="}
			d.Versions = []version.Version{wheelVersion}
		}
	}

	if d.Name == "" {
		return nil, &ferrors.ParseError{Context: "depspec", Err: fmt.Errorf("dependency specifier has no resolvable name")}
	}
	d.Key = pyname.Key(d.Name)

	return d, nil
}

func (s *scanner) peekOperator() bool {
	return s.peek(operators...)
}

// HasOperatorPrefix reports whether s begins with one of the version
// clause's recognized operator tokens, for callers (manifest dialects
// that concatenate a name and a bare version value) that need to know
// whether a version string still needs an explicit operator prefixed
// before being handed to FromString.
func HasOperatorPrefix(s string) bool {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return true
		}
	}
	return false
}

func wheelFilename(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

// parseWheelName extracts the distribution name and version from a wheel
// filename ("<name>-<version>(-<build>)?-<pytag>-<abitag>-<platform>.whl"),
// ignoring every field after the two leading ones.
func parseWheelName(filename string) (name string, ver version.Version, err error) {
	trimmed := strings.TrimSuffix(filename, ".whl")
	if trimmed == filename {
		return "", version.Version{}, &ferrors.ParseError{Context: "depspec", Err: fmt.Errorf("not a wheel filename: %q", filename)}
	}
	parts := strings.Split(trimmed, "-")
	if len(parts) < 5 || len(parts) > 6 {
		return "", version.Version{}, &ferrors.ParseError{Context: "depspec", Err: fmt.Errorf("malformed wheel filename: %q", filename)}
	}
	return parts[0], version.Parse(parts[1]), nil
}

// ValidateVersion reports whether candidate satisfies every (operator,
// version) clause in d.
func (d *DepSpec) ValidateVersion(candidate version.Version) bool {
	for i, op := range d.Operators {
		clause := d.Versions[i]
		var ok bool
		switch op {
		case "<":
			ok = candidate.LessThan(clause)
		case "<=":
			ok = candidate.LessThan(clause) || candidate.Equal(clause)
		case "==":
			ok = candidate.Equal(clause)
		case "!=":
			ok = !candidate.Equal(clause)
		case ">":
			ok = candidate.GreaterThan(clause)
		case ">=":
			ok = candidate.GreaterThan(clause) || candidate.Equal(clause)
		case "~=":
			ok = candidate.IsCompatible(clause) && (candidate.GreaterThan(clause) || candidate.Equal(clause))
		case "===":
			ok = candidate.IsArbitraryEqual(clause)
		case "^":
			ok = clause.IsCaret(candidate)
		case "~":
			ok = clause.IsTilde(candidate)
		}
		if !ok {
			return false
		}
	}
	return true
}

// ValidateURL reports whether pkg's observed provenance (if any) matches
// d's source URL. A DepSpec with no URL is satisfied by any provenance.
func (d *DepSpec) ValidateURL(pkg pkgrecord.Package) bool {
	if d.URL == "" {
		return true
	}
	if pkg.DirectURL == nil {
		return false
	}
	return pkg.DirectURL.Validate(d.URL)
}

// ValidatePackage reports whether pkg fully satisfies d: matching key,
// every version clause, and (if present) source URL.
func (d *DepSpec) ValidatePackage(pkg pkgrecord.Package) bool {
	return d.Key == pkg.Key && d.ValidateVersion(pkg.Version) && d.ValidateURL(pkg)
}

// Active reports whether d's marker (if any) is satisfied under facts.
func (d *DepSpec) Active(facts marker.Facts) (bool, error) {
	if d.Marker == "" {
		return true, nil
	}
	return marker.Evaluate(d.Marker, facts)
}

// FromPackage synthesizes a single-clause DepSpec pinning pkg's observed
// version with the given operator (typically "==" or "~=").
func FromPackage(pkg pkgrecord.Package, op string) *DepSpec {
	return &DepSpec{
		Name:      pkg.Name,
		Key:       pkg.Key,
		Operators: []string{op},
		Versions:  []version.Version{pkg.Version},
	}
}

// Merge combines specs sharing the same key into one DepSpec whose
// version clauses are the concatenation (intersection) of all inputs.
// Merge fails if specs name different keys: a merge is only ever
// reconciling multiple constraints on the same dependency.
func Merge(specs []*DepSpec) (*DepSpec, error) {
	if len(specs) == 0 {
		return nil, &ferrors.InternalError{Reason: "Merge called with no specs"}
	}
	out := &DepSpec{Name: specs[0].Name, Key: specs[0].Key}
	for _, s := range specs {
		if s.Key != out.Key {
			return nil, &ferrors.ParseError{Context: "depspec", Err: fmt.Errorf("unreconcilable specifiers: %q vs %q", out.Key, s.Key)}
		}
		out.Operators = append(out.Operators, s.Operators...)
		out.Versions = append(out.Versions, s.Versions...)
		for _, e := range s.Extras {
			out.Extras = append(out.Extras, e)
		}
		if out.URL == "" {
			out.URL = s.URL
		}
		if out.Marker == "" {
			out.Marker = s.Marker
		}
	}
	sort.Strings(out.Extras)
	return out, nil
}

// Display renders d the way a manifest export line would:
// "name(op1ver1,op2ver2,…)" when version clauses are present, "name @ url"
// (with any URL userinfo stripped) when only a source URL is pinned, or
// a bare "name" otherwise.
func (d *DepSpec) Display() string {
	if len(d.Operators) > 0 {
		var clauses []string
		for i, op := range d.Operators {
			clauses = append(clauses, op+d.Versions[i].String())
		}
		return fmt.Sprintf("%s(%s)", d.Name, strings.Join(clauses, ","))
	}
	if d.URL != "" {
		return fmt.Sprintf("%s @ %s", d.Name, durl.StripUserinfo(d.URL))
	}
	return d.Name
}
