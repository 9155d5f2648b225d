// Package pkgrecord implements the observed-installation Package record:
// derived from a site directory's <name>-<version>.dist-info (or
// .egg-info) metadata directory, optionally carrying a DirectURL read
// from a sibling direct_url.json.
package pkgrecord

import (
	"path/filepath"
	"strings"

	"github.com/flexatone/fetter/internal/durl"
	"github.com/flexatone/fetter/internal/pyname"
	"github.com/flexatone/fetter/internal/version"
)

// Package is an immutable, observed installation: a name/version pair
// discovered on disk, with optional provenance.
type Package struct {
	Name      string // original casing
	Key       string // normalized lookup key
	Version   version.Version
	DirectURL *durl.DirectURL
}

var metadataSuffixes = []string{".dist-info", ".egg-info"}

// FromDirName parses a package record from a metadata directory's base
// name, e.g. "Requests-2.31.0.dist-info". Returns false if dirName does
// not match the expected "<name>-<version>.<suffix>" shape.
func FromDirName(dirName string) (Package, bool) {
	var base string
	matched := false
	for _, suffix := range metadataSuffixes {
		if strings.HasSuffix(dirName, suffix) {
			base = strings.TrimSuffix(dirName, suffix)
			matched = true
			break
		}
	}
	if !matched {
		return Package{}, false
	}

	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return Package{}, false
	}
	name, versionStr := base[:idx], base[idx+1:]
	if name == "" || versionStr == "" {
		return Package{}, false
	}

	return Package{
		Name:    name,
		Key:     pyname.Key(name),
		Version: version.Parse(versionStr),
	}, true
}

// FromMetadataDir builds a Package from a site directory's metadata
// subdirectory, attaching a direct_url.json sibling if present.
func FromMetadataDir(path string) (Package, bool) {
	p, ok := FromDirName(filepath.Base(path))
	if !ok {
		return Package{}, false
	}
	durlPath := filepath.Join(path, "direct_url.json")
	if d, err := durl.FromFile(durlPath); err == nil {
		p.DirectURL = d
	}
	return p, true
}

// New constructs a Package directly, for in-memory synthesis (testing,
// manifest-derived synthetic packages).
func New(name string, v version.Version, d *durl.DirectURL) Package {
	return Package{Name: name, Key: pyname.Key(name), Version: v, DirectURL: d}
}

// Identity returns the (key, version, direct-URL) string identity used
// to deduplicate Packages across indexes built from multiple
// interpreters.
func (p Package) Identity() string {
	id := p.Key + "@" + p.Version.String()
	if p.DirectURL != nil {
		id += "@" + p.DirectURL.URL
	}
	return id
}

// String renders "name==version" for display.
func (p Package) String() string {
	return p.Name + "==" + p.Version.String()
}

// Less orders packages by (key, version) so that sorted output is
// stable.
func Less(a, b Package) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return version.Compare(a.Version, b.Version) < 0
}
