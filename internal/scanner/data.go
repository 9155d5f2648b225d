package scanner

import (
	"sort"

	"github.com/flexatone/fetter/internal/marker"
	"github.com/flexatone/fetter/internal/pathshared"
	"github.com/flexatone/fetter/internal/pkgrecord"
)

// Data is the flattened, sort-stable representation of a Scan used for
// persistent-cache serialization. Both slices are sorted by key so that
// two scans of the same inputs serialize byte-identically.
type Data struct {
	ExeToSites     []ExeSitesEntry     `json:"exe_to_sites"`
	PackageToSites []PackageSitesEntry `json:"package_to_sites"`
	ForceUsite     bool                `json:"force_usite"`
	ExesHash       string              `json:"exes_hash"`
}

// ExeSitesEntry is one flattened exe-to-sites mapping.
type ExeSitesEntry struct {
	Exe   string   `json:"exe"`
	Sites []string `json:"sites"`
}

// PackageSitesEntry is one flattened package-to-sites mapping.
type PackageSitesEntry struct {
	Package pkgrecord.Package `json:"package"`
	Sites   []string          `json:"sites"`
}

// ToData flattens s into its sort-stable serialization form.
func (s *Scan) ToData() Data {
	exeEntries := make([]ExeSitesEntry, 0, len(s.ExeToSites))
	for exe, sites := range s.ExeToSites {
		exeEntries = append(exeEntries, ExeSitesEntry{Exe: exe, Sites: pathStrings(sites)})
	}
	sort.Slice(exeEntries, func(i, j int) bool { return exeEntries[i].Exe < exeEntries[j].Exe })

	pkgEntries := make([]PackageSitesEntry, 0, len(s.packages))
	for id, pkg := range s.packages {
		sites := pathStrings(s.PackageToSites[id])
		sort.Strings(sites)
		pkgEntries = append(pkgEntries, PackageSitesEntry{Package: pkg, Sites: sites})
	}
	sort.Slice(pkgEntries, func(i, j int) bool {
		a, b := pkgEntries[i].Package, pkgEntries[j].Package
		if pkgrecord.Less(a, b) != pkgrecord.Less(b, a) {
			return pkgrecord.Less(a, b)
		}
		return a.Identity() < b.Identity()
	})

	return Data{
		ExeToSites:     exeEntries,
		PackageToSites: pkgEntries,
		ForceUsite:     s.ForceUsite,
		ExesHash:       s.ExesHash,
	}
}

// FromData reconstructs a Scan from its flattened form, interning every
// path so that dedup-by-pointer-identity is restored across both
// indexes, matching the invariant that a site referenced by multiple
// interpreters is one handle.
func FromData(d Data) *Scan {
	exeToSites := make(map[string][]*pathshared.Path, len(d.ExeToSites))
	for _, e := range d.ExeToSites {
		exeToSites[e.Exe] = internAll(e.Sites)
	}

	packages := make(map[string]pkgrecord.Package, len(d.PackageToSites))
	packageToSites := make(map[string][]*pathshared.Path, len(d.PackageToSites))
	for _, p := range d.PackageToSites {
		id := p.Package.Identity()
		packages[id] = p.Package
		packageToSites[id] = internAll(p.Sites)
	}

	return &Scan{
		ExeToSites:     exeToSites,
		PackageToSites: packageToSites,
		ExeFacts:       make(map[string]marker.Facts),
		ForceUsite:     d.ForceUsite,
		ExesHash:       d.ExesHash,
		packages:       packages,
	}
}

func pathStrings(paths []*pathshared.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

func internAll(raws []string) []*pathshared.Path {
	out := make([]*pathshared.Path, len(raws))
	for i, r := range raws {
		out[i] = pathshared.Intern(r)
	}
	return out
}
