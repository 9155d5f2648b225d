// Package validate implements the validation engine: joining a frozen
// scan against a frozen constraint set under configurable subset/superset
// tolerance, classifying each package as matched, misdefined, or
// unrequired, and every never-matched constraint key as missing.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flexatone/fetter/internal/depspec"
	"github.com/flexatone/fetter/internal/manifest"
	"github.com/flexatone/fetter/internal/marker"
	"github.com/flexatone/fetter/internal/pathshared"
	"github.com/flexatone/fetter/internal/pkgrecord"
)

// Outcome classifies one validation Record.
type Outcome int

const (
	// Misdefined: the package matched a constraint key but failed its
	// version/URL clauses.
	Misdefined Outcome = iota
	// Unrequired: the package has no matching constraint and
	// permitSuperset is not set.
	Unrequired
	// Missing: a constraint key was never matched by any observed
	// package and permitSubset is not set.
	Missing
)

func (o Outcome) String() string {
	switch o {
	case Misdefined:
		return "misdefined"
	case Unrequired:
		return "unrequired"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Record is one classified validation outcome: a (package, spec, sites)
// triple where package or spec may be absent depending on Outcome.
type Record struct {
	Outcome Outcome
	Package *pkgrecord.Package
	Spec    *depspec.DepSpec
	Sites   []*pathshared.Path
}

// SitesLookup resolves the shared site-directory handles a package was
// observed in; satisfied by scanner.Scan.
type SitesLookup interface {
	SitesFor(pkg pkgrecord.Package) []*pathshared.Path
}

// Run joins packages (sorted by (key, version)) against constraints
// under permitSubset/permitSuperset tolerance. facts is the marker
// state of every interpreter the scan touched (scanner.Scan.ExeFacts,
// populated via PopulateFacts); a constraint key whose every pooled
// DepSpec carries a marker that evaluates false under every given
// state is treated the same as an absent key, per key. An empty facts
// slice restricts matching to unmarked DepSpecs only. Output is
// deterministic: records for matched/misdefined/unrequired packages
// come first in package sort order, followed by missing-constraint
// records in key sort order.
func Run(packages []pkgrecord.Package, sites SitesLookup, constraints *manifest.ConstraintSet, facts []marker.Facts, permitSubset, permitSuperset bool) ([]Record, error) {
	sorted := append([]pkgrecord.Package(nil), packages...)
	sort.Slice(sorted, func(i, j int) bool { return pkgrecord.Less(sorted[i], sorted[j]) })

	matched := make(map[string]bool)
	var records []Record

	for i := range sorted {
		pkg := sorted[i]
		spec, ok, err := constraints.Active(pkg.Key, facts)
		if err != nil {
			return nil, err
		}
		if ok {
			matched[pkg.Key] = true
			if !spec.ValidatePackage(pkg) {
				records = append(records, Record{
					Outcome: Misdefined,
					Package: &sorted[i],
					Spec:    spec,
					Sites:   sitesOrNil(sites, pkg),
				})
			}
			continue
		}
		if !permitSuperset {
			records = append(records, Record{
				Outcome: Unrequired,
				Package: &sorted[i],
				Sites:   sitesOrNil(sites, pkg),
			})
		}
	}

	if !permitSubset {
		for _, key := range constraints.Difference(matched) {
			spec, ok, err := constraints.Active(key, facts)
			if err != nil {
				return nil, err
			}
			if !ok {
				// every variant for this key evaluated inactive under
				// every given interpreter state: nothing to report missing.
				continue
			}
			records = append(records, Record{Outcome: Missing, Spec: spec})
		}
	}

	return records, nil
}

func sitesOrNil(lookup SitesLookup, pkg pkgrecord.Package) []*pathshared.Path {
	if lookup == nil {
		return nil
	}
	return lookup.SitesFor(pkg)
}

// Len reports the number of records.
func Len(records []Record) int {
	return len(records)
}

// Display renders records sorted by package (or spec) key, one
// column-aligned line per record, optionally including observed sites.
func Display(records []Record, includeSites bool) string {
	type row struct {
		key  string
		line string
	}
	rows := make([]row, 0, len(records))

	for _, r := range records {
		var name, key string
		switch {
		case r.Package != nil:
			name, key = r.Package.Name, r.Package.Key
		case r.Spec != nil:
			name, key = r.Spec.Name, r.Spec.Key
		}

		line := fmt.Sprintf("%-30s %-12s", name, r.Outcome.String())
		if r.Spec != nil {
			line += " " + r.Spec.Display()
		}
		if includeSites && len(r.Sites) > 0 {
			var paths []string
			for _, s := range r.Sites {
				paths = append(paths, s.Display())
			}
			line += " [" + strings.Join(paths, ", ") + "]"
		}
		rows = append(rows, row{key: key, line: line})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].key < rows[j].key })

	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = r.line
	}
	return strings.Join(lines, "\n")
}
