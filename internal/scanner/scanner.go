// Package scanner implements the interpreter-scan engine: resolving
// interpreter inputs, invoking each to learn its site directories,
// walking those directories in parallel to materialize package records,
// and deduplicating the resulting entity graph under shared path
// handles. Per-interpreter subprocess calls and per-site directory
// walks both fan out through golang.org/x/sync/errgroup.
package scanner

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/flexatone/fetter/internal/marker"
	"github.com/flexatone/fetter/internal/pathshared"
	"github.com/flexatone/fetter/internal/pkgrecord"
)

// pySitePackagesScript prints the boolean ENABLE_USER_SITE value, one
// line per standard site directory, then one line for the user site
// directory.
const pySitePackagesScript = `import site;print(site.ENABLE_USER_SITE);print("\n".join(site.getsitepackages()));print(site.getusersitepackages())`

// Scan is the result of a filesystem scan across one or more resolved
// interpreters: two indexes (exe to sites, package to sites), keyed by
// exe path and package identity respectively, plus the inputs needed
// to correlate against the scan cache and the lazily-populated
// per-interpreter marker facts.
type Scan struct {
	ExeToSites     map[string][]*pathshared.Path
	PackageToSites map[string][]*pathshared.Path
	ExeFacts       map[string]marker.Facts
	ForceUsite     bool
	ExesHash       string

	packages map[string]pkgrecord.Package
}

// FromExes resolves exes (normalizing each, expanding the "*" wildcard
// sentinel to a host-wide discovery), then concurrently invokes every
// resolved interpreter to learn its site directories and concurrently
// enumerates packages in every distinct site directory.
func FromExes(ctx context.Context, exes []string, forceUsite bool) (*Scan, error) {
	hash := HashInputs(exes, forceUsite)

	var exesNorm []string
	for _, e := range exes {
		if e == "*" {
			exesNorm = append(exesNorm, DiscoverExes()...)
			continue
		}
		resolved, err := ResolveExe(e)
		if err != nil {
			continue // an exe that fails to resolve is dropped rather than aborting the whole scan
		}
		exesNorm = append(exesNorm, resolved)
	}

	exeToSites := make(map[string][]*pathshared.Path, len(exesNorm))
	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	for _, exe := range exesNorm {
		exe := exe
		g.Go(func() error {
			dirs := getSitePackageDirs(exe, forceUsite)
			mu.Lock()
			exeToSites[exe] = dirs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fromExeToSites(ctx, exeToSites, forceUsite, hash)
}

func fromExeToSites(ctx context.Context, exeToSites map[string][]*pathshared.Path, forceUsite bool, hash string) (*Scan, error) {
	uniqueSites := make(map[*pathshared.Path]bool)
	for _, sites := range exeToSites {
		for _, s := range sites {
			uniqueSites[s] = true
		}
	}
	siteList := make([]*pathshared.Path, 0, len(uniqueSites))
	for s := range uniqueSites {
		siteList = append(siteList, s)
	}

	siteToPackages := make(map[*pathshared.Path][]pkgrecord.Package, len(siteList))
	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	for _, site := range siteList {
		site := site
		g.Go(func() error {
			pkgs := getPackages(site.String())
			mu.Lock()
			siteToPackages[site] = pkgs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	packages := make(map[string]pkgrecord.Package)
	packageToSites := make(map[string][]*pathshared.Path)
	for site, pkgs := range siteToPackages {
		for _, p := range pkgs {
			id := p.Identity()
			packages[id] = p
			packageToSites[id] = append(packageToSites[id], site)
		}
	}

	return &Scan{
		ExeToSites:     exeToSites,
		PackageToSites: packageToSites,
		ExeFacts:       make(map[string]marker.Facts),
		ForceUsite:     forceUsite,
		ExesHash:       hash,
		packages:       packages,
	}, nil
}

// getSitePackageDirs invokes exe with the fixed site-packages script and
// interns each reported directory as a shared path handle, popping the
// user-site entry unless it was reported enabled or the caller forced
// its inclusion. A subprocess failure here is non-fatal at the scanner
// level: it yields zero sites.
func getSitePackageDirs(exe string, forceUsite bool) []*pathshared.Path {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, exe, "-S", "-c", pySitePackagesScript)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		logrus.WithField("exe", exe).WithError(err).Warn("interpreter site interrogation failed, contributing empty sites")
		return nil
	}

	var rawPaths []string
	usiteEnabled := false
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	i := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i == 0 {
			usiteEnabled = line == "True"
		} else {
			rawPaths = append(rawPaths, line)
		}
		i++
	}
	if !forceUsite && !usiteEnabled && len(rawPaths) > 0 {
		rawPaths = rawPaths[:len(rawPaths)-1]
	}

	paths := make([]*pathshared.Path, 0, len(rawPaths))
	for _, p := range rawPaths {
		if p == "" {
			continue
		}
		paths = append(paths, pathshared.Intern(p))
	}
	return paths
}

// getPackages enumerates siteDir's immediate children for metadata
// directories and builds a Package for each.
func getPackages(siteDir string) []pkgrecord.Package {
	entries, err := os.ReadDir(siteDir)
	if err != nil {
		logrus.WithField("site", siteDir).WithError(err).Warn("failed to enumerate site directory, contributing zero packages")
		return nil
	}
	var packages []pkgrecord.Package
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if pkg, ok := pkgrecord.FromMetadataDir(filepath.Join(siteDir, entry.Name())); ok {
			packages = append(packages, pkg)
		}
	}
	return packages
}

// Packages returns every discovered package, sorted by (key, version).
func (s *Scan) Packages() []pkgrecord.Package {
	out := make([]pkgrecord.Package, 0, len(s.packages))
	for _, p := range s.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return pkgrecord.Less(out[i], out[j]) })
	return out
}

// SitesFor returns the shared site-directory handles a package was
// observed in.
func (s *Scan) SitesFor(pkg pkgrecord.Package) []*pathshared.Path {
	return s.PackageToSites[pkg.Identity()]
}
