// Package manifest implements the constraint set and the manifest
// ingestion pipeline that normalizes requirements files, lock files
// in three dialects, pyproject.toml's two overlapping dependency
// schemas, and remote git/HTTP sources into that constraint set. A
// key's constraints pool rather than replace, so ingesting the same
// name twice keeps both occurrences available for marker-based
// selection instead of erroring or discarding one.
package manifest

import (
	"sort"
	"strings"

	"github.com/flexatone/fetter/internal/depspec"
	"github.com/flexatone/fetter/internal/marker"
)

// ConstraintSet is the in-memory indexed collection of DepSpecs sourced
// from one ingest call: key to a pool of every DepSpec seen for that
// key. A key legitimately collects more than one DepSpec when
// marker-guarded variants target different interpreters (one pinning a
// version on Windows, another on Linux, say); collapsing the pool to a
// single eagerly-merged spec at ingest time would conflate those
// variants into one unsatisfiable constraint. The pool is merged down
// to a single DepSpec only once a marker state is known to filter it
// by, in Active. Built incrementally during ingestion, then treated as
// frozen once validation begins.
type ConstraintSet struct {
	specs map[string][]*depspec.DepSpec
}

// NewConstraintSet returns an empty set.
func NewConstraintSet() *ConstraintSet {
	return &ConstraintSet{specs: make(map[string][]*depspec.DepSpec)}
}

// Insert adds d to key's pool. Never errors; retained to mirror
// InsertAll's signature and to leave room for future validation.
func (c *ConstraintSet) Insert(d *depspec.DepSpec) error {
	c.specs[d.Key] = append(c.specs[d.Key], d)
	return nil
}

// InsertAll inserts every spec in order, stopping at the first error.
func (c *ConstraintSet) InsertAll(specs []*depspec.DepSpec) error {
	for _, d := range specs {
		if err := c.Insert(d); err != nil {
			return err
		}
	}
	return nil
}

// Get returns key's pool merged via depspec.Merge, ignoring markers.
// Used for display and export, where no interpreter state is
// available to filter by.
func (c *ConstraintSet) Get(key string) (*depspec.DepSpec, bool) {
	pool, ok := c.specs[key]
	if !ok || len(pool) == 0 {
		return nil, false
	}
	merged, err := depspec.Merge(pool)
	if err != nil {
		return nil, false
	}
	return merged, true
}

// Active returns key's pool filtered down to the variants active under
// at least one of facts (an unmarked variant is always active; with an
// empty facts list only unmarked variants are active), then merged via
// depspec.Merge. ok is false when key is absent or every variant's
// marker evaluates false under every given state.
func (c *ConstraintSet) Active(key string, facts []marker.Facts) (*depspec.DepSpec, bool, error) {
	pool, ok := c.specs[key]
	if !ok || len(pool) == 0 {
		return nil, false, nil
	}

	var active []*depspec.DepSpec
	for _, d := range pool {
		if d.Marker == "" {
			active = append(active, d)
			continue
		}
		for _, f := range facts {
			isActive, err := d.Active(f)
			if err != nil {
				return nil, false, err
			}
			if isActive {
				active = append(active, d)
				break
			}
		}
	}
	if len(active) == 0 {
		return nil, false, nil
	}

	merged, err := depspec.Merge(active)
	if err != nil {
		return nil, false, err
	}
	return merged, true, nil
}

// Len returns the number of distinct keys in the set.
func (c *ConstraintSet) Len() int {
	return len(c.specs)
}

// Keys returns every key, sorted case-insensitively.
func (c *ConstraintSet) Keys() []string {
	keys := make([]string, 0, len(c.specs))
	for k := range c.specs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})
	return keys
}

// Difference returns the sorted list of keys in this set that are not
// present in observed, for missing-constraint reporting.
func (c *ConstraintSet) Difference(observed map[string]bool) []string {
	var missing []string
	for k := range c.specs {
		if !observed[k] {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}
