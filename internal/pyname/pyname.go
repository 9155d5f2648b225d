// Package pyname normalizes package names into a lookup key: lowercase
// plus hyphen-to-underscore folding. Constraint and package keys compare
// as "lowercase, hyphen/underscore-insensitive", so the fold direction
// only matters for display; underscore is used here so that rendered
// keys read the way PyPI's distribution metadata itself does.
package pyname

import "strings"

// Key lowercases name and folds hyphens to underscores.
func Key(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "_")
}
