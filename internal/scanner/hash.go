package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// HashInputs returns a stable, hex-encoded hash over the sorted sequence
// of original (pre-normalization) exe input paths plus the user-site
// force flag, used both to tag a Scan for cache correlation and as the
// cache's storage key.
func HashInputs(exes []string, forceUsite bool) string {
	sorted := append([]string(nil), exes...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, "\x00")))
	if forceUsite {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
