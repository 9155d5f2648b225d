// Package pathshared provides an interned, hashable path handle so that
// two indexes built from the same scan (interpreter->sites and
// package->sites) can share one handle per physical directory instead of
// each holding its own copy. Go's garbage collector makes explicit
// refcounting unnecessary - the only behaviour that actually matters
// here is that equal paths intern to the same *Path pointer.
package pathshared

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Path is an interned, comparable handle over an absolute filesystem
// path. Two Paths built from the same string via Intern are == as Go
// pointers and compare equal as map keys.
type Path struct {
	raw string
}

var (
	mu      sync.Mutex
	interns = map[string]*Path{}
)

// Intern returns the shared *Path for raw, creating it on first use. The
// same string always yields the same pointer, so *Path is safe to use as
// a map key when pointer identity is wanted, and Path itself (by value)
// compares equal via == because raw is compared.
func Intern(raw string) *Path {
	mu.Lock()
	defer mu.Unlock()
	if p, ok := interns[raw]; ok {
		return p
	}
	p := &Path{raw: raw}
	interns[raw] = p
	return p
}

// String returns the raw path.
func (p *Path) String() string {
	return p.raw
}

// Display substitutes the user's home directory prefix with "~".
func (p *Path) Display() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p.raw
	}
	if p.raw == home {
		return "~"
	}
	if strings.HasPrefix(p.raw, home+string(filepath.Separator)) {
		return "~" + p.raw[len(home):]
	}
	return p.raw
}

// MarshalJSON serializes a Path as its raw string. UnmarshalJSON only
// sets the receiver's raw string; it does not consult the intern table.
func (p *Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.raw)
}

func (p *Path) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	p.raw = s
	return nil
}

// Equal reports whether two handles denote the same path, independent of
// whether they were interned through the same call site.
func (p *Path) Equal(other *Path) bool {
	if p == other {
		return true
	}
	if p == nil || other == nil {
		return false
	}
	return p.raw == other.raw
}
