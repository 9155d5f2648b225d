// Package durl implements the direct-URL provenance record attached to
// an installed package: https://packaging.python.org/en/latest/specifications/direct-url/
package durl

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/flexatone/fetter/internal/ferrors"
)

// VCSInfo describes the version-control provenance of a direct install.
type VCSInfo struct {
	CommitID         string `json:"commit_id"`
	VCS              string `json:"vcs"`
	RequestedRevision string `json:"requested_revision,omitempty"`
}

// DirectURL is the per-package install-provenance record, deserialized
// from a direct_url.json file sitting inside a dist-info directory.
type DirectURL struct {
	URL     string   `json:"url"`
	VCSInfo *VCSInfo `json:"vcs_info,omitempty"`
}

// FromFile reads and parses a direct_url.json file.
func FromFile(path string) (*DirectURL, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ferrors.IOError{Context: path, Err: err}
	}
	var d DirectURL
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, &ferrors.ParseError{Context: path, Err: err}
	}
	return &d, nil
}

// StripUserinfo removes the userinfo ("user@" or "user:password@", with
// no slash before the "@") from a URL's authority component: some DirectURL records embed a
// userinfo component that a DepSpec's URL omits (or vice versa), so
// comparisons and rendering always happen after stripping it from both
// sides.
func StripUserinfo(u string) string {
	protoIdx := strings.Index(u, "://")
	if protoIdx < 0 {
		return u
	}
	start := protoIdx + 3
	at := strings.IndexByte(u[start:], '@')
	if at < 0 {
		return u
	}
	end := start + at + 1
	if strings.ContainsRune(u[start:end], '/') {
		// the "@" is past the authority component (e.g. in the path), not userinfo
		return u
	}
	return u[:start] + u[end:]
}

// Validate reports whether url (taken from a DepSpec) matches this
// DirectURL: reconstruct "<vcs>+<stripped-url>@<revision-or-commit>" and
// compare string-wise after stripping userinfo from both sides.
func (d *DirectURL) Validate(url string) bool {
	depURL := StripUserinfo(url)
	selfURL := StripUserinfo(d.URL)

	if d.VCSInfo == nil {
		return selfURL == depURL
	}

	if d.VCSInfo.RequestedRevision != "" {
		if fmt.Sprintf("%s+%s@%s", d.VCSInfo.VCS, selfURL, d.VCSInfo.RequestedRevision) == depURL {
			return true
		}
	}
	return fmt.Sprintf("%s+%s@%s", d.VCSInfo.VCS, selfURL, d.VCSInfo.CommitID) == depURL
}
