// Package version implements the free-text-token version algebra: a
// version is an ordered sequence of dot-separated parts, each either a
// non-negative integer or an opaque text token (including the literal "*"
// wildcard). Unlike PEP 440's regex-anchored grammar, construction never
// fails here - any token that does not parse as an integer is kept as
// text, a permissive split-on-dot parser rather than a strict version
// grammar.
package version

import (
	"encoding/json"
	"strconv"
	"strings"
)

// partKind distinguishes a numeric version component from a text one.
type partKind uint8

const (
	kindNumber partKind = iota
	kindText
)

type part struct {
	kind partKind
	num  uint64
	text string
}

// Version is an immutable, ordered sequence of version parts.
type Version struct {
	parts []part
}

// Parse splits input on "." and classifies each token as a number or
// opaque text. Construction never fails.
func Parse(input string) Version {
	tokens := strings.Split(input, ".")
	parts := make([]part, len(tokens))
	for i, tok := range tokens {
		if n, err := strconv.ParseUint(tok, 10, 64); err == nil {
			parts[i] = part{kind: kindNumber, num: n}
		} else {
			parts[i] = part{kind: kindText, text: tok}
		}
	}
	return Version{parts: parts}
}

// String returns the dot-joined canonical representation.
func (v Version) String() string {
	if len(v.parts) == 0 {
		return ""
	}
	tokens := make([]string, len(v.parts))
	for i, p := range v.parts {
		tokens[i] = p.string()
	}
	return strings.Join(tokens, ".")
}

func (p part) string() string {
	if p.kind == kindNumber {
		return strconv.FormatUint(p.num, 10)
	}
	return p.text
}

func (p part) isWildcard() bool {
	return p.kind == kindText && p.text == "*"
}

// partAt returns the part at position i, zero-padding with Number(0) past
// the end of the sequence - the zero-padding equivalence of invariant 3.
func (v Version) partAt(i int) part {
	if i < len(v.parts) {
		return v.parts[i]
	}
	return part{kind: kindNumber, num: 0}
}

// Compare returns -1, 0, or 1 for a<b, a==b, a>b. Ordering is computed
// left-to-right and short-circuits on the first non-equal position; a
// wildcard "*" at either side of a position equals the other side there;
// a numeric part outranks any non-wildcard text part at the same
// position.
func Compare(a, b Version) int {
	max := len(a.parts)
	if len(b.parts) > max {
		max = len(b.parts)
	}
	for i := 0; i < max; i++ {
		pa, pb := a.partAt(i), b.partAt(i)
		if pa.isWildcard() || pb.isWildcard() {
			continue
		}
		switch {
		case pa.kind == kindNumber && pb.kind == kindNumber:
			switch {
			case pa.num < pb.num:
				return -1
			case pa.num > pb.num:
				return 1
			}
		case pa.kind == kindText && pb.kind == kindText:
			if c := strings.Compare(pa.text, pb.text); c != 0 {
				if c < 0 {
					return -1
				}
				return 1
			}
		case pa.kind == kindNumber && pb.kind == kindText:
			return 1
		case pa.kind == kindText && pb.kind == kindNumber:
			return -1
		}
	}
	return 0
}

// Equal reports whether a and b compare equal under Compare.
func (v Version) Equal(other Version) bool {
	return Compare(v, other) == 0
}

// GreaterThan reports whether v sorts after other.
func (v Version) GreaterThan(other Version) bool {
	return Compare(v, other) == 1
}

// LessThan reports whether v sorts before other.
func (v Version) LessThan(other Version) bool {
	return Compare(v, other) == -1
}

// IsCompatible implements the "~=" compatible-release test: the leading
// numeric component must match exactly (the caller is expected to also
// check v >= self via Compare, as DepSpec.ValidateVersion does).
func (v Version) IsCompatible(other Version) bool {
	if len(v.parts) == 0 || len(other.parts) == 0 {
		return false
	}
	a, b := v.parts[0], other.parts[0]
	return a.kind == kindNumber && b.kind == kindNumber && a.num == b.num
}

// IsArbitraryEqual implements the "===" operator: exact string equality,
// with no zero-padding or wildcard tolerance.
func (v Version) IsArbitraryEqual(other Version) bool {
	return v.String() == other.String()
}

// IsCaret reports whether other satisfies the caret range anchored at v:
// other >= v and other < the upper bound derived by incrementing the
// first non-zero leading numeric component (or the sole numeric
// component of a single-part version) and truncating everything after
// it. Mirrors Poetry's caret-requirement semantics.
func (v Version) IsCaret(other Version) bool {
	if Compare(other, v) == -1 {
		return false
	}
	return Compare(other, v.caretUpperBound()) == -1
}

func (v Version) caretUpperBound() Version {
	ub := make([]part, len(v.parts))
	copy(ub, v.parts)
	numericCount := 0
	for i := range ub {
		if ub[i].kind != kindNumber {
			continue
		}
		numericCount++
		if ub[i].num != 0 || (numericCount == 1 && len(ub) == 1) {
			ub[i].num++
			ub = ub[:i+1]
			return Version{parts: ub}
		}
	}
	return Version{parts: ub}
}

// IsTilde reports whether other satisfies the tilde range anchored at v:
// other >= v and other < the upper bound derived by incrementing the
// second numeric component when present, else the first (for a
// single-part version).
func (v Version) IsTilde(other Version) bool {
	if Compare(other, v) == -1 {
		return false
	}
	return Compare(other, v.tildeUpperBound()) == -1
}

func (v Version) tildeUpperBound() Version {
	ub := make([]part, len(v.parts))
	copy(ub, v.parts)
	numericCount := 0
	for i := range ub {
		if ub[i].kind != kindNumber {
			continue
		}
		numericCount++
		if numericCount == 2 || (numericCount == 1 && len(ub) == 1) {
			ub[i].num++
			ub = ub[:i+1]
			return Version{parts: ub}
		}
	}
	return Version{parts: ub}
}

// Unspecified reports whether v carries no parts at all (the zero
// value).
func (v Version) Unspecified() bool {
	return len(v.parts) == 0
}

func (v *Version) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*v = Parse(s)
	return nil
}

func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}
