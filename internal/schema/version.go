// Package schema models the database schema version: a semantic version
// triple recorded in the database (and, for older releases, a legacy
// integer in PRAGMA user_version), compared against the target version
// bundled with the binary to decide whether migration is needed.
package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a semantic (major, minor, patch) schema version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// String formats the version as "1.2.3".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 ordering v against other.
func (v Version) Compare(other Version) int {
	a := [3]int{v.Major, v.Minor, v.Patch}
	b := [3]int{other.Major, other.Minor, other.Patch}
	for i := range a {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}

// Less reports whether v orders strictly before other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

// IsZero reports whether v is the zero version 0.0.0.
func (v Version) IsZero() bool { return v == Version{} }

var semverRe = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)$`)

// Parse parses "1.2.3" (an optional leading "v" is tolerated).
func Parse(s string) (Version, error) {
	m := semverRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Version{}, fmt.Errorf("not a semantic version: %q", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{major, minor, patch}, nil
}

// legacyVersions maps integer schema versions written by known historical
// releases to their semantic equivalents. Anything not listed falls back to
// the fixed decomposition in FromLegacyInt.
var legacyVersions = map[int]Version{
	1:     {1, 0, 0},
	2:     {1, 1, 0},
	10000: {1, 0, 0},
	10100: {1, 1, 0},
	10200: {1, 2, 0},
}

// FromLegacyInt converts a legacy integer version (as stored in
// PRAGMA user_version by older releases) to a semantic version:
// major = n/10000, minor = (n/100)%100, patch = n%100, with an explicit
// lookup table for known historical values.
func FromLegacyInt(n int) Version {
	if v, ok := legacyVersions[n]; ok {
		return v
	}
	return Version{n / 10000, (n / 100) % 100, n % 100}
}

// LegacyInt is the inverse of FromLegacyInt. Known historical versions map
// back to their original integers; everything else uses the decomposition.
func (v Version) LegacyInt() int {
	for n, lv := range legacyVersions {
		if lv == v && n >= 10000 {
			return n
		}
	}
	return v.Major*10000 + v.Minor*100 + v.Patch
}

// Coerce converts an arbitrary stored value (semver string, legacy integer,
// integer-as-string) to a Version. Never fails: unparsable input returns
// fallback.
func Coerce(value any, fallback Version) Version {
	switch t := value.(type) {
	case Version:
		return t
	case int:
		if t > 0 {
			return FromLegacyInt(t)
		}
	case int64:
		if t > 0 {
			return FromLegacyInt(int(t))
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return fallback
		}
		if v, err := Parse(s); err == nil {
			return v
		}
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return FromLegacyInt(n)
		}
	}
	return fallback
}
