package pydeps

import (
	"strconv"
	"strings"
)

// Version is the release segment of a Python package version, e.g. 2.31.0.
// Only dotted numeric components are compared; epochs and pre-release
// markers are outside the flat-satisfaction scope of this tool.
type Version []int

// ParseVersion extracts the numeric release segment from a version string.
// A component with a non-numeric suffix ("0b1", "3.post2") contributes its
// leading digits; parsing stops at the first component with none.
func ParseVersion(s string) Version {
	var v Version
	for _, part := range strings.Split(strings.TrimSpace(s), ".") {
		digits := part
		for i, r := range part {
			if r < '0' || r > '9' {
				digits = part[:i]
				break
			}
		}
		if digits == "" {
			break
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			break
		}
		v = append(v, n)
	}
	return v
}

// Compare returns -1, 0 or 1 ordering v against other. Missing components
// compare as zero, so 2.0 == 2.0.0.
func (v Version) Compare(other Version) int {
	n := len(v)
	if len(other) > n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		a, b := 0, 0
		if i < len(v) {
			a = v[i]
		}
		if i < len(other) {
			b = other[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String renders the version back to dotted form.
func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}
