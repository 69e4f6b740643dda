package pydeps

import (
	"fmt"
	"strings"
)

// Constraint is a single version bound, e.g. ">=2".
type Constraint struct {
	Op      string
	Version Version
	raw     string
}

// Specifier is a package name with zero or more version constraints,
// e.g. "requests>=2,<3". Constraints are conjunctive: all must hold.
type Specifier struct {
	Name        string // normalized per PEP 503 (lowercase, - for _ and .)
	Raw         string
	Constraints []Constraint
}

// constraint operators, longest first so ">=" is not read as ">".
var constraintOps = []string{"==", "!=", ">=", "<=", ">", "<"}

// NormalizeName lowercases a package name and folds the interchangeable
// separators, so Flask_SQLAlchemy and flask-sqlalchemy compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, ".", "-")
	return name
}

// ParseSpecifier parses one requirements.txt line into a Specifier.
func ParseSpecifier(line string) (Specifier, error) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return Specifier{}, fmt.Errorf("empty specifier")
	}

	// Find where the name ends: the first constraint operator character.
	nameEnd := len(raw)
	for i, r := range raw {
		if strings.ContainsRune("><=!", r) {
			nameEnd = i
			break
		}
	}

	name := strings.TrimSpace(raw[:nameEnd])
	// Extras ("requests[socks]") do not affect flat satisfaction.
	if idx := strings.Index(name, "["); idx >= 0 {
		name = name[:idx]
	}
	if name == "" {
		return Specifier{}, fmt.Errorf("specifier %q has no package name", raw)
	}

	spec := Specifier{Name: NormalizeName(name), Raw: raw}

	rest := strings.TrimSpace(raw[nameEnd:])
	if rest == "" {
		return spec, nil
	}

	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := parseConstraint(part)
		if err != nil {
			return Specifier{}, fmt.Errorf("specifier %q: %w", raw, err)
		}
		spec.Constraints = append(spec.Constraints, c)
	}
	return spec, nil
}

func parseConstraint(s string) (Constraint, error) {
	for _, op := range constraintOps {
		if strings.HasPrefix(s, op) {
			verStr := strings.TrimSpace(strings.TrimPrefix(s, op))
			ver := ParseVersion(verStr)
			if len(ver) == 0 {
				return Constraint{}, fmt.Errorf("constraint %q has no version", s)
			}
			return Constraint{Op: op, Version: ver, raw: s}, nil
		}
	}
	return Constraint{}, fmt.Errorf("constraint %q has no recognized operator", s)
}

// SatisfiedBy reports whether an installed version meets every constraint.
func (s Specifier) SatisfiedBy(installed Version) bool {
	for _, c := range s.Constraints {
		cmp := installed.Compare(c.Version)
		var ok bool
		switch c.Op {
		case "==":
			ok = cmp == 0
		case "!=":
			ok = cmp != 0
		case ">=":
			ok = cmp >= 0
		case "<=":
			ok = cmp <= 0
		case ">":
			ok = cmp > 0
		case "<":
			ok = cmp < 0
		}
		if !ok {
			return false
		}
	}
	return true
}

// String returns the original specifier text.
func (s Specifier) String() string { return s.Raw }
