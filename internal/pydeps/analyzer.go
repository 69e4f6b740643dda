package pydeps

import (
	"sort"
	"strings"
)

// Analyze scans Python source text for top-level import statements and
// returns the sorted set of external (non-stdlib) root module names. An
// empty result means the script declares no external dependencies.
//
// This is a textual heuristic, not a parser: only unindented
// `import X[, Y]` and `from X import ...` forms are recognized. Dynamic
// imports (importlib, __import__) are a known, documented blind spot.
func Analyze(source string) []string {
	found := make(map[string]struct{})

	for _, line := range strings.Split(source, "\n") {
		// Indented statements are not top-level.
		if line != strings.TrimLeft(line, " \t") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "import "):
			for _, mod := range strings.Split(line[len("import "):], ",") {
				if root := rootModule(mod); root != "" && !IsStdlib(root) {
					found[root] = struct{}{}
				}
			}
		case strings.HasPrefix(line, "from "):
			fields := strings.Fields(line)
			if len(fields) >= 4 && fields[2] == "import" {
				if root := rootModule(fields[1]); root != "" && !IsStdlib(root) {
					found[root] = struct{}{}
				}
			}
		}
	}

	out := make([]string, 0, len(found))
	for name := range found {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// rootModule reduces "pkg.sub as alias" to "pkg". Relative imports
// ("from . import x") reduce to the empty string and are skipped.
func rootModule(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, " as "); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "."); idx >= 0 {
		s = s[:idx]
	}
	// A trailing comment or stray token ends the name.
	if idx := strings.IndexAny(s, " \t#;"); idx >= 0 {
		s = s[:idx]
	}
	return s
}
