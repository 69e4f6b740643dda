package pydeps

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ManifestFileName is the per-script requirements manifest, one specifier
// per line. It is the only core-owned on-disk format.
const ManifestFileName = "requirements.txt"

// Manifest is the ordered set of requirement specifiers for one script.
type Manifest struct {
	Specifiers []Specifier
}

// LoadManifest reads the manifest from a script directory. A missing file
// returns (nil, nil): no manifest means no dependencies required. A present
// but empty file returns an empty manifest, which is likewise trivially
// satisfied. Unparseable lines are logged and skipped, matching pip's
// tolerance for lines it does not understand.
func LoadManifest(fs afero.Fs, scriptDir string) (*Manifest, error) {
	path := filepath.Join(scriptDir, ManifestFileName)

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("checking manifest %s: %w", path, err)
	}
	if !exists {
		return nil, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	m := &Manifest{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		spec, err := ParseSpecifier(line)
		if err != nil {
			slog.Warn("Skipping unparseable requirement line", "path", path, "line", line, "error", err)
			continue
		}
		m.Specifiers = append(m.Specifiers, spec)
	}
	return m, nil
}

// WriteManifest writes one specifier per line to the script directory,
// typically from the analyzer's output when a script is added.
func WriteManifest(fs afero.Fs, scriptDir string, specifiers []string) error {
	path := filepath.Join(scriptDir, ManifestFileName)
	content := strings.Join(specifiers, "\n") + "\n"
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// IsEmpty reports whether the manifest has no specifiers. Both a nil
// manifest (file absent) and an empty one are trivially satisfied.
func (m *Manifest) IsEmpty() bool {
	return m == nil || len(m.Specifiers) == 0
}
