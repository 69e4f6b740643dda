package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/pydeps"
)

const root = "/home/user/scripts"

func newTestRegistry(t *testing.T, names ...string) (*Registry, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, name := range names {
		writeScriptDir(t, fs, name, "print('hi')\n")
	}
	r := New(fs, root)
	require.NoError(t, r.Load())
	return r, fs
}

func writeScriptDir(t *testing.T, fs afero.Fs, name, body string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, ScriptFileName), []byte(body), 0o755))
}

func names(scripts []domain.Script) []string {
	out := make([]string, len(scripts))
	for i, s := range scripts {
		out[i] = s.Name
	}
	return out
}

func TestLoadMissingRootIsEmpty(t *testing.T) {
	r := New(afero.NewMemMapFs(), root)
	require.NoError(t, r.Load())
	assert.Empty(t, r.List())
}

func TestLoadSkipsDirectoriesWithoutScriptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, fs.MkdirAll(filepath.Join(root, ".repo"), 0o755))
	writeScriptDir(t, fs, "real", "print(1)\n")

	r := New(fs, root)
	require.NoError(t, r.Load())
	assert.Equal(t, []string{"real"}, names(r.List()))
}

func TestListPinnedFirstThenSorted(t *testing.T) {
	r, _ := newTestRegistry(t, "alpha", "beta", "gamma", "delta")

	require.NoError(t, r.SetPinned("gamma", true))
	require.NoError(t, r.SetPinned("beta", true))

	assert.Equal(t, []string{"gamma", "beta", "alpha", "delta"}, names(r.List()))
}

func TestPinStatePersistsAcrossLoads(t *testing.T) {
	r, fs := newTestRegistry(t, "one", "two")
	require.NoError(t, r.SetPinned("two", true))

	reloaded := New(fs, root)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, []string{"two", "one"}, names(reloaded.List()))

	two, err := reloaded.Get("two")
	require.NoError(t, err)
	assert.True(t, two.Pinned)
}

func TestStalePinEntriesDroppedOnLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeScriptDir(t, fs, "kept", "print(1)\n")
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "pinned_scripts.json"),
		[]byte(`["kept", "gone"]`), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "scripts_order.json"),
		[]byte(`["gone", "kept"]`), 0o644))

	r := New(fs, root)
	require.NoError(t, r.Load())
	assert.Equal(t, []string{"kept"}, names(r.List()))
}

func TestAddCopiesSourceAndGeneratesRequirements(t *testing.T) {
	r, fs := newTestRegistry(t)
	source := "/tmp/incoming.py"
	body := "import os\nimport requests\nfrom rich.table import Table\n\nprint('x')\n"
	require.NoError(t, afero.WriteFile(fs, source, []byte(body), 0o644))

	script, err := r.Add("fetcher", source)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "fetcher", ScriptFileName), script.Path)

	copied, err := afero.ReadFile(fs, script.Path)
	require.NoError(t, err)
	assert.Equal(t, body, string(copied))

	manifest, err := pydeps.LoadManifest(fs, script.Dir)
	require.NoError(t, err)
	require.Len(t, manifest.Specifiers, 2)
	assert.Equal(t, "requests", manifest.Specifiers[0].Name)
	assert.Equal(t, "rich", manifest.Specifiers[1].Name)
}

func TestAddStdlibOnlyScriptHasNoManifest(t *testing.T) {
	r, fs := newTestRegistry(t)
	source := "/tmp/plain.py"
	require.NoError(t, afero.WriteFile(fs, source, []byte("import os\nimport sys\n"), 0o644))

	script, err := r.Add("plain", source)
	require.NoError(t, err)

	manifest, err := pydeps.LoadManifest(fs, script.Dir)
	require.NoError(t, err)
	assert.True(t, manifest.IsEmpty())
}

func TestAddRejectsDuplicateAndBadNames(t *testing.T) {
	r, fs := newTestRegistry(t, "taken")
	require.NoError(t, afero.WriteFile(fs, "/tmp/s.py", []byte("print(1)\n"), 0o644))

	_, err := r.Add("taken", "/tmp/s.py")
	require.ErrorIs(t, err, domain.ErrScriptAlreadyExists)

	_, err = r.Add("../escape", "/tmp/s.py")
	require.Error(t, err)
}

func TestRenameMovesDirectoryAndReKeysPin(t *testing.T) {
	r, fs := newTestRegistry(t, "old")
	require.NoError(t, r.SetPinned("old", true))

	var notified []string
	r.OnChange(func(name string) { notified = append(notified, name) })

	require.NoError(t, r.Rename("old", "new"))

	_, err := r.Get("old")
	require.ErrorIs(t, err, domain.ErrScriptNotFound)
	renamed, err := r.Get("new")
	require.NoError(t, err)
	assert.True(t, renamed.Pinned)
	assert.Equal(t, filepath.Join(root, "new"), renamed.Dir)

	exists, err := afero.Exists(fs, filepath.Join(root, "new", ScriptFileName))
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, []string{"new"}, names(r.List())[:1])
	assert.Equal(t, []string{"old"}, notified)
}

func TestRenameRejectsExistingTarget(t *testing.T) {
	r, _ := newTestRegistry(t, "a", "b")
	require.ErrorIs(t, r.Rename("a", "b"), domain.ErrScriptAlreadyExists)
}

func TestRemoveDeletesDirectoryAndPurgesState(t *testing.T) {
	r, fs := newTestRegistry(t, "doomed", "other")
	require.NoError(t, r.SetPinned("doomed", true))

	var notified []string
	r.OnChange(func(name string) { notified = append(notified, name) })

	require.NoError(t, r.Remove("doomed"))

	exists, err := afero.DirExists(fs, filepath.Join(root, "doomed"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, []string{"other"}, names(r.List()))
	assert.Equal(t, []string{"doomed"}, notified)

	reloaded := New(fs, root)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, []string{"other"}, names(reloaded.List()))
}

func TestUnpinDropsOrderEntry(t *testing.T) {
	r, _ := newTestRegistry(t, "a", "b")
	require.NoError(t, r.SetPinned("b", true))
	require.NoError(t, r.SetPinned("b", false))

	assert.Equal(t, []string{"a", "b"}, names(r.List()))
}

func TestAppendLogAccumulatesLines(t *testing.T) {
	r, fs := newTestRegistry(t, "logged")
	stamp := time.Now().Format(time.RFC3339)
	require.NoError(t, r.AppendLog("logged", "=== run at "+stamp))
	require.NoError(t, r.AppendLog("logged", "hello"))

	data, err := afero.ReadFile(fs, filepath.Join(root, "logged", LogFileName))
	require.NoError(t, err)
	assert.Equal(t, "=== run at "+stamp+"\nhello\n", string(data))
}

func TestAppendLogUnknownScript(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.ErrorIs(t, r.AppendLog("missing", "x"), domain.ErrScriptNotFound)
}
