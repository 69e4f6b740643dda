package gitsync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dillspilit/scripthub/internal/command"
	"github.com/dillspilit/scripthub/internal/testutils"
)

const root = "/home/user/scripts"

func mirrorFile(t *testing.T, fs afero.Fs, parts ...string) {
	t.Helper()
	path := filepath.Join(append([]string{root, RepoDirName}, parts[:len(parts)-1]...)...)
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(parts[len(parts)-1]), 0o644))
}

func TestSyncWithoutRemote(t *testing.T) {
	s := New(afero.NewMemMapFs(), testutils.NewFakeRunner(), root, "")
	_, err := s.Sync(context.Background())
	require.ErrorIs(t, err, ErrNoRemote)
}

func TestSyncClonesOnFirstUse(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := testutils.NewFakeRunner()
	repoDir := filepath.Join(root, RepoDirName)
	// The fake git leaves no clone behind; the mirror directory itself is
	// enough for the copy pass.
	require.NoError(t, fs.MkdirAll(repoDir, 0o755))
	s := New(fs, fake, root, "https://example.com/scripts.git")

	_, err := s.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.CallCount("git clone https://example.com/scripts.git "+repoDir))
	assert.Zero(t, fake.CallCount("git pull --ff-only"))
}

func TestSyncPullsWhenMirrorExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(filepath.Join(root, RepoDirName, ".git"), 0o755))
	fake := testutils.NewFakeRunner()
	s := New(fs, fake, root, "https://example.com/scripts.git")

	_, err := s.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.CallCount("git pull --ff-only"))
	assert.Zero(t, fake.CallCount("git fetch origin"))
}

func TestSyncResetsMirrorWhenPullFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(filepath.Join(root, RepoDirName, ".git"), 0o755))
	fake := testutils.NewFakeRunner()
	fake.On("git pull --ff-only", testutils.FakeResponse{
		Result: command.Result{ExitCode: 1, Stderr: "fatal: Not possible to fast-forward"},
	})
	s := New(fs, fake, root, "https://example.com/scripts.git")

	_, err := s.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.CallCount("git fetch origin"))
	assert.Equal(t, 1, fake.CallCount("git reset --hard FETCH_HEAD"))
}

func TestSyncCopiesScriptFolders(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(filepath.Join(root, RepoDirName, ".git"), 0o755))
	mirrorFile(t, fs, "greeter", "script.py", "print('v2')\n")
	mirrorFile(t, fs, "greeter", "requirements.txt", "requests\n")

	s := New(fs, testutils.NewFakeRunner(), root, "https://example.com/scripts.git")
	changed, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"greeter"}, changed)

	data, err := afero.ReadFile(fs, filepath.Join(root, "greeter", "script.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('v2')\n", string(data))
}

func TestSyncReportsOnlyChangedScripts(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(filepath.Join(root, RepoDirName, ".git"), 0o755))
	mirrorFile(t, fs, "same", "script.py", "print(1)\n")
	mirrorFile(t, fs, "updated", "script.py", "print(2)\n")

	require.NoError(t, fs.MkdirAll(filepath.Join(root, "same"), 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "same", "script.py"),
		[]byte("print(1)\n"), 0o755))

	s := New(fs, testutils.NewFakeRunner(), root, "https://example.com/scripts.git")
	changed, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"updated"}, changed)
}

func TestSyncPreservesLocalOnlyFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(filepath.Join(root, RepoDirName, ".git"), 0o755))
	mirrorFile(t, fs, "keeper", "script.py", "print(1)\n")
	mirrorFile(t, fs, "keeper", "settings.json", `{"from": "remote"}`)
	mirrorFile(t, fs, "keeper", ".venv", "pyvenv.cfg", "remote venv\n")

	local := filepath.Join(root, "keeper", "settings.json")
	require.NoError(t, fs.MkdirAll(filepath.Join(root, "keeper"), 0o755))
	require.NoError(t, afero.WriteFile(fs, local, []byte(`{"mine": true}`), 0o644))

	s := New(fs, testutils.NewFakeRunner(), root, "https://example.com/scripts.git")
	_, err := s.Sync(context.Background())
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, local)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mine": true}`, string(data))

	exists, err := afero.Exists(fs, filepath.Join(root, "keeper", ".venv", "pyvenv.cfg"))
	require.NoError(t, err)
	assert.False(t, exists)
}
