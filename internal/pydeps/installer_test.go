package pydeps

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dillspilit/scripthub/internal/command"
	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/runner/events"
	"github.com/dillspilit/scripthub/internal/runner/topics"
	"github.com/dillspilit/scripthub/internal/testutils"
)

const (
	pipUpgradeCmd = "/venv/bin/python -m pip install --upgrade pip"
	pipInstallCmd = "/venv/bin/python -m pip install -r requirements.txt"
)

func writeManifest(t *testing.T, fs afero.Fs, dir, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, dir+"/requirements.txt", []byte(content), 0o644))
}

func TestCheckAgainstIndex(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeManifest(t, fs, "scripts/backup", "requests>=2,<3\n")

	runner := testutils.NewFakeRunner().On(pipListCmd, testutils.FakeResponse{
		Result: command.Result{Stdout: `[]`},
	})
	idx := NewIndex(runner, "/venv/bin/python")

	m, err := LoadManifest(fs, "scripts/backup")
	require.NoError(t, err)

	ok, missing, err := Check(context.Background(), m, idx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"requests>=2,<3 (not installed)"}, missing)

	// After an install made requests available, a fresh snapshot satisfies.
	runner.On(pipListCmd, testutils.FakeResponse{
		Result: command.Result{Stdout: `[{"name":"requests","version":"2.31.0"}]`},
	})
	idx.Invalidate()

	ok, missing, err = Check(context.Background(), m, idx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestCheckReportsVersionViolationWithDetail(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeManifest(t, fs, "scripts/backup", "requests>=2,<3\n")

	runner := testutils.NewFakeRunner().On(pipListCmd, testutils.FakeResponse{
		Result: command.Result{Stdout: `[{"name":"requests","version":"1.2.0"}]`},
	})
	idx := NewIndex(runner, "/venv/bin/python")

	m, err := LoadManifest(fs, "scripts/backup")
	require.NoError(t, err)

	ok, missing, err := Check(context.Background(), m, idx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, missing, 1)
	assert.Equal(t, "requests>=2,<3 (installed 1.2.0)", missing[0])
}

func TestCheckMissingManifestTriviallySatisfied(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := LoadManifest(fs, "scripts/backup")
	require.NoError(t, err)
	require.Nil(t, m)

	ok, missing, err := Check(context.Background(), m, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestInstallStreamsProgressAndInvalidatesIndex(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeManifest(t, fs, "scripts/backup", "requests>=2,<3\n")

	runner := testutils.NewFakeRunner().
		On(pipListCmd, testutils.FakeResponse{Result: command.Result{Stdout: `[]`}}).
		On(pipUpgradeCmd, testutils.FakeResponse{}).
		On(pipInstallCmd, testutils.FakeResponse{
			Lines: []string{"Collecting requests", "Downloading requests-2.31.0", "Installing collected packages"},
		})

	pub := testutils.NewCollectingPublisher()
	idx := NewIndex(runner, "/venv/bin/python")

	// Warm the cache so invalidation is observable.
	_, err := idx.Snapshot(context.Background())
	require.NoError(t, err)

	installer := NewInstaller(fs, runner, pub)
	require.NoError(t, installer.Install(context.Background(), "backup", "/venv/bin/python", "scripts/backup", idx))

	finished := pub.WaitFor(t, topics.InstallFinished.Name(), 2*time.Second)
	var fin events.InstallFinished
	require.NoError(t, json.Unmarshal(finished.Payload, &fin))
	assert.True(t, fin.OK)

	progress := pub.OnTopic(topics.InstallProgress.Name())
	require.NotEmpty(t, progress)
	last := -1
	for _, msg := range progress {
		var p events.InstallProgress
		require.NoError(t, json.Unmarshal(msg.Payload, &p))
		assert.GreaterOrEqual(t, p.Percent, last, "progress must be monotonic")
		last = p.Percent
	}
	assert.Equal(t, 100, last, "final progress must be exactly 100")

	assert.Equal(t, 1, runner.CallCount(pipListCmd), "install itself must not rebuild the snapshot")
	_, err = idx.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, runner.CallCount(pipListCmd), "index must have been invalidated by the install")
}

func TestInstallFailureSurfacesDiagnostic(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeManifest(t, fs, "scripts/backup", "nosuchpackage==99\n")

	runner := testutils.NewFakeRunner().
		On(pipUpgradeCmd, testutils.FakeResponse{}).
		On("/venv/bin/python -m pip install -r requirements.txt", testutils.FakeResponse{
			Result: command.Result{ExitCode: 1, Stderr: "No matching distribution found for nosuchpackage"},
		})

	pub := testutils.NewCollectingPublisher()
	installer := NewInstaller(fs, runner, pub)
	idx := NewIndex(runner, "/venv/bin/python")

	require.NoError(t, installer.Install(context.Background(), "backup", "/venv/bin/python", "scripts/backup", idx))

	finished := pub.WaitFor(t, topics.InstallFinished.Name(), 2*time.Second)
	var fin events.InstallFinished
	require.NoError(t, json.Unmarshal(finished.Payload, &fin))
	assert.False(t, fin.OK)
	assert.Contains(t, fin.Detail, "No matching distribution")
}

func TestInstallNoManifestTrivialSuccess(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("scripts/backup", 0o755))

	runner := testutils.NewFakeRunner()
	pub := testutils.NewCollectingPublisher()
	installer := NewInstaller(fs, runner, pub)
	idx := NewIndex(runner, "/venv/bin/python")

	require.NoError(t, installer.Install(context.Background(), "backup", "/venv/bin/python", "scripts/backup", idx))

	finished := pub.WaitFor(t, topics.InstallFinished.Name(), 2*time.Second)
	var fin events.InstallFinished
	require.NoError(t, json.Unmarshal(finished.Payload, &fin))
	assert.True(t, fin.OK)
	assert.Empty(t, runner.Calls(), "no pip invocation for an absent manifest")
}

func TestInstallSingleFlight(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeManifest(t, fs, "scripts/backup", "requests\n")

	// A slow stream keeps the first install in flight while the second is tried.
	runner := testutils.NewFakeRunner().
		On(pipUpgradeCmd, testutils.FakeResponse{}).
		On(pipInstallCmd, testutils.FakeResponse{Lines: make([]string, 200)})

	pub := testutils.NewCollectingPublisher()
	installer := NewInstaller(fs, runner, pub)
	idx := NewIndex(runner, "/venv/bin/python")

	require.NoError(t, installer.begin("backup"))
	defer installer.end("backup")

	err := installer.Install(context.Background(), "backup", "/venv/bin/python", "scripts/backup", idx)
	assert.ErrorIs(t, err, domain.ErrBusy)
}
