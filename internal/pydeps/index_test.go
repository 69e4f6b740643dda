package pydeps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dillspilit/scripthub/internal/command"
	"github.com/dillspilit/scripthub/internal/testutils"
)

const pipListCmd = "/venv/bin/python -m pip list --format=json"

func TestIndexSnapshotCachesUntilInvalidated(t *testing.T) {
	runner := testutils.NewFakeRunner().On(pipListCmd, testutils.FakeResponse{
		Result: command.Result{Stdout: `[{"name":"Requests","version":"2.31.0"},{"name":"flask","version":"3.0.0"}]`},
	})
	idx := NewIndex(runner, "/venv/bin/python")

	snap, err := idx.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.31.0", snap["requests"])
	assert.Equal(t, "3.0.0", snap["flask"])

	_, err = idx.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.CallCount(pipListCmd), "second snapshot should hit the cache")

	idx.Invalidate()
	_, err = idx.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, runner.CallCount(pipListCmd), "invalidate should force a rebuild")
}

func TestIndexSnapshotPipFailure(t *testing.T) {
	runner := testutils.NewFakeRunner().On(pipListCmd, testutils.FakeResponse{
		Result: command.Result{ExitCode: 1, Stderr: "No module named pip"},
	})
	idx := NewIndex(runner, "/venv/bin/python")

	_, err := idx.Snapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No module named pip")
}
