package topicmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRegisterAndGet(t *testing.T) {
	m := NewManager()

	err := m.Register(Topic{Name: "runner.run.started", Stage: "run"})
	require.NoError(t, err)

	got, ok := m.Get("runner.run.started")
	require.True(t, ok)
	assert.Equal(t, "run", got.Stage)

	_, ok = m.Get("runner.run.unknown")
	assert.False(t, ok)
}

func TestManagerRejectsDuplicatesAndEmptyNames(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Register(Topic{Name: "runner.install.started"}))
	assert.Error(t, m.Register(Topic{Name: "runner.install.started"}))
	assert.Error(t, m.Register(Topic{}))
}

func TestManagerListSorted(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(Topic{Name: "b"}))
	require.NoError(t, m.Register(Topic{Name: "a"}))

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)
}
