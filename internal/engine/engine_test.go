package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsEngineWithDefaultsWhenConfigFileMissing(t *testing.T) {
	dir := t.TempDir()
	e, err := New(filepath.Join(dir, "missing-config.yaml"))
	require.NoError(t, err)
	assert.NotNil(t, e.Registry)
	assert.Equal(t, 10, e.Config.MaxProjectContexts)
	require.NoError(t, e.Close())
}

func TestProjectOpensAndReusesAContext(t *testing.T) {
	dir := t.TempDir()
	e, err := New(filepath.Join(dir, "missing-config.yaml"))
	require.NoError(t, err)
	e.Config.ProjectRoot = filepath.Join(dir, "proj")

	pc1, err := e.Project(e.Config.ProjectRoot)
	require.NoError(t, err)
	pc2, err := e.Project(e.Config.ProjectRoot)
	require.NoError(t, err)
	assert.Same(t, pc1, pc2)

	require.NoError(t, e.Close())
}
