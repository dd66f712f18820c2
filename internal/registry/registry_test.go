package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoryengine/internal/config"
)

func testConfig(t *testing.T, projectRoot string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ProjectRoot = projectRoot
	cfg.TokenSecret = "test-secret"
	return cfg
}

func TestGetOpensAndCachesAContext(t *testing.T) {
	r := New(10)
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	pc1, err := r.Get(dir, cfg)
	require.NoError(t, err)
	pc2, err := r.Get(dir, cfg)
	require.NoError(t, err)
	assert.Same(t, pc1, pc2)

	require.NoError(t, r.CloseAll())
}

func TestGetEvictsLeastRecentlyTouchedPastMaxSize(t *testing.T) {
	r := New(2)
	base := t.TempDir()

	var first *ProjectContext
	for i := 0; i < 3; i++ {
		dir := fmt.Sprintf("%s/proj-%d", base, i)
		cfg := testConfig(t, dir)
		pc, err := r.Get(dir, cfg)
		require.NoError(t, err)
		if i == 0 {
			first = pc
		}
	}

	r.mu.Lock()
	size := len(r.contexts)
	_, stillPresent := r.contexts[first.ProjectPath]
	r.mu.Unlock()

	assert.LessOrEqual(t, size, 2)
	assert.False(t, stillPresent)

	require.NoError(t, r.CloseAll())
}
