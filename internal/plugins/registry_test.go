package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-tfiac/internal/config"
	"github.com/joshp123/gohome-tfiac/internal/core"
)

func TestCompiledHonoursConfig(t *testing.T) {
	assert.Empty(t, Compiled(nil, nil), "nil config")

	cfg, err := config.Parse([]byte("schema_version: 1\n"))
	require.NoError(t, err)
	assert.Empty(t, Compiled(cfg, nil), "no tfiac section")

	cfg, err = config.Parse([]byte("schema_version: 1\ntfiac: {}\n"))
	require.NoError(t, err)
	got := Compiled(cfg, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "tfiac", got[0].ID())
	assert.NoError(t, core.ValidatePlugins(got))
}
