package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("version: \"0.1\"\nresources: /tmp/data\n"))
	require.NoError(t, err)
	assert.Equal(t, 50, c.Pools.Transfer)
	assert.Equal(t, []string{"fbx"}, c.Bake.ModelExtensions)
	assert.Equal(t, 30, c.Stats.IntervalSeconds)
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	_, err := Parse([]byte("version: \"9.9\"\nresources: /tmp/data\n"))
	assert.Error(t, err)
}

func TestParseRequiresResources(t *testing.T) {
	_, err := Parse([]byte("version: \"0.1\"\n"))
	assert.Error(t, err)
}

func TestParseOverridesFromYAML(t *testing.T) {
	doc := "version: \"0.1\"\nresources: /data\nlisten: \":9000\"\nbake:\n  modelExtensions: [\"fbx\", \"gltf\"]\n"
	c, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Listen)
	assert.Equal(t, []string{"fbx", "gltf"}, c.Bake.ModelExtensions)
}

func TestEnvOverridesTakePrecedenceOverFile(t *testing.T) {
	t.Setenv("ASSETD_RESOURCES", "/env/data")
	os.Unsetenv("ASSETD_LISTEN")

	c, err := Parse([]byte("version: \"0.1\"\nresources: /file/data\n"))
	require.NoError(t, err)
	assert.Equal(t, "/env/data", c.Resources)
}
