package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthworld/assetd/config"
)

func TestNewWiresComponentsAndRunsStartupSweep(t *testing.T) {
	cfg := config.Default()
	cfg.Resources = t.TempDir()

	srv, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, srv.Dispatcher())

	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestNewFailsOnUnwritableResourcesDir(t *testing.T) {
	cfg := config.Default()
	cfg.Resources = "/this/path/does/not/exist/and/cannot/be/created/\x00bad"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
