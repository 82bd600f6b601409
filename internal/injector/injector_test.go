package injector

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/btcore/internal/config"
	"github.com/zeusync/btcore/internal/core/bt/template"
)

func TestInitializeAppInMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.Workers = 2

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Same(t, cfg, app.Config)
	assert.IsType(t, &template.MemoryStore{}, app.Store)
	assert.Nil(t, app.Metrics)
	assert.True(t, app.Registry.Has("wait"))
	assert.Zero(t, app.Manager.Len())
}

func TestInitializeAppWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	require.IsType(t, &template.RedisStore{}, app.Store)
	tmpl := &template.Template{Name: "idle", Nodes: []template.NodeSpec{{Kind: "wait"}}}
	require.NoError(t, app.Store.Save(context.Background(), tmpl))
	assert.True(t, mr.Exists(cfg.Redis.Prefix+"idle"))
}

func TestInitializeAppRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.FaultPolicy = "retry"
	_, _, err := InitializeApp(cfg)
	assert.Error(t, err)
}
