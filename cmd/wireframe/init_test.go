package wireframe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/enjoys-in/airsend-calc/config"
	"github.com/enjoys-in/airsend-calc/internal/core/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(driver, dir string) config.Config {
	return config.Config{
		Calc: config.CalcConfig{
			Port:           config.DefaultPort,
			MaxSessions:    8,
			MaxConnections: 8,
			SessionIDRange: 100,
			Framing:        "line",
			SendQueue:      4,
		},
		Store: config.StoreConfig{
			Driver:     driver,
			DataDir:    filepath.Join(dir, "sessions"),
			SQLitePath: filepath.Join(dir, "calc.db"),
		},
	}
}

func TestInitWireframe_RestoresSessions(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(driver, t.TempDir())

			app, err := InitWireframe(ctx, cfg)
			require.NoError(t, err)
			s, err := app.Sessions.Insert(42)
			require.NoError(t, err)
			_, err = s.Commit("a = 1.5", func(session.Result) error { return nil })
			require.NoError(t, err)
			require.NoError(t, app.Store.Save(ctx, s.ID, s.Snapshot()))
			require.NoError(t, app.Close())

			app, err = InitWireframe(ctx, cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = app.Close() })

			assert.Equal(t, []int{42}, app.Sessions.IDs())
			restored, ok := app.Sessions.Find(42)
			require.True(t, ok)
			vars := restored.Snapshot()
			v, used := vars.Get('a')
			assert.True(t, used)
			assert.Equal(t, 1.5, v)
			assert.Equal(t, "a = 1.500000\n", restored.Render())
		})
	}
}

func TestInitWireframe_UnknownDriver(t *testing.T) {
	_, err := InitWireframe(context.Background(), testConfig("etcd", t.TempDir()))
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestInitWireframe_MemoryStartsEmpty(t *testing.T) {
	app, err := InitWireframe(context.Background(), testConfig("memory", t.TempDir()))
	require.NoError(t, err)
	defer app.Close()

	assert.Zero(t, app.Sessions.Len())
	assert.Equal(t, 8, app.Conns.Capacity())
	assert.NotNil(t, app.Handler.SessionHandler)
}
