package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/va6996/mensaman/config"
	pcore "github.com/va6996/mensaman/plugins/core"
	"github.com/va6996/mensaman/plugins/mensa"
	"github.com/va6996/mensaman/plugins/mensa/mensatest"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Mensa.BaseURL = baseURL
	cfg.Mensa.Timeout = 5 * time.Second
	cfg.Mensa.TimeZone = "UTC"
	cfg.Log.Level = "error"
	cfg.Cache.Enabled = true
	cfg.Cache.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	cfg.Cache.MenuTTL = time.Hour
	cfg.Cache.Schedule = "@every 1h"
	cfg.AI.Plugin = "gemini"
	return cfg
}

func fixedNow() time.Time {
	return time.Date(2025, time.June, 11, 12, 0, 0, 0, time.UTC)
}

func TestSetup(t *testing.T) {
	upstream := mensatest.NewServer()
	defer upstream.Close()

	ctx := context.Background()
	app, err := Setup(ctx, testConfig(t, upstream.URL), Options{Now: fixedNow})
	require.NoError(t, err)
	defer app.Close(ctx)

	assert.Nil(t, app.Model)
	assert.NotNil(t, app.Store)
	assert.NotNil(t, app.Assistant)
	assert.Equal(t, []string{
		mensa.FacilitiesToolName,
		mensa.MenuToolName,
		mensa.WeekMenuToolName,
		mensa.NearbyToolName,
		pcore.DateToolName,
	}, app.Registry.Names())

	// The weekly menu is served from the cache the second time.
	for i := 0; i < 2; i++ {
		out, err := app.Registry.ExecuteTool(ctx, mensa.MenuToolName, map[string]interface{}{"apiName": "mensa-garching"})
		require.NoError(t, err)
		assert.True(t, out.(*mensa.MenuResult).Success)
	}
	assert.Equal(t, 1, upstream.Hits(mensatest.WeekPath("mensa-garching", 2025, 24)))

	n, err := app.Store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSetup_CacheDisabled(t *testing.T) {
	upstream := mensatest.NewServer()
	defer upstream.Close()

	cfg := testConfig(t, upstream.URL)
	cfg.Cache.Enabled = false

	app, err := Setup(context.Background(), cfg, Options{Now: fixedNow})
	require.NoError(t, err)
	assert.Nil(t, app.Store)
	assert.Nil(t, app.Janitor)
	assert.Nil(t, app.Mensa.Cache)
}

func TestSetup_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		opts   Options
	}{
		{name: "bad log level", mutate: func(cfg *config.Config) { cfg.Log.Level = "chatty" }},
		{name: "bad time zone", mutate: func(cfg *config.Config) { cfg.Mensa.TimeZone = "Europe/Garching" }},
		{name: "bad schedule", mutate: func(cfg *config.Config) { cfg.Cache.Schedule = "sometimes" }},
		{name: "gemini without key", mutate: func(cfg *config.Config) {}, opts: Options{WithModel: true}},
		{name: "openai without key", mutate: func(cfg *config.Config) { cfg.AI.Plugin = "openai" }, opts: Options{WithModel: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "http://127.0.0.1:1")
			tt.mutate(cfg)
			_, err := Setup(context.Background(), cfg, tt.opts)
			assert.Error(t, err)
		})
	}
}
