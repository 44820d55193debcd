package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/moustique/pkg/moustique/client"
	"github.com/tsarna/moustique/pkg/moustique/poller"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLoad(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		t.Setenv("MOUSTIQUE_TEST_PASSWORD", "s3cret")

		cfg, diags := Load([]byte(`
log_level = "debug"

client {
  host        = "broker.local"
  port        = 8080
  name        = upper("probe")
  username    = "alice"
  password    = env.MOUSTIQUE_TEST_PASSWORD
  timeout     = "2s"
  max_retries = 2
}

poller {
  interval = "3s"
}
`))
		require.False(t, diags.HasErrors(), diags.Error())

		assert.Equal(t, "debug", cfg.LogLevel)
		require.NotNil(t, cfg.Client)
		assert.Equal(t, "broker.local", cfg.Client.Host)
		assert.Equal(t, 8080, cfg.Client.Port)
		assert.Equal(t, "PROBE", cfg.Client.Name)
		assert.Equal(t, "s3cret", cfg.Client.Password)
		assert.Equal(t, 2*time.Second, cfg.Client.timeout)
		require.NotNil(t, cfg.Client.MaxRetries)
		assert.Equal(t, 2, *cfg.Client.MaxRetries)
		require.NotNil(t, cfg.Poller)
		assert.Equal(t, 3*time.Second, cfg.Poller.interval)
	})

	t.Run("empty", func(t *testing.T) {
		cfg, diags := Load([]byte(""))
		require.False(t, diags.HasErrors(), diags.Error())
		assert.Nil(t, cfg.Client)
		assert.Nil(t, cfg.Poller)
		assert.Equal(t, zapcore.WarnLevel, cfg.Level(zapcore.WarnLevel))
	})

	t.Run("env lookup with default", func(t *testing.T) {
		cfg, diags := Load([]byte(`
client {
  host = lookup(env, "MOUSTIQUE_TEST_UNSET_HOST", "fallback")
}
`))
		require.False(t, diags.HasErrors(), diags.Error())
		assert.Equal(t, "fallback", cfg.Client.Host)
	})

	t.Run("encoded credentials", func(t *testing.T) {
		t.Setenv("MOUSTIQUE_TEST_SECRET_B64", "aHVudGVyMg==")

		cfg, diags := Load([]byte(`
client {
  host     = cidrhost("10.0.0.0/24", 9)
  name     = basename("/opt/probes/attic")
  password = base64decode(env.MOUSTIQUE_TEST_SECRET_B64)
  username = substr(sha256("alice"), 0, 8)
}
`))
		require.False(t, diags.HasErrors(), diags.Error())
		assert.Equal(t, "10.0.0.9", cfg.Client.Host)
		assert.Equal(t, "attic", cfg.Client.Name)
		assert.Equal(t, "hunter2", cfg.Client.Password)
		assert.Equal(t, "2bd806c9", cfg.Client.Username)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, diags := Load([]byte(`client { colour = "red" }`))
		assert.True(t, diags.HasErrors())
	})

	t.Run("syntax error", func(t *testing.T) {
		_, diags := Load([]byte(`client {`))
		assert.True(t, diags.HasErrors())
	})

	invalid := map[string]string{
		"log level":    `log_level = "loud"`,
		"port":         `client { port = 70000 }`,
		"max retries":  `client { max_retries = -1 }`,
		"timeout":      `client { timeout = "soon" }`,
		"zero timeout": `client { timeout = "0s" }`,
		"interval":     `poller { interval = "often" }`,
		"both poll styles": `
poller {
  interval = "1s"
  schedule = "@every 2s"
}`,
		"duplicate block": `client { host = "a" }
client { host = "b" }`,
	}
	for name, src := range invalid {
		t.Run("invalid "+name, func(t *testing.T) {
			_, diags := Load([]byte(src))
			assert.True(t, diags.HasErrors())
		})
	}

	t.Run("invalid source type", func(t *testing.T) {
		_, diags := Load(42)
		assert.True(t, diags.HasErrors())
	})

	t.Run("missing file", func(t *testing.T) {
		_, diags := Load(filepath.Join(t.TempDir(), "nope.hcl"))
		assert.True(t, diags.HasErrors())
	})
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`client { host = "h" }`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), []byte(`poller { schedule = "@every 5s" }`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte(`not hcl at all {`), 0o644))

	t.Run("directory", func(t *testing.T) {
		cfg, diags := Load(dir)
		require.False(t, diags.HasErrors(), diags.Error())
		assert.Equal(t, "h", cfg.Client.Host)
		assert.Equal(t, "@every 5s", cfg.Poller.Schedule)
	})

	t.Run("single file plus bytes", func(t *testing.T) {
		cfg, diags := Load(filepath.Join(dir, "a.hcl"), []byte(`log_level = "error"`))
		require.False(t, diags.HasErrors(), diags.Error())
		assert.Equal(t, "h", cfg.Client.Host)
		assert.Equal(t, zapcore.ErrorLevel, cfg.Level(zapcore.InfoLevel))
	})
}

func TestApply(t *testing.T) {
	cfg, diags := Load([]byte(`
client {
  host        = "10.0.0.9"
  port        = 4000
  max_retries = 0
}
`))
	require.False(t, diags.HasErrors(), diags.Error())

	c, err := cfg.Apply(client.NewClient().WithClientName("cli")).Build()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.9:4000", c.BaseURL())
	assert.Equal(t, "cli", c.Identity().Name)

	t.Run("nil config", func(t *testing.T) {
		var cfg *Config
		c, err := cfg.Apply(client.NewClient()).Build()
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:33335", c.BaseURL())
	})
}

func TestPollerOptions(t *testing.T) {
	cfg, diags := Load([]byte(`poller { interval = "4s" }`))
	require.False(t, diags.HasErrors(), diags.Error())

	p, err := poller.New(nopTicker{}, cfg.PollerOptions(zap.NewNop())...)
	require.NoError(t, err)
	assert.Equal(t, "@every 4s", p.Schedule())

	var empty *Config
	assert.Empty(t, empty.PollerOptions(nil))
}
