package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
app:
  env: dev
postgres:
  dsn: postgres://u:p@db:5432/workstock
  max_conns: 4
telegram:
  token: abc
  alert_chat_id: -100123
engine:
  lock_timeout: 2s
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, "postgres://u:p@db:5432/workstock", c.Postgres.DSN)
	assert.Equal(t, int32(4), c.Postgres.MaxConns)
	assert.Equal(t, int64(-100123), c.Telegram.AlertChatID)
	assert.Equal(t, 2*time.Second, c.Engine.LockTimeout)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.True(t, c.Metrics.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: postgres://file
`)
	t.Setenv("WORKSTOCK_POSTGRES_DSN", "postgres://env")
	t.Setenv("WORKSTOCK_HTTP_ADDR", ":9999")
	t.Setenv("WORKSTOCK_METRICS_PUSH_URL", "http://pushgateway:9091")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", c.Postgres.DSN)
	assert.Equal(t, ":9999", c.HTTP.Addr)
	assert.Equal(t, "http://pushgateway:9091", c.Metrics.PushURL)
}

func TestLoad_Validation(t *testing.T) {
	_, err := Load(writeConfig(t, "app:\n  env: dev\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, `
postgres:
  dsn: postgres://x
telegram:
  token: abc
`))
	require.ErrorContains(t, err, "alert_chat_id")
}
