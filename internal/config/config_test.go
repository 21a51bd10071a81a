package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, `
server:
  port: 9000
store:
  driver: badger
  badger_path: /var/lib/match
jwt:
  secret: from-file
messaging:
  platform: web
  fallback_delay: 2s
log:
  level: debug
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("MESSAGING_HISTORY_LIMIT", "20")

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal(9000, cfg.Server.Port)
	req.Equal("badger", cfg.Store.Driver)
	req.Equal("from-env", cfg.JWT.Secret)
	req.Equal("web", cfg.Messaging.Platform)
	req.Equal(2*time.Second, cfg.Messaging.FallbackDelay)
	req.Equal(20, cfg.Messaging.HistoryLimit)
	req.Equal("debug", cfg.Log.Level)
	req.Equal(256, cfg.Push.QueueSize)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	req.NoError(err)
	req.Equal("memory", cfg.Store.Driver)
	req.Equal(1500*time.Millisecond, cfg.Messaging.FallbackDelay)
	req.Equal(50, cfg.Messaging.HistoryLimit)
}

func TestLoad_RejectsInvalidConfiguration(t *testing.T) {
	cases := map[string]string{
		"no secret":           "store: {driver: memory}\n",
		"unknown driver":      "jwt: {secret: s}\nstore: {driver: redis}\n",
		"badger without dir":  "jwt: {secret: s}\nstore: {driver: badger}\n",
		"bad platform":        "jwt: {secret: s}\nmessaging: {platform: desktop}\n",
		"postgres without db": "jwt: {secret: s}\nstore: {driver: postgres}\n",
		"apns without key id": "jwt: {secret: s}\napns: {key_file: /k.p8}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}
