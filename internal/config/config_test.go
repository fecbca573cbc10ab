package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Ledger.Workers)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)
}

func TestLoadFileYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	yaml := `
mode: debug
port: 9090
store:
  driver: memory
ledger:
  workers: 2
ice_servers:
  - urls: ["turn:turn.example.org:3478"]
    username: u
    credential: p
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("INTERVIEW_PORT", "9191")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 2, cfg.Ledger.Workers)

	servers := cfg.WebRTCICEServers()
	require.Len(t, servers, 1)
	assert.Equal(t, []string{"turn:turn.example.org:3478"}, servers[0].URLs)
	assert.Equal(t, "u", servers[0].Username)
	assert.Equal(t, "p", servers[0].Credential)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() Config {
		return Config{
			Port:       8080,
			SendBuffer: 8,
			Rate:       RateConfig{Limit: 1, Burst: 1},
			Store:      StoreConfig{Driver: StoreDriverMemory},
			Ledger:     LedgerConfig{Workers: 1, Queue: 1},
		}
	}
	ok := base()
	require.NoError(t, ok.Validate())

	cases := map[string]func(*Config){
		"port":        func(c *Config) { c.Port = 0 },
		"driver":      func(c *Config) { c.Store.Driver = "mongo" },
		"dsn":         func(c *Config) { c.Store.Driver = StoreDriverPostgres },
		"workers":     func(c *Config) { c.Ledger.Workers = 0 },
		"queue":       func(c *Config) { c.Ledger.Queue = 0 },
		"send_buffer": func(c *Config) { c.SendBuffer = 0 },
		"rate":        func(c *Config) { c.Rate.Burst = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
