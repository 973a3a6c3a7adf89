package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CALC_HOST", "CALC_PORT", "CALC_MAX_SESSIONS", "CALC_MAX_CONNECTIONS",
		"CALC_SESSION_ID_RANGE", "CALC_FRAMING", "CALC_SEND_QUEUE", "CALC_COMMAND_RATE",
		"CALC_COMMAND_BURST", "CALC_ACCEPT_RATE", "CALC_TLS_CERT_FILE", "CALC_TLS_KEY_FILE",
		"STORE_DRIVER", "DATA_DIR", "SQLITE_PATH", "ADMIN_ADDR", "ADMIN_API_KEY", "LOG_LEVEL", "LOG_FORMAT",
	} {
		// Setenv registers the restore; the variable must then be truly
		// unset, since godotenv never overrides a variable that exists.
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestGetConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := GetConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Calc.Host)
	assert.Equal(t, DefaultPort, cfg.Calc.Port)
	assert.Equal(t, 128, cfg.Calc.MaxSessions)
	assert.Equal(t, 128, cfg.Calc.MaxConnections)
	assert.Equal(t, 10000, cfg.Calc.SessionIDRange)
	assert.Equal(t, "line", cfg.Calc.Framing)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "./sessions", cfg.Store.DataDir)
	assert.Equal(t, DefaultAdminAddr, cfg.Admin.Addr)
	assert.Equal(t, "0.0.0.0:8888", cfg.ListenAddr())
	assert.False(t, cfg.TLSEnabled())
	require.NoError(t, cfg.Validate())

	tlsCfg, err := cfg.LoadTLS()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
}

func TestGetConfig_EnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"CALC_PORT=9000\nCALC_FRAMING=frame\nSTORE_DRIVER=memory\nCALC_COMMAND_RATE=2.5\nADMIN_ADDR=\n",
	), 0o644))
	// godotenv never overrides variables that are already set
	t.Setenv("CALC_PORT", "9100")

	cfg, err := GetConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Calc.Port)
	assert.Equal(t, "frame", cfg.Calc.Framing)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.InDelta(t, 2.5, cfg.Calc.CommandRate, 1e-9)
	assert.Equal(t, "", cfg.Admin.Addr, "an empty ADMIN_ADDR disables the admin listener")
}

func TestGetConfig_BadNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALC_MAX_SESSIONS", "lots")
	_, err := GetConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "CALC_MAX_SESSIONS")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Calc: CalcConfig{
				Port: 8888, MaxSessions: 4, MaxConnections: 4, SessionIDRange: 10,
				Framing: "line", SendQueue: 8,
			},
			Store: StoreConfig{Driver: "file"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"privileged port", func(c *Config) { c.Calc.Port = 80 }, "invalid port"},
		{"port too large", func(c *Config) { c.Calc.Port = 70000 }, "invalid port"},
		{"no sessions", func(c *Config) { c.Calc.MaxSessions = 0 }, "CALC_MAX_SESSIONS"},
		{"no connections", func(c *Config) { c.Calc.MaxConnections = -1 }, "CALC_MAX_CONNECTIONS"},
		{"id range too small", func(c *Config) { c.Calc.SessionIDRange = 2 }, "CALC_SESSION_ID_RANGE"},
		{"framing", func(c *Config) { c.Calc.Framing = "xml" }, "CALC_FRAMING"},
		{"driver", func(c *Config) { c.Store.Driver = "redis" }, "STORE_DRIVER"},
		{"half tls", func(c *Config) { c.Calc.TLSCertFile = "cert.pem" }, "CALC_TLS_KEY_FILE"},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort(1024))
	assert.NoError(t, ValidatePort(65535))
	assert.ErrorIs(t, ValidatePort(1023), ErrInvalidPort)
	assert.ErrorIs(t, ValidatePort(-1), ErrInvalidPort)
}
