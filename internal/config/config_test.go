package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	require.NoError(t, err)

	assert.Equal(t, "./definitions", cfg.FlowDir)
	assert.True(t, cfg.Watch)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout, "unset fields keep defaults")
	assert.Equal(t, StoreRedis, cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, "quiz:", cfg.Store.Prefix)
	assert.Equal(t, []string{"email", "^patient_name$"}, cfg.Security.PIIFields)
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	assert.Error(t, err)
}

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	err := ApplyEnv(cfg, env(map[string]string{
		"QUIZ_FLOW_DIR":   "/srv/flows",
		"QUIZ_STORE":      "sqlite",
		"QUIZ_STORE_DSN":  "file:quiz.db",
		"QUIZ_STORE_TTL":  "1h",
		"QUIZ_LOG_JSON":   "true",
		"QUIZ_PII_FIELDS": " email , phone ,,",
		"QUIZ_ADDR":       "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/srv/flows", cfg.FlowDir)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "file:quiz.db", cfg.Store.DSN)
	assert.Equal(t, time.Hour, cfg.Store.TTL)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, []string{"email", "phone"}, cfg.Security.PIIFields)
	assert.Equal(t, ":8080", cfg.Server.Addr, "empty values are ignored")
}

func TestApplyEnv_BadValues(t *testing.T) {
	err := ApplyEnv(Defaults(), env(map[string]string{
		"QUIZ_WATCH":     "maybe",
		"QUIZ_STORE_TTL": "forever",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUIZ_WATCH")
	assert.Contains(t, err.Error(), "QUIZ_STORE_TTL")
}

func TestValidate(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"defaults", func(*Config) {}, nil},
		{"missing flow dir", func(c *Config) { c.FlowDir = "" }, ErrMissingFlowDir},
		{"bad addr", func(c *Config) { c.Server.Addr = "8080" }, ErrInvalidAddr},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, ErrUnknownStoreDriver},
		{"redis without dsn", func(c *Config) { c.Store.Driver = StoreRedis }, ErrMissingDSN},
		{"file without dsn", func(c *Config) { c.Store.Driver = StoreFile }, nil},
		{"valid key", func(c *Config) { c.Security.EncryptionKey = key }, nil},
		{"short key", func(c *Config) { c.Security.EncryptionKey = "c2hvcnQ=" }, ErrInvalidKey},
		{"bad fallback", func(c *Config) {
			c.Security.EncryptionKey = key
			c.Security.FallbackKeys = []string{"!!"}
		}, ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSecurityKeys(t *testing.T) {
	active := []byte(strings.Repeat("a", 32))
	old := []byte(strings.Repeat("b", 32))
	s := SecurityConfig{
		EncryptionKey: base64.StdEncoding.EncodeToString(active),
		FallbackKeys:  []string{base64.StdEncoding.EncodeToString(old)},
	}
	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{active, old}, keys)
}
