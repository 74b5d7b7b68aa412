package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, 8080, s.DefaultPort)
	assert.Equal(t, "", s.Bearer)
	assert.Equal(t, "", s.Prefix)
	assert.Equal(t, "", s.Endpoint)
	assert.True(t, s.Demo)
	assert.Equal(t, 100*time.Millisecond, s.Interval)
	assert.Equal(t, 0.1, s.DefaultBound)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.Equal(t, 8080, s.Port())
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"defaultPort": 5000,
		"prefix": "/foo",
		"positions": { "endpoint": "http://orion:1026", "demo": false },
		"replay": { "interval": "250ms", "defaultBound": 0.5 }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName+".json"), []byte(cfg), 0644))

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 5000, s.Port())
	assert.Equal(t, "/foo", s.Prefix)
	assert.Equal(t, "http://orion:1026", s.Endpoint)
	assert.False(t, s.Demo)
	assert.Equal(t, 250*time.Millisecond, s.Interval)
	assert.Equal(t, 0.5, s.DefaultBound)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName+".json"), []byte(`{not json`), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("LISTEN_PORT", "3000")
	t.Setenv("BEARER_AUTH", "secret")
	t.Setenv("PREFIX", "bar")

	s, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "ERROR", s.LogLevel)
	assert.Equal(t, 3000, s.Port())
	assert.Equal(t, "secret", s.Bearer)
	assert.Equal(t, "bar", s.Prefix)
}

func TestSettingsPort(t *testing.T) {
	tests := []struct {
		listen string
		want   int
	}{
		{"", 8080},
		{"1", 1},
		{"65535", 65535},
		{"0", 8080},
		{"65536", 8080},
		{"-1", 8080},
		{"http", 8080},
	}
	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			s := Settings{DefaultPort: 8080, ListenPort: tt.listen}
			assert.Equal(t, tt.want, s.Port())
		})
	}
}
