package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytes(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "full config",
			yaml: `
repository: /data/studies
destination: /data/runs
walk_timeout_sec: 10
log_prefix: smgr
debounce_ms: 100
`,
		},
		{
			name: "empty config gets defaults",
			yaml: "",
		},
		{
			name:    "unknown field rejected",
			yaml:    "repositry: /oops\n",
			wantErr: true,
		},
		{
			name:    "negative timeout rejected",
			yaml:    "walk_timeout_sec: -1\n",
			wantErr: true,
		},
		{
			name:    "negative debounce rejected",
			yaml:    "debounce_ms: -5\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadBytes([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, cfg.WalkTimeoutSec)
			assert.NotEmpty(t, cfg.LogPrefix)
		})
	}
}

func TestLoadBytes_Values(t *testing.T) {
	cfg, err := LoadBytes([]byte("repository: /data/studies\nwalk_timeout_sec: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, "/data/studies", cfg.Repository)
	assert.Equal(t, 5, cfg.WalkTimeoutSec)
	assert.Equal(t, "studyrun", cfg.LogPrefix)
	assert.Equal(t, 250, cfg.DebounceMs)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultWalkTimeoutSec, cfg.WalkTimeoutSec)
	assert.Equal(t, "studyrun", cfg.LogPrefix)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "studyrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_prefix: custom\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.LogPrefix)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
