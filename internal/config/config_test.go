package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fs", cfg.Blob.Driver)
	assert.Equal(t, 0.7, cfg.Audit.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.Audit.DateToleranceDays)
	assert.Equal(t, 0.01, cfg.Audit.QuantityEpsilon)
	assert.Equal(t, 4, cfg.Audit.MaxRetries)
	assert.Equal(t, 1000, cfg.Audit.InitialBackoffMs)
	assert.True(t, cfg.Audit.QualityGate)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_ConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	fileCfg := map[string]any{
		"blob": map[string]any{
			"driver": "ftp",
			"root":   "vales",
			"ftp_host": "ftp.obralink.pe",
		},
		"audit": map[string]any{
			"confidence_threshold": 0.6,
			"date_tolerance_days":  1,
		},
		"recipients": map[string][]string{
			"Obra Norte": {"jefe.norte@obralink.pe"},
		},
	}
	data, err := yaml.Marshal(fileCfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ftp", cfg.Blob.Driver)
	assert.Equal(t, "ftp.obralink.pe", cfg.Blob.FTPHost)
	assert.Equal(t, 0.6, cfg.Audit.ConfidenceThreshold)
	assert.Equal(t, 1, cfg.Audit.DateToleranceDays)
	assert.Equal(t, []string{"jefe.norte@obralink.pe"}, cfg.Recipients["Obra Norte"])

	// Untouched keys keep their defaults.
	assert.Equal(t, 4, cfg.Audit.MaxRetries)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VALEAUDIT_ANTHROPIC_KEY", "sk-test")
	t.Setenv("VALEAUDIT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger_RejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "console"})
	assert.NoError(t, err)
}
