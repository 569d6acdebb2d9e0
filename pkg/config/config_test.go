package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "pt-BR", cfg.Import.Locale)
	assert.Equal(t, 600, cfg.Import.ExcerptLength)
	assert.Zero(t, cfg.Import.CommitRate)
	assert.False(t, cfg.Import.AutoLocale())
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("IMPORT_LOCALE", "AUTO")
	t.Setenv("IMPORT_CURRENCY", "usd")
	t.Setenv("IMPORT_COMMIT_RATE", "2.5")
	t.Setenv("IMPORT_COMMIT_BURST", "4")
	t.Setenv("POSTGRES_PORT", "6543")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.True(t, cfg.Import.AutoLocale())
	assert.Equal(t, "USD", cfg.Import.Currency)
	assert.Equal(t, 2.5, cfg.Import.CommitRate)
	assert.Equal(t, 4, cfg.Import.CommitBurst)
	assert.Contains(t, cfg.Database.DSN(), "port=6543")
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("IMPORT_EXCERPT_LENGTH=120\n"), 0o600))
	// Restored by t.Setenv's cleanup after godotenv sets it.
	t.Setenv("IMPORT_EXCERPT_LENGTH", "")
	require.NoError(t, os.Unsetenv("IMPORT_EXCERPT_LENGTH"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Import.ExcerptLength)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("IMPORT_COMMIT_RATE", "1")
	t.Setenv("IMPORT_COMMIT_BURST", "0")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
