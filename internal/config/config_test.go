package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoharness/pkg/models"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("REPOHARNESS_CONFIG", filepath.Join(t.TempDir(), "harness.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "repos", cfg.OutputDir)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.Equal(t, 10, cfg.Install.TimeoutMinutes)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("REPOHARNESS_CONFIG", filepath.Join(t.TempDir(), "harness.yaml"))
	t.Setenv("REPOHARNESS_ENCRYPTION_KEY", "test-key")

	cfg := Default()
	cfg.OutputDir = "dataset"
	cfg.Provider.Endpoint = "https://research.openai.azure.com"
	cfg.Provider.Deployment = "gpt-4o"
	cfg.Provider.APIKey = "super-secret"
	cfg.Database.Password = "pg-secret"

	require.NoError(t, Save(cfg))
	assert.True(t, Exists())

	// Secrets must not appear in plaintext on disk
	raw, err := os.ReadFile(GetConfigFile())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret")
	assert.NotContains(t, string(raw), "pg-secret")

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dataset", loaded.OutputDir)
	assert.Equal(t, "super-secret", loaded.Provider.APIKey)
	assert.Equal(t, "pg-secret", loaded.Database.Password)
}

func TestSaveDoesNotMutateCaller(t *testing.T) {
	t.Setenv("REPOHARNESS_CONFIG", filepath.Join(t.TempDir(), "harness.yaml"))
	t.Setenv("REPOHARNESS_ENCRYPTION_KEY", "test-key")

	cfg := Default()
	cfg.Provider.APIKey = "plain"
	require.NoError(t, Save(cfg))
	assert.Equal(t, "plain", cfg.Provider.APIKey)
}

func TestEncryptDecryptSecret(t *testing.T) {
	t.Setenv("REPOHARNESS_ENCRYPTION_KEY", "test-key")

	tests := []struct {
		name   string
		secret string
	}{
		{"simple secret", "hunter2"},
		{"empty string stays empty", ""},
		{"secret with special characters", "p@ss=word;with://stuff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := EncryptSecret(tt.secret)
			require.NoError(t, err)

			if tt.secret == "" {
				assert.Empty(t, encrypted)
				return
			}

			assert.True(t, IsEncrypted(encrypted))
			assert.NotContains(t, encrypted, tt.secret)

			decrypted, err := DecryptSecret(encrypted)
			require.NoError(t, err)
			assert.Equal(t, tt.secret, decrypted)
		})
	}
}

func TestEncryptSecretIdempotent(t *testing.T) {
	t.Setenv("REPOHARNESS_ENCRYPTION_KEY", "test-key")

	once, err := EncryptSecret("value")
	require.NoError(t, err)
	twice, err := EncryptSecret(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestDecryptPlaintextPassesThrough(t *testing.T) {
	out, err := DecryptSecret("not-encrypted")
	require.NoError(t, err)
	assert.Equal(t, "not-encrypted", out)
}

func TestEncryptConfigSecrets(t *testing.T) {
	t.Setenv("REPOHARNESS_ENCRYPTION_KEY", "test-key")

	cfg := &models.Config{}
	cfg.Provider.APIKey = "api-key"
	cfg.Provider.LangfuseSecret = "lf-secret"
	cfg.Database.Password = "db-pass"

	require.NoError(t, EncryptConfigSecrets(cfg))
	assert.True(t, IsEncrypted(cfg.Provider.APIKey))
	assert.True(t, IsEncrypted(cfg.Provider.LangfuseSecret))
	assert.True(t, IsEncrypted(cfg.Database.Password))

	require.NoError(t, DecryptConfigSecrets(cfg))
	assert.Equal(t, "api-key", cfg.Provider.APIKey)
	assert.Equal(t, "lf-secret", cfg.Provider.LangfuseSecret)
	assert.Equal(t, "db-pass", cfg.Database.Password)
}
