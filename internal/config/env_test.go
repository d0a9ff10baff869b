package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, path string, values map[string]string) {
	t.Helper()
	require.NoError(t, godotenv.Write(values, path))
}

func TestLoadEnvSnapshotMissingFile(t *testing.T) {
	snap, err := LoadEnvSnapshot(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Empty(t, snap.Keys())
}

func TestLoadEnvSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	writeEnvFile(t, path, map[string]string{
		"AZURE_OPENAI_ENDPOINT": "https://research.openai.azure.com",
		"AZURE_OPENAI_API_KEY":  "key",
	})

	snap, err := LoadEnvSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "key", snap.Get("AZURE_OPENAI_API_KEY"))
	assert.Equal(t, []string{"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT"}, snap.Keys())
}

func TestMergeIntoRepoLocalWins(t *testing.T) {
	dir := t.TempDir()
	repoEnv := filepath.Join(dir, "repo", ".env")
	require.NoError(t, os.MkdirAll(filepath.Dir(repoEnv), 0755))
	writeEnvFile(t, repoEnv, map[string]string{
		"DATABASE_URL": "postgres://local-override/db",
		"REPO_ONLY":    "kept",
	})

	snap := SnapshotFromMap(map[string]string{
		"DATABASE_URL":          "postgres://shared/db",
		"AZURE_OPENAI_API_KEY":  "shared-key",
	})

	merged, err := snap.MergeInto(repoEnv)
	require.NoError(t, err)

	// Repository-local values take precedence over shared defaults
	assert.Equal(t, "postgres://local-override/db", merged["DATABASE_URL"])
	assert.Equal(t, "shared-key", merged["AZURE_OPENAI_API_KEY"])
	assert.Equal(t, "kept", merged["REPO_ONLY"])

	// The merged result is persisted in the repo env file
	onDisk, err := godotenv.Read(repoEnv)
	require.NoError(t, err)
	assert.Equal(t, merged, onDisk)
}

func TestMergeIntoCreatesMissingRepoEnv(t *testing.T) {
	repoEnv := filepath.Join(t.TempDir(), "repo", ".env")

	snap := SnapshotFromMap(map[string]string{"KEY": "value"})
	merged, err := snap.MergeInto(repoEnv)
	require.NoError(t, err)
	assert.Equal(t, "value", merged["KEY"])

	_, err = os.Stat(repoEnv)
	assert.NoError(t, err)
}

func TestSnapshotFromMapCopies(t *testing.T) {
	src := map[string]string{"A": "1"}
	snap := SnapshotFromMap(src)
	src["A"] = "mutated"
	assert.Equal(t, "1", snap.Get("A"))
}
