package patch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "repoharness/pkg/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSessionRoundTrip(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "config.py"), "PROVIDER = \"openai\"\n")
	writeFile(t, filepath.Join(repo, ".env"), "OPENAI_API_KEY=original\n")

	s, err := Begin(repo)
	require.NoError(t, err)

	require.NoError(t, s.Record("config.py"))
	require.NoError(t, s.Record(".env"))

	writeFile(t, filepath.Join(repo, "config.py"), "PROVIDER = \"azure\"\n")
	writeFile(t, filepath.Join(repo, ".env"), "AZURE_OPENAI_API_KEY=patched\n")

	require.NoError(t, s.Rollback())

	assert.Equal(t, "PROVIDER = \"openai\"\n", readFile(t, filepath.Join(repo, "config.py")))
	assert.Equal(t, "OPENAI_API_KEY=original\n", readFile(t, filepath.Join(repo, ".env")))

	// Backup directory is discarded after a full rollback
	_, err = os.Stat(s.dir)
	assert.True(t, os.IsNotExist(err))
}

func TestRecordOncePerFile(t *testing.T) {
	repo := t.TempDir()
	path := filepath.Join(repo, "settings.py")
	writeFile(t, path, "first\n")

	s, err := Begin(repo)
	require.NoError(t, err)

	require.NoError(t, s.Record("settings.py"))
	writeFile(t, path, "second\n")

	// A later Record in the same session must not overwrite the pristine copy
	require.NoError(t, s.Record("settings.py"))
	writeFile(t, path, "third\n")

	require.NoError(t, s.Rollback())
	assert.Equal(t, "first\n", readFile(t, path))
}

func TestRecordBacksUpNestedPaths(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "src", "app", "config.py"), "nested\n")

	s, err := Begin(repo)
	require.NoError(t, err)
	require.NoError(t, s.Record(filepath.Join("src", "app", "config.py")))

	writeFile(t, filepath.Join(repo, "src", "app", "config.py"), "changed\n")
	require.NoError(t, s.Rollback())
	assert.Equal(t, "nested\n", readFile(t, filepath.Join(repo, "src", "app", "config.py")))
}

func TestRollbackFailureRetainsBackups(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "config.py"), "original\n")

	s, err := Begin(repo)
	require.NoError(t, err)
	require.NoError(t, s.Record("config.py"))

	// Sabotage the rollback: replace the working file with a directory so
	// the copy-back cannot succeed.
	require.NoError(t, os.Remove(filepath.Join(repo, "config.py")))
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "config.py", "blocker"), 0755))

	err = s.Rollback()
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRestoreIncomplete, apperrors.GetErrorCode(err))

	// Backup must survive the failed rollback so a retry is possible
	_, statErr := os.Stat(filepath.Join(s.dir, "config.py"))
	assert.NoError(t, statErr)
}

func TestCommitDiscardsBackups(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "a.txt"), "a\n")

	s, err := Begin(repo)
	require.NoError(t, err)
	require.NoError(t, s.Record("a.txt"))
	require.NoError(t, s.Commit())

	_, err = os.Stat(s.dir)
	assert.True(t, os.IsNotExist(err))
}

func TestSessionsNewestFirst(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "a.txt"), "a\n")

	first, err := Begin(repo)
	require.NoError(t, err)
	require.NoError(t, first.Record("a.txt"))

	second, err := Begin(repo)
	require.NoError(t, err)

	sessions, err := Sessions(repo)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, second.id, sessions[0].id)
	assert.Equal(t, first.id, sessions[1].id)
	assert.True(t, sessions[1].Recorded("a.txt"))
}

func TestRollbackRemovesCreatedFiles(t *testing.T) {
	repo := t.TempDir()

	s, err := Begin(repo)
	require.NoError(t, err)
	require.NoError(t, s.RecordCreate(".env"))
	writeFile(t, filepath.Join(repo, ".env"), "KEY=value\n")

	require.NoError(t, s.Rollback())

	_, err = os.Stat(filepath.Join(repo, ".env"))
	assert.True(t, os.IsNotExist(err))
}

func TestSessionsEmptyRepo(t *testing.T) {
	sessions, err := Sessions(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
