package cloner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoharness/internal/testutil"
	"repoharness/pkg/models"
)

func newFixture(t *testing.T) *testutil.GitFixture {
	return testutil.CreateGitFixture(t, []map[string]string{
		{"README.md": "v1\n"},
		{"README.md": "v2\n"},
		{"README.md": "v3\n"},
	})
}

func TestCloneAtHead(t *testing.T) {
	fixture := newFixture(t)
	c := New(t.TempDir())

	result := c.Clone(context.Background(), fixture.Path, fixture.HeadSHA(), true)

	require.Equal(t, models.CloneSuccess, result.Status, "error: %s", result.Error)
	assert.DirExists(t, filepath.Join(result.LocalPath, ".git"))

	repo, err := git.PlainOpen(result.LocalPath)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, fixture.HeadSHA(), head.Hash().String())
}

func TestCloneAtOlderCommit(t *testing.T) {
	fixture := newFixture(t)
	c := New(t.TempDir())

	// The middle commit may be outside the shallow history and require the
	// one-shot widen before checkout.
	sha := fixture.SHAs[1]
	result := c.Clone(context.Background(), fixture.Path, sha, true)

	require.Equal(t, models.CloneSuccess, result.Status, "error: %s", result.Error)

	repo, err := git.PlainOpen(result.LocalPath)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, sha, head.Hash().String())

	// The checked out worktree matches the pinned commit's content
	data, err := os.ReadFile(filepath.Join(result.LocalPath, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(data))
}

func TestCloneSkipExisting(t *testing.T) {
	fixture := newFixture(t)
	c := New(t.TempDir())

	first := c.Clone(context.Background(), fixture.Path, fixture.HeadSHA(), true)
	require.Equal(t, models.CloneSuccess, first.Status)

	// Remove the source repo entirely; the second attempt must short-circuit
	// on the existing checkout without ever contacting the source.
	require.NoError(t, os.RemoveAll(fixture.Path))
	second := c.Clone(context.Background(), fixture.Path, fixture.HeadSHA(), true)
	assert.Equal(t, models.CloneExists, second.Status)
	assert.Equal(t, first.LocalPath, second.LocalPath)
}

func TestCloneUnknownCommitFails(t *testing.T) {
	fixture := newFixture(t)
	c := New(t.TempDir())

	result := c.Clone(context.Background(), fixture.Path, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", true)

	assert.Equal(t, models.CloneFailed, result.Status)
	assert.NotEmpty(t, result.Error)

	// Failed clones must not leave a directory a skip-existing re-run
	// would treat as usable.
	_, err := os.Stat(result.LocalPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCloneInvalidURL(t *testing.T) {
	c := New(t.TempDir())
	result := c.Clone(context.Background(), "not-a-url", "abc123", true)
	assert.Equal(t, models.CloneFailed, result.Status)
}

func TestCloneAllFlushesLogPerRepo(t *testing.T) {
	fixture := newFixture(t)
	out := t.TempDir()
	c := New(out)

	entries := []models.ManifestEntry{
		{RepoURL: fixture.Path, CommitSHA: fixture.HeadSHA()},
		{RepoURL: "/nonexistent/repo", CommitSHA: "abc123"},
	}

	results, err := c.CloneAll(context.Background(), entries, true)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// One failure never blocks the other entries
	assert.Equal(t, models.CloneSuccess, results[0].Status)
	assert.Equal(t, models.CloneFailed, results[1].Status)

	log, err := LoadCloneLog(c.LogPath())
	require.NoError(t, err)
	assert.Len(t, log, 2)
}

func TestCloneAllAppendsToExistingLog(t *testing.T) {
	fixture := newFixture(t)
	c := New(t.TempDir())

	entries := []models.ManifestEntry{{RepoURL: fixture.Path, CommitSHA: fixture.HeadSHA()}}
	_, err := c.CloneAll(context.Background(), entries, true)
	require.NoError(t, err)

	// Idempotent re-run: second pass records an exists entry
	_, err = c.CloneAll(context.Background(), entries, true)
	require.NoError(t, err)

	log, err := LoadCloneLog(c.LogPath())
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, models.CloneSuccess, log[0].Status)
	assert.Equal(t, models.CloneExists, log[1].Status)
}

func TestCloneAllStopsBetweenReposOnCancel(t *testing.T) {
	fixture := newFixture(t)
	c := New(t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := c.CloneAll(ctx, []models.ManifestEntry{
		{RepoURL: fixture.Path, CommitSHA: fixture.HeadSHA()},
	}, true)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestExtractRepoName(t *testing.T) {
	tests := []struct {
		name     string
		gitURL   string
		expected string
	}{
		{"HTTPS with .git", "https://github.com/example/agent-zero.git", "agent-zero"},
		{"HTTPS without .git", "https://github.com/example/agent-zero", "agent-zero"},
		{"SSH URL", "git@github.com:example/agent-zero.git", "agent-zero"},
		{"local path", "/tmp/fixtures/agent-zero", "agent-zero"},
		{"trailing slash", "https://github.com/example/agent-zero/", "agent-zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractRepoName(tt.gitURL))
		})
	}
}

func TestValidateGitURL(t *testing.T) {
	assert.NoError(t, ValidateGitURL("https://github.com/example/repo.git"))
	assert.NoError(t, ValidateGitURL("git@github.com:example/repo.git"))
	assert.NoError(t, ValidateGitURL("/abs/local/path"))
	assert.Error(t, ValidateGitURL(""))
	assert.Error(t, ValidateGitURL("relative/path"))
}
