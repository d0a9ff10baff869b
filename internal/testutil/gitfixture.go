package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitFixture is a throwaway local repository with a known linear history.
type GitFixture struct {
	Path string
	// SHAs holds one commit hash per fixture commit, oldest first.
	SHAs []string
}

// HeadSHA returns the newest commit of the fixture.
func (f *GitFixture) HeadSHA() string {
	return f.SHAs[len(f.SHAs)-1]
}

// CreateGitFixture builds a local git repository with one commit per entry
// in files; each entry maps file name to content and becomes its own commit,
// oldest first. The fixture lives in a test temp directory.
func CreateGitFixture(t *testing.T, commits []map[string]string) *GitFixture {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("Failed to init fixture repo: %v", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get fixture worktree: %v", err)
	}

	fixture := &GitFixture{Path: dir}
	when := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, files := range commits {
		for name, content := range files {
			path := filepath.Join(dir, name)
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				t.Fatalf("Failed to create fixture dirs: %v", err)
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("Failed to write fixture file: %v", err)
			}
			if _, err := worktree.Add(name); err != nil {
				t.Fatalf("Failed to stage fixture file: %v", err)
			}
		}

		// Distinct timestamps keep the log order deterministic
		when = when.Add(time.Minute)
		hash, err := worktree.Commit(commitMessage(i), &git.CommitOptions{
			Author: &object.Signature{
				Name:  "Fixture Author",
				Email: "fixture@example.com",
				When:  when,
			},
		})
		if err != nil {
			t.Fatalf("Failed to commit fixture: %v", err)
		}
		fixture.SHAs = append(fixture.SHAs, hash.String())
	}

	return fixture
}

func commitMessage(i int) string {
	return fmt.Sprintf("commit %d", i)
}
