package cloner

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"repoharness/internal/common"
	apperrors "repoharness/pkg/errors"
	"repoharness/pkg/logger"
	"repoharness/pkg/models"
)

// CloneLogFile is the persisted cumulative clone log.
const CloneLogFile = "clone_log.json"

// Cloner clones repositories at pinned commits into an output directory and
// maintains the cumulative clone log.
type Cloner struct {
	outputDir string
}

// New creates a Cloner rooted at outputDir.
func New(outputDir string) *Cloner {
	return &Cloner{outputDir: outputDir}
}

// LogPath returns the clone log location for this output directory.
func (c *Cloner) LogPath() string {
	return filepath.Join(c.outputDir, CloneLogFile)
}

// Clone produces exactly one RepositoryCloneResult for (url, sha). With
// skipExisting set, an already-present checkout short-circuits with
// CloneExists and no network traffic.
func (c *Cloner) Clone(ctx context.Context, url, sha string, skipExisting bool) models.RepositoryCloneResult {
	result := models.RepositoryCloneResult{
		SourceURL: url,
		CommitSHA: sha,
	}

	if err := ValidateGitURL(url); err != nil {
		result.Status = models.CloneFailed
		result.Error = err.Error()
		return result
	}

	folder := common.RepoFolderName(ExtractRepoName(url), sha)
	localPath := filepath.Join(c.outputDir, folder)
	result.LocalPath = localPath

	if skipExisting {
		if _, err := os.Stat(filepath.Join(localPath, ".git")); err == nil {
			result.Status = models.CloneExists
			return result
		}
	}

	if err := os.MkdirAll(c.outputDir, common.DirPermissionNormal); err != nil {
		result.Status = models.CloneFailed
		result.Error = err.Error()
		return result
	}

	if err := c.cloneAndCheckout(ctx, url, sha, localPath); err != nil {
		// A failed attempt must not leave a half-cloned directory that a
		// later skip-existing run would mistake for a usable checkout.
		os.RemoveAll(localPath)
		result.Status = models.CloneFailed
		result.Error = err.Error()
		return result
	}

	result.Status = models.CloneSuccess
	return result
}

// cloneAndCheckout shallow-clones for speed, then checks out the pinned
// commit, widening to full history at most once when the commit is not
// reachable in the shallow clone.
func (c *Cloner) cloneAndCheckout(ctx context.Context, url, sha, localPath string) error {
	auth := getAuthMethod(url)

	err := apperrors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		_, cloneErr := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:   url,
			Auth:  auth,
			Depth: 1,
		})
		if cloneErr != nil {
			// Some transports reject shallow requests; fall back to a full
			// clone before reporting failure.
			os.RemoveAll(localPath)
			_, cloneErr = git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
				URL:  url,
				Auth: auth,
			})
		}
		if cloneErr != nil {
			os.RemoveAll(localPath)
			return apperrors.GitError(apperrors.ErrCodeGitClone, "clone failed", cloneErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeGitClone, "failed to open fresh clone")
	}

	if err := checkout(repo, sha); err == nil {
		return nil
	}

	// The pinned commit is outside the shallow history; widen once.
	logger.WithRepo(filepath.Base(localPath), "clone").
		Debugf("commit %s not in shallow history, unshallowing", sha)
	fetchErr := repo.FetchContext(ctx, &git.FetchOptions{
		Auth:  auth,
		Depth: math.MaxInt32, // full history
		Tags:  git.AllTags,
	})
	if fetchErr != nil && fetchErr != git.NoErrAlreadyUpToDate {
		return apperrors.GitError(apperrors.ErrCodeGitClone, "unshallow fetch failed", fetchErr)
	}

	if err := checkout(repo, sha); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeGitCheckout, "checkout failed after unshallow")
	}
	return nil
}

// checkout moves the worktree to the exact commit, detached.
func checkout(repo *git.Repository, sha string) error {
	hash := plumbing.NewHash(sha)
	if _, err := repo.CommitObject(hash); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeCommitNotFound, "commit not found in history").
			WithContext("sha", sha)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return err
	}
	return worktree.Checkout(&git.CheckoutOptions{
		Hash:  hash,
		Force: true,
	})
}

// CloneAll runs the batch loop over manifest entries. Every result is
// appended to the cumulative log and flushed after each repository, so an
// interrupted run loses at most the in-flight repo. Per-repo failures never
// abort the loop; the loop stops between repositories on cancellation.
func (c *Cloner) CloneAll(ctx context.Context, entries []models.ManifestEntry, skipExisting bool) ([]models.RepositoryCloneResult, error) {
	log, err := LoadCloneLog(c.LogPath())
	if err != nil {
		return nil, err
	}

	var results []models.RepositoryCloneResult
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		repoLog := logger.WithRepo(ExtractRepoName(entry.RepoURL), "clone")
		result := c.Clone(ctx, entry.RepoURL, entry.CommitSHA, skipExisting)
		switch result.Status {
		case models.CloneSuccess:
			repoLog.WithField("status", result.Status).Infof("cloned at %s", entry.CommitSHA)
		case models.CloneExists:
			repoLog.WithField("status", result.Status).Info("already cloned, skipping")
		default:
			repoLog.WithField("status", result.Status).Errorf("clone failed: %s", result.Error)
		}

		results = append(results, result)
		log = append(log, result)
		if err := common.WriteJSONFile(c.LogPath(), log); err != nil {
			return results, err
		}
	}

	return results, nil
}

// LoadCloneLog reads a persisted clone log; a missing file is an empty log.
func LoadCloneLog(path string) ([]models.RepositoryCloneResult, error) {
	var log []models.RepositoryCloneResult
	if _, err := common.ReadJSONFile(path, &log); err != nil {
		return nil, err
	}
	return log, nil
}

// getAuthMethod returns the appropriate auth method based on the URL
func getAuthMethod(gitURL string) transport.AuthMethod {
	if IsSSHURL(gitURL) {
		sshKeyPath := filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		if _, err := os.Stat(sshKeyPath); err == nil {
			auth, err := ssh.NewPublicKeysFromFile("git", sshKeyPath, "")
			if err == nil {
				return auth
			}
		}
	}

	if strings.HasPrefix(gitURL, "https://") {
		username := os.Getenv("GIT_USERNAME")
		password := os.Getenv("GIT_PASSWORD")
		if username != "" && password != "" {
			return &http.BasicAuth{
				Username: username,
				Password: password,
			}
		}

		token := os.Getenv("GITHUB_TOKEN")
		if token != "" {
			return &http.BasicAuth{
				Username: "token",
				Password: token,
			}
		}
	}

	return nil
}
